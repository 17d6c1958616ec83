/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	resort data for demos. Every scenario is anchored on the current week so
	the dashboard always has something to show.

AVAILABLE SCENARIOS:

	weekly-balance:   BAR with 5 days left, a partial fit and an event request
	manager-override: COZINHA exhausted, a manager approves past the quota
	no-record:        RECEPCAO has no balance record yet

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Set the daily rate
 3. Save balance records through the record service
 4. Create requests through the request service (real admission decisions)
 5. Optionally approve, reject or cancel as a manager

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "weekly-balance"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Service wiring
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-balance",
		Name:        "Weekly Balance",
		Description: "BAR has 5 extra days this week: one request fits, one only partly, events wait",
	},
	{
		ID:          "manager-override",
		Name:        "Manager Override",
		Description: "COZINHA uses its whole quota and a manager approves beyond it",
	},
	{
		ID:          "no-record",
		Name:        "Missing Balance Record",
		Description: "RECEPCAO requests wait because no balance record covers the week",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context, week generic.Period) error{
	"weekly-balance":   (*Handler).loadWeeklyBalanceScenario,
	"manager-override": (*Handler).loadManagerOverrideScenario,
	"no-record":        (*Handler).loadNoRecordScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	week := generic.WeekOf(h.Today())
	if err := load(h, ctx, week); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded", slog.String("scenario", req.ScenarioID), slog.String("week", week.String()))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "loaded",
		"scenario":   req.ScenarioID,
		"week_start": week.Start.String(),
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadWeeklyBalanceScenario(ctx context.Context, week generic.Period) error {
	if err := h.Records.SetDailyRate(ctx, decimal.NewFromInt(130)); err != nil {
		return err
	}

	// quota 25, 20 already used: 5 days left
	if err := h.saveMonthRecord(ctx, week, saldo.BalancePeriodInput{
		Sector:            "BAR",
		ApprovedHeadcount: 10,
		ActualHeadcount:   7,
		DaysOff:           2,
		Sundays:           1,
		Demand:            1,
		ExtrasRequested:   20,
	}); err != nil {
		return err
	}

	// Fits: 2 of 5
	if _, err := h.createDemoRequest(ctx, "BAR", "FERIAS", "supervisor.bar", week, 0, 1); err != nil {
		return err
	}
	// Partial fit: 4 requested, 3 left
	if _, err := h.createDemoRequest(ctx, "BAR", "FERIAS", "supervisor.bar", week, 2, 3, 4, 5); err != nil {
		return err
	}
	// Events never consume and always wait
	if _, err := h.createDemoRequest(ctx, "BAR", saldo.DefaultEventReason, "supervisor.bar", week, 5); err != nil {
		return err
	}
	// Exempt sector
	_, err := h.createDemoRequest(ctx, "AQUAMANIA", "FERIAS", "supervisor.aquamania", week, 0, 1, 2, 3, 4, 5, 6)
	return err
}

func (h *Handler) loadManagerOverrideScenario(ctx context.Context, week generic.Period) error {
	if err := h.Records.SetDailyRate(ctx, decimal.RequireFromString("142.50")); err != nil {
		return err
	}

	// quota 3, nothing used yet
	if err := h.saveMonthRecord(ctx, week, saldo.BalancePeriodInput{
		Sector:            "COZINHA",
		ApprovedHeadcount: 5,
		ActualHeadcount:   5,
		DaysOff:           2,
		Sundays:           1,
	}); err != nil {
		return err
	}

	if _, err := h.createDemoRequest(ctx, "COZINHA", "ATESTADO", "supervisor.cozinha", week, 0, 1, 2); err != nil {
		return err
	}

	// Exhausted: waits, then a manager approves it anyway
	over, err := h.createDemoRequest(ctx, "COZINHA", "FERIAS", "supervisor.cozinha", week, 3, 4)
	if err != nil {
		return err
	}
	if _, err := h.Requests.Approve(ctx, over.ID, "gerente"); err != nil {
		return err
	}

	late, err := h.createDemoRequest(ctx, "COZINHA", "FERIAS", "supervisor.cozinha", week, 5)
	if err != nil {
		return err
	}
	_, err = h.Requests.Reject(ctx, late.ID, "gerente", "quota already exceeded")
	return err
}

func (h *Handler) loadNoRecordScenario(ctx context.Context, week generic.Period) error {
	if _, err := h.createDemoRequest(ctx, "RECEPCAO", "FERIAS", "supervisor.recepcao", week, 0, 1); err != nil {
		return err
	}
	withdrawn, err := h.createDemoRequest(ctx, "RECEPCAO", "FERIAS", "supervisor.recepcao", week, 4)
	if err != nil {
		return err
	}
	_, err = h.Requests.Cancel(ctx, withdrawn.ID, "supervisor.recepcao")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// saveMonthRecord stores input over the whole month(s) touched by week.
func (h *Handler) saveMonthRecord(ctx context.Context, week generic.Period, input saldo.BalancePeriodInput) error {
	input.PeriodStart = generic.StartOfMonth(week.Start.Year(), week.Start.Month())
	input.PeriodEnd = generic.EndOfMonth(week.End.Year(), week.End.Month())
	_, err := h.Records.Save(ctx, input)
	return err
}

// createDemoRequest creates a request for the given weekday offsets
// (0 = Monday) of week.
func (h *Handler) createDemoRequest(ctx context.Context, sector, reason, by string, week generic.Period, offsets ...int) (*saldo.ExtraRequest, error) {
	in := extras.NewRequest{
		Sector:    sector,
		Role:      "extra",
		Reason:    reason,
		CreatedBy: by,
	}
	for _, off := range offsets {
		in.WorkDays = append(in.WorkDays, saldo.WorkDay{Date: week.Start.AddDays(off), Shift: saldo.ShiftFullDay})
	}
	req, _, err := h.Requests.Create(ctx, in)
	return req, err
}
