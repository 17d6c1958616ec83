/*
handlers_test.go - HTTP tests for the extras API

Tests run the real router over an in-memory SQLite store.
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/store/sqlite"
)

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestServer(t *testing.T, opts RouterOptions) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := extras.Config{
		Store:       store,
		DefaultRate: decimal.NewFromInt(130),
		Logger:      logger,
	}
	h := NewHandler(extras.NewRecordService(cfg), extras.NewRequestService(cfg), store, logger)
	h.Today = func() generic.TimePoint { return generic.NewTimePoint(2025, time.March, 12) }

	return &testServer{handler: h, router: NewRouter(h, opts), store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func barMarch() BalanceInputDTO {
	return BalanceInputDTO{
		Sector:            "BAR",
		PeriodStart:       "2025-03-01",
		PeriodEnd:         "2025-03-31",
		ApprovedHeadcount: 10,
		ActualHeadcount:   7,
		DaysOff:           2,
		Sundays:           1,
		Demand:            1,
		ExtrasRequested:   20,
	}
}

func newRequestBody(sector, reason string, dates ...string) CreateRequest {
	body := CreateRequest{Sector: sector, Role: "garcom", Reason: reason, CreatedBy: "supervisor"}
	for _, d := range dates {
		body.WorkDays = append(body.WorkDays, WorkDayDTO{Date: d, Shift: "NOITE"})
	}
	return body
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])

	// Closed database
	require.NoError(t, s.store.Close())
	rec = s.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRules(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodGet, "/api/rules", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	rules := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "EVENTO", rules["event_reason"])
	assert.EqualValues(t, 999, rules["exempt_sentinel"])
	assert.EqualValues(t, 7, rules["max_work_days"])
	assert.Equal(t, []any{"AQUAMANIA"}, rules["exempt_sectors"])
}

func TestDailyRate(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	// GIVEN: No stored rate, so the default applies
	rec := s.do(t, http.MethodGet, "/api/settings/daily-rate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "130.00", decodeBody[DailyRateDTO](t, rec).DailyRate)

	// WHEN: A new rate is stored
	rec = s.do(t, http.MethodPut, "/api/settings/daily-rate", DailyRateDTO{DailyRate: "142.5"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN
	rec = s.do(t, http.MethodGet, "/api/settings/daily-rate", nil)
	assert.Equal(t, "142.50", decodeBody[DailyRateDTO](t, rec).DailyRate)
}

func TestDailyRate_Invalid(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	tests := []struct {
		name string
		body DailyRateDTO
	}{
		{"negative", DailyRateDTO{DailyRate: "-5"}},
		{"not a number", DailyRateDTO{DailyRate: "abc"}},
		{"missing", DailyRateDTO{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, "/api/settings/daily-rate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// =============================================================================
// BALANCES
// =============================================================================

func TestBalances_CreateAndGet(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/balances", barMarch())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[RecordDTO](t, rec)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Result.OpenPositions)
	assert.Equal(t, 18, created.Result.DailySlotsFromGap)
	assert.Equal(t, 25, created.Result.TotalWorkerDayQuota)
	assert.Equal(t, 5, created.Result.Balance)
	assert.Equal(t, "2600.00", created.Result.Cost)
	assert.Equal(t, "-650.00", created.Result.BalanceValueInCurrency)
	require.NotNil(t, created.DailyRateSnapshot)
	assert.Equal(t, "130.00", *created.DailyRateSnapshot)

	rec = s.do(t, http.MethodGet, "/api/balances/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[RecordDTO](t, rec)
	assert.Equal(t, "BAR", got.Sector)
	assert.Equal(t, "2025-03-31", got.PeriodEnd)
	assert.Equal(t, 31, got.PeriodDays)

	rec = s.do(t, http.MethodGet, "/api/balances/"+created.ID+"/weeks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]WeekReportDTO](t, rec), 4)

	rec = s.do(t, http.MethodGet, "/api/balances?sector=COZINHA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]RecordDTO](t, rec))
}

func TestBalances_Preview(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/balances/preview", barMarch())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeBody[BalanceResultDTO](t, rec).Balance)

	list := s.do(t, http.MethodGet, "/api/balances", nil)
	assert.Empty(t, decodeBody[[]RecordDTO](t, list), "preview stores nothing")
}

func TestBalances_UpdateKeepsSnapshot(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	created := decodeBody[RecordDTO](t, s.do(t, http.MethodPost, "/api/balances", barMarch()))
	s.do(t, http.MethodPut, "/api/settings/daily-rate", DailyRateDTO{DailyRate: "200"})

	in := barMarch()
	in.ExtrasRequested = 10
	rec := s.do(t, http.MethodPut, "/api/balances/"+created.ID, in)

	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[RecordDTO](t, rec)
	assert.Equal(t, 15, updated.Result.Balance)
	assert.Equal(t, "1300.00", updated.Result.Cost)
}

func TestBalances_Errors(t *testing.T) {
	negative := barMarch()
	negative.MedicalLeave = -1
	badDate := barMarch()
	badDate.PeriodStart = "01/03/2025"
	reversed := barMarch()
	reversed.PeriodStart = "2025-04-01"
	blank := barMarch()
	blank.Sector = "  "

	tests := []struct {
		name  string
		body  BalanceInputDTO
		field string
	}{
		{"negative count", negative, "medical_leave"},
		{"bad date", badDate, "period_start"},
		{"end before start", reversed, "period"},
		{"blank sector", blank, "sector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, RouterOptions{})

			rec := s.do(t, http.MethodPost, "/api/balances", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, "validation_failed", resp.Code)
			assert.Contains(t, resp.Details, tt.field)
		})
	}
}

func TestBalances_OverlapAndNotFound(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(t, http.MethodPost, "/api/balances", barMarch())

	overlapping := barMarch()
	overlapping.PeriodStart = "2025-03-31"
	overlapping.PeriodEnd = "2025-04-30"
	rec := s.do(t, http.MethodPost, "/api/balances", overlapping)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/balances/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/balances/overlaps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]OverlapDTO](t, rec))
}

// =============================================================================
// REQUESTS
// =============================================================================

func TestRequests_AutoApproveThenWait(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(t, http.MethodPost, "/api/balances", barMarch())

	// GIVEN: 2 of 5 days fit
	rec := s.do(t, http.MethodPost, "/api/requests", newRequestBody("BAR", "FERIAS", "2025-03-10", "2025-03-11"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[CreateRequestResponse](t, rec)
	assert.True(t, first.Decision.AutoApprove)
	assert.Equal(t, "APPROVED", first.Request.Status)
	assert.Equal(t, "2025-03-10", first.Decision.WeekStart)
	assert.Equal(t, "2025-03-16", first.Decision.WeekEnd)

	// WHEN: 4 more days are requested with 3 left
	rec = s.do(t, http.MethodPost, "/api/requests", newRequestBody("BAR", "FERIAS", "2025-03-12", "2025-03-13", "2025-03-14", "2025-03-15"))
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[CreateRequestResponse](t, rec)

	// THEN: It waits for a manager
	assert.False(t, second.Decision.AutoApprove)
	assert.Equal(t, "insufficient_balance", second.Decision.Outcome)
	require.NotNil(t, second.Decision.Remaining.Days)
	assert.Equal(t, 3, *second.Decision.Remaining.Days)
	assert.Equal(t, "REQUESTED", second.Request.Status)
	assert.True(t, second.Request.NeedsManagerApproval)

	// AND: A manager approves it, once
	rec = s.do(t, http.MethodPost, "/api/requests/"+second.Request.ID+"/approve", ApproveRequest{ApprovedBy: "gerente"})
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeBody[RequestDTO](t, rec)
	assert.Equal(t, "APPROVED", approved.Status)
	assert.Equal(t, "gerente", approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)

	rec = s.do(t, http.MethodPost, "/api/requests/"+second.Request.ID+"/approve", ApproveRequest{ApprovedBy: "gerente"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// AND: The week now shows the overshoot
	rec = s.do(t, http.MethodGet, "/api/sectors/BAR/weeks/2025-03-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decodeBody[WeekReportDTO](t, rec)
	assert.Equal(t, 6, week.UsedDays)
	require.NotNil(t, week.Remaining.Days)
	assert.Equal(t, -1, *week.Remaining.Days)
	assert.Equal(t, 0, week.Overshoot, "6 used is still within the quota of 25")
}

func TestRequests_NoRecordReportsNullDays(t *testing.T) {
	s := newTestServer(t, RouterOptions{})

	rec := s.do(t, http.MethodPost, "/api/requests", newRequestBody("RECEPCAO", "FERIAS", "2025-03-10"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var raw struct {
		Decision map[string]any `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, true, raw.Decision["balance_unknown"])
	assert.Equal(t, "no_record", raw.Decision["outcome"])
	remaining := raw.Decision["remaining"].(map[string]any)
	assert.Nil(t, remaining["days"])
	assert.Equal(t, "no_record", remaining["source"])
}

func TestRequests_Preview(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(t, http.MethodPost, "/api/balances", barMarch())

	rec := s.do(t, http.MethodPost, "/api/requests/preview", newRequestBody("BAR", "EVENTO", "2025-03-10"))

	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[DecisionDTO](t, rec)
	assert.Equal(t, "event_reason", d.Outcome)
	assert.NotEmpty(t, d.Message)

	list := decodeBody[[]RequestDTO](t, s.do(t, http.MethodGet, "/api/requests", nil))
	assert.Empty(t, list)
}

func TestRequests_Validation(t *testing.T) {
	noCreator := newRequestBody("BAR", "FERIAS", "2025-03-10")
	noCreator.CreatedBy = ""
	badShift := newRequestBody("BAR", "FERIAS", "2025-03-10")
	badShift.WorkDays[0].Shift = "MADRUGADA"
	tooMany := newRequestBody("BAR", "FERIAS",
		"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13",
		"2025-03-14", "2025-03-15", "2025-03-16", "2025-03-17")

	tests := []struct {
		name string
		body CreateRequest
	}{
		{"missing creator", noCreator},
		{"unknown shift", badShift},
		{"no work days", newRequestBody("BAR", "FERIAS")},
		{"duplicate date", newRequestBody("BAR", "FERIAS", "2025-03-10", "2025-03-10")},
		{"too many days", tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, RouterOptions{})

			rec := s.do(t, http.MethodPost, "/api/requests", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestRequests_InvalidBody(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	req := httptest.NewRequest(http.MethodPost, "/api/requests", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequests_RejectCancelAndList(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(t, http.MethodPost, "/api/balances", barMarch())

	approved := decodeBody[CreateRequestResponse](t, s.do(t, http.MethodPost, "/api/requests", newRequestBody("BAR", "FERIAS", "2025-03-10")))
	event := decodeBody[CreateRequestResponse](t, s.do(t, http.MethodPost, "/api/requests", newRequestBody("BAR", "EVENTO", "2025-03-11")))

	// Reject needs a manager
	rec := s.do(t, http.MethodPost, "/api/requests/"+event.Request.ID+"/reject", RejectRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/requests/"+event.Request.ID+"/reject", RejectRequest{RejectedBy: "gerente", Reason: "evento cancelado"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evento cancelado", decodeBody[RequestDTO](t, rec).RejectionReason)

	// Cancel accepts an empty body
	rec = s.do(t, http.MethodPost, "/api/requests/"+approved.Request.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", decodeBody[RequestDTO](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/requests?sector=BAR&status=cancelled,rejected", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]RequestDTO](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/requests?status=APPROVED&from=2025-03-10&to=2025-03-16", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]RequestDTO](t, rec))

	rec = s.do(t, http.MethodGet, "/api/requests?status=PENDING", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/requests?from=2025-03-16&to=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/requests/"+approved.Request.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-10", decodeBody[RequestDTO](t, rec).WorkDays[0].Date)

	rec = s.do(t, http.MethodGet, "/api/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// WEEKS
// =============================================================================

func TestWeeks(t *testing.T) {
	s := newTestServer(t, RouterOptions{})
	s.do(t, http.MethodPost, "/api/balances", barMarch())
	s.do(t, http.MethodPost, "/api/requests", newRequestBody("BAR", "FERIAS", "2025-03-10", "2025-03-11"))
	s.do(t, http.MethodPost, "/api/requests", newRequestBody("AQUAMANIA", "FERIAS", "2025-03-10"))

	rec := s.do(t, http.MethodGet, "/api/weeks/2025-03-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decodeBody[[]WeekReportDTO](t, rec)

	require.Len(t, reports, 1, "only sectors with a covering record")
	assert.Equal(t, "BAR", reports[0].Sector)
	assert.Equal(t, 2, reports[0].UsedDays)
	require.NotNil(t, reports[0].Result)
	assert.Equal(t, 25, reports[0].Result.TotalWorkerDayQuota)

	rec = s.do(t, http.MethodGet, "/api/sectors/AQUAMANIA/weeks/2025-03-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exempt := decodeBody[WeekReportDTO](t, rec)
	assert.Equal(t, "exempt", exempt.Remaining.Source)
	require.NotNil(t, exempt.Remaining.Days)
	assert.Equal(t, 999, *exempt.Remaining.Days)

	rec = s.do(t, http.MethodGet, "/api/weeks/14-03-2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestWriteRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t, RouterOptions{WriteLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/balances/preview", barMarch())
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/balances/preview", barMarch())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited
	rec = s.do(t, http.MethodGet, "/api/rules", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
