/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the saldo domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Balances:  BalanceInputDTO, BalanceResultDTO, RecordDTO, OverlapDTO
  Weeks:     RemainingDTO, WeekReportDTO
  Requests:  CreateRequest, WorkDayDTO, RequestDTO, DecisionDTO
  Workflow:  ApproveRequest, RejectRequest, CancelRequest
  Settings:  DailyRateDTO, factory.RulesJSON

FORMATS:
  Dates are "YYYY-MM-DD". Money is a decimal string with two places.

VALIDATION:
  Request types carry go-playground/validator tags for shape checks. The
  services still enforce domain rules (period order, max days per request).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// BALANCE RECORDS
// =============================================================================

// BalanceInputDTO is the staffing configuration of a sector over a period.
type BalanceInputDTO struct {
	Sector            string `json:"sector" validate:"required"`
	PeriodStart       string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd         string `json:"period_end" validate:"required,datetime=2006-01-02"`
	ApprovedHeadcount int    `json:"approved_headcount" validate:"gte=0"`
	ActualHeadcount   int    `json:"actual_headcount" validate:"gte=0"`
	DaysOff           int    `json:"days_off" validate:"gte=0"`
	Sundays           int    `json:"sundays" validate:"gte=0"`
	Demand            int    `json:"demand" validate:"gte=0"`
	MedicalLeave      int    `json:"medical_leave" validate:"gte=0"`
	ExtrasRequested   int    `json:"extras_requested" validate:"gte=0"`
}

func (d BalanceInputDTO) toInput() (saldo.BalancePeriodInput, error) {
	start, err := generic.ParseDate(d.PeriodStart)
	if err != nil {
		return saldo.BalancePeriodInput{}, &saldo.ValidationError{Field: "period_start", Message: err.Error()}
	}
	end, err := generic.ParseDate(d.PeriodEnd)
	if err != nil {
		return saldo.BalancePeriodInput{}, &saldo.ValidationError{Field: "period_end", Message: err.Error()}
	}
	return saldo.BalancePeriodInput{
		Sector:            d.Sector,
		PeriodStart:       start,
		PeriodEnd:         end,
		ApprovedHeadcount: d.ApprovedHeadcount,
		ActualHeadcount:   d.ActualHeadcount,
		DaysOff:           d.DaysOff,
		Sundays:           d.Sundays,
		Demand:            d.Demand,
		MedicalLeave:      d.MedicalLeave,
		ExtrasRequested:   d.ExtrasRequested,
	}, nil
}

func toBalanceInputDTO(in saldo.BalancePeriodInput) BalanceInputDTO {
	return BalanceInputDTO{
		Sector:            in.Sector,
		PeriodStart:       in.PeriodStart.String(),
		PeriodEnd:         in.PeriodEnd.String(),
		ApprovedHeadcount: in.ApprovedHeadcount,
		ActualHeadcount:   in.ActualHeadcount,
		DaysOff:           in.DaysOff,
		Sundays:           in.Sundays,
		Demand:            in.Demand,
		MedicalLeave:      in.MedicalLeave,
		ExtrasRequested:   in.ExtrasRequested,
	}
}

// BalanceResultDTO is the calculator output.
type BalanceResultDTO struct {
	OpenPositions          int    `json:"open_positions"`
	DailySlotsFromGap      int    `json:"daily_slots_from_gap"`
	TotalWorkerDayQuota    int    `json:"total_worker_day_quota"`
	Balance                int    `json:"balance"`
	DailyRate              string `json:"daily_rate"`
	Cost                   string `json:"cost"`
	BalanceValueInCurrency string `json:"balance_value_in_currency"`
}

func toBalanceResultDTO(r saldo.BalanceResult) BalanceResultDTO {
	return BalanceResultDTO{
		OpenPositions:          r.OpenPositions,
		DailySlotsFromGap:      r.DailySlotsFromGap,
		TotalWorkerDayQuota:    r.TotalWorkerDayQuota,
		Balance:                r.Balance,
		DailyRate:              saldo.FormatMoney(r.DailyRate),
		Cost:                   saldo.FormatMoney(r.Cost),
		BalanceValueInCurrency: saldo.FormatMoney(r.BalanceValueInCurrency),
	}
}

// RecordDTO is a stored balance record with its computed balance.
type RecordDTO struct {
	ID string `json:"id"`
	BalanceInputDTO
	PeriodDays        int              `json:"period_days"`
	DailyRateSnapshot *string          `json:"daily_rate_snapshot"`
	Result            BalanceResultDTO `json:"result"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"updated_at"`
}

func toRecordDTO(rec extras.RecordWithResult) RecordDTO {
	dto := RecordDTO{
		ID:              rec.ID,
		BalanceInputDTO: toBalanceInputDTO(rec.BalancePeriodInput),
		PeriodDays:      rec.Period().Length(),
		Result:          toBalanceResultDTO(rec.Result),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.DailyRateSnapshot.Valid {
		dto.DailyRateSnapshot = strPtr(saldo.FormatMoney(rec.DailyRateSnapshot.Decimal))
	}
	return dto
}

// OverlapDTO reports two records of one sector sharing at least one day.
type OverlapDTO struct {
	Sector       string `json:"sector"`
	FirstID      string `json:"first_id"`
	FirstPeriod  string `json:"first_period"`
	SecondID     string `json:"second_id"`
	SecondPeriod string `json:"second_period"`
}

func toOverlapDTO(o saldo.Overlap) OverlapDTO {
	return OverlapDTO{
		Sector:       o.Sector,
		FirstID:      o.First.ID,
		FirstPeriod:  o.First.Period().String(),
		SecondID:     o.Second.ID,
		SecondPeriod: o.Second.Period().String(),
	}
}

// =============================================================================
// WEEKS
// =============================================================================

// RemainingDTO is the balance left for a sector-week. Days is null when no
// record covers the week.
type RemainingDTO struct {
	Days     *int   `json:"days"`
	Source   string `json:"source"`
	RecordID string `json:"record_id,omitempty"`
	UsedDays int    `json:"used_days"`
}

func toRemainingDTO(r saldo.Remaining) RemainingDTO {
	dto := RemainingDTO{Source: string(r.Source), UsedDays: r.UsedDays}
	if r.Known() {
		days := r.Days
		dto.Days = &days
	}
	if r.Record != nil {
		dto.RecordID = r.Record.ID
	}
	return dto
}

// WeekReportDTO summarises one sector-week.
type WeekReportDTO struct {
	Sector    string            `json:"sector"`
	WeekStart string            `json:"week_start"`
	WeekEnd   string            `json:"week_end"`
	Remaining RemainingDTO      `json:"remaining"`
	Result    *BalanceResultDTO `json:"result"`
	UsedDays  int               `json:"used_days"`
	EventDays int               `json:"event_days"`
	Overshoot int               `json:"overshoot"`
}

func toWeekReportDTO(r saldo.WeekReport) WeekReportDTO {
	dto := WeekReportDTO{
		Sector:    r.Sector,
		WeekStart: r.Week.Start.String(),
		WeekEnd:   r.Week.End.String(),
		Remaining: toRemainingDTO(r.Remaining),
		UsedDays:  r.UsedDays,
		EventDays: r.EventDays,
		Overshoot: r.Overshoot,
	}
	if r.Result != nil {
		result := toBalanceResultDTO(*r.Result)
		dto.Result = &result
	}
	return dto
}

func toWeekReportDTOs(reports []saldo.WeekReport) []WeekReportDTO {
	dtos := make([]WeekReportDTO, len(reports))
	for i, rep := range reports {
		dtos[i] = toWeekReportDTO(rep)
	}
	return dtos
}

// =============================================================================
// EXTRA REQUESTS
// =============================================================================

// WorkDayDTO is one requested day.
type WorkDayDTO struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Shift string `json:"shift" validate:"required,oneof=MANHA TARDE NOITE INTEGRAL"`
}

// CreateRequest is the body of POST /api/requests and /api/requests/preview.
// The number of days is checked by the service so that an empty list gets
// its own error.
type CreateRequest struct {
	Sector    string       `json:"sector" validate:"required"`
	Role      string       `json:"role"`
	Reason    string       `json:"reason" validate:"required"`
	Notes     string       `json:"notes"`
	CreatedBy string       `json:"created_by" validate:"required"`
	WorkDays  []WorkDayDTO `json:"work_days" validate:"dive"`
}

func (c CreateRequest) toNewRequest() (extras.NewRequest, error) {
	in := extras.NewRequest{
		Sector:    c.Sector,
		Role:      c.Role,
		Reason:    c.Reason,
		Notes:     c.Notes,
		CreatedBy: c.CreatedBy,
		WorkDays:  make([]saldo.WorkDay, 0, len(c.WorkDays)),
	}
	for _, wd := range c.WorkDays {
		date, err := generic.ParseDate(wd.Date)
		if err != nil {
			return extras.NewRequest{}, &saldo.ValidationError{Field: "work_days", Message: err.Error()}
		}
		in.WorkDays = append(in.WorkDays, saldo.WorkDay{Date: date, Shift: saldo.Shift(wd.Shift)})
	}
	return in, nil
}

// RequestDTO is an extra request in API responses.
type RequestDTO struct {
	ID                   string       `json:"id"`
	Sector               string       `json:"sector"`
	Role                 string       `json:"role,omitempty"`
	Reason               string       `json:"reason"`
	Notes                string       `json:"notes,omitempty"`
	Status               string       `json:"status"`
	WorkDays             []WorkDayDTO `json:"work_days"`
	NeedsManagerApproval bool         `json:"needs_manager_approval"`
	ApprovedBy           string       `json:"approved_by,omitempty"`
	ApprovedAt           *string      `json:"approved_at,omitempty"`
	RejectedBy           string       `json:"rejected_by,omitempty"`
	RejectionReason      string       `json:"rejection_reason,omitempty"`
	CancelledBy          string       `json:"cancelled_by,omitempty"`
	CreatedBy            string       `json:"created_by"`
	CreatedAt            string       `json:"created_at"`
	UpdatedAt            string       `json:"updated_at"`
}

func toRequestDTO(req saldo.ExtraRequest) RequestDTO {
	dto := RequestDTO{
		ID:                   req.ID,
		Sector:               req.Sector,
		Role:                 req.Role,
		Reason:               req.Reason,
		Notes:                req.Notes,
		Status:               string(req.Status),
		WorkDays:             make([]WorkDayDTO, len(req.WorkDays)),
		NeedsManagerApproval: req.NeedsManagerApproval,
		ApprovedBy:           req.ApprovedBy,
		RejectedBy:           req.RejectedBy,
		RejectionReason:      req.RejectionReason,
		CancelledBy:          req.CancelledBy,
		CreatedBy:            req.CreatedBy,
		CreatedAt:            req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            req.UpdatedAt.Format(time.RFC3339),
	}
	for i, wd := range req.WorkDays {
		dto.WorkDays[i] = WorkDayDTO{Date: wd.Date.String(), Shift: string(wd.Shift)}
	}
	if req.ApprovedAt != nil {
		dto.ApprovedAt = strPtr(req.ApprovedAt.Format(time.RFC3339))
	}
	return dto
}

// DecisionDTO is the admission verdict for a request.
type DecisionDTO struct {
	AutoApprove    bool         `json:"auto_approve"`
	Outcome        string       `json:"outcome"`
	Message        string       `json:"message"`
	WeekStart      string       `json:"week_start"`
	WeekEnd        string       `json:"week_end"`
	RequestedDays  int          `json:"requested_days"`
	Remaining      RemainingDTO `json:"remaining"`
	BalanceUnknown bool         `json:"balance_unknown"`
}

var outcomeMessages = map[saldo.Outcome]string{
	saldo.OutcomeAutoApproved:        "Approved automatically within the weekly balance",
	saldo.OutcomeEventReason:         "Event requests always need manager approval",
	saldo.OutcomeNoRecord:            "No balance record covers this week; waiting for a manager",
	saldo.OutcomeBalanceExhausted:    "Weekly balance exhausted; waiting for a manager",
	saldo.OutcomeInsufficientBalance: "Not enough balance left this week; waiting for a manager",
}

func toDecisionDTO(d saldo.Decision) DecisionDTO {
	return DecisionDTO{
		AutoApprove:    d.AutoApprove,
		Outcome:        string(d.Outcome),
		Message:        outcomeMessages[d.Outcome],
		WeekStart:      d.Week.Start.String(),
		WeekEnd:        d.Week.End.String(),
		RequestedDays:  d.RequestedDays,
		Remaining:      toRemainingDTO(d.Remaining),
		BalanceUnknown: d.BalanceUnknown,
	}
}

// CreateRequestResponse is returned by POST /api/requests.
type CreateRequestResponse struct {
	Request  RequestDTO  `json:"request"`
	Decision DecisionDTO `json:"decision"`
}

// =============================================================================
// WORKFLOW
// =============================================================================

// ApproveRequest is the body of POST /api/requests/{id}/approve.
type ApproveRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// RejectRequest is the body of POST /api/requests/{id}/reject.
type RejectRequest struct {
	RejectedBy string `json:"rejected_by" validate:"required"`
	Reason     string `json:"reason"`
}

// CancelRequest is the body of POST /api/requests/{id}/cancel.
type CancelRequest struct {
	CancelledBy string `json:"cancelled_by"`
}

// =============================================================================
// SETTINGS AND SCENARIOS
// =============================================================================

// DailyRateDTO carries the global daily rate.
type DailyRateDTO struct {
	DailyRate string `json:"daily_rate" validate:"required,numeric"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func strPtr(s string) *string {
	return &s
}
