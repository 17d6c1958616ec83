/*
Package saldo implements the extra-staff balance ("saldo") engine.

PURPOSE:
  For every sector and calendar week the engine derives how many extra
  worker-days are still allowed, and uses that figure to decide whether a new
  extra-staff request can be auto-approved or has to wait for a manager.

KEY CONCEPTS IN THIS FILE (types.go):
  - BalancePeriodInput:  Staffing configuration of a sector over a date range
  - BalancePeriodRecord: A stored input plus the daily rate in effect at save time
  - BalanceResult:       Quota, balance and money figures for one record
  - ExtraRequest:        A request for extra workers on specific work days

DATA FLOW:
  RecordStore ──▶ ComputeBalance ──▶ RemainingBalanceForWeek ──▶ DecideApproval
                  (calculator.go)    (consumption.go)             (admission.go)

The engine is pure: every function takes in-memory snapshots and returns a
value. Reading the snapshot and writing the outcome belongs to the caller
(see extras.RequestService).

SEE ALSO:
  - rules.go: Sector/reason exemptions and policy constants
  - store.go: Collaborator interfaces for records, requests and settings
*/
package saldo

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extras-engine/generic"
)

// =============================================================================
// BALANCE PERIOD - Manually entered staffing configuration
// =============================================================================

// BalancePeriodInput is one staffing configuration for a sector over an
// explicit, inclusive date range. All counts are worker-days or heads and must
// be >= 0.
type BalancePeriodInput struct {
	Sector      string
	PeriodStart generic.TimePoint
	PeriodEnd   generic.TimePoint

	ApprovedHeadcount int // staffing level approved by management
	ActualHeadcount   int // staffing level actually filled
	DaysOff           int // scheduled rest days ("folgas")
	Sundays           int
	Demand            int // extra demand days already accounted for
	MedicalLeave      int // "atestado"
	ExtrasRequested   int // extras already consumed when the record was saved
}

// Period returns the record's inclusive date range.
func (in BalancePeriodInput) Period() generic.Period {
	return generic.Period{Start: in.PeriodStart, End: in.PeriodEnd}
}

// BalancePeriodRecord is a persisted BalancePeriodInput.
//
// DailyRateSnapshot is the rate in effect when the record was saved. Money
// figures for the record always use it so that changing the global rate never
// rewrites history. It is only NULL for records that predate snapshotting.
type BalancePeriodRecord struct {
	BalancePeriodInput

	ID                string
	DailyRateSnapshot decimal.NullDecimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RateOr returns the snapshot rate, or fallback when the record has none.
func (r BalancePeriodRecord) RateOr(fallback decimal.Decimal) decimal.Decimal {
	if r.DailyRateSnapshot.Valid {
		return r.DailyRateSnapshot.Decimal
	}
	return fallback
}

// BalanceResult is the output of the balance calculator.
type BalanceResult struct {
	OpenPositions       int
	DailySlotsFromGap   int
	TotalWorkerDayQuota int
	Balance             int // > 0 unused capacity, < 0 over quota

	DailyRate              decimal.Decimal
	Cost                   decimal.Decimal // extras consumed, in currency
	BalanceValueInCurrency decimal.Decimal // positive = overspend, negative = unspent budget
}

// =============================================================================
// EXTRA REQUEST - Request for temporary workers
// =============================================================================

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Shift names a working shift for one requested day.
type Shift string

const (
	ShiftMorning   Shift = "MANHA"
	ShiftAfternoon Shift = "TARDE"
	ShiftNight     Shift = "NOITE"
	ShiftFullDay   Shift = "INTEGRAL"
)

func (s Shift) Valid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight, ShiftFullDay:
		return true
	}
	return false
}

// WorkDay is one calendar day of an extra-staff request.
type WorkDay struct {
	Date  generic.TimePoint
	Shift Shift
}

// ExtraRequest is a request for extra workers in a sector.
type ExtraRequest struct {
	ID       string
	Sector   string
	Role     string
	Reason   string // "EVENTO" is special, see Rules.EventReason
	Notes    string
	Status   Status
	WorkDays []WorkDay

	// Approval tracking
	NeedsManagerApproval bool
	ApprovedBy           string
	ApprovedAt           *time.Time
	RejectedBy           string
	RejectionReason      string
	CancelledBy          string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Candidate returns the fields the admission controller looks at.
func (r ExtraRequest) Candidate() Candidate {
	return Candidate{Sector: r.Sector, Reason: r.Reason, WorkDays: r.WorkDays}
}

// Dates returns the work-day dates in request order.
func (r ExtraRequest) Dates() []generic.TimePoint {
	dates := make([]generic.TimePoint, len(r.WorkDays))
	for i, wd := range r.WorkDays {
		dates[i] = wd.Date
	}
	return dates
}
