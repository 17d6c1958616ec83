/*
admission.go - Admission controller

PURPOSE:
  Decides, at request creation time, whether an extra-staff request is
  auto-approved or has to wait for a manager.

DECISION:
  week          = Monday..Sunday of the earliest requested day
  requestedDays = requested days inside that week
  remaining     = RemainingBalanceForWeek(sector, week)
  autoApprove   = reason != EVENTO
                  AND remaining > 0
                  AND remaining >= requestedDays

  All or nothing: a request that only partially fits waits for a manager.
  Only the week of the first day is checked, even when a request crosses
  into the following week.

NEVER BLOCKS:
  The controller only picks the initial status. Requests are always
  created, whether the balance is unknown, zero or negative.

SEE ALSO:
  - consumption.go: RemainingBalanceForWeek
  - extras/request.go: Serialises decisions per sector-week and persists them
*/
package saldo

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/extras-engine/generic"
)

// Candidate is a request that has not been persisted yet.
type Candidate struct {
	Sector   string
	Reason   string
	WorkDays []WorkDay
}

// Week returns the week of the earliest work day.
func (c Candidate) Week() (generic.Period, error) {
	dates := make([]generic.TimePoint, len(c.WorkDays))
	for i, wd := range c.WorkDays {
		dates[i] = wd.Date
	}
	first, ok := generic.Earliest(dates)
	if !ok {
		return generic.Period{}, ErrNoWorkDays
	}
	return generic.WeekOf(first), nil
}

// Outcome explains a Decision.
type Outcome string

const (
	OutcomeAutoApproved        Outcome = "auto_approved"
	OutcomeEventReason         Outcome = "event_reason"
	OutcomeNoRecord            Outcome = "no_record"
	OutcomeBalanceExhausted    Outcome = "balance_exhausted"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
)

// Decision is the admission controller's verdict.
type Decision struct {
	AutoApprove    bool
	Outcome        Outcome
	Week           generic.Period
	RequestedDays  int
	Remaining      Remaining
	BalanceUnknown bool // no record covers the week; flag it to the user
}

// DecideApproval evaluates candidate against the given snapshot.
func DecideApproval(
	rules Rules,
	candidate Candidate,
	records []BalancePeriodRecord,
	requests []ExtraRequest,
	dailyRate decimal.Decimal,
) (Decision, error) {
	week, err := candidate.Week()
	if err != nil {
		return Decision{}, err
	}

	requested := CountDaysInWindow(candidate.WorkDays, week.Start, week.End)

	remaining, err := RemainingBalanceForWeek(rules, candidate.Sector, week, records, requests, dailyRate)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Week:           week,
		RequestedDays:  requested,
		Remaining:      remaining,
		BalanceUnknown: remaining.IsNoRecord(),
	}

	switch {
	case rules.IsEvent(candidate.Reason):
		d.Outcome = OutcomeEventReason
	case remaining.IsNoRecord():
		d.Outcome = OutcomeNoRecord
	case remaining.Days <= 0:
		d.Outcome = OutcomeBalanceExhausted
	case remaining.Days < requested:
		d.Outcome = OutcomeInsufficientBalance
	default:
		d.AutoApprove = true
		d.Outcome = OutcomeAutoApproved
	}
	return d, nil
}

// Apply sets the initial status fields of req.
func (d Decision) Apply(req *ExtraRequest, creator string, now time.Time) {
	if d.AutoApprove {
		req.Status = StatusApproved
		req.NeedsManagerApproval = false
		req.ApprovedBy = creator
		req.ApprovedAt = &now
		return
	}
	req.Status = StatusRequested
	req.NeedsManagerApproval = true
	req.ApprovedBy = ""
	req.ApprovedAt = nil
}
