/*
consumption.go - Weekly consumption aggregator

PURPOSE:
  Answers "how many extra worker-days can this sector still take this week?"

ALGORITHM (RemainingBalanceForWeek):
  1. Exempt sector           → ExemptSentinel (999), no record lookup
  2. No record covers week   → NoRecord (not zero!)
  3. Balance of the record   → computed with the record's own rate snapshot
  4. usedDays                → approved, non-event work days inside the week
  5. remaining               = balance - usedDays

RECORD MATCHING:
  A record matches when its [PeriodStart, PeriodEnd] fully contains the week.
  Records of one sector are not supposed to overlap, but stored data may
  still contain overlaps. The most recently created matching record wins
  (ties broken by the greater ID) so the result never depends on store order.

NEVER CACHED:
  The whole point is to reflect the latest approvals. Callers reload records
  and requests before every call.
*/
package saldo

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/extras-engine/generic"
)

// =============================================================================
// REMAINING - Balance left for a sector-week
// =============================================================================

type RemainingSource string

const (
	SourceRecord   RemainingSource = "record"
	SourceExempt   RemainingSource = "exempt"
	SourceNoRecord RemainingSource = "no_record"
)

// Remaining is the balance left for one sector-week.
// Days is only meaningful when Source is SourceRecord or SourceExempt.
type Remaining struct {
	Days   int
	Source RemainingSource

	// Set when Source is SourceRecord.
	Record   *BalancePeriodRecord
	Result   *BalanceResult
	UsedDays int
}

// NoRecord is returned when no balance record covers the queried week.
var NoRecord = Remaining{Source: SourceNoRecord}

func (r Remaining) IsNoRecord() bool { return r.Source == SourceNoRecord }
func (r Remaining) IsExempt() bool   { return r.Source == SourceExempt }

// Known reports whether Days carries a real figure.
func (r Remaining) Known() bool { return r.Source != SourceNoRecord }

// =============================================================================
// WEEK WINDOW HELPERS
// =============================================================================

// CountDaysInWindow counts work days dated inside [start, end].
func CountDaysInWindow(workDays []WorkDay, start, end generic.TimePoint) int {
	n := 0
	for _, wd := range workDays {
		if generic.IsWithin(wd.Date, start, end) {
			n++
		}
	}
	return n
}

// UsedDays counts approved, non-event work days of sector inside week.
func UsedDays(rules Rules, sector string, week generic.Period, requests []ExtraRequest) int {
	used := 0
	for _, req := range requests {
		if req.Sector != sector || req.Status != StatusApproved || rules.IsEvent(req.Reason) {
			continue
		}
		used += CountDaysInWindow(req.WorkDays, week.Start, week.End)
	}
	return used
}

// =============================================================================
// RECORD MATCHING
// =============================================================================

// FindRecord returns the record of sector whose period fully contains week.
// When several match, the most recently created one wins.
func FindRecord(records []BalancePeriodRecord, sector string, week generic.Period) (BalancePeriodRecord, bool) {
	var (
		best  BalancePeriodRecord
		found bool
	)
	for _, rec := range records {
		if rec.Sector != sector || !rec.Period().Covers(week) {
			continue
		}
		if !found || newer(rec, best) {
			best = rec
			found = true
		}
	}
	return best, found
}

func newer(a, b BalancePeriodRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Overlap is a pair of records of one sector sharing at least one day.
type Overlap struct {
	Sector string
	First  BalancePeriodRecord
	Second BalancePeriodRecord
}

// FindOverlaps lists every overlapping pair, grouped by sector and ordered by
// period start. Overlaps are a data-entry problem to surface to operators.
func FindOverlaps(records []BalancePeriodRecord) []Overlap {
	bySector := make(map[string][]BalancePeriodRecord)
	var sectors []string
	for _, rec := range records {
		if _, ok := bySector[rec.Sector]; !ok {
			sectors = append(sectors, rec.Sector)
		}
		bySector[rec.Sector] = append(bySector[rec.Sector], rec)
	}
	sort.Strings(sectors)

	var overlaps []Overlap
	for _, sector := range sectors {
		recs := bySector[sector]
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].PeriodStart.Equal(recs[j].PeriodStart) {
				return recs[i].PeriodStart.Before(recs[j].PeriodStart)
			}
			return recs[i].ID < recs[j].ID
		})
		for i := 0; i < len(recs); i++ {
			for j := i + 1; j < len(recs); j++ {
				if recs[j].PeriodStart.After(recs[i].PeriodEnd) {
					break
				}
				overlaps = append(overlaps, Overlap{Sector: sector, First: recs[i], Second: recs[j]})
			}
		}
	}
	return overlaps
}

// =============================================================================
// REMAINING BALANCE FOR WEEK
// =============================================================================

// RemainingBalanceForWeek returns what sector may still consume in week.
//
// dailyRate is only a fallback for records without a rate snapshot. An error
// is returned only when the matching record itself fails validation.
func RemainingBalanceForWeek(
	rules Rules,
	sector string,
	week generic.Period,
	records []BalancePeriodRecord,
	requests []ExtraRequest,
	dailyRate decimal.Decimal,
) (Remaining, error) {
	if rules.IsExemptSector(sector) {
		return Remaining{Days: rules.ExemptSentinel, Source: SourceExempt}, nil
	}

	rec, ok := FindRecord(records, sector, week)
	if !ok {
		return NoRecord, nil
	}

	result, err := ComputeRecord(rec, dailyRate)
	if err != nil {
		return Remaining{}, err
	}

	used := UsedDays(rules, sector, week, requests)
	return Remaining{
		Days:     result.Balance - used,
		Source:   SourceRecord,
		Record:   &rec,
		Result:   &result,
		UsedDays: used,
	}, nil
}

// =============================================================================
// WEEK REPORT - Dashboard figures for a sector-week
// =============================================================================

// WeekReport summarises one sector-week for dashboards. Overshoot is derived
// and non-authoritative: it shows how far concurrent approvals went past the
// quota. It is always 0 for exempt sectors.
type WeekReport struct {
	Sector    string
	Week      generic.Period
	Remaining Remaining
	Result    *BalanceResult // nil without a matching record
	UsedDays  int
	EventDays int
	Overshoot int
}

// BuildWeekReport computes the WeekReport of sector for week.
func BuildWeekReport(
	rules Rules,
	sector string,
	week generic.Period,
	records []BalancePeriodRecord,
	requests []ExtraRequest,
	dailyRate decimal.Decimal,
) (WeekReport, error) {
	remaining, err := RemainingBalanceForWeek(rules, sector, week, records, requests, dailyRate)
	if err != nil {
		return WeekReport{}, err
	}

	report := WeekReport{
		Sector:    sector,
		Week:      week,
		Remaining: remaining,
		UsedDays:  UsedDays(rules, sector, week, requests),
	}
	for _, req := range requests {
		if req.Sector == sector && req.Status == StatusApproved && rules.IsEvent(req.Reason) {
			report.EventDays += CountDaysInWindow(req.WorkDays, week.Start, week.End)
		}
	}

	if rec, ok := FindRecord(records, sector, week); ok {
		result, err := ComputeRecord(rec, dailyRate)
		if err != nil {
			return WeekReport{}, err
		}
		report.Result = &result
		if !remaining.IsExempt() {
			report.Overshoot = Overshoot(result, report.UsedDays)
		}
	}
	return report, nil
}

// Overshoot is max(0, approvedDaysUsed - totalWorkerDayQuota).
func Overshoot(result BalanceResult, approvedDaysUsed int) int {
	return max(0, approvedDaysUsed-result.TotalWorkerDayQuota)
}
