package saldo_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extras-engine/saldo"
)

func candidate(sector, reason string, days ...int) saldo.Candidate {
	return request(sector, reason, saldo.StatusRequested, days...).Candidate()
}

// barWithRemaining returns a snapshot where BAR has exactly n days left this week.
func barWithRemaining(t *testing.T, n int) ([]saldo.BalancePeriodRecord, []saldo.ExtraRequest) {
	t.Helper()
	rec := marchRecord("r1", "BAR")
	rec.ExtrasRequested = 25 - n
	return []saldo.BalancePeriodRecord{rec}, nil
}

// =============================================================================
// AUTO-APPROVAL
// =============================================================================

func TestDecideApproval_FitsInRemaining(t *testing.T) {
	// GIVEN: Balance 5 with 2 days already approved this week
	records := []saldo.BalancePeriodRecord{marchRecord("r1", "BAR")}
	requests := []saldo.ExtraRequest{request("BAR", "FERIAS", saldo.StatusApproved, 10, 11)}

	// WHEN: A 2-day request arrives with remaining 3
	d, err := saldo.DecideApproval(rules, candidate("BAR", "FERIAS", 13, 14), records, requests, decimal.Zero)
	require.NoError(t, err)

	// THEN
	assert.True(t, d.AutoApprove)
	assert.Equal(t, saldo.OutcomeAutoApproved, d.Outcome)
	assert.Equal(t, 2, d.RequestedDays)
	assert.Equal(t, 3, d.Remaining.Days)
	assert.False(t, d.BalanceUnknown)
}

func TestDecideApproval_ExactFitIsApproved(t *testing.T) {
	records, requests := barWithRemaining(t, 3)

	d, err := saldo.DecideApproval(rules, candidate("BAR", "FERIAS", 10, 11, 12), records, requests, decimal.Zero)
	require.NoError(t, err)

	assert.True(t, d.AutoApprove)
}

func TestDecideApproval_EventNeverAutoApproves(t *testing.T) {
	// GIVEN: remaining 1 and a 3-day EVENTO request
	records, requests := barWithRemaining(t, 1)

	d, err := saldo.DecideApproval(rules, candidate("BAR", "EVENTO", 10, 11, 12), records, requests, decimal.Zero)
	require.NoError(t, err)

	assert.False(t, d.AutoApprove)
	assert.Equal(t, saldo.OutcomeEventReason, d.Outcome)

	// AND: Even with plenty of balance, or in an exempt sector
	records, requests = barWithRemaining(t, 20)
	d, err = saldo.DecideApproval(rules, candidate("BAR", "EVENTO", 10), records, requests, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, d.AutoApprove)

	d, err = saldo.DecideApproval(rules, candidate("AQUAMANIA", "EVENTO", 10), nil, nil, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, d.AutoApprove)
}

func TestDecideApproval_Strictness(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		days      []int
		outcome   saldo.Outcome
	}{
		{"zero remaining", 0, []int{10}, saldo.OutcomeBalanceExhausted},
		{"negative remaining", -4, []int{10}, saldo.OutcomeBalanceExhausted},
		{"partial fit", 1, []int{10, 11}, saldo.OutcomeInsufficientBalance},
		{"partial fit large", 4, []int{10, 11, 12, 13, 14}, saldo.OutcomeInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, requests := barWithRemaining(t, tt.remaining)

			d, err := saldo.DecideApproval(rules, candidate("BAR", "FERIAS", tt.days...), records, requests, decimal.Zero)
			require.NoError(t, err)

			assert.False(t, d.AutoApprove)
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, tt.remaining, d.Remaining.Days)
		})
	}
}

func TestDecideApproval_NoRecordWaitsForManager(t *testing.T) {
	d, err := saldo.DecideApproval(rules, candidate("COZINHA", "FERIAS", 10), nil, nil, decimal.Zero)
	require.NoError(t, err)

	assert.False(t, d.AutoApprove)
	assert.True(t, d.BalanceUnknown)
	assert.Equal(t, saldo.OutcomeNoRecord, d.Outcome)
}

func TestDecideApproval_ExemptSector(t *testing.T) {
	d, err := saldo.DecideApproval(rules, candidate("AQUAMANIA", "FERIAS", 10, 11, 12, 13, 14, 15, 16), nil, nil, decimal.Zero)
	require.NoError(t, err)

	assert.True(t, d.AutoApprove)
	assert.Equal(t, 999, d.Remaining.Days)
}

// =============================================================================
// WEEK SELECTION
// =============================================================================

func TestDecideApproval_OnlyFirstWeekIsChecked(t *testing.T) {
	// GIVEN: remaining 1, request Sun Mar 16 + Mon..Wed Mar 17-19
	records, requests := barWithRemaining(t, 1)

	d, err := saldo.DecideApproval(rules, candidate("BAR", "FERIAS", 16, 17, 18, 19), records, requests, decimal.Zero)
	require.NoError(t, err)

	// THEN: Only the Sunday falls in the evaluated week
	assert.Equal(t, "2025-03-10", d.Week.Start.String())
	assert.Equal(t, 1, d.RequestedDays)
	assert.True(t, d.AutoApprove)
}

func TestDecideApproval_FirstDayIsEarliestNotFirstListed(t *testing.T) {
	records, requests := barWithRemaining(t, 5)

	d, err := saldo.DecideApproval(rules, candidate("BAR", "FERIAS", 18, 17, 16), records, requests, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", d.Week.Start.String())
	assert.Equal(t, 1, d.RequestedDays)
}

func TestDecideApproval_NoWorkDays(t *testing.T) {
	_, err := saldo.DecideApproval(rules, saldo.Candidate{Sector: "BAR", Reason: "FERIAS"}, nil, nil, decimal.Zero)

	assert.ErrorIs(t, err, saldo.ErrNoWorkDays)
}

// =============================================================================
// APPLY
// =============================================================================

func TestDecision_Apply(t *testing.T) {
	now := time.Date(2025, time.March, 9, 14, 0, 0, 0, time.UTC)

	approved := saldo.ExtraRequest{}
	saldo.Decision{AutoApprove: true}.Apply(&approved, "ana", now)
	assert.Equal(t, saldo.StatusApproved, approved.Status)
	assert.False(t, approved.NeedsManagerApproval)
	assert.Equal(t, "ana", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.True(t, approved.ApprovedAt.Equal(now))

	pending := saldo.ExtraRequest{}
	saldo.Decision{AutoApprove: false}.Apply(&pending, "ana", now)
	assert.Equal(t, saldo.StatusRequested, pending.Status)
	assert.True(t, pending.NeedsManagerApproval)
	assert.Empty(t, pending.ApprovedBy)
	assert.Nil(t, pending.ApprovedAt)
}
