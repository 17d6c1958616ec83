package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
	"github.com/warp/extras-engine/saldo/store"
)

func day(d int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.March, d)
}

func TestMemory_RecordsForSectorReturnsIntersecting(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// GIVEN: Three BAR records and one COZINHA record
	for _, rec := range []saldo.BalancePeriodRecord{
		{ID: "feb", BalancePeriodInput: saldo.BalancePeriodInput{Sector: "BAR", PeriodStart: generic.NewTimePoint(2025, time.February, 1), PeriodEnd: generic.NewTimePoint(2025, time.February, 28)}},
		{ID: "mar-a", BalancePeriodInput: saldo.BalancePeriodInput{Sector: "BAR", PeriodStart: day(1), PeriodEnd: day(12)}},
		{ID: "mar-b", BalancePeriodInput: saldo.BalancePeriodInput{Sector: "BAR", PeriodStart: day(13), PeriodEnd: day(31)}},
		{ID: "coz", BalancePeriodInput: saldo.BalancePeriodInput{Sector: "COZINHA", PeriodStart: day(1), PeriodEnd: day(31)}},
	} {
		require.NoError(t, m.SaveRecord(ctx, rec))
	}

	// WHEN: Asking for the week Mar 10-16
	recs, err := m.RecordsForSector(ctx, "BAR", day(10), day(16))
	require.NoError(t, err)

	// THEN: Both March records intersect, ordered by period start
	require.Len(t, recs, 2)
	assert.Equal(t, "mar-a", recs[0].ID)
	assert.Equal(t, "mar-b", recs[1].ID)

	all, err := m.ListRecords(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemory_RequestsAreDetached(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	req := saldo.ExtraRequest{
		ID:       "req-1",
		Sector:   "BAR",
		Status:   saldo.StatusApproved,
		WorkDays: []saldo.WorkDay{{Date: day(10), Shift: saldo.ShiftNight}},
	}
	require.NoError(t, m.SaveRequest(ctx, req))

	// WHEN: The caller mutates its copy after saving and after reading
	req.WorkDays[0].Date = day(20)
	got, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	got.WorkDays[0].Date = day(21)

	// THEN: The stored request is unchanged
	again, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", again.WorkDays[0].Date.String())
}

func TestMemory_ListRequestsFilter(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)

	save := func(id, sector string, status saldo.Status, offset time.Duration, days ...int) {
		req := saldo.ExtraRequest{ID: id, Sector: sector, Status: status, CreatedAt: base.Add(offset)}
		for _, d := range days {
			req.WorkDays = append(req.WorkDays, saldo.WorkDay{Date: day(d), Shift: saldo.ShiftMorning})
		}
		require.NoError(t, m.SaveRequest(ctx, req))
	}
	save("b", "BAR", saldo.StatusApproved, 2*time.Hour, 11)
	save("a", "BAR", saldo.StatusRequested, time.Hour, 12)
	save("c", "BAR", saldo.StatusApproved, 3*time.Hour, 20)
	save("d", "COZINHA", saldo.StatusApproved, 0, 11)

	from, to := day(10), day(16)
	got, err := m.ListRequests(ctx, saldo.RequestFilter{
		Sector:   "BAR",
		Statuses: []saldo.Status{saldo.StatusApproved, saldo.StatusRequested},
		From:     &from,
		To:       &to,
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID, "oldest first")
	assert.Equal(t, "b", got[1].ID)
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.GetRecord(ctx, "nope")
	assert.ErrorIs(t, err, saldo.ErrRecordNotFound)

	_, err = m.GetRequest(ctx, "nope")
	assert.ErrorIs(t, err, saldo.ErrRequestNotFound)
}

func TestMemory_DailyRateAndReset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, ok, err := m.DailyRate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetDailyRate(ctx, decimal.RequireFromString("142.50")))
	r, ok, err := m.DailyRate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "142.50", r.StringFixed(2))

	require.NoError(t, m.Reset(ctx))
	_, ok, _ = m.DailyRate(ctx)
	assert.False(t, ok)
}
