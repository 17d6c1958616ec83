package extras_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
	"github.com/warp/extras-engine/saldo/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store    *store.Memory
	records  *extras.RecordService
	requests *extras.RequestService
	logs     *bytes.Buffer
	now      time.Time
}

func newFixture(t *testing.T, opts ...func(*extras.Config)) *fixture {
	t.Helper()
	f := &fixture{
		store: store.NewMemory(),
		logs:  &bytes.Buffer{},
		now:   time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC),
	}

	var seq atomic.Int64
	var tick atomic.Int64
	cfg := extras.Config{
		Store:       f.store,
		Rules:       saldo.DefaultRules(),
		DefaultRate: decimal.NewFromInt(100),
		Locker:      extras.NewLocalLocker(),
		Logger:      slog.New(slog.NewTextHandler(f.logs, nil)),
		Clock: func() time.Time {
			return f.now.Add(time.Duration(tick.Add(1)) * time.Second)
		},
		NewID: func() string {
			return fmt.Sprintf("id-%03d", seq.Add(1))
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.records = extras.NewRecordService(cfg)
	f.requests = extras.NewRequestService(cfg)
	return f
}

func march(day int) generic.TimePoint {
	return generic.NewTimePoint(2025, time.March, day)
}

// barMarch has balance 5 (quota 25, 20 extras consumed).
func barMarch() saldo.BalancePeriodInput {
	return saldo.BalancePeriodInput{
		Sector:            "BAR",
		PeriodStart:       march(1),
		PeriodEnd:         march(31),
		ApprovedHeadcount: 10,
		ActualHeadcount:   7,
		DaysOff:           2,
		Sundays:           1,
		Demand:            1,
		ExtrasRequested:   20,
	}
}

func newRequest(sector, reason string, days ...int) extras.NewRequest {
	in := extras.NewRequest{Sector: sector, Role: "garcom", Reason: reason, CreatedBy: "supervisor"}
	for _, d := range days {
		in.WorkDays = append(in.WorkDays, saldo.WorkDay{Date: march(d), Shift: saldo.ShiftNight})
	}
	return in
}

func (f *fixture) mustSaveRecord(t *testing.T, in saldo.BalancePeriodInput) *extras.RecordWithResult {
	t.Helper()
	rec, err := f.records.Save(context.Background(), in)
	require.NoError(t, err)
	return rec
}

func (f *fixture) mustCreate(t *testing.T, in extras.NewRequest) (*saldo.ExtraRequest, saldo.Decision) {
	t.Helper()
	req, d, err := f.requests.Create(context.Background(), in)
	require.NoError(t, err)
	return req, d
}
