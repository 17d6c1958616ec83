// Package store provides in-memory saldo.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	records   map[string]saldo.BalancePeriodRecord
	requests  map[string]saldo.ExtraRequest
	dailyRate *decimal.Decimal
}

var _ saldo.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]saldo.BalancePeriodRecord),
		requests: make(map[string]saldo.ExtraRequest),
	}
}

// Reset drops everything.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]saldo.BalancePeriodRecord)
	m.requests = make(map[string]saldo.ExtraRequest)
	m.dailyRate = nil
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) SaveRecord(_ context.Context, rec saldo.BalancePeriodRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *Memory) GetRecord(_ context.Context, id string) (*saldo.BalancePeriodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, saldo.ErrRecordNotFound
	}
	return &rec, nil
}

func (m *Memory) ListRecords(_ context.Context, sector string) ([]saldo.BalancePeriodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []saldo.BalancePeriodRecord
	for _, rec := range m.records {
		if sector == "" || rec.Sector == sector {
			result = append(result, rec)
		}
	}
	sortRecords(result)
	return result, nil
}

func (m *Memory) RecordsForSector(_ context.Context, sector string, from, to generic.TimePoint) ([]saldo.BalancePeriodRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := generic.Period{Start: from, End: to}
	var result []saldo.BalancePeriodRecord
	for _, rec := range m.records {
		if rec.Sector == sector && rec.Period().Overlaps(window) {
			result = append(result, rec)
		}
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(recs []saldo.BalancePeriodRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Sector != recs[j].Sector {
			return recs[i].Sector < recs[j].Sector
		}
		if !recs[i].PeriodStart.Equal(recs[j].PeriodStart) {
			return recs[i].PeriodStart.Before(recs[j].PeriodStart)
		}
		return recs[i].ID < recs[j].ID
	})
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, req saldo.ExtraRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = copyRequest(req)
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*saldo.ExtraRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, saldo.ErrRequestNotFound
	}
	out := copyRequest(req)
	return &out, nil
}

func (m *Memory) ListRequests(_ context.Context, filter saldo.RequestFilter) ([]saldo.ExtraRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []saldo.ExtraRequest
	for _, req := range m.requests {
		if filter.Matches(req) {
			result = append(result, copyRequest(req))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// copyRequest detaches the work-day slice and approval timestamp so callers
// cannot mutate stored state.
func copyRequest(req saldo.ExtraRequest) saldo.ExtraRequest {
	req.WorkDays = append([]saldo.WorkDay(nil), req.WorkDays...)
	if req.ApprovedAt != nil {
		at := *req.ApprovedAt
		req.ApprovedAt = &at
	}
	return req
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) DailyRate(_ context.Context) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dailyRate == nil {
		return decimal.Zero, false, nil
	}
	return *m.dailyRate, true, nil
}

func (m *Memory) SetDailyRate(_ context.Context, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyRate = &rate
	return nil
}
