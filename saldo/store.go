/*
store.go - Collaborator interfaces for records, requests and settings

PURPOSE:
  The engine itself never performs I/O. These interfaces describe what the
  surrounding service needs from persistence in order to hand the engine a
  fresh snapshot before every decision.

KEY INTERFACES:
  RecordStore:   Balance period records (one per sector per explicit period)
  RequestStore:  Extra requests with their work days
  SettingsStore: The global daily rate

IMPLEMENTATIONS:
  - saldo/store/memory.go: In-memory for tests and the CLI
  - store/sqlite/sqlite.go: SQLite for the server
*/
package saldo

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/extras-engine/generic"
)

// RecordStore holds balance period records.
type RecordStore interface {
	// SaveRecord inserts or replaces a record by ID.
	SaveRecord(ctx context.Context, rec BalancePeriodRecord) error

	// GetRecord returns ErrRecordNotFound for unknown ids.
	GetRecord(ctx context.Context, id string) (*BalancePeriodRecord, error)

	// ListRecords returns every record of sector ("" = all sectors),
	// ordered by sector then period start.
	ListRecords(ctx context.Context, sector string) ([]BalancePeriodRecord, error)

	// RecordsForSector returns the records of sector whose period intersects
	// [from, to]. Containment filtering is left to the engine.
	RecordsForSector(ctx context.Context, sector string, from, to generic.TimePoint) ([]BalancePeriodRecord, error)
}

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	Sector   string
	Statuses []Status

	// Only requests with at least one work day inside [From, To].
	From *generic.TimePoint
	To   *generic.TimePoint
}

// Matches applies the filter to a single request.
func (f RequestFilter) Matches(req ExtraRequest) bool {
	if f.Sector != "" && req.Sector != f.Sector {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if req.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.From != nil || f.To != nil {
		for _, wd := range req.WorkDays {
			if (f.From == nil || wd.Date.AfterOrEqual(*f.From)) && (f.To == nil || wd.Date.BeforeOrEqual(*f.To)) {
				return true
			}
		}
		return false
	}
	return true
}

// RequestStore holds extra requests and their work days.
type RequestStore interface {
	// SaveRequest inserts or replaces a request and its work days atomically.
	SaveRequest(ctx context.Context, req ExtraRequest) error

	// GetRequest returns ErrRequestNotFound for unknown ids.
	GetRequest(ctx context.Context, id string) (*ExtraRequest, error)

	// ListRequests returns matching requests, oldest first.
	ListRequests(ctx context.Context, filter RequestFilter) ([]ExtraRequest, error)
}

// SettingsStore holds process-wide configuration values.
type SettingsStore interface {
	// DailyRate returns ok=false when no rate has been stored yet.
	DailyRate(ctx context.Context) (rate decimal.Decimal, ok bool, err error)
	SetDailyRate(ctx context.Context, rate decimal.Decimal) error
}

// Store is everything the extras services need.
type Store interface {
	RecordStore
	RequestStore
	SettingsStore
}
