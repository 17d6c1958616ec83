/*
Package sqlite provides a SQLite-backed implementation of saldo.Store.

PURPOSE:
  Persists balance period records, extra requests with their work days, and
  the global daily rate. Used by the HTTP server; tests and the CLI use the
  in-memory store in saldo/store.

INTERFACES IMPLEMENTED:
  saldo.RecordStore:   balance_records
  saldo.RequestStore:  extra_requests + work_days
  saldo.SettingsStore: settings

KEY TABLES:
  balance_records: One staffing configuration per sector per explicit period
  extra_requests:  Requests with status and approval tracking
  work_days:       One row per requested day (request_id, date, shift)
  settings:        Key/value; "daily_rate" holds the global rate

STORAGE FORMATS:
  Dates:      TEXT "2006-01-02", so range filters compare as strings
  Timestamps: TEXT, fixed-width UTC with nanoseconds so ORDER BY is chronological
  Money:      TEXT decimal strings, never REAL

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection, so an
  ":memory:" database is shared by every caller. A request and its work days
  are written in one SQL transaction.

USAGE:
  store, err := sqlite.New("./data/extras.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - saldo/store.go: Interface definitions
  - saldo/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// timestampLayout is fixed width so that string order equals time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const settingDailyRate = "daily_rate"

// Store implements saldo.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ saldo.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Balance period records
	CREATE TABLE IF NOT EXISTS balance_records (
		id TEXT PRIMARY KEY,
		sector TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		approved_headcount INTEGER NOT NULL,
		actual_headcount INTEGER NOT NULL,
		days_off INTEGER NOT NULL,
		sundays INTEGER NOT NULL,
		demand INTEGER NOT NULL,
		medical_leave INTEGER NOT NULL,
		extras_requested INTEGER NOT NULL,
		daily_rate_snapshot TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Week lookups: sector + period intersection
	CREATE INDEX IF NOT EXISTS idx_balance_records_sector_period
		ON balance_records(sector, period_start, period_end);

	-- Extra requests
	CREATE TABLE IF NOT EXISTS extra_requests (
		id TEXT PRIMARY KEY,
		sector TEXT NOT NULL,
		role TEXT,
		reason TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL,
		needs_manager_approval INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT,
		approved_at TEXT,
		rejected_by TEXT,
		rejection_reason TEXT,
		cancelled_by TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_extra_requests_sector_status
		ON extra_requests(sector, status);

	-- Work days (one row per requested day)
	CREATE TABLE IF NOT EXISTS work_days (
		request_id TEXT NOT NULL REFERENCES extra_requests(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		shift TEXT NOT NULL,
		PRIMARY KEY (request_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_work_days_date
		ON work_days(date);

	-- Settings
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BALANCE RECORDS (saldo.RecordStore)
// =============================================================================

const recordColumns = `
	id, sector, period_start, period_end, approved_headcount, actual_headcount,
	days_off, sundays, demand, medical_leave, extras_requested,
	daily_rate_snapshot, created_at, updated_at`

// SaveRecord inserts or replaces a record by ID.
func (s *Store) SaveRecord(ctx context.Context, rec saldo.BalancePeriodRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO balance_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sector = excluded.sector,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			approved_headcount = excluded.approved_headcount,
			actual_headcount = excluded.actual_headcount,
			days_off = excluded.days_off,
			sundays = excluded.sundays,
			demand = excluded.demand,
			medical_leave = excluded.medical_leave,
			extras_requested = excluded.extras_requested,
			daily_rate_snapshot = excluded.daily_rate_snapshot,
			updated_at = excluded.updated_at
	`

	var snapshot sql.NullString
	if rec.DailyRateSnapshot.Valid {
		snapshot = sql.NullString{String: rec.DailyRateSnapshot.Decimal.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Sector, rec.PeriodStart.String(), rec.PeriodEnd.String(),
		rec.ApprovedHeadcount, rec.ActualHeadcount, rec.DaysOff, rec.Sundays,
		rec.Demand, rec.MedicalLeave, rec.ExtrasRequested,
		snapshot, formatTimestamp(rec.CreatedAt), formatTimestamp(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*saldo.BalancePeriodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM balance_records WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, saldo.ErrRecordNotFound
	}
	return &recs[0], nil
}

// ListRecords returns every record of sector ("" = all sectors).
func (s *Store) ListRecords(ctx context.Context, sector string) ([]saldo.BalancePeriodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + recordColumns + ` FROM balance_records`
	var args []any
	if sector != "" {
		query += ` WHERE sector = ?`
		args = append(args, sector)
	}
	query += ` ORDER BY sector ASC, period_start ASC, id ASC`

	return s.queryRecords(ctx, query, args...)
}

// RecordsForSector returns the records of sector intersecting [from, to].
func (s *Store) RecordsForSector(ctx context.Context, sector string, from, to generic.TimePoint) ([]saldo.BalancePeriodRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + recordColumns + `
		FROM balance_records
		WHERE sector = ? AND period_start <= ? AND period_end >= ?
		ORDER BY period_start ASC, id ASC
	`
	return s.queryRecords(ctx, query, sector, to.String(), from.String())
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]saldo.BalancePeriodRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance records: %w", err)
	}
	defer rows.Close()

	var records []saldo.BalancePeriodRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (saldo.BalancePeriodRecord, error) {
	var (
		rec                  saldo.BalancePeriodRecord
		start, end           string
		snapshot             sql.NullString
		createdAt, updatedAt string
	)

	err := rows.Scan(
		&rec.ID, &rec.Sector, &start, &end,
		&rec.ApprovedHeadcount, &rec.ActualHeadcount, &rec.DaysOff, &rec.Sundays,
		&rec.Demand, &rec.MedicalLeave, &rec.ExtrasRequested,
		&snapshot, &createdAt, &updatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan balance record: %w", err)
	}

	if rec.PeriodStart, err = generic.ParseDate(start); err != nil {
		return rec, err
	}
	if rec.PeriodEnd, err = generic.ParseDate(end); err != nil {
		return rec, err
	}
	if snapshot.Valid {
		d, err := decimal.NewFromString(snapshot.String)
		if err != nil {
			return rec, fmt.Errorf("record %s: invalid rate snapshot %q: %w", rec.ID, snapshot.String, err)
		}
		rec.DailyRateSnapshot = decimal.NewNullDecimal(d)
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)
	return rec, nil
}

// =============================================================================
// EXTRA REQUESTS (saldo.RequestStore)
// =============================================================================

const requestColumns = `
	r.id, r.sector, r.role, r.reason, r.notes, r.status, r.needs_manager_approval,
	r.approved_by, r.approved_at, r.rejected_by, r.rejection_reason, r.cancelled_by,
	r.created_by, r.created_at, r.updated_at`

// SaveRequest inserts or replaces a request and its work days atomically.
func (s *Store) SaveRequest(ctx context.Context, req saldo.ExtraRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO extra_requests (id, sector, role, reason, notes, status, needs_manager_approval,
			approved_by, approved_at, rejected_by, rejection_reason, cancelled_by, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sector = excluded.sector,
			role = excluded.role,
			reason = excluded.reason,
			notes = excluded.notes,
			status = excluded.status,
			needs_manager_approval = excluded.needs_manager_approval,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			rejected_by = excluded.rejected_by,
			rejection_reason = excluded.rejection_reason,
			cancelled_by = excluded.cancelled_by,
			updated_at = excluded.updated_at
	`

	var approvedAt sql.NullString
	if req.ApprovedAt != nil {
		approvedAt = sql.NullString{String: formatTimestamp(*req.ApprovedAt), Valid: true}
	}

	if _, err := tx.ExecContext(ctx, query,
		req.ID, req.Sector, nullString(req.Role), req.Reason, nullString(req.Notes),
		string(req.Status), req.NeedsManagerApproval,
		nullString(req.ApprovedBy), approvedAt, nullString(req.RejectedBy), nullString(req.RejectionReason),
		nullString(req.CancelledBy), nullString(req.CreatedBy), formatTimestamp(req.CreatedAt), formatTimestamp(req.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM work_days WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("failed to replace work days: %w", err)
	}
	for _, wd := range req.WorkDays {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO work_days (request_id, date, shift) VALUES (?, ?, ?)`,
			req.ID, wd.Date.String(), string(wd.Shift),
		); err != nil {
			return fmt.Errorf("failed to save work day %s: %w", wd.Date, err)
		}
	}

	return tx.Commit()
}

// GetRequest retrieves a request by ID.
func (s *Store) GetRequest(ctx context.Context, id string) (*saldo.ExtraRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs, err := s.queryRequests(ctx, `SELECT `+requestColumns+` FROM extra_requests r WHERE r.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, saldo.ErrRequestNotFound
	}
	return &reqs[0], nil
}

// ListRequests returns requests matching filter, oldest first.
func (s *Store) ListRequests(ctx context.Context, filter saldo.RequestFilter) ([]saldo.ExtraRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Sector != "" {
		where = append(where, "r.sector = ?")
		args = append(args, filter.Sector)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "r.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil || filter.To != nil {
		cond := "EXISTS (SELECT 1 FROM work_days w WHERE w.request_id = r.id"
		if filter.From != nil {
			cond += " AND w.date >= ?"
			args = append(args, filter.From.String())
		}
		if filter.To != nil {
			cond += " AND w.date <= ?"
			args = append(args, filter.To.String())
		}
		where = append(where, cond+")")
	}

	query := `SELECT ` + requestColumns + ` FROM extra_requests r`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY r.created_at ASC, r.id ASC`

	return s.queryRequests(ctx, query, args...)
}

// queryRequests loads requests, then their work days in a second query. The
// first result set is closed before the second query runs because the pool
// holds a single connection.
func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]saldo.ExtraRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}

	var requests []saldo.ExtraRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(requests) == 0 {
		return nil, nil
	}
	if err := s.attachWorkDays(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *Store) attachWorkDays(ctx context.Context, requests []saldo.ExtraRequest) error {
	index := make(map[string]int, len(requests))
	placeholders := make([]string, len(requests))
	args := make([]any, len(requests))
	for i, req := range requests {
		index[req.ID] = i
		placeholders[i] = "?"
		args[i] = req.ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, date, shift FROM work_days
		 WHERE request_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY request_id ASC, date ASC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to query work days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var requestID, date, shift string
		if err := rows.Scan(&requestID, &date, &shift); err != nil {
			return fmt.Errorf("failed to scan work day: %w", err)
		}
		d, err := generic.ParseDate(date)
		if err != nil {
			return err
		}
		i := index[requestID]
		requests[i].WorkDays = append(requests[i].WorkDays, saldo.WorkDay{Date: d, Shift: saldo.Shift(shift)})
	}
	return rows.Err()
}

func scanRequest(rows *sql.Rows) (saldo.ExtraRequest, error) {
	var (
		req                  saldo.ExtraRequest
		status               string
		createdAt, updatedAt string
		role, notes          sql.NullString
		approvedBy           sql.NullString
		approvedAt           sql.NullString
		rejectedBy           sql.NullString
		rejectionReason      sql.NullString
		cancelledBy          sql.NullString
		createdBy            sql.NullString
	)

	err := rows.Scan(
		&req.ID, &req.Sector, &role, &req.Reason, &notes, &status, &req.NeedsManagerApproval,
		&approvedBy, &approvedAt, &rejectedBy, &rejectionReason, &cancelledBy,
		&createdBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return req, fmt.Errorf("failed to scan request: %w", err)
	}

	req.Status = saldo.Status(status)
	req.Role = role.String
	req.Notes = notes.String
	req.ApprovedBy = approvedBy.String
	req.RejectedBy = rejectedBy.String
	req.RejectionReason = rejectionReason.String
	req.CancelledBy = cancelledBy.String
	req.CreatedBy = createdBy.String
	req.CreatedAt = parseTimestamp(createdAt)
	req.UpdatedAt = parseTimestamp(updatedAt)
	if approvedAt.Valid {
		t := parseTimestamp(approvedAt.String)
		req.ApprovedAt = &t
	}
	return req, nil
}

// =============================================================================
// SETTINGS (saldo.SettingsStore)
// =============================================================================

// DailyRate returns the stored global rate; ok is false when none is stored.
func (s *Store) DailyRate(ctx context.Context) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingDailyRate).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to read daily rate: %w", err)
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid stored daily rate %q: %w", value, err)
	}
	return rate, true, nil
}

// SetDailyRate stores the global rate.
func (s *Store) SetDailyRate(ctx context.Context, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, settingDailyRate, rate.String(), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to store daily rate: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_days", "extra_requests", "balance_records", "settings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}
