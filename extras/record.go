package extras

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// RECORD SERVICE
// =============================================================================

// RecordWithResult is a stored record with its computed balance.
type RecordWithResult struct {
	saldo.BalancePeriodRecord
	Result saldo.BalanceResult
}

// RecordService manages balance period records and the global daily rate.
type RecordService struct {
	cfg Config

	// Serialises overlap checks with the writes that follow them.
	mu sync.Mutex
}

func NewRecordService(cfg Config) *RecordService {
	return &RecordService{cfg: cfg.withDefaults()}
}

// Rules returns the rules the service was built with.
func (s *RecordService) Rules() saldo.Rules {
	return s.cfg.Rules
}

// DailyRate returns the rate new records will snapshot.
func (s *RecordService) DailyRate(ctx context.Context) (decimal.Decimal, error) {
	return currentRate(ctx, s.cfg.Store, s.cfg.DefaultRate)
}

// SetDailyRate changes the global rate. Existing records keep their snapshot.
func (s *RecordService) SetDailyRate(ctx context.Context, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return &saldo.ValidationError{Field: "dailyRate", Value: rate.String()}
	}
	if err := s.cfg.Store.SetDailyRate(ctx, rate); err != nil {
		return fmt.Errorf("failed to store daily rate: %w", err)
	}
	s.cfg.Logger.Info("daily rate changed", slog.String("rate", saldo.FormatMoney(rate)))
	return nil
}

// Preview computes a balance at the current rate without storing anything.
func (s *RecordService) Preview(ctx context.Context, input saldo.BalancePeriodInput) (saldo.BalanceResult, error) {
	rate, err := s.DailyRate(ctx)
	if err != nil {
		return saldo.BalanceResult{}, err
	}
	return saldo.ComputeBalance(input, rate)
}

// Save validates and stores a new record, snapshotting the current rate.
func (s *RecordService) Save(ctx context.Context, input saldo.BalancePeriodInput) (*RecordWithResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate, err := s.DailyRate(ctx)
	if err != nil {
		return nil, err
	}
	result, err := validateInput(input, rate)
	if err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, input, ""); err != nil {
		return nil, err
	}

	now := s.cfg.Clock()
	rec := saldo.BalancePeriodRecord{
		BalancePeriodInput: input,
		ID:                 s.cfg.NewID(),
		DailyRateSnapshot:  decimal.NewNullDecimal(rate),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.cfg.Store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save balance record: %w", err)
	}

	s.cfg.Logger.Info("balance record saved",
		slog.String("id", rec.ID),
		slog.String("sector", rec.Sector),
		slog.String("period", rec.Period().String()),
		slog.Int("balance", result.Balance),
	)
	return &RecordWithResult{BalancePeriodRecord: rec, Result: result}, nil
}

// Update replaces the inputs of a record. The rate snapshot and creation time
// are kept.
func (s *RecordService) Update(ctx context.Context, id string, input saldo.BalancePeriodInput) (*RecordWithResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.cfg.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	fallback, err := s.DailyRate(ctx)
	if err != nil {
		return nil, err
	}

	rec := *existing
	rec.BalancePeriodInput = input
	result, err := validateInput(input, rec.RateOr(fallback))
	if err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, input, id); err != nil {
		return nil, err
	}

	rec.UpdatedAt = s.cfg.Clock()
	if err := s.cfg.Store.SaveRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update balance record: %w", err)
	}

	s.cfg.Logger.Info("balance record updated", slog.String("id", rec.ID), slog.Int("balance", result.Balance))
	return &RecordWithResult{BalancePeriodRecord: rec, Result: result}, nil
}

// Get returns one record with its balance.
func (s *RecordService) Get(ctx context.Context, id string) (*RecordWithResult, error) {
	rec, err := s.cfg.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	fallback, err := s.DailyRate(ctx)
	if err != nil {
		return nil, err
	}
	result, err := saldo.ComputeRecord(*rec, fallback)
	if err != nil {
		return nil, err
	}
	return &RecordWithResult{BalancePeriodRecord: *rec, Result: result}, nil
}

// List returns every record of sector ("" = all) with its balance.
func (s *RecordService) List(ctx context.Context, sector string) ([]RecordWithResult, error) {
	recs, err := s.cfg.Store.ListRecords(ctx, sector)
	if err != nil {
		return nil, err
	}
	fallback, err := s.DailyRate(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RecordWithResult, 0, len(recs))
	for _, rec := range recs {
		result, err := saldo.ComputeRecord(rec, fallback)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		out = append(out, RecordWithResult{BalancePeriodRecord: rec, Result: result})
	}
	return out, nil
}

// Overlaps lists overlapping record pairs across all sectors.
func (s *RecordService) Overlaps(ctx context.Context) ([]saldo.Overlap, error) {
	recs, err := s.cfg.Store.ListRecords(ctx, "")
	if err != nil {
		return nil, err
	}
	return saldo.FindOverlaps(recs), nil
}

// =============================================================================
// WEEK REPORTS
// =============================================================================

// WeekReport returns the figures of sector for the week containing date.
func (s *RecordService) WeekReport(ctx context.Context, sector string, date generic.TimePoint) (saldo.WeekReport, error) {
	week := generic.WeekOf(date)
	snap, err := loadSnapshot(ctx, s.cfg, sector, week)
	if err != nil {
		return saldo.WeekReport{}, err
	}
	return saldo.BuildWeekReport(s.cfg.Rules, sector, week, snap.records, snap.requests, snap.rate)
}

// WeekReports returns a report for every sector that has a record covering
// the week containing date, ordered by sector.
func (s *RecordService) WeekReports(ctx context.Context, date generic.TimePoint) ([]saldo.WeekReport, error) {
	week := generic.WeekOf(date)
	recs, err := s.cfg.Store.ListRecords(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var sectors []string
	for _, rec := range recs {
		if !seen[rec.Sector] && rec.Period().Covers(week) {
			seen[rec.Sector] = true
			sectors = append(sectors, rec.Sector)
		}
	}
	sort.Strings(sectors)

	reports := make([]saldo.WeekReport, 0, len(sectors))
	for _, sector := range sectors {
		report, err := s.WeekReport(ctx, sector, date)
		if err != nil {
			return nil, fmt.Errorf("sector %s: %w", sector, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// RecordWeeks returns a report for every Monday-Sunday week that lies fully
// inside the record's period.
func (s *RecordService) RecordWeeks(ctx context.Context, id string) ([]saldo.WeekReport, error) {
	rec, err := s.cfg.Store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	period := rec.Period()
	var reports []saldo.WeekReport
	for _, week := range period.WeeksIn() {
		if !period.Covers(week) {
			continue
		}
		report, err := s.WeekReport(ctx, rec.Sector, week.Start)
		if err != nil {
			return nil, fmt.Errorf("week %s: %w", week.Start, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateInput(input saldo.BalancePeriodInput, rate decimal.Decimal) (saldo.BalanceResult, error) {
	if strings.TrimSpace(input.Sector) == "" {
		return saldo.BalanceResult{}, &saldo.ValidationError{Field: "sector", Message: "is required"}
	}
	if err := input.Period().Validate(); err != nil {
		return saldo.BalanceResult{}, &saldo.ValidationError{Field: "period", Message: err.Error()}
	}
	return saldo.ComputeBalance(input, rate)
}

func (s *RecordService) checkOverlap(ctx context.Context, input saldo.BalancePeriodInput, selfID string) error {
	existing, err := s.cfg.Store.RecordsForSector(ctx, input.Sector, input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return err
	}
	for _, rec := range existing {
		if rec.ID != selfID && rec.Period().Overlaps(input.Period()) {
			return &saldo.OverlapError{Sector: input.Sector, RecordID: selfID, ExistingID: rec.ID}
		}
	}
	return nil
}
