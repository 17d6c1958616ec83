/*
scheduler.go - Periodic overshoot and overlap scanner

PURPOSE:
  Concurrent approvals and manager overrides can push a sector-week past its
  quota. The scanner periodically builds the week report of every sector with
  a record covering the current week and logs any overshoot, together with
  overlapping balance records that make the record lookup ambiguous.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Scans once immediately on start
  - Results are logged and kept as the last scan for inspection

CONFIGURATION:
  - CheckInterval: How often to scan (default: 1 hour)
  - Enabled: Whether the scanner is active (default: true)

USAGE:
  scanner := NewOvershootScanner(records, logger)
  scanner.Start()
  // ... later
  scanner.Stop()

SEE ALSO:
  - extras/record.go: WeekReports, Overlaps
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/extras-engine/extras"
	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// ScanResult is the outcome of one scan.
type ScanResult struct {
	At        time.Time
	Week      generic.Period
	Reports   []saldo.WeekReport
	Overshoot []saldo.WeekReport // subset of Reports with Overshoot > 0
	Overlaps  []saldo.Overlap
}

// OvershootScanner periodically reports sector-weeks over quota.
type OvershootScanner struct {
	Records       *extras.RecordService
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Today picks the week to scan. Defaults to generic.Today.
	Today func() generic.TimePoint

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   *ScanResult
}

// NewOvershootScanner creates a new scanner.
func NewOvershootScanner(records *extras.RecordService, logger *slog.Logger) *OvershootScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &OvershootScanner{
		Records:       records,
		Logger:        logger.With(slog.String("component", "overshoot_scanner")),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Today:         generic.Today,
	}
}

// Start begins the scanner.
func (s *OvershootScanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	s.Logger.Info("started", slog.Duration("interval", s.CheckInterval))
}

// Stop stops the scanner and waits for a running scan to finish.
func (s *OvershootScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

// Last returns the most recent scan, or nil before the first one.
func (s *OvershootScanner) Last() *ScanResult {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

func (s *OvershootScanner) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.scanAndLog()

	for {
		select {
		case <-s.ticker.C:
			s.scanAndLog()
		case <-s.stop:
			return
		}
	}
}

func (s *OvershootScanner) scanAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.Scan(ctx); err != nil {
		s.Logger.Error("scan failed", slog.Any("error", err))
	}
}

// Scan checks the current week once.
func (s *OvershootScanner) Scan(ctx context.Context) (*ScanResult, error) {
	today := s.Today()
	reports, err := s.Records.WeekReports(ctx, today)
	if err != nil {
		return nil, err
	}
	overlaps, err := s.Records.Overlaps(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		At:       time.Now(),
		Week:     generic.WeekOf(today),
		Reports:  reports,
		Overlaps: overlaps,
	}
	for _, rep := range reports {
		if rep.Overshoot > 0 {
			result.Overshoot = append(result.Overshoot, rep)
			s.Logger.Warn("sector-week over quota",
				slog.String("sector", rep.Sector),
				slog.String("week", rep.Week.Start.String()),
				slog.Int("used_days", rep.UsedDays),
				slog.Int("overshoot", rep.Overshoot),
			)
		}
	}
	for _, o := range overlaps {
		s.Logger.Warn("overlapping balance records",
			slog.String("sector", o.Sector),
			slog.String("first", o.First.ID),
			slog.String("second", o.Second.ID),
		)
	}
	s.Logger.Info("scan complete",
		slog.String("week", result.Week.Start.String()),
		slog.Int("sectors", len(reports)),
		slog.Int("overshoot", len(result.Overshoot)),
		slog.Int("overlaps", len(overlaps)),
	)

	s.lastMu.Lock()
	s.last = result
	s.lastMu.Unlock()
	return result, nil
}
