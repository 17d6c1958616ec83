/*
Package extras wires the saldo engine to persistence.

PURPOSE:
  The saldo package is pure: it decides from snapshots. This package owns
  everything around the decision: validating input, taking the sector-week
  lock, loading a fresh snapshot, persisting the outcome and logging it.

SERVICES:
  RecordService:  Balance period records and the global daily rate
  RequestService: Extra-staff requests and their approval workflow

CONCURRENCY:
  Request creation and every status change that can move consumption run
  under the sector-week lock (see lock.go). The snapshot is read after the
  lock is held, so two concurrent requests for the same sector-week see each
  other's outcome.

SEE ALSO:
  - saldo/admission.go: The decision itself
  - api/handlers.go: HTTP surface
*/
package extras

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/extras-engine/saldo"
)

// Config holds the dependencies shared by the services.
type Config struct {
	Store saldo.Store
	Rules saldo.Rules

	// DefaultRate is used until a rate has been stored.
	DefaultRate decimal.Decimal

	Locker   Locker
	LockWait time.Duration

	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

func (c Config) withDefaults() Config {
	if c.Rules.EventReason == "" {
		c.Rules = saldo.DefaultRules()
	}
	if c.Locker == nil {
		c.Locker = NewLocalLocker()
	}
	if c.LockWait <= 0 {
		c.LockWait = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// currentRate returns the stored daily rate or the configured default.
func currentRate(ctx context.Context, store saldo.SettingsStore, fallback decimal.Decimal) (decimal.Decimal, error) {
	rate, ok, err := store.DailyRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return fallback, nil
	}
	return rate, nil
}
