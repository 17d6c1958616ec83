package extras

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/extras-engine/generic"
	"github.com/warp/extras-engine/saldo"
)

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// NewRequest is the input for creating an extra-staff request.
type NewRequest struct {
	Sector    string
	Role      string
	Reason    string
	Notes     string
	CreatedBy string
	WorkDays  []saldo.WorkDay
}

func (n NewRequest) candidate() saldo.Candidate {
	return saldo.Candidate{Sector: n.Sector, Reason: n.Reason, WorkDays: n.WorkDays}
}

// RequestService creates requests and drives their approval workflow.
type RequestService struct {
	cfg Config
}

func NewRequestService(cfg Config) *RequestService {
	return &RequestService{cfg: cfg.withDefaults()}
}

// Create validates and stores a new request. Its initial status comes from
// the admission decision, which is returned alongside.
func (s *RequestService) Create(ctx context.Context, in NewRequest) (*saldo.ExtraRequest, saldo.Decision, error) {
	if err := s.validate(in); err != nil {
		return nil, saldo.Decision{}, err
	}
	cand := in.candidate()
	week, err := cand.Week()
	if err != nil {
		return nil, saldo.Decision{}, err
	}

	unlock, err := s.lockWeeks(ctx, in.Sector, in.WorkDays)
	if err != nil {
		return nil, saldo.Decision{}, err
	}
	defer unlock()

	snap, err := loadSnapshot(ctx, s.cfg, in.Sector, week)
	if err != nil {
		return nil, saldo.Decision{}, err
	}
	decision, err := saldo.DecideApproval(s.cfg.Rules, cand, snap.records, snap.requests, snap.rate)
	if err != nil {
		return nil, saldo.Decision{}, err
	}

	now := s.cfg.Clock()
	req := saldo.ExtraRequest{
		ID:        s.cfg.NewID(),
		Sector:    in.Sector,
		Role:      in.Role,
		Reason:    in.Reason,
		Notes:     in.Notes,
		WorkDays:  append([]saldo.WorkDay(nil), in.WorkDays...),
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	decision.Apply(&req, in.CreatedBy, now)

	if err := s.cfg.Store.SaveRequest(ctx, req); err != nil {
		return nil, saldo.Decision{}, fmt.Errorf("failed to save request: %w", err)
	}

	s.cfg.Logger.Info("extra request created",
		slog.String("id", req.ID),
		slog.String("sector", req.Sector),
		slog.String("week", week.Start.String()),
		slog.String("status", string(req.Status)),
		slog.String("outcome", string(decision.Outcome)),
		slog.Int("requested_days", decision.RequestedDays),
		slog.Int("remaining", decision.Remaining.Days),
	)
	return &req, decision, nil
}

// Preview returns the decision Create would make right now, without locking
// or storing anything.
func (s *RequestService) Preview(ctx context.Context, in NewRequest) (saldo.Decision, error) {
	if err := s.validate(in); err != nil {
		return saldo.Decision{}, err
	}
	cand := in.candidate()
	week, err := cand.Week()
	if err != nil {
		return saldo.Decision{}, err
	}
	snap, err := loadSnapshot(ctx, s.cfg, in.Sector, week)
	if err != nil {
		return saldo.Decision{}, err
	}
	return saldo.DecideApproval(s.cfg.Rules, cand, snap.records, snap.requests, snap.rate)
}

// Get returns one request.
func (s *RequestService) Get(ctx context.Context, id string) (*saldo.ExtraRequest, error) {
	return s.cfg.Store.GetRequest(ctx, id)
}

// List returns requests matching filter, oldest first.
func (s *RequestService) List(ctx context.Context, filter saldo.RequestFilter) ([]saldo.ExtraRequest, error) {
	return s.cfg.Store.ListRequests(ctx, filter)
}

// =============================================================================
// WORKFLOW
// =============================================================================
//
//   REQUESTED ──▶ APPROVED ──▶ CANCELLED
//       │
//       ├──────▶ REJECTED
//       └──────▶ CANCELLED
//
// Manager approval is an override: it does not re-check the balance.

var transitions = map[saldo.Status][]saldo.Status{
	saldo.StatusRequested: {saldo.StatusApproved, saldo.StatusRejected, saldo.StatusCancelled},
	saldo.StatusApproved:  {saldo.StatusCancelled},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to saldo.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Approve approves a pending request on behalf of manager.
func (s *RequestService) Approve(ctx context.Context, id, manager string) (*saldo.ExtraRequest, error) {
	if strings.TrimSpace(manager) == "" {
		return nil, &saldo.ValidationError{Field: "approvedBy", Message: "is required"}
	}
	return s.transition(ctx, id, saldo.StatusApproved, func(req *saldo.ExtraRequest) {
		now := s.cfg.Clock()
		req.ApprovedBy = manager
		req.ApprovedAt = &now
	})
}

// Reject rejects a pending request.
func (s *RequestService) Reject(ctx context.Context, id, manager, reason string) (*saldo.ExtraRequest, error) {
	if strings.TrimSpace(manager) == "" {
		return nil, &saldo.ValidationError{Field: "rejectedBy", Message: "is required"}
	}
	return s.transition(ctx, id, saldo.StatusRejected, func(req *saldo.ExtraRequest) {
		req.RejectedBy = manager
		req.RejectionReason = reason
	})
}

// Cancel withdraws a pending or approved request. Cancelling an approved
// request gives its days back to the week.
func (s *RequestService) Cancel(ctx context.Context, id, actor string) (*saldo.ExtraRequest, error) {
	return s.transition(ctx, id, saldo.StatusCancelled, func(req *saldo.ExtraRequest) {
		req.CancelledBy = actor
	})
}

func (s *RequestService) transition(ctx context.Context, id string, to saldo.Status, mutate func(*saldo.ExtraRequest)) (*saldo.ExtraRequest, error) {
	current, err := s.cfg.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lockWeeks(ctx, current.Sector, current.WorkDays)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload: the status may have changed while we waited.
	req, err := s.cfg.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(req.Status, to) {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: to}
	}

	from := req.Status
	req.Status = to
	req.NeedsManagerApproval = false
	req.UpdatedAt = s.cfg.Clock()
	if mutate != nil {
		mutate(req)
	}
	if err := s.cfg.Store.SaveRequest(ctx, *req); err != nil {
		return nil, fmt.Errorf("failed to update request: %w", err)
	}

	s.cfg.Logger.Info("extra request status changed",
		slog.String("id", id),
		slog.String("sector", req.Sector),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *RequestService) validate(in NewRequest) error {
	if strings.TrimSpace(in.Sector) == "" {
		return &saldo.ValidationError{Field: "sector", Message: "is required"}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return &saldo.ValidationError{Field: "reason", Message: "is required"}
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return &saldo.ValidationError{Field: "createdBy", Message: "is required"}
	}
	if len(in.WorkDays) == 0 {
		return saldo.ErrNoWorkDays
	}
	if limit := s.cfg.Rules.MaxWorkDays; len(in.WorkDays) > limit {
		return &saldo.ValidationError{
			Field:   "workDays",
			Message: fmt.Sprintf("at most %d days per request, got %d", limit, len(in.WorkDays)),
		}
	}

	seen := make(map[string]bool, len(in.WorkDays))
	for _, wd := range in.WorkDays {
		if wd.Date.IsZero() {
			return &saldo.ValidationError{Field: "workDays", Message: "date is required"}
		}
		if !wd.Shift.Valid() {
			return &saldo.ValidationError{Field: "workDays", Message: fmt.Sprintf("unknown shift %q", wd.Shift)}
		}
		key := wd.Date.String()
		if seen[key] {
			return &saldo.ValidationError{Field: "workDays", Message: "duplicate date " + key}
		}
		seen[key] = true
	}
	return nil
}

// lockWeeks takes the lock of every sector-week the work days touch, since
// approved days count against their own week. Keys are taken in sorted order
// and released in reverse.
func (s *RequestService) lockWeeks(ctx context.Context, sector string, workDays []saldo.WorkDay) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	keys := weekLockKeys(sector, workDays)
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := s.cfg.Locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// weekLockKeys returns the distinct sector-week keys of workDays, sorted.
func weekLockKeys(sector string, workDays []saldo.WorkDay) []string {
	seen := make(map[string]bool, len(workDays))
	keys := make([]string, 0, 2)
	for _, wd := range workDays {
		key := WeekLockKey(sector, generic.WeekOf(wd.Date))
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// snapshot is everything the engine needs for one sector-week.
type snapshot struct {
	records  []saldo.BalancePeriodRecord
	requests []saldo.ExtraRequest
	rate     decimal.Decimal
}

// loadSnapshot reads records, approved requests and the current rate
// concurrently.
func loadSnapshot(ctx context.Context, cfg Config, sector string, week generic.Period) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := cfg.Store.RecordsForSector(ctx, sector, week.Start, week.End)
		if err != nil {
			return fmt.Errorf("failed to load balance records: %w", err)
		}
		snap.records = recs
		return nil
	})

	g.Go(func() error {
		from, to := week.Start, week.End
		reqs, err := cfg.Store.ListRequests(ctx, saldo.RequestFilter{
			Sector:   sector,
			Statuses: []saldo.Status{saldo.StatusApproved},
			From:     &from,
			To:       &to,
		})
		if err != nil {
			return fmt.Errorf("failed to load requests: %w", err)
		}
		snap.requests = reqs
		return nil
	})

	g.Go(func() error {
		rate, err := currentRate(ctx, cfg.Store, cfg.DefaultRate)
		if err != nil {
			return fmt.Errorf("failed to load daily rate: %w", err)
		}
		snap.rate = rate
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}
