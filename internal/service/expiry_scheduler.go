package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/workflow"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

const (
	JobIncomingTick = "incoming_tick"
	JobDailySweep   = "daily_sweep"
)

// SchedulerConfig controls the background passes.
type SchedulerConfig struct {
	TickInterval    time.Duration
	ConflictRetries int
}

// RunReport summarises one scheduler pass.
type RunReport struct {
	Job     string    `json:"job"`
	Day     time.Time `json:"day"`
	Scanned int       `json:"scanned"`
	Changed int       `json:"changed"`
	Failed  int       `json:"failed"`
}

// ExpiryScheduler issues incoming passes ahead of the scheduled return and
// runs the daily sweep that expires passes and stale pending requests.
// Every pass is idempotent, so a missed or repeated run is harmless.
type ExpiryScheduler struct {
	store  outingStore
	passes *QRTokenService
	policy PassPolicy
	cfg    SchedulerConfig
	deps

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewExpiryScheduler constructs the scheduler.
func NewExpiryScheduler(store outingStore, passes *QRTokenService, policy PassPolicy, cfg SchedulerConfig, opts ...Option) *ExpiryScheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = 3
	}
	return &ExpiryScheduler{store: store, passes: passes, policy: policy.withDefaults(), cfg: cfg, deps: newDeps(opts)}
}

// Start launches the tick and sweep loops. A catch-up tick and sweep run
// immediately so work missed while the process was down is applied.
func (s *ExpiryScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(2)
	go s.tickLoop(ctx, s.stopCh)
	go s.sweepLoop(ctx, s.stopCh)
	s.logger.Info("expiry scheduler started",
		zap.Duration("tick_interval", s.cfg.TickInterval),
		zap.String("sweep_time", s.policy.Sweep.String()),
		zap.String("timezone", s.policy.Location.String()))
}

// Stop halts both loops and waits for in-flight passes to finish.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	s.running = false
	s.stopCh = nil
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()
	s.logger.Info("expiry scheduler stopped")
}

// IsRunning reports whether the loops are active.
func (s *ExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ExpiryScheduler) tickLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Warn("incoming tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.clock.After(s.cfg.TickInterval):
		}
	}
}

func (s *ExpiryScheduler) sweepLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	for {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("daily sweep failed", zap.Error(err))
		}
		now := s.clock.Now()
		wait := s.policy.Sweep.Next(now, s.policy.Location).Sub(now)
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.clock.After(wait):
		}
	}
}

// Tick issues incoming passes for requests due back today whose return is
// within the pre-return offset.
func (s *ExpiryScheduler) Tick(ctx context.Context) (RunReport, error) {
	now := s.clock.Now()
	start, end := dayWindow(now, s.policy.Location)
	report := RunReport{Job: JobIncomingTick, Day: start}

	candidates, err := s.store.ListIncomingCandidates(ctx, start, end)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incoming candidates")
	}
	report.Scanned = len(candidates)
	for i := range candidates {
		outing := &candidates[i]
		changed, err := s.apply(ctx, outing, func(o *models.OutingRequest) (bool, error) {
			due, err := workflow.IncomingDue(o, s.policy.Location, s.policy.PreReturnOffset, now)
			if err != nil || !due {
				return false, err
			}
			if workflow.CanIssue(o, models.DirectionIncoming) != nil {
				return false, nil
			}
			pass, err := s.passes.Mint(o, models.DirectionIncoming)
			if err != nil {
				return false, err
			}
			return true, workflow.IssuePass(o, models.DirectionIncoming, pass)
		})
		if err != nil {
			report.Failed++
			s.logger.Warn("incoming pass issuance failed", zap.String("outing_id", outing.ID), zap.Error(err))
			continue
		}
		if changed {
			report.Changed++
			s.passes.passIssued(ctx, outing, models.DirectionIncoming, "scheduler", models.SystemActor)
		}
	}
	s.metrics.RecordSchedulerRun(JobIncomingTick, report.Failed, now)
	if report.Changed > 0 || report.Failed > 0 {
		s.logger.Info("incoming tick completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("issued", report.Changed),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

// SweepDay returns the calendar day the most recent sweep covers: today
// once the sweep time has passed, otherwise yesterday.
func (s *ExpiryScheduler) SweepDay(now time.Time) time.Time {
	today := calendarDay(now, s.policy.Location)
	if now.Before(s.policy.Sweep.On(today, s.policy.Location)) {
		return today.AddDate(0, 0, -1)
	}
	return today
}

// Sweep expires every pass for requests due back on or before the sweep day,
// and for requests dated on or before it whose student never checked out. It
// also denies requests still pending for outings on or before the sweep day.
func (s *ExpiryScheduler) Sweep(ctx context.Context) (RunReport, error) {
	now := s.clock.Now()
	day := s.SweepDay(now)
	dayEnd := day.AddDate(0, 0, 1)
	report := RunReport{Job: JobDailySweep, Day: day}

	withPasses, err := s.store.ListWithUnexpiredPasses(ctx, dayEnd)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unexpired passes")
	}
	report.Scanned += len(withPasses)
	for i := range withPasses {
		outing := &withPasses[i]
		changed, err := s.apply(ctx, outing, func(o *models.OutingRequest) (bool, error) {
			return workflow.ExpirePasses(o), nil
		})
		if err != nil {
			report.Failed++
			s.logger.Warn("pass expiry failed", zap.String("outing_id", outing.ID), zap.Error(err))
			continue
		}
		if changed {
			report.Changed++
			s.notify(models.EventPassExpired, outing, "", "")
			s.emitAudit(ctx, models.SystemActor, models.AuditActionPassExpire, "scheduler", outing.ID, nil, map[string]interface{}{"sweepDay": day.Format("2006-01-02")})
		}
	}

	stale, err := s.store.ListStalePending(ctx, dayEnd)
	if err != nil {
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stale pending requests")
	}
	report.Scanned += len(stale)
	for i := range stale {
		outing := &stale[i]
		var before models.Level
		changed, err := s.apply(ctx, outing, func(o *models.OutingRequest) (bool, error) {
			before = o.CurrentLevel
			return workflow.AutoExpire(o, now.UTC()), nil
		})
		if err != nil {
			report.Failed++
			s.logger.Warn("auto-expire failed", zap.String("outing_id", outing.ID), zap.Error(err))
			continue
		}
		if changed {
			report.Changed++
			s.notify(models.EventOutingAutoExpired, outing, "", "")
			s.emitAudit(ctx, models.SystemActor, models.AuditActionOutingAutoExpire, "scheduler", outing.ID,
				map[string]interface{}{"status": models.OutingStatusPending, "currentLevel": before},
				map[string]interface{}{"status": outing.Status, "currentLevel": outing.CurrentLevel})
		}
	}

	s.metrics.RecordSchedulerRun(JobDailySweep, report.Failed, now)
	s.logger.Info("daily sweep completed",
		zap.String("day", day.Format("2006-01-02")),
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("failed", report.Failed))
	return report, nil
}

// apply runs mutate against o and persists the result. A lost version race
// reloads the request and tries again up to ConflictRetries times; on
// success o holds the persisted state.
func (s *ExpiryScheduler) apply(ctx context.Context, o *models.OutingRequest, mutate func(*models.OutingRequest) (bool, error)) (bool, error) {
	current := o
	for attempt := 0; ; attempt++ {
		working := current.Clone()
		changed, err := mutate(working)
		if err != nil || !changed {
			return false, err
		}
		err = s.store.Update(ctx, working, current.Version)
		if err == nil {
			*o = *working
			return true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) || attempt+1 >= s.cfg.ConflictRetries {
			return false, err
		}
		s.logger.Debug("scheduler update lost race", zap.String("outing_id", o.ID), zap.Int("attempt", attempt+1))
		current, err = s.store.GetByID(ctx, o.ID)
		if err != nil {
			return false, err
		}
	}
}
