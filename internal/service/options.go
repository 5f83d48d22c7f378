package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

type outingStore interface {
	Create(ctx context.Context, outing *models.OutingRequest) error
	GetByID(ctx context.Context, id string) (*models.OutingRequest, error)
	FindByToken(ctx context.Context, token string) (*models.OutingRequest, models.Direction, error)
	List(ctx context.Context, filter models.OutingFilter) ([]models.OutingRequest, int, error)
	Update(ctx context.Context, outing *models.OutingRequest, expectedVersion int64) error
	ListIncomingCandidates(ctx context.Context, dayStart, dayEnd time.Time) ([]models.OutingRequest, error)
	ListWithUnexpiredPasses(ctx context.Context, dayEnd time.Time) ([]models.OutingRequest, error)
	ListStalePending(ctx context.Context, dayEnd time.Time) ([]models.OutingRequest, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PassPolicy holds the time rules applied to gate passes.
type PassPolicy struct {
	Location        *time.Location
	PreReturnOffset time.Duration
	LateGrace       time.Duration
	Sweep           SweepClock
	// ConflictRetries bounds how often a gate scan re-validates after losing
	// a version race.
	ConflictRetries int
}

func (p PassPolicy) withDefaults() PassPolicy {
	if p.Location == nil {
		p.Location = time.Local
	}
	if p.PreReturnOffset <= 0 {
		p.PreReturnOffset = 30 * time.Minute
	}
	if p.LateGrace <= 0 {
		p.LateGrace = 30 * time.Minute
	}
	if p.Sweep == (SweepClock{}) {
		p.Sweep = SweepClock{Hour: 23, Minute: 59}
	}
	if p.ConflictRetries <= 0 {
		p.ConflictRetries = 3
	}
	return p
}

// Option configures the collaborators shared by the outing services.
type Option func(*deps)

type deps struct {
	clock   Clock
	audit   auditLogger
	events  Notifier
	metrics *MetricsService
	logger  *zap.Logger
}

// WithClock overrides the wall clock.
func WithClock(clock Clock) Option {
	return func(d *deps) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithAudit enables audit trail persistence.
func WithAudit(audit auditLogger) Option {
	return func(d *deps) { d.audit = audit }
}

// WithNotifier routes domain events to n.
func WithNotifier(n Notifier) Option {
	return func(d *deps) {
		if n != nil {
			d.events = n
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *MetricsService) Option {
	return func(d *deps) { d.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *deps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func newDeps(opts []Option) deps {
	d := deps{clock: SystemClock(), events: noopNotifier{}, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	return d
}

func (d deps) emitAudit(ctx context.Context, actor models.Actor, action, source string, outingID string, oldValues, newValues interface{}) {
	if d.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "outing_request",
		ResourceID: &outingID,
		IPAddress:  "system",
		UserAgent:  source,
	}
	if actor.ID != "" {
		userID := actor.ID
		log.UserID = &userID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := d.audit.CreateAuditLog(ctx, log); err != nil {
		d.logger.Warn("failed to persist audit log", zap.String("action", action), zap.String("outing_id", outingID), zap.Error(err))
	}
}

func (d deps) notify(eventType models.OutingEventType, o *models.OutingRequest, direction models.Direction, location string) {
	d.events.Notify(models.OutingEvent{
		Type:       eventType,
		OutingID:   o.ID,
		StudentID:  o.StudentID,
		Status:     o.Status,
		Level:      o.CurrentLevel,
		Direction:  direction,
		Location:   location,
		OccurredAt: d.clock.Now().UTC(),
	})
}

func loadOuting(ctx context.Context, store outingStore, id string) (*models.OutingRequest, error) {
	outing, err := store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "outing request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load outing request")
	}
	return outing, nil
}

// persistError maps a failed version-guarded update for external callers.
func persistError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrAlreadyHandled, "outing request was updated concurrently; reload and retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
