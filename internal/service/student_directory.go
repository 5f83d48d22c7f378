package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

type studentSummaryReader interface {
	FindSummary(ctx context.Context, id string) (*models.StudentSummary, error)
}

// StudentDirectory resolves the identity shown to gate staff, reading
// through the cache.
type StudentDirectory struct {
	repo   studentSummaryReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewStudentDirectory constructs the directory.
func NewStudentDirectory(repo studentSummaryReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StudentDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentDirectory{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func studentCacheKey(id string) string {
	return "outing:student:" + id
}

// Summary returns the student's gate summary. A student missing from the
// directory degrades to an id-only summary rather than failing the scan.
func (d *StudentDirectory) Summary(ctx context.Context, id string) (models.StudentSummary, error) {
	var cached models.StudentSummary
	if hit, err := d.cache.Get(ctx, studentCacheKey(id), &cached); err == nil && hit {
		return cached, nil
	}

	summary, err := d.repo.FindSummary(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d.logger.Warn("student missing from directory", zap.String("student_id", id))
			return models.StudentSummary{ID: id}, nil
		}
		return models.StudentSummary{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	_ = d.cache.Set(ctx, studentCacheKey(id), summary, d.ttl)
	return *summary, nil
}

// Forget drops the cached summary so the next lookup reads the directory
// again, e.g. after a room change.
func (d *StudentDirectory) Forget(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if err := d.cache.Invalidate(ctx, studentCacheKey(id)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evict cached student")
	}
	d.logger.Info("student cache evicted", zap.String("student_id", id))
	return nil
}
