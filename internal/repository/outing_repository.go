package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

const outingColumns = `id, student_id, outing_date, out_time, return_date, return_time, category, destination, purpose,
       status, current_level, approval_flags, approval_flow, qr_outgoing, qr_incoming, check_out, check_in,
       version, created_at, updated_at`

// OutingRepository persists outing requests. Every write after creation is
// guarded by the row version so concurrent transitions cannot interleave.
type OutingRepository struct {
	db *sqlx.DB
}

// NewOutingRepository constructs the repository.
func NewOutingRepository(db *sqlx.DB) *OutingRepository {
	return &OutingRepository{db: db}
}

// Create inserts a new outing request at version 1.
func (r *OutingRepository) Create(ctx context.Context, outing *models.OutingRequest) error {
	if outing.ID == "" {
		outing.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if outing.CreatedAt.IsZero() {
		outing.CreatedAt = now
	}
	outing.UpdatedAt = outing.CreatedAt
	outing.Version = 1
	const query = `INSERT INTO outing_requests
	(id, student_id, outing_date, out_time, return_date, return_time, category, destination, purpose,
	 status, current_level, approval_flags, approval_flow, qr_outgoing, qr_incoming, check_out, check_in,
	 version, created_at, updated_at)
	VALUES (:id, :student_id, :outing_date, :out_time, :return_date, :return_time, :category, :destination, :purpose,
	 :status, :current_level, :approval_flags, :approval_flow, :qr_outgoing, :qr_incoming, :check_out, :check_in,
	 :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, outing); err != nil {
		return fmt.Errorf("create outing request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier. sql.ErrNoRows is returned as-is.
func (r *OutingRepository) GetByID(ctx context.Context, id string) (*models.OutingRequest, error) {
	query := "SELECT " + outingColumns + " FROM outing_requests WHERE id = $1"
	var outing models.OutingRequest
	if err := r.db.GetContext(ctx, &outing, query, id); err != nil {
		return nil, err
	}
	return &outing, nil
}

// FindByToken locates the request currently carrying token in either
// direction. Superseded or consumed tokens are no longer stored and miss.
func (r *OutingRepository) FindByToken(ctx context.Context, token string) (*models.OutingRequest, models.Direction, error) {
	query := "SELECT " + outingColumns + ` FROM outing_requests
	WHERE qr_outgoing->>'token' = $1 OR qr_incoming->>'token' = $1 LIMIT 1`
	var outing models.OutingRequest
	if err := r.db.GetContext(ctx, &outing, query, token); err != nil {
		return nil, "", err
	}
	direction := models.DirectionOutgoing
	if outing.QRIncoming.Token != nil && *outing.QRIncoming.Token == token {
		direction = models.DirectionIncoming
	}
	return &outing, direction, nil
}

// List returns requests matching the filter, newest first, with the total count.
func (r *OutingRepository) List(ctx context.Context, filter models.OutingFilter) ([]models.OutingRequest, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 5)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("current_level = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("outing_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("outing_date <= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM outing_requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d", outingColumns, where, limit, offset)
	var outings []models.OutingRequest
	if err := r.db.SelectContext(ctx, &outings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list outing requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM outing_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count outing requests: %w", err)
	}
	return outings, total, nil
}

// Update writes every mutable column when the stored version still equals
// expectedVersion. A lost race surfaces as sql.ErrNoRows; on success the
// in-memory version is advanced to match the row.
func (r *OutingRepository) Update(ctx context.Context, outing *models.OutingRequest, expectedVersion int64) error {
	outing.UpdatedAt = time.Now().UTC()
	const query = `UPDATE outing_requests SET
	status = :status,
	current_level = :current_level,
	approval_flags = :approval_flags,
	approval_flow = :approval_flow,
	qr_outgoing = :qr_outgoing,
	qr_incoming = :qr_incoming,
	check_out = :check_out,
	check_in = :check_in,
	version = version + 1,
	updated_at = :updated_at
	WHERE id = :id AND version = :expected_version`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               outing.ID,
		"status":           outing.Status,
		"current_level":    outing.CurrentLevel,
		"approval_flags":   outing.Flags,
		"approval_flow":    outing.Flow,
		"qr_outgoing":      outing.QROutgoing,
		"qr_incoming":      outing.QRIncoming,
		"check_out":        outing.CheckOut,
		"check_in":         outing.CheckIn,
		"updated_at":       outing.UpdatedAt,
		"expected_version": expectedVersion,
	})
	if err != nil {
		return fmt.Errorf("update outing request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check outing update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	outing.Version = expectedVersion + 1
	return nil
}

// ListIncomingCandidates returns approved requests due back within
// [dayStart, dayEnd) that have checked out but never received an incoming pass.
func (r *OutingRepository) ListIncomingCandidates(ctx context.Context, dayStart, dayEnd time.Time) ([]models.OutingRequest, error) {
	query := "SELECT " + outingColumns + ` FROM outing_requests
	WHERE status = $1 AND current_level = $2
	  AND return_date >= $3 AND return_date < $4
	  AND check_out IS NOT NULL
	  AND qr_incoming->>'issuedAt' IS NULL
	  AND COALESCE((qr_incoming->>'isExpired')::boolean, false) = false
	ORDER BY return_date, return_time`
	var outings []models.OutingRequest
	if err := r.db.SelectContext(ctx, &outings, query, models.OutingStatusApproved, models.LevelCompleted, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("list incoming candidates: %w", err)
	}
	return outings, nil
}

// ListWithUnexpiredPasses returns approved or late-returned requests that
// still hold a pass not marked expired and are either due back before dayEnd
// or dated before dayEnd without the student having checked out.
func (r *OutingRepository) ListWithUnexpiredPasses(ctx context.Context, dayEnd time.Time) ([]models.OutingRequest, error) {
	query := "SELECT " + outingColumns + ` FROM outing_requests
	WHERE status IN ($1, $2)
	  AND ((return_date < $3
	      AND (COALESCE((qr_outgoing->>'isExpired')::boolean, false) = false
	        OR COALESCE((qr_incoming->>'isExpired')::boolean, false) = false))
	    OR (outing_date < $3 AND check_out IS NULL
	      AND COALESCE((qr_outgoing->>'isExpired')::boolean, false) = false))
	ORDER BY outing_date, return_date`
	var outings []models.OutingRequest
	if err := r.db.SelectContext(ctx, &outings, query, models.OutingStatusApproved, models.OutingStatusLateReturn, dayEnd); err != nil {
		return nil, fmt.Errorf("list unexpired passes: %w", err)
	}
	return outings, nil
}

// ListStalePending returns pending requests dated before dayEnd.
func (r *OutingRepository) ListStalePending(ctx context.Context, dayEnd time.Time) ([]models.OutingRequest, error) {
	query := "SELECT " + outingColumns + ` FROM outing_requests
	WHERE status = $1 AND outing_date < $2
	ORDER BY outing_date`
	var outings []models.OutingRequest
	if err := r.db.SelectContext(ctx, &outings, query, models.OutingStatusPending, dayEnd); err != nil {
		return nil, fmt.Errorf("list stale pending: %w", err)
	}
	return outings, nil
}
