package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// StudentRepository reads the student directory owned by the hostel roster.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindSummary loads the identity shown at the gate for a scanned pass.
func (r *StudentRepository) FindSummary(ctx context.Context, id string) (*models.StudentSummary, error) {
	const query = `SELECT s.id, s.full_name, s.roll_number, COALESCE(s.room, '') AS room
	FROM students s WHERE s.id = $1 AND s.active = TRUE`
	var summary models.StudentSummary
	if err := r.db.GetContext(ctx, &summary, query, id); err != nil {
		return nil, err
	}
	return &summary, nil
}
