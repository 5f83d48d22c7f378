package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

var outingRowColumns = []string{
	"id", "student_id", "outing_date", "out_time", "return_date", "return_time", "category", "destination", "purpose",
	"status", "current_level", "approval_flags", "approval_flow", "qr_outgoing", "qr_incoming", "check_out", "check_in",
	"version", "created_at", "updated_at",
}

func newOutingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func outingRow(rows *sqlmock.Rows, id, qrOutgoing, qrIncoming string, checkOut interface{}) *sqlmock.Rows {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(id, "stu-1", day, "10:00", day, "18:00", "NORMAL", "City library", "Study",
		"APPROVED", "COMPLETED", `{"floorIncharge":{"isApproved":true}}`, `[{"level":"FLOOR_INCHARGE","decision":"APPROVE","approverId":"floor-1","timestamp":"2026-03-09T08:00:00Z"}]`,
		qrOutgoing, qrIncoming, checkOut, nil, 4, time.Now(), time.Now())
}

func TestOutingRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newOutingRepoMock(t)
	defer cleanup()
	repo := NewOutingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outing_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	outing := &models.OutingRequest{
		StudentID:    "stu-1",
		OutingDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		OutTime:      "10:00",
		ReturnDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReturnTime:   "18:00",
		Category:     models.OutingCategoryNormal,
		Status:       models.OutingStatusPending,
		CurrentLevel: models.LevelFloorIncharge,
	}
	require.NoError(t, repo.Create(context.Background(), outing))
	require.NotEmpty(t, outing.ID)
	assert.Equal(t, int64(1), outing.Version)

	rows := outingRow(sqlmock.NewRows(outingRowColumns), outing.ID, `{"token":"op1.outgoing.x.y","tokenId":"n1","issuedAt":"2026-03-09T08:05:00Z","isExpired":false}`, `{"isExpired":false}`, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM outing_requests WHERE id = $1")).
		WithArgs(outing.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), outing.ID)
	require.NoError(t, err)
	assert.Equal(t, outing.ID, found.ID)
	assert.True(t, found.Flags.FloorIncharge.IsApproved)
	require.Len(t, found.Flow, 1)
	assert.Equal(t, "floor-1", found.Flow[0].ApproverID)
	require.NotNil(t, found.QROutgoing.Token)
	assert.True(t, found.QROutgoing.Live())
	assert.Nil(t, found.CheckOut.Event)
	assert.Equal(t, int64(4), found.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutingRepositoryFindByTokenResolvesDirection(t *testing.T) {
	db, mock, cleanup := newOutingRepoMock(t)
	defer cleanup()
	repo := NewOutingRepository(db)

	rows := outingRow(sqlmock.NewRows(outingRowColumns), "out-1",
		`{"tokenId":"n1","issuedAt":"2026-03-09T08:05:00Z","isExpired":true,"scannedAt":"2026-03-10T10:01:00Z","scannedBy":"guard-1"}`,
		`{"token":"in-token","tokenId":"n2","issuedAt":"2026-03-10T17:30:00Z","isExpired":false}`,
		`{"time":"2026-03-10T10:01:00Z","scannedBy":"guard-1"}`)
	mock.ExpectQuery(regexp.QuoteMeta("qr_outgoing->>'token' = $1 OR qr_incoming->>'token' = $1")).
		WithArgs("in-token").
		WillReturnRows(rows)

	outing, direction, err := repo.FindByToken(context.Background(), "in-token")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionIncoming, direction)
	require.NotNil(t, outing.CheckOut.Event)
	assert.Equal(t, "guard-1", outing.CheckOut.Event.ScannedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutingRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newOutingRepoMock(t)
	defer cleanup()
	repo := NewOutingRepository(db)

	rows := outingRow(sqlmock.NewRows(outingRowColumns), "out-1", `{}`, `{}`, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND status IN ($2) ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("stu-1", models.OutingStatusApproved).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM outing_requests WHERE student_id = $1")).
		WithArgs("stu-1", models.OutingStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.OutingFilter{
		StudentID: "stu-1",
		Status:    []models.OutingStatus{models.OutingStatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutingRepositoryUpdateVersionGuard(t *testing.T) {
	db, mock, cleanup := newOutingRepoMock(t)
	defer cleanup()
	repo := NewOutingRepository(db)

	outing := &models.OutingRequest{ID: "out-1", Status: models.OutingStatusApproved, CurrentLevel: models.LevelCompleted, Version: 3}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outing_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), outing, 3))
	assert.Equal(t, int64(4), outing.Version)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND version = ?")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), outing, 3)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, int64(4), outing.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutingRepositorySchedulerQueries(t *testing.T) {
	db, mock, cleanup := newOutingRepoMock(t)
	defer cleanup()
	repo := NewOutingRepository(db)

	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("AND check_out IS NOT NULL")).
		WithArgs(models.OutingStatusApproved, models.LevelCompleted, dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows(outingRowColumns))
	candidates, err := repo.ListIncomingCandidates(context.Background(), dayStart, dayEnd)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	mock.ExpectQuery(regexp.QuoteMeta("OR (outing_date < $3 AND check_out IS NULL")).
		WithArgs(models.OutingStatusApproved, models.OutingStatusLateReturn, dayEnd).
		WillReturnRows(outingRow(sqlmock.NewRows(outingRowColumns), "out-2", `{"token":"t","issuedAt":"2026-03-09T08:05:00Z","isExpired":false}`, `{}`, nil))
	unexpired, err := repo.ListWithUnexpiredPasses(context.Background(), dayEnd)
	require.NoError(t, err)
	require.Len(t, unexpired, 1)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND outing_date < $2")).
		WithArgs(models.OutingStatusPending, dayEnd).
		WillReturnRows(sqlmock.NewRows(outingRowColumns))
	stale, err := repo.ListStalePending(context.Background(), dayEnd)
	require.NoError(t, err)
	assert.Empty(t, stale)

	assert.NoError(t, mock.ExpectationsWereMet())
}
