package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type countingStudents struct {
	calls int
	rows  map[string]models.StudentSummary
	err   error
}

func (c *countingStudents) FindSummary(ctx context.Context, id string) (*models.StudentSummary, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	row, ok := c.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func TestStudentDirectoryReadsThroughCache(t *testing.T) {
	repo := &countingStudents{rows: map[string]models.StudentSummary{
		"stu-1": {ID: "stu-1", FullName: "Asha Rao", RollNumber: "21CS042", Room: "B-214"},
	}}
	metrics := NewMetricsService()
	cache := NewCacheService(&memCache{data: map[string][]byte{}}, metrics, time.Minute, nil, true)
	dir := NewStudentDirectory(repo, cache, time.Minute, nil)
	ctx := context.Background()

	first, err := dir.Summary(ctx, "stu-1")
	require.NoError(t, err)
	second, err := dir.Summary(ctx, "stu-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Asha Rao", second.FullName)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestStudentDirectoryDegradesOnMissingStudent(t *testing.T) {
	dir := NewStudentDirectory(&countingStudents{}, NewCacheService(nil, nil, 0, nil, false), time.Minute, nil)

	summary, err := dir.Summary(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.StudentSummary{ID: "ghost"}, summary)

	broken := NewStudentDirectory(&countingStudents{err: errors.New("connection reset")}, nil, time.Minute, nil)
	_, err = broken.Summary(context.Background(), "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestStudentDirectoryForgetReloadsSummary(t *testing.T) {
	repo := &countingStudents{rows: map[string]models.StudentSummary{
		"stu-1": {ID: "stu-1", FullName: "Asha Rao", Room: "B-214"},
	}}
	store := &memCache{data: map[string][]byte{}}
	dir := NewStudentDirectory(repo, NewCacheService(store, NewMetricsService(), time.Minute, nil, true), time.Minute, nil)
	ctx := context.Background()

	_, err := dir.Summary(ctx, "stu-1")
	require.NoError(t, err)
	repo.rows["stu-1"] = models.StudentSummary{ID: "stu-1", FullName: "Asha Rao", Room: "C-101"}

	stale, err := dir.Summary(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "B-214", stale.Room)

	require.NoError(t, dir.Forget(ctx, "stu-1"))
	assert.NotContains(t, store.data, studentCacheKey("stu-1"))

	fresh, err := dir.Summary(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "C-101", fresh.Room)
	assert.Equal(t, 2, repo.calls)

	assert.ErrorIs(t, dir.Forget(ctx, ""), appErrors.ErrValidation)
	disabled := NewStudentDirectory(repo, NewCacheService(nil, nil, 0, nil, false), time.Minute, nil)
	assert.NoError(t, disabled.Forget(ctx, "stu-1"))
}
