package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/dto"
	"github.com/noah-isme/hostel-outing-api/internal/middleware"
	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
	"github.com/noah-isme/hostel-outing-api/pkg/export"
)

type outingServiceMock struct {
	outing    *models.OutingRequest
	err       error
	lastQuery dto.OutingQuery
	lastActor models.Actor
	decision  dto.DecisionRequest
}

func (m *outingServiceMock) Create(ctx context.Context, req dto.CreateOutingRequest, actor models.Actor) (*models.OutingRequest, error) {
	m.lastActor = actor
	return m.outing, m.err
}

func (m *outingServiceMock) Get(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	m.lastActor = actor
	return m.outing, m.err
}

func (m *outingServiceMock) List(ctx context.Context, query dto.OutingQuery, actor models.Actor) ([]models.OutingRequest, *models.Pagination, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.OutingRequest{*m.outing}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *outingServiceMock) Decide(ctx context.Context, id string, req dto.DecisionRequest, actor models.Actor) (*models.OutingRequest, error) {
	m.decision = req
	return m.outing, m.err
}

type passServiceMock struct {
	direction models.Direction
	outing    *models.OutingRequest
	err       error
}

func (m *passServiceMock) Regenerate(ctx context.Context, id string, direction models.Direction, actor models.Actor) (*models.OutingRequest, error) {
	m.direction = direction
	return m.outing, m.err
}

func (m *passServiceMock) IssueOutgoing(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	m.direction = models.DirectionOutgoing
	return m.outing, m.err
}

func (m *passServiceMock) IssueIncoming(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	m.direction = models.DirectionIncoming
	return m.outing, m.err
}

type rendererMock struct {
	slip export.PassSlip
}

func (r *rendererMock) Render(slip export.PassSlip) ([]byte, error) {
	r.slip = slip
	return []byte("%PDF-1.3 stub"), nil
}

func approvedOutingFixture() *models.OutingRequest {
	token := "op1.outgoing.body.sig"
	issued := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	return &models.OutingRequest{
		ID:           "out-1",
		StudentID:    "stu-1",
		OutingDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		OutTime:      "10:00",
		ReturnDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReturnTime:   "18:00",
		Category:     models.OutingCategoryNormal,
		Status:       models.OutingStatusApproved,
		CurrentLevel: models.LevelCompleted,
		QROutgoing:   models.QRToken{Token: &token, TokenID: "n1", IssuedAt: &issued},
		Flow: models.ApprovalFlow{
			{Level: models.LevelWarden, Decision: models.DecisionApprove, ApproverID: "warden-1", Timestamp: issued},
		},
	}
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestOutingHandlerGetHidesTokensFromApprovers(t *testing.T) {
	svc := &outingServiceMock{outing: approvedOutingFixture()}
	handler := NewOutingHandler(svc, &passServiceMock{}, nil, nil, time.UTC)

	c, w := newTestContext(http.MethodGet, "/outings/out-1", "", &models.JWTClaims{UserID: "floor-1", Role: models.RoleFloorIncharge})
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	passes := decodeData(t, w)["qrCode"].(map[string]interface{})
	assert.NotContains(t, passes["outgoing"], "token")

	c, w = newTestContext(http.MethodGet, "/outings/out-1", "", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "out-1", data["id"])
	outgoing := data["qrCode"].(map[string]interface{})["outgoing"].(map[string]interface{})
	assert.Equal(t, "op1.outgoing.body.sig", outgoing["token"])
}

func TestOutingHandlerListParsesFilters(t *testing.T) {
	svc := &outingServiceMock{outing: approvedOutingFixture()}
	handler := NewOutingHandler(svc, &passServiceMock{}, nil, nil, time.UTC)

	c, w := newTestContext(http.MethodGet, "/outings?status=approved,late_return&level=warden&from=2026-03-01&page=2&pageSize=5", "",
		&models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden})
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.OutingStatus{models.OutingStatusApproved, models.OutingStatusLateReturn}, svc.lastQuery.Status)
	assert.Equal(t, models.LevelWarden, svc.lastQuery.Level)
	require.NotNil(t, svc.lastQuery.DateFrom)
	assert.Nil(t, svc.lastQuery.DateTo)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 5, svc.lastQuery.PageSize)

	c, w = newTestContext(http.MethodGet, "/outings?from=10-03-2026", "", &models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden})
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutingHandlerDecideMapsConflicts(t *testing.T) {
	svc := &outingServiceMock{err: appErrors.Clone(appErrors.ErrStageMismatch, "expected hostel-incharge, got warden")}
	handler := NewOutingHandler(svc, &passServiceMock{}, nil, nil, time.UTC)

	c, w := newTestContext(http.MethodPost, "/outings/out-1/decision", `{"decision":"APPROVE"}`, &models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden})
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "STAGE_MISMATCH")
	assert.Equal(t, models.DecisionApprove, svc.decision.Decision)

	c, w = newTestContext(http.MethodPost, "/outings/out-1/decision", `{"decision":`, &models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden})
	handler.Decide(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/outings/out-1/decision", `{"decision":"APPROVE"}`, nil)
	handler.Decide(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOutingHandlerRegenerateAndIssue(t *testing.T) {
	passes := &passServiceMock{outing: approvedOutingFixture()}
	handler := NewOutingHandler(&outingServiceMock{}, passes, nil, nil, time.UTC)
	warden := &models.JWTClaims{UserID: "warden-1", Role: models.RoleWarden}

	c, w := newTestContext(http.MethodPost, "/outings/out-1/passes/regenerate", `{"direction":"Incoming"}`, warden)
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.Regenerate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DirectionIncoming, passes.direction)

	c, w = newTestContext(http.MethodPost, "/outings/out-1/passes/sideways", "", warden)
	c.Params = gin.Params{{Key: "id", Value: "out-1"}, {Key: "direction", Value: "sideways"}}
	handler.Issue(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/outings/out-1/passes/outgoing", "", warden)
	c.Params = gin.Params{{Key: "id", Value: "out-1"}, {Key: "direction", Value: "outgoing"}}
	handler.Issue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DirectionOutgoing, passes.direction)
}

func TestOutingHandlerPassSlip(t *testing.T) {
	renderer := &rendererMock{}
	svc := &outingServiceMock{outing: approvedOutingFixture()}
	handler := NewOutingHandler(svc, &passServiceMock{}, nil, renderer, time.UTC)

	c, w := newTestContext(http.MethodGet, "/outings/out-1/pass", "", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, FullName: "Asha"})
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.PassSlip(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "outing-out-1-outgoing.pdf")
	assert.Equal(t, "op1.outgoing.body.sig", renderer.slip.Token)
	assert.Equal(t, "stu-1", renderer.slip.StudentName)
	require.Len(t, renderer.slip.Approvals, 1)
	assert.Equal(t, "warden", renderer.slip.Approvals[0].Level)

	pending := approvedOutingFixture()
	pending.Status = models.OutingStatusPending
	svc.outing = pending
	c, w = newTestContext(http.MethodGet, "/outings/out-1/pass", "", &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "id", Value: "out-1"}}
	handler.PassSlip(c)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}
