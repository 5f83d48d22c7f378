package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-outing-api/internal/dto"
	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
	"github.com/noah-isme/hostel-outing-api/pkg/export"
	"github.com/noah-isme/hostel-outing-api/pkg/response"
)

type outingService interface {
	Create(ctx context.Context, req dto.CreateOutingRequest, actor models.Actor) (*models.OutingRequest, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error)
	List(ctx context.Context, query dto.OutingQuery, actor models.Actor) ([]models.OutingRequest, *models.Pagination, error)
	Decide(ctx context.Context, id string, req dto.DecisionRequest, actor models.Actor) (*models.OutingRequest, error)
}

type passService interface {
	Regenerate(ctx context.Context, id string, direction models.Direction, actor models.Actor) (*models.OutingRequest, error)
	IssueOutgoing(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error)
	IssueIncoming(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error)
}

type studentDirectory interface {
	Summary(ctx context.Context, id string) (models.StudentSummary, error)
}

type slipRenderer interface {
	Render(slip export.PassSlip) ([]byte, error)
}

// OutingHandler exposes outing request endpoints.
type OutingHandler struct {
	outings  outingService
	passes   passService
	students studentDirectory
	renderer slipRenderer
	loc      *time.Location
}

// NewOutingHandler constructs the handler.
func NewOutingHandler(outings outingService, passes passService, students studentDirectory, renderer slipRenderer, loc *time.Location) *OutingHandler {
	if loc == nil {
		loc = time.Local
	}
	return &OutingHandler{outings: outings, passes: passes, students: students, renderer: renderer, loc: loc}
}

// Create godoc
// @Summary Request an outing
// @Tags Outings
// @Accept json
// @Produce json
// @Param payload body dto.CreateOutingRequest true "Outing request"
// @Success 201 {object} response.Envelope
// @Router /outings [post]
func (h *OutingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateOutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid outing payload"))
		return
	}
	outing, err := h.outings.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOutingResponse(outing, true))
}

// List godoc
// @Summary List outing requests
// @Tags Outings
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param level query string false "Current approval level"
// @Param studentId query string false "Student ID"
// @Param from query string false "Outing date from (YYYY-MM-DD)"
// @Param to query string false "Outing date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /outings [get]
func (h *OutingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query, err := parseOutingQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	outings, pagination, err := h.outings.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.OutingResponse, 0, len(outings))
	for i := range outings {
		items = append(items, dto.NewOutingResponse(&outings[i], canSeeTokens(actor, outings[i].StudentID)))
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get outing request detail
// @Tags Outings
// @Produce json
// @Param id path string true "Outing ID"
// @Success 200 {object} response.Envelope
// @Router /outings/{id} [get]
func (h *OutingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	outing, err := h.outings.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOutingResponse(outing, canSeeTokens(actor, outing.StudentID)), nil)
}

// Decide godoc
// @Summary Approve or deny the current stage
// @Tags Outings
// @Accept json
// @Produce json
// @Param id path string true "Outing ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /outings/{id}/decision [post]
func (h *OutingHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	outing, err := h.outings.Decide(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOutingResponse(outing, canSeeTokens(actor, outing.StudentID)), nil)
}

// Regenerate godoc
// @Summary Replace a live gate pass
// @Tags Gate Passes
// @Accept json
// @Produce json
// @Param id path string true "Outing ID"
// @Param payload body dto.RegeneratePassRequest true "Direction"
// @Success 200 {object} response.Envelope
// @Router /outings/{id}/passes/regenerate [post]
func (h *OutingHandler) Regenerate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RegeneratePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid regenerate payload"))
		return
	}
	direction := models.Direction(strings.ToLower(strings.TrimSpace(string(req.Direction))))
	if !direction.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "direction must be outgoing or incoming"))
		return
	}
	outing, err := h.passes.Regenerate(c.Request.Context(), c.Param("id"), direction, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOutingResponse(outing, true), nil)
}

// Issue godoc
// @Summary Issue a missing gate pass
// @Tags Gate Passes
// @Produce json
// @Param id path string true "Outing ID"
// @Param direction path string true "outgoing or incoming"
// @Success 200 {object} response.Envelope
// @Router /outings/{id}/passes/{direction} [post]
func (h *OutingHandler) Issue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var (
		outing *models.OutingRequest
		err    error
	)
	switch models.Direction(strings.ToLower(c.Param("direction"))) {
	case models.DirectionOutgoing:
		outing, err = h.passes.IssueOutgoing(c.Request.Context(), c.Param("id"), actor)
	case models.DirectionIncoming:
		outing, err = h.passes.IssueIncoming(c.Request.Context(), c.Param("id"), actor)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "direction must be outgoing or incoming")
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewOutingResponse(outing, true), nil)
}

// PassSlip godoc
// @Summary Download the gate pass slip
// @Tags Gate Passes
// @Produce application/pdf
// @Param id path string true "Outing ID"
// @Param direction query string false "outgoing or incoming; defaults to the live pass"
// @Success 200 {file} binary
// @Router /outings/{id}/pass [get]
func (h *OutingHandler) PassSlip(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.renderer == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pass renderer not configured"))
		return
	}
	ctx := c.Request.Context()
	outing, err := h.outings.Get(ctx, c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outing.Status != models.OutingStatusApproved && outing.Status != models.OutingStatusLateReturn {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "outing request is not approved"))
		return
	}

	direction := models.Direction(strings.ToLower(c.Query("direction")))
	if direction == "" {
		direction = models.DirectionOutgoing
		if !outing.QROutgoing.Live() && outing.QRIncoming.Live() {
			direction = models.DirectionIncoming
		}
	}
	if !direction.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "direction must be outgoing or incoming"))
		return
	}

	student := models.StudentSummary{ID: outing.StudentID}
	if h.students != nil {
		if summary, err := h.students.Summary(ctx, outing.StudentID); err == nil {
			student = summary
		}
	}
	slip := h.buildSlip(outing, student, direction, canSeeTokens(actor, outing.StudentID))
	pdf, err := h.renderer.Render(slip)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pass slip"))
		return
	}
	response.Attachment(c, fmt.Sprintf("outing-%s-%s.pdf", outing.ID, direction), "application/pdf", pdf)
}

func (h *OutingHandler) buildSlip(o *models.OutingRequest, student models.StudentSummary, direction models.Direction, withToken bool) export.PassSlip {
	slip := export.PassSlip{
		OutingID:    o.ID,
		StudentName: student.FullName,
		RollNumber:  student.RollNumber,
		Room:        student.Room,
		Category:    string(o.Category),
		Status:      string(o.Status),
		Destination: o.Destination,
		LeaveAt:     o.OutingDate.Format("2006-01-02") + " " + o.OutTime,
		ReturnBy:    o.ReturnDate.Format("2006-01-02") + " " + o.ReturnTime,
		Direction:   string(direction),
		GeneratedAt: time.Now().In(h.loc),
	}
	if slip.StudentName == "" {
		slip.StudentName = o.StudentID
	}
	pass := o.Token(direction)
	if withToken && pass.Live() {
		slip.Token = *pass.Token
		slip.ValidUntil = pass.ValidUntil
	}
	for _, entry := range o.Flow {
		by := entry.Approver
		if by == "" {
			by = entry.ApproverID
		}
		slip.Approvals = append(slip.Approvals, export.ApprovalLine{
			Level:    entry.Level.Label(),
			Decision: string(entry.Decision),
			By:       by,
			At:       entry.Timestamp,
			Remarks:  entry.Remarks,
		})
	}
	return slip
}

func parseOutingQuery(c *gin.Context) (dto.OutingQuery, error) {
	query := dto.OutingQuery{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Level:     models.Level(strings.ToUpper(strings.TrimSpace(c.Query("level")))),
	}
	if query.Level != "" && !query.Level.Valid() {
		return query, appErrors.Clone(appErrors.ErrValidation, "unknown level")
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				query.Status = append(query.Status, models.OutingStatus(part))
			}
		}
	}
	for key, target := range map[string]**time.Time{"from": &query.DateFrom, "to": &query.DateTo} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be YYYY-MM-DD", key))
		}
		*target = &parsed
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "page must be a number")
		}
		query.Page = page
	}
	if raw := c.Query("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "pageSize must be a number")
		}
		query.PageSize = size
	}
	return query, nil
}
