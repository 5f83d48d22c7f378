package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/dto"
	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/workflow"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

// OutingService handles intake, queries and approval decisions.
type OutingService struct {
	store     outingStore
	passes    *QRTokenService
	validator *validator.Validate
	policy    PassPolicy
	deps
}

// NewOutingService constructs the outing service.
func NewOutingService(store outingStore, passes *QRTokenService, validate *validator.Validate, policy PassPolicy, opts ...Option) *OutingService {
	if validate == nil {
		validate = validator.New()
	}
	return &OutingService{store: store, passes: passes, validator: validate, policy: policy.withDefaults(), deps: newDeps(opts)}
}

// Create files a new request on behalf of the student.
func (s *OutingService) Create(ctx context.Context, req dto.CreateOutingRequest, actor models.Actor) (*models.OutingRequest, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request outings")
	}
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	if req.Category == "" {
		req.Category = string(models.OutingCategoryNormal)
	}
	req.Destination = strings.TrimSpace(req.Destination)
	req.Purpose = strings.TrimSpace(req.Purpose)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid outing request payload")
	}

	loc := s.policy.Location
	outingDate, _ := time.Parse("2006-01-02", req.OutingDate)
	returnDate, _ := time.Parse("2006-01-02", req.ReturnDate)
	outing := &models.OutingRequest{
		StudentID:   actor.ID,
		OutingDate:  outingDate,
		OutTime:     req.OutTime,
		ReturnDate:  returnDate,
		ReturnTime:  req.ReturnTime,
		Category:    models.OutingCategory(req.Category),
		Destination: req.Destination,
		Purpose:     req.Purpose,
	}

	now := s.clock.Now()
	if outingDate.Before(calendarDay(now, loc)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outing date cannot be in the past")
	}
	outAt, err := outing.OutInstant(loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid out time")
	}
	returnAt, err := outing.ReturnInstant(loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return time")
	}
	if !returnAt.After(outAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "return must be after departure")
	}

	workflow.NewRequest(outing)
	outing.CreatedAt = now.UTC()
	if err := s.store.Create(ctx, outing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create outing request")
	}
	s.emitAudit(ctx, actor, models.AuditActionOutingCreate, "outing-service", outing.ID, nil, outing)
	s.logger.Info("outing request created",
		zap.String("outing_id", outing.ID),
		zap.String("student_id", outing.StudentID),
		zap.String("category", string(outing.Category)))
	return outing, nil
}

// Get returns a request. Students only see their own.
func (s *OutingService) Get(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	outing, err := loadOuting(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && outing.StudentID != actor.ID {
		return nil, appErrors.ErrForbidden
	}
	return outing, nil
}

// List returns requests visible to the actor.
func (s *OutingService) List(ctx context.Context, query dto.OutingQuery, actor models.Actor) ([]models.OutingRequest, *models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	filter := models.OutingFilter{
		StudentID: query.StudentID,
		Status:    query.Status,
		Level:     query.Level,
		DateFrom:  query.DateFrom,
		DateTo:    query.DateTo,
		Limit:     size,
		Offset:    (page - 1) * size,
	}

	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.ID
	case models.RoleFloorIncharge, models.RoleHostelIncharge:
		level, _ := actor.Role.ApprovalLevel()
		filter.Level = level
		filter.Status = []models.OutingStatus{models.OutingStatusPending}
	case models.RoleSecurity:
		filter.Status = []models.OutingStatus{models.OutingStatusApproved}
	case models.RoleWarden, models.RoleAdmin:
		// unrestricted
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	outings, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outing requests")
	}
	return outings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Decide applies an approver's verdict. Final approval mints the outgoing
// pass into the same write, so an approved request is never persisted
// without one.
func (s *OutingService) Decide(ctx context.Context, id string, req dto.DecisionRequest, actor models.Actor) (*models.OutingRequest, error) {
	req.Decision = models.Decision(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	outing, err := loadOuting(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	expected := outing.Version
	before := outing.Flags

	outcome, err := workflow.ApplyDecision(outing, actor, req.Decision, req.Remarks, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !outcome.Changed {
		return outing, nil
	}
	if outcome.Finalized {
		pass, err := s.passes.Mint(outing, models.DirectionOutgoing)
		if err != nil {
			return nil, err
		}
		if err := workflow.IssuePass(outing, models.DirectionOutgoing, pass); err != nil {
			return nil, err
		}
	}
	if err := workflow.CheckInvariants(outing); err != nil {
		s.logger.Error("decision would break outing invariants", zap.String("outing_id", outing.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "inconsistent outing request")
	}
	if err := s.store.Update(ctx, outing, expected); err != nil {
		return nil, persistError(err, "failed to persist decision")
	}

	s.metrics.RecordDecision(outcome.From, req.Decision)
	s.emitAudit(ctx, actor, models.AuditActionOutingDecision, "outing-service", outing.ID, before, outing.Flags)
	switch {
	case outcome.Denied:
		s.notify(models.EventOutingDenied, outing, "", "")
	case outcome.Finalized:
		s.notify(models.EventOutingApproved, outing, "", "")
		s.passes.passIssued(ctx, outing, models.DirectionOutgoing, "approval", actor)
	default:
		s.notify(models.EventOutingAdvanced, outing, "", "")
	}
	s.logger.Info("outing decision applied",
		zap.String("outing_id", outing.ID),
		zap.String("level", outcome.From.Label()),
		zap.String("decision", string(req.Decision)),
		zap.String("current_level", outing.CurrentLevel.Label()))
	return outing, nil
}
