package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/dto"
	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/workflow"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

type studentLookup interface {
	Summary(ctx context.Context, id string) (models.StudentSummary, error)
}

// GateScanService records check-outs and check-ins at the hostel gate.
type GateScanService struct {
	passes   *QRTokenService
	students studentLookup
	policy   PassPolicy
	deps
}

// NewGateScanService constructs the gate scan service.
func NewGateScanService(passes *QRTokenService, students studentLookup, policy PassPolicy, opts ...Option) *GateScanService {
	return &GateScanService{passes: passes, students: students, policy: policy.withDefaults(), deps: newDeps(opts)}
}

func canOperateGate(role models.UserRole) bool {
	return role == models.RoleSecurity || role == models.RoleWarden || role == models.RoleAdmin
}

// Scan consumes a presented pass. Outgoing scans close to the scheduled
// return also mint the incoming pass; incoming scans outside the grace
// window mark the request LATE_RETURN. Both happen in the scan's write.
func (s *GateScanService) Scan(ctx context.Context, raw string, actor models.Actor, location string) (*dto.ScanResponse, error) {
	if !canOperateGate(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only gate staff may scan passes")
	}

	var incomingIssued, late bool
	hook := func(o *models.OutingRequest, direction models.Direction, now time.Time) error {
		incomingIssued, late = false, false
		switch direction {
		case models.DirectionOutgoing:
			due, err := workflow.IncomingDue(o, s.policy.Location, s.policy.PreReturnOffset, now)
			if err != nil || !due || workflow.CanIssue(o, models.DirectionIncoming) != nil {
				return nil
			}
			pass, err := s.passes.Mint(o, models.DirectionIncoming)
			if err != nil {
				s.logger.Warn("failed to mint incoming pass at check-out", zap.String("outing_id", o.ID), zap.Error(err))
				return nil
			}
			if err := workflow.IssuePass(o, models.DirectionIncoming, pass); err != nil {
				return nil
			}
			incomingIssued = true
		case models.DirectionIncoming:
			overdue, err := workflow.LateReturn(o, s.policy.Location, s.policy.LateGrace, now)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid scheduled return")
			}
			if overdue {
				o.Status = models.OutingStatusLateReturn
				late = true
			}
		}
		return nil
	}

	result, err := s.passes.Consume(ctx, raw, actor.ID, location, hook)
	if err != nil {
		s.metrics.RecordGateScan("", appErrors.FromError(err).Code)
		s.logger.Info("gate scan rejected", zap.String("actor_id", actor.ID), zap.String("location", location), zap.Error(err))
		return nil, err
	}
	outing := result.Outing
	s.metrics.RecordGateScan(result.Direction, "OK")
	s.notify(models.EventGateScanned, outing, result.Direction, location)
	if incomingIssued {
		s.passes.passIssued(ctx, outing, models.DirectionIncoming, "scan", models.SystemActor)
	}
	s.emitAudit(ctx, actor, models.AuditActionGateScan, location, outing.ID, nil, map[string]interface{}{
		"direction":  result.Direction,
		"scannedAt":  result.ScannedAt.UTC(),
		"lateReturn": late,
	})
	s.logger.Info("gate scan recorded",
		zap.String("outing_id", outing.ID),
		zap.String("direction", string(result.Direction)),
		zap.Bool("late_return", late),
		zap.Bool("incoming_issued", incomingIssued))

	scanTime := result.ScannedAt.UTC()
	resp := s.describe(ctx, outing, result.Direction)
	resp.ScanTime = &scanTime
	resp.LateReturn = late
	resp.IncomingIssued = incomingIssued
	return resp, nil
}

// Check resolves a pass for display without consuming it.
func (s *GateScanService) Check(ctx context.Context, raw string, actor models.Actor) (*dto.ScanResponse, error) {
	if !canOperateGate(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only gate staff may validate passes")
	}
	check, err := s.passes.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, check.Outing, check.Direction), nil
}

func (s *GateScanService) describe(ctx context.Context, o *models.OutingRequest, direction models.Direction) *dto.ScanResponse {
	student := models.StudentSummary{ID: o.StudentID}
	if s.students != nil {
		summary, err := s.students.Summary(ctx, o.StudentID)
		if err != nil {
			s.logger.Warn("student lookup failed", zap.String("student_id", o.StudentID), zap.Error(err))
		} else {
			student = summary
		}
	}
	return &dto.ScanResponse{
		OutingID:   o.ID,
		Direction:  direction,
		Student:    student,
		OutingDate: o.OutingDate.Format("2006-01-02"),
		OutTime:    o.OutTime,
		ReturnDate: o.ReturnDate.Format("2006-01-02"),
		ReturnTime: o.ReturnTime,
		Status:     o.Status,
	}
}
