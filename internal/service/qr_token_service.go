package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	"github.com/noah-isme/hostel-outing-api/internal/workflow"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
	"github.com/noah-isme/hostel-outing-api/pkg/qrcode"
)

// PassCheck is a gate pass that verified against its stored request.
type PassCheck struct {
	Outing    *models.OutingRequest
	Direction models.Direction
	Payload   qrcode.Payload
}

// ConsumeResult describes a pass that was scanned and persisted.
type ConsumeResult struct {
	Outing    *models.OutingRequest
	Direction models.Direction
	ScannedAt time.Time
}

// ScanHook runs against the request after a pass is consumed and before the
// change is written, so follow-up transitions commit in the same update.
type ScanHook func(o *models.OutingRequest, direction models.Direction, now time.Time) error

// QRTokenService mints, verifies and consumes gate passes.
type QRTokenService struct {
	store  outingStore
	codec  *qrcode.Codec
	policy PassPolicy
	deps
}

// NewQRTokenService constructs the service.
func NewQRTokenService(store outingStore, codec *qrcode.Codec, policy PassPolicy, opts ...Option) *QRTokenService {
	return &QRTokenService{store: store, codec: codec, policy: policy.withDefaults(), deps: newDeps(opts)}
}

// Mint signs a fresh pass for the request. An outgoing pass stops verifying
// after the sweep on the outing day, an incoming one after the sweep on the
// scheduled return day.
func (s *QRTokenService) Mint(o *models.OutingRequest, direction models.Direction) (workflow.MintedPass, error) {
	issuedAt := s.clock.Now().UTC()
	deadline := passDeadline(o, direction, s.policy.Sweep, s.policy.Location)
	token, payload, err := s.codec.Encode(qrcode.Payload{
		RequestID:  o.ID,
		StudentID:  o.StudentID,
		Direction:  string(direction),
		IssuedAt:   issuedAt,
		ValidUntil: &deadline,
	})
	if err != nil {
		return workflow.MintedPass{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint gate pass")
	}
	return workflow.MintedPass{Token: token, TokenID: payload.Nonce, IssuedAt: issuedAt, ValidUntil: payload.ValidUntil}, nil
}

// IssueOutgoing mints the outgoing pass for a fully approved request that
// never received one. Approval normally does this; the call exists for
// recovery.
func (s *QRTokenService) IssueOutgoing(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	return s.issueByID(ctx, id, models.DirectionOutgoing, "manual", actor)
}

// IssueIncoming mints the incoming pass once the student has checked out.
func (s *QRTokenService) IssueIncoming(ctx context.Context, id string, actor models.Actor) (*models.OutingRequest, error) {
	return s.issueByID(ctx, id, models.DirectionIncoming, "manual", actor)
}

func (s *QRTokenService) issueByID(ctx context.Context, id string, direction models.Direction, trigger string, actor models.Actor) (*models.OutingRequest, error) {
	outing, err := loadOuting(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := s.issue(ctx, outing, direction, trigger, actor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistError(err, "")
		}
		return nil, err
	}
	return outing, nil
}

// issue stamps and persists a pass on a loaded request. A lost version race
// is returned as sql.ErrNoRows so internal callers can retry.
func (s *QRTokenService) issue(ctx context.Context, o *models.OutingRequest, direction models.Direction, trigger string, actor models.Actor) error {
	if err := workflow.CanIssue(o, direction); err != nil {
		return err
	}
	pass, err := s.Mint(o, direction)
	if err != nil {
		return err
	}
	expected := o.Version
	if err := workflow.IssuePass(o, direction, pass); err != nil {
		return err
	}
	if err := s.store.Update(ctx, o, expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist gate pass")
	}
	s.passIssued(ctx, o, direction, trigger, actor)
	return nil
}

func (s *QRTokenService) passIssued(ctx context.Context, o *models.OutingRequest, direction models.Direction, trigger string, actor models.Actor) {
	s.metrics.RecordPassIssued(direction, trigger)
	s.notify(models.EventPassIssued, o, direction, "")
	s.emitAudit(ctx, actor, models.AuditActionPassIssue, trigger, o.ID, nil, map[string]interface{}{
		"direction": direction,
		"tokenId":   o.Token(direction).TokenID,
	})
}

// Regenerate replaces a live pass with a fresh one. The previous token then
// validates as expired.
func (s *QRTokenService) Regenerate(ctx context.Context, id string, direction models.Direction, actor models.Actor) (*models.OutingRequest, error) {
	if actor.Role != models.RoleWarden && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only wardens may regenerate gate passes")
	}
	outing, err := loadOuting(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	previous := outing.Token(direction).TokenID
	pass, err := s.Mint(outing, direction)
	if err != nil {
		return nil, err
	}
	expected := outing.Version
	if err := workflow.ReplacePass(outing, direction, pass); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, outing, expected); err != nil {
		return nil, persistError(err, "failed to persist regenerated gate pass")
	}
	s.metrics.RecordPassIssued(direction, "regenerate")
	s.notify(models.EventPassIssued, outing, direction, "")
	s.emitAudit(ctx, actor, models.AuditActionPassRegenerate, "qr-token-service", outing.ID,
		map[string]interface{}{"direction": direction, "tokenId": previous},
		map[string]interface{}{"direction": direction, "tokenId": pass.TokenID})
	return outing, nil
}

// Validate resolves a raw pass to its request without changing anything.
func (s *QRTokenService) Validate(ctx context.Context, raw string) (*PassCheck, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "gate pass is empty")
	}
	payload, decodeErr := s.codec.Decode(raw, s.clock.Now())
	if decodeErr != nil && !errors.Is(decodeErr, qrcode.ErrExpired) {
		return nil, appErrors.Clone(appErrors.ErrTokenInvalid, "gate pass does not verify")
	}
	direction := models.Direction(payload.Direction)

	outing, storedDirection, err := s.store.FindByToken(ctx, raw)
	switch {
	case err == nil:
		if storedDirection == direction && outing.ID == payload.RequestID && outing.Token(direction).Live() {
			if decodeErr != nil {
				return nil, appErrors.Clone(appErrors.ErrTokenExpired, fmt.Sprintf("%s pass expired", direction))
			}
			return &PassCheck{Outing: outing, Direction: direction, Payload: payload}, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		outing, err = loadOuting(ctx, s.store, payload.RequestID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up gate pass")
	}
	return nil, classifyStalePass(outing, direction, payload, decodeErr)
}

// classifyStalePass explains why a verified pass no longer matches the live
// state of its request.
func classifyStalePass(o *models.OutingRequest, direction models.Direction, payload qrcode.Payload, decodeErr error) error {
	if o.StudentID != payload.StudentID {
		return appErrors.Clone(appErrors.ErrTokenInvalid, "gate pass does not belong to this request")
	}
	pass := o.Token(direction)
	switch {
	case pass.TokenID == "":
		return appErrors.Clone(appErrors.ErrTokenInvalid, fmt.Sprintf("no %s pass issued for this request", direction))
	case pass.TokenID != payload.Nonce:
		return appErrors.Clone(appErrors.ErrTokenExpired, fmt.Sprintf("%s pass was superseded", direction))
	case pass.Consumed():
		return appErrors.Clone(appErrors.ErrTokenAlreadyUsed, fmt.Sprintf("%s pass already scanned at %s", direction, pass.ScannedAt.UTC().Format(time.RFC3339)))
	case pass.IsExpired || decodeErr != nil:
		return appErrors.Clone(appErrors.ErrTokenExpired, fmt.Sprintf("%s pass expired", direction))
	default:
		return appErrors.Clone(appErrors.ErrTokenInvalid, "gate pass does not match the stored pass")
	}
}

// Consume validates the pass and marks it scanned at most once. hook may
// apply follow-up transitions that are committed in the same write. A lost
// race re-validates, so a concurrent duplicate scan reports AlreadyUsed;
// after ConflictRetries lost races the scan fails with ALREADY_HANDLED.
func (s *QRTokenService) Consume(ctx context.Context, raw, scannedBy, location string, hook ScanHook) (*ConsumeResult, error) {
	for attempt := 0; attempt < s.policy.ConflictRetries; attempt++ {
		check, err := s.Validate(ctx, raw)
		if err != nil {
			return nil, err
		}
		outing := check.Outing
		expected := outing.Version
		now := s.clock.Now()
		if err := workflow.ConsumePass(outing, check.Direction, scannedBy, location, now); err != nil {
			return nil, err
		}
		if hook != nil {
			if err := hook(outing, check.Direction, now); err != nil {
				return nil, err
			}
		}
		if err := s.store.Update(ctx, outing, expected); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Debug("gate pass consume lost race", zap.String("outing_id", outing.ID), zap.Int("attempt", attempt+1))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record gate scan")
		}
		return &ConsumeResult{Outing: outing, Direction: check.Direction, ScannedAt: now}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrAlreadyHandled, "gate pass is being processed elsewhere")
}
