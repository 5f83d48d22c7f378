package workflow

import (
	"fmt"
	"time"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

// MintedPass is a freshly signed gate pass ready to be stamped on a request.
type MintedPass struct {
	Token      string
	TokenID    string
	IssuedAt   time.Time
	ValidUntil *time.Time
}

// CanIssue checks the issuance preconditions for a direction without
// mutating the request.
func CanIssue(o *models.OutingRequest, direction models.Direction) error {
	switch direction {
	case models.DirectionOutgoing:
		if o.Status != models.OutingStatusApproved || o.CurrentLevel != models.LevelCompleted {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "outgoing pass requires a fully approved request")
		}
		if o.QROutgoing.Issued() {
			return appErrors.Clone(appErrors.ErrTokenAlreadyIssued, "outgoing pass already issued")
		}
	case models.DirectionIncoming:
		if o.Status != models.OutingStatusApproved {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "incoming pass requires an approved request")
		}
		if o.CheckOut.Event == nil || !o.QROutgoing.Consumed() {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "incoming pass requires a recorded check-out")
		}
		if o.QRIncoming.Issued() {
			return appErrors.Clone(appErrors.ErrTokenAlreadyIssued, "incoming pass already issued")
		}
		if o.QRIncoming.IsExpired {
			return appErrors.Clone(appErrors.ErrTokenExpired, "incoming pass window closed")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown direction %q", direction))
	}
	return nil
}

// IssuePass stamps a minted pass on the request after re-checking the
// issuance preconditions.
func IssuePass(o *models.OutingRequest, direction models.Direction, pass MintedPass) error {
	if err := CanIssue(o, direction); err != nil {
		return err
	}
	stamp(o.Token(direction), pass)
	return nil
}

// ReplacePass swaps a live pass for a freshly minted one. The previous token
// stops verifying because its nonce no longer matches.
func ReplacePass(o *models.OutingRequest, direction models.Direction, pass MintedPass) error {
	if !direction.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown direction %q", direction))
	}
	current := o.Token(direction)
	if !current.Live() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("no live %s pass to regenerate", direction))
	}
	stamp(current, pass)
	return nil
}

// ConsumePass marks the pass scanned and records the matching gate event.
func ConsumePass(o *models.OutingRequest, direction models.Direction, scannedBy, location string, now time.Time) error {
	pass := o.Token(direction)
	switch {
	case pass.Consumed():
		return appErrors.Clone(appErrors.ErrTokenAlreadyUsed, fmt.Sprintf("%s pass already scanned", direction))
	case pass.IsExpired:
		return appErrors.Clone(appErrors.ErrTokenExpired, fmt.Sprintf("%s pass expired", direction))
	case !pass.Live():
		return appErrors.Clone(appErrors.ErrTokenInvalid, fmt.Sprintf("no %s pass issued", direction))
	}

	event := &models.GateEvent{Time: now, ScannedBy: scannedBy, Location: location}
	switch direction {
	case models.DirectionOutgoing:
		if o.CheckOut.Event != nil {
			return appErrors.Clone(appErrors.ErrTokenAlreadyUsed, "check-out already recorded")
		}
		o.CheckOut = models.NullableGateEvent{Event: event}
	case models.DirectionIncoming:
		if o.CheckOut.Event == nil {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "check-in requires a recorded check-out")
		}
		if o.CheckIn.Event != nil {
			return appErrors.Clone(appErrors.ErrTokenAlreadyUsed, "check-in already recorded")
		}
		o.CheckIn = models.NullableGateEvent{Event: event}
	}

	ts := now
	pass.Token = nil
	pass.IsExpired = true
	pass.ScannedAt = &ts
	pass.ScannedBy = scannedBy
	return nil
}

// ExpirePasses force-expires both directions regardless of scan status. It
// reports whether anything changed.
func ExpirePasses(o *models.OutingRequest) bool {
	changed := false
	for _, direction := range []models.Direction{models.DirectionOutgoing, models.DirectionIncoming} {
		pass := o.Token(direction)
		if pass.IsExpired {
			continue
		}
		pass.Token = nil
		pass.IsExpired = true
		changed = true
	}
	return changed
}

// IncomingDue reports whether the incoming pass should exist by now.
func IncomingDue(o *models.OutingRequest, loc *time.Location, offset time.Duration, now time.Time) (bool, error) {
	returnAt, err := o.ReturnInstant(loc)
	if err != nil {
		return false, err
	}
	return !now.Before(returnAt.Add(-offset)), nil
}

// LateReturn reports whether a check-in at scanAt falls outside the grace
// window around the scheduled return.
func LateReturn(o *models.OutingRequest, loc *time.Location, grace time.Duration, scanAt time.Time) (bool, error) {
	returnAt, err := o.ReturnInstant(loc)
	if err != nil {
		return false, err
	}
	diff := scanAt.Sub(returnAt)
	if diff < 0 {
		diff = -diff
	}
	return diff > grace, nil
}

func stamp(t *models.QRToken, pass MintedPass) {
	token := pass.Token
	issued := pass.IssuedAt
	*t = models.QRToken{
		Token:    &token,
		TokenID:  pass.TokenID,
		IssuedAt: &issued,
	}
	if pass.ValidUntil != nil {
		until := *pass.ValidUntil
		t.ValidUntil = &until
	}
}
