package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

// AutoExpireRemarks is recorded on requests denied by the daily sweep.
const AutoExpireRemarks = "auto-expired: no decision before the outing day ended"

// Outcome describes what ApplyDecision did to the request.
type Outcome struct {
	Changed   bool
	From      models.Level
	To        models.Level
	Finalized bool
	Denied    bool
}

// NewRequest prepares a fresh pending request for the category.
func NewRequest(o *models.OutingRequest) {
	o.Status = models.OutingStatusPending
	o.CurrentLevel = o.Category.FirstLevel()
	o.Flags = models.ApprovalFlags{}
	o.Flow = models.ApprovalFlow{}
	o.QROutgoing = models.QRToken{}
	o.QRIncoming = models.QRToken{}
	o.CheckOut = models.NullableGateEvent{}
	o.CheckIn = models.NullableGateEvent{}
}

// ApplyDecision applies an approver's verdict to the current stage.
// Resubmitting a verdict already recorded for the same approver and stage is
// a no-op (Outcome.Changed is false). Any other verdict on a stage that has
// already been decided fails with ALREADY_HANDLED; a stage not yet reached
// fails with STAGE_MISMATCH.
func ApplyDecision(o *models.OutingRequest, actor models.Actor, decision models.Decision, remarks string, now time.Time) (Outcome, error) {
	if !decision.Valid() {
		return Outcome{}, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or DENY")
	}
	level, ok := actor.Role.ApprovalLevel()
	if !ok {
		return Outcome{}, CanAct(o, actor.Role)
	}
	if prior := findDuplicate(o.Flow, actor.ID, level); prior != nil && prior.Decision == decision {
		return Outcome{From: o.CurrentLevel, To: o.CurrentLevel}, nil
	}
	if o.Terminal() {
		return Outcome{}, appErrors.Clone(appErrors.ErrAlreadyTerminal, fmt.Sprintf("outing request already %s", strings.ToLower(string(o.Status))))
	}
	flag := o.Flags.Get(level)
	if flag.Decided() {
		return Outcome{}, appErrors.Clone(appErrors.ErrAlreadyHandled, fmt.Sprintf("%s already decided", level.Label()))
	}
	if err := CanAct(o, actor.Role); err != nil {
		return Outcome{}, err
	}
	if decision == models.DecisionApprove {
		if err := checkPrerequisites(o, level); err != nil {
			return Outcome{}, err
		}
	}

	remarks = strings.TrimSpace(remarks)
	ts := now
	*flag = models.ApprovalFlag{IsApproved: decision == models.DecisionApprove, Timestamp: &ts, Remarks: remarks}
	o.Flow = append(o.Flow, models.ApprovalEntry{
		Level:      level,
		Decision:   decision,
		Timestamp:  now,
		Remarks:    remarks,
		ApproverID: actor.ID,
		Approver:   actor.Name,
	})

	out := Outcome{Changed: true, From: level}
	switch {
	case decision == models.DecisionDeny:
		o.Status = models.OutingStatusDenied
		o.CurrentLevel = models.LevelCompleted
		out.Denied = true
	case level == models.LevelWarden:
		o.Status = models.OutingStatusApproved
		o.CurrentLevel = models.LevelCompleted
		out.Finalized = true
	default:
		o.CurrentLevel = level.Next()
	}
	out.To = o.CurrentLevel
	return out, nil
}

// AutoExpire denies a request that is still pending. It reports whether the
// request changed.
func AutoExpire(o *models.OutingRequest, now time.Time) bool {
	if o.Status != models.OutingStatusPending || o.CurrentLevel == models.LevelCompleted {
		return false
	}
	level := o.CurrentLevel
	if flag := o.Flags.Get(level); flag != nil && !flag.Decided() {
		ts := now
		*flag = models.ApprovalFlag{IsApproved: false, Timestamp: &ts, Remarks: AutoExpireRemarks}
	}
	o.Flow = append(o.Flow, models.ApprovalEntry{
		Level:      level,
		Decision:   models.DecisionDeny,
		Timestamp:  now,
		Remarks:    AutoExpireRemarks,
		ApproverID: models.SystemActor.ID,
		Approver:   models.SystemActor.Name,
	})
	o.Status = models.OutingStatusDenied
	o.CurrentLevel = models.LevelCompleted
	return true
}

// CheckInvariants verifies the structural rules every persisted request
// must satisfy.
func CheckInvariants(o *models.OutingRequest) error {
	last := -1
	for _, entry := range o.Flow {
		idx := entry.Level.Index()
		if idx < 0 || entry.Level == models.LevelCompleted {
			return fmt.Errorf("approval flow contains invalid level %q", entry.Level)
		}
		if idx < last {
			return fmt.Errorf("approval flow out of order at %s", entry.Level.Label())
		}
		if o.Category == models.OutingCategoryEmergency && entry.Level == models.LevelFloorIncharge {
			return fmt.Errorf("emergency request carries a floor-incharge entry")
		}
		last = idx
	}
	if o.Status == models.OutingStatusDenied && o.CurrentLevel != models.LevelCompleted {
		return fmt.Errorf("denied request not completed")
	}
	if o.Status == models.OutingStatusDenied && (o.QROutgoing.Issued() || o.QRIncoming.Issued()) {
		return fmt.Errorf("denied request carries a gate pass")
	}
	if o.QRIncoming.Issued() && o.CheckOut.Event == nil {
		return fmt.Errorf("incoming pass issued before check-out")
	}
	if o.CheckIn.Event != nil && o.CheckOut.Event == nil {
		return fmt.Errorf("check-in recorded without check-out")
	}
	return nil
}

func checkPrerequisites(o *models.OutingRequest, level models.Level) error {
	floorOK := o.Category == models.OutingCategoryEmergency || o.Flags.FloorIncharge.IsApproved
	switch level {
	case models.LevelHostelIncharge:
		if !floorOK {
			return appErrors.Clone(appErrors.ErrMissingPrerequisite, "floor-incharge approval missing")
		}
	case models.LevelWarden:
		if !floorOK {
			return appErrors.Clone(appErrors.ErrMissingPrerequisite, "floor-incharge approval missing")
		}
		if !o.Flags.HostelIncharge.IsApproved {
			return appErrors.Clone(appErrors.ErrMissingPrerequisite, "hostel-incharge approval missing")
		}
	}
	return nil
}
