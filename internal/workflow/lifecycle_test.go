package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

var (
	floorActor  = models.Actor{ID: "floor-1", Role: models.RoleFloorIncharge, Name: "Floor"}
	hostelActor = models.Actor{ID: "hostel-1", Role: models.RoleHostelIncharge, Name: "Hostel"}
	wardenActor = models.Actor{ID: "warden-1", Role: models.RoleWarden, Name: "Warden"}
)

func newOuting(category models.OutingCategory) *models.OutingRequest {
	o := &models.OutingRequest{
		ID:         "out-1",
		StudentID:  "stu-1",
		OutingDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		OutTime:    "10:00",
		ReturnDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReturnTime: "18:00",
		Category:   category,
	}
	NewRequest(o)
	return o
}

func TestApplyDecisionHappyPath(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	require.Equal(t, models.LevelFloorIncharge, o.CurrentLevel)

	out, err := ApplyDecision(o, floorActor, models.DecisionApprove, "ok", now)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, models.LevelHostelIncharge, o.CurrentLevel)
	assert.Equal(t, models.OutingStatusPending, o.Status)

	_, err = ApplyDecision(o, hostelActor, models.DecisionApprove, "", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.LevelWarden, o.CurrentLevel)

	out, err = ApplyDecision(o, wardenActor, models.DecisionApprove, "enjoy", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, models.OutingStatusApproved, o.Status)
	assert.Equal(t, models.LevelCompleted, o.CurrentLevel)
	require.Len(t, o.Flow, 3)
	assert.True(t, o.Flags.Warden.IsApproved)
	require.NoError(t, CheckInvariants(o))
}

func TestApplyDecisionDenialShortCircuits(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	now := time.Now()
	_, err := ApplyDecision(o, floorActor, models.DecisionApprove, "", now)
	require.NoError(t, err)

	out, err := ApplyDecision(o, hostelActor, models.DecisionDeny, "exams tomorrow", now)
	require.NoError(t, err)
	assert.True(t, out.Denied)
	assert.Equal(t, models.OutingStatusDenied, o.Status)
	assert.Equal(t, models.LevelCompleted, o.CurrentLevel)
	assert.False(t, o.Flags.HostelIncharge.IsApproved)
	assert.Equal(t, "exams tomorrow", o.Flags.HostelIncharge.Remarks)

	_, err = ApplyDecision(o, wardenActor, models.DecisionApprove, "", now)
	require.ErrorIs(t, err, appErrors.ErrAlreadyTerminal)
	assert.False(t, o.QROutgoing.Issued())
}

func TestApplyDecisionEmergencySkipsFloor(t *testing.T) {
	o := newOuting(models.OutingCategoryEmergency)
	require.Equal(t, models.LevelHostelIncharge, o.CurrentLevel)

	_, err := ApplyDecision(o, floorActor, models.DecisionApprove, "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrStageMismatch)
	assert.Contains(t, err.Error(), "expected hostel-incharge, got floor-incharge")

	_, err = ApplyDecision(o, hostelActor, models.DecisionApprove, "", time.Now())
	require.NoError(t, err)
	_, err = ApplyDecision(o, wardenActor, models.DecisionApprove, "", time.Now())
	require.NoError(t, err)
	for _, entry := range o.Flow {
		assert.NotEqual(t, models.LevelFloorIncharge, entry.Level)
	}
	require.NoError(t, CheckInvariants(o))
}

func TestApplyDecisionStageMismatchMessage(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	_, err := ApplyDecision(o, wardenActor, models.DecisionApprove, "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrStageMismatch)
	assert.Equal(t, "expected floor-incharge, got warden", err.Error())
	assert.Empty(t, o.Flow)
}

func TestApplyDecisionResubmissionIsNoop(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	now := time.Now()
	_, err := ApplyDecision(o, floorActor, models.DecisionApprove, "", now)
	require.NoError(t, err)

	out, err := ApplyDecision(o, floorActor, models.DecisionApprove, "", now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Len(t, o.Flow, 1)
	assert.Equal(t, models.LevelHostelIncharge, o.CurrentLevel)

	_, err = ApplyDecision(o, floorActor, models.DecisionDeny, "", now.Add(time.Second))
	require.ErrorIs(t, err, appErrors.ErrAlreadyHandled)
	assert.Equal(t, models.OutingStatusPending, o.Status)
}

func TestApplyDecisionSecondApproverOnDecidedStage(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	now := time.Now()
	_, err := ApplyDecision(o, floorActor, models.DecisionApprove, "", now)
	require.NoError(t, err)

	otherFloor := models.Actor{ID: "floor-2", Role: models.RoleFloorIncharge, Name: "Floor Two"}
	for _, decision := range []models.Decision{models.DecisionApprove, models.DecisionDeny} {
		_, err = ApplyDecision(o, otherFloor, decision, "", now.Add(time.Minute))
		require.ErrorIs(t, err, appErrors.ErrAlreadyHandled)
		assert.Equal(t, "floor-incharge already decided", err.Error())
	}
	assert.Len(t, o.Flow, 1)
	assert.Equal(t, models.LevelHostelIncharge, o.CurrentLevel)

	_, err = ApplyDecision(o, wardenActor, models.DecisionApprove, "", now.Add(time.Minute))
	require.ErrorIs(t, err, appErrors.ErrStageMismatch)
}

func TestApplyDecisionMissingPrerequisite(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	o.CurrentLevel = models.LevelHostelIncharge

	_, err := ApplyDecision(o, hostelActor, models.DecisionApprove, "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrMissingPrerequisite)
	assert.Equal(t, models.LevelHostelIncharge, o.CurrentLevel)

	o.CurrentLevel = models.LevelWarden
	o.Flags.FloorIncharge.IsApproved = true
	_, err = ApplyDecision(o, wardenActor, models.DecisionApprove, "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrMissingPrerequisite)
}

func TestApplyDecisionRejectsNonApprover(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	_, err := ApplyDecision(o, models.Actor{ID: "stu-1", Role: models.RoleStudent}, models.DecisionApprove, "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = ApplyDecision(o, floorActor, models.Decision("MAYBE"), "", time.Now())
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestApprovalFlowStaysOrdered(t *testing.T) {
	// Every reachable sequence of decisions keeps the flow ordered and never
	// regresses the current level.
	actors := []models.Actor{floorActor, hostelActor, wardenActor}
	decisions := []models.Decision{models.DecisionApprove, models.DecisionDeny}
	for _, category := range []models.OutingCategory{models.OutingCategoryNormal, models.OutingCategoryEmergency} {
		for mask := 0; mask < 1<<6; mask++ {
			o := newOuting(category)
			lastIdx := o.CurrentLevel.Index()
			for step := 0; step < 6; step++ {
				actor := actors[step%3]
				decision := decisions[(mask>>step)&1]
				_, _ = ApplyDecision(o, actor, decision, "", time.Now())
				require.GreaterOrEqual(t, o.CurrentLevel.Index(), lastIdx)
				lastIdx = o.CurrentLevel.Index()
				require.NoError(t, CheckInvariants(o))
			}
		}
	}
}

func TestAutoExpire(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	now := time.Now()
	require.True(t, AutoExpire(o, now))
	assert.Equal(t, models.OutingStatusDenied, o.Status)
	assert.Equal(t, models.LevelCompleted, o.CurrentLevel)
	require.Len(t, o.Flow, 1)
	assert.Equal(t, AutoExpireRemarks, o.Flow[0].Remarks)
	require.NoError(t, CheckInvariants(o))

	assert.False(t, AutoExpire(o, now))
}

func TestCanActAndDedupeKey(t *testing.T) {
	o := newOuting(models.OutingCategoryNormal)
	require.NoError(t, CanAct(o, models.RoleFloorIncharge))
	require.ErrorIs(t, CanAct(o, models.RoleHostelIncharge), appErrors.ErrStageMismatch)
	require.ErrorIs(t, CanAct(o, models.RoleSecurity), appErrors.ErrForbidden)

	assert.Equal(t, DedupeKey("a", models.LevelWarden), DedupeKey("a", models.LevelWarden))
	assert.NotEqual(t, DedupeKey("a", models.LevelWarden), DedupeKey("a", models.LevelHostelIncharge))
}
