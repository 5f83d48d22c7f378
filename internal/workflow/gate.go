// Package workflow holds the pure state transitions of an outing request.
// Nothing here touches storage; callers load a request, apply a transition
// and persist the result with a version-guarded update.
package workflow

import (
	"fmt"
	"strings"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

// CanAct reports whether role may decide on the request's current stage.
// Roles outside the approval chain (student, security, admin) get FORBIDDEN;
// approvers whose stage is not the current one get STAGE_MISMATCH.
func CanAct(o *models.OutingRequest, role models.UserRole) error {
	level, ok := role.ApprovalLevel()
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot decide outing requests", roleLabel(role)))
	}
	if o.CurrentLevel != level {
		return appErrors.Clone(appErrors.ErrStageMismatch, fmt.Sprintf("expected %s, got %s", o.CurrentLevel.Label(), level.Label()))
	}
	return nil
}

// DedupeKey identifies an approver's verdict on one stage.
func DedupeKey(approverID string, level models.Level) string {
	return approverID + "|" + string(level)
}

// findDuplicate returns the existing flow entry matching the approver and
// stage, if any.
func findDuplicate(flow models.ApprovalFlow, approverID string, level models.Level) *models.ApprovalEntry {
	key := DedupeKey(approverID, level)
	for i := range flow {
		if DedupeKey(flow[i].ApproverID, flow[i].Level) == key {
			return &flow[i]
		}
	}
	return nil
}

func roleLabel(role models.UserRole) string {
	if role == "" {
		return "anonymous"
	}
	return strings.ReplaceAll(strings.ToLower(string(role)), "_", "-")
}
