package models

// UserRole represents the actor roles recognised by the outing workflow.
type UserRole string

const (
	RoleStudent        UserRole = "STUDENT"
	RoleFloorIncharge  UserRole = "FLOOR_INCHARGE"
	RoleHostelIncharge UserRole = "HOSTEL_INCHARGE"
	RoleWarden         UserRole = "WARDEN"
	RoleSecurity       UserRole = "SECURITY"
	RoleAdmin          UserRole = "ADMIN"
)

// ApprovalLevel maps an approver role onto its stage. ok is false for
// roles that never approve.
func (r UserRole) ApprovalLevel() (Level, bool) {
	switch r {
	case RoleFloorIncharge:
		return LevelFloorIncharge, true
	case RoleHostelIncharge:
		return LevelHostelIncharge, true
	case RoleWarden:
		return LevelWarden, true
	default:
		return "", false
	}
}

// Actor is the already-authenticated caller handed to the core.
type Actor struct {
	ID    string
	Role  UserRole
	Email string
	Name  string
}

// SystemActor is used for transitions driven by the scheduler.
var SystemActor = Actor{ID: "system", Role: RoleAdmin, Name: "scheduler"}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
