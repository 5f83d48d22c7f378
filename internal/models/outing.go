package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Level identifies whose turn it is in the approval sequence.
type Level string

const (
	LevelFloorIncharge  Level = "FLOOR_INCHARGE"
	LevelHostelIncharge Level = "HOSTEL_INCHARGE"
	LevelWarden         Level = "WARDEN"
	LevelCompleted      Level = "COMPLETED"
)

var levelOrder = map[Level]int{
	LevelFloorIncharge:  0,
	LevelHostelIncharge: 1,
	LevelWarden:         2,
	LevelCompleted:      3,
}

// Index returns the position of the level in the approval sequence, or -1.
func (l Level) Index() int {
	if idx, ok := levelOrder[l]; ok {
		return idx
	}
	return -1
}

// Valid returns true when the level is a supported value.
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Label renders the level the way approvers talk about it.
func (l Level) Label() string {
	return strings.ReplaceAll(strings.ToLower(string(l)), "_", "-")
}

// Next returns the stage following l.
func (l Level) Next() Level {
	switch l {
	case LevelFloorIncharge:
		return LevelHostelIncharge
	case LevelHostelIncharge:
		return LevelWarden
	default:
		return LevelCompleted
	}
}

// ApprovalLevels lists the approver stages in order.
var ApprovalLevels = []Level{LevelFloorIncharge, LevelHostelIncharge, LevelWarden}

// OutingStatus captures the externally visible outcome of a request.
type OutingStatus string

const (
	OutingStatusPending    OutingStatus = "PENDING"
	OutingStatusApproved   OutingStatus = "APPROVED"
	OutingStatusDenied     OutingStatus = "DENIED"
	OutingStatusLateReturn OutingStatus = "LATE_RETURN"
)

// OutingCategory decides whether the floor-incharge stage applies.
type OutingCategory string

const (
	OutingCategoryNormal    OutingCategory = "NORMAL"
	OutingCategoryEmergency OutingCategory = "EMERGENCY"
)

// Valid returns true when the category is a supported value.
func (c OutingCategory) Valid() bool {
	return c == OutingCategoryNormal || c == OutingCategoryEmergency
}

// FirstLevel is the stage a fresh request of this category starts at.
func (c OutingCategory) FirstLevel() Level {
	if c == OutingCategoryEmergency {
		return LevelHostelIncharge
	}
	return LevelFloorIncharge
}

// Decision is an approver's verdict on the current stage.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionDeny    Decision = "DENY"
)

// Valid returns true when the decision is a supported value.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionDeny
}

// Direction tags a gate pass as leaving or returning.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Valid returns true when the direction is a supported value.
func (d Direction) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

// ApprovalFlag is the write-once verdict cached per level.
type ApprovalFlag struct {
	IsApproved bool       `json:"isApproved"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`
}

// Decided reports whether a verdict has been recorded.
func (f ApprovalFlag) Decided() bool {
	return f.Timestamp != nil
}

// ApprovalFlags holds one flag per approver stage.
type ApprovalFlags struct {
	FloorIncharge  ApprovalFlag `json:"floorIncharge"`
	HostelIncharge ApprovalFlag `json:"hostelIncharge"`
	Warden         ApprovalFlag `json:"warden"`
}

// Get returns the flag for level, or nil for non-approver levels.
func (f *ApprovalFlags) Get(level Level) *ApprovalFlag {
	switch level {
	case LevelFloorIncharge:
		return &f.FloorIncharge
	case LevelHostelIncharge:
		return &f.HostelIncharge
	case LevelWarden:
		return &f.Warden
	default:
		return nil
	}
}

// Value implements driver.Valuer.
func (f ApprovalFlags) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *ApprovalFlags) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// ApprovalEntry is one line of the append-only approval audit trail.
type ApprovalEntry struct {
	Level      Level     `json:"level"`
	Decision   Decision  `json:"decision"`
	Timestamp  time.Time `json:"timestamp"`
	Remarks    string    `json:"remarks,omitempty"`
	ApproverID string    `json:"approverId"`
	Approver   string    `json:"approver,omitempty"`
}

// ApprovalFlow is the ordered approval log.
type ApprovalFlow []ApprovalEntry

// Value implements driver.Valuer.
func (f ApprovalFlow) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ApprovalEntry(f))
}

// Scan implements sql.Scanner.
func (f *ApprovalFlow) Scan(src interface{}) error {
	return scanJSON(src, (*[]ApprovalEntry)(f))
}

// QRToken is the state of one direction's gate pass.
type QRToken struct {
	Token      *string    `json:"token,omitempty"`
	TokenID    string     `json:"tokenId,omitempty"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
	IsExpired  bool       `json:"isExpired"`
	ScannedAt  *time.Time `json:"scannedAt,omitempty"`
	ScannedBy  string     `json:"scannedBy,omitempty"`
}

// Issued reports whether a pass was ever minted for this direction.
func (t QRToken) Issued() bool {
	return t.IssuedAt != nil
}

// Live reports whether the pass can still be presented at the gate.
func (t QRToken) Live() bool {
	return t.Token != nil && !t.IsExpired && t.ScannedAt == nil
}

// Consumed reports whether the pass was scanned.
func (t QRToken) Consumed() bool {
	return t.ScannedAt != nil
}

// Value implements driver.Valuer.
func (t QRToken) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner.
func (t *QRToken) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// GateEvent records a physical pass through the gate.
type GateEvent struct {
	Time      time.Time `json:"time"`
	ScannedBy string    `json:"scannedBy"`
	Location  string    `json:"location,omitempty"`
}

// NullableGateEvent lets a missing check-in/check-out round-trip as NULL.
type NullableGateEvent struct {
	Event *GateEvent
}

// Value implements driver.Valuer.
func (n NullableGateEvent) Value() (driver.Value, error) {
	if n.Event == nil {
		return nil, nil
	}
	return json.Marshal(n.Event)
}

// Scan implements sql.Scanner.
func (n *NullableGateEvent) Scan(src interface{}) error {
	if src == nil {
		n.Event = nil
		return nil
	}
	var event GateEvent
	if err := scanJSON(src, &event); err != nil {
		return err
	}
	n.Event = &event
	return nil
}

// MarshalJSON renders the wrapped event or null.
func (n NullableGateEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Event)
}

// UnmarshalJSON accepts an event object or null.
func (n *NullableGateEvent) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Event = nil
		return nil
	}
	var event GateEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	n.Event = &event
	return nil
}

// OutingRequest is the aggregate root of the outing workflow.
type OutingRequest struct {
	ID           string            `db:"id" json:"id"`
	StudentID    string            `db:"student_id" json:"studentId"`
	OutingDate   time.Time         `db:"outing_date" json:"outingDate"`
	OutTime      string            `db:"out_time" json:"outTime"`
	ReturnDate   time.Time         `db:"return_date" json:"returnDate"`
	ReturnTime   string            `db:"return_time" json:"returnTime"`
	Category     OutingCategory    `db:"category" json:"category"`
	Destination  string            `db:"destination" json:"destination"`
	Purpose      string            `db:"purpose" json:"purpose"`
	Status       OutingStatus      `db:"status" json:"status"`
	CurrentLevel Level             `db:"current_level" json:"currentLevel"`
	Flags        ApprovalFlags     `db:"approval_flags" json:"approvalFlags"`
	Flow         ApprovalFlow      `db:"approval_flow" json:"approvalFlow"`
	QROutgoing   QRToken           `db:"qr_outgoing" json:"-"`
	QRIncoming   QRToken           `db:"qr_incoming" json:"-"`
	CheckOut     NullableGateEvent `db:"check_out" json:"checkOut"`
	CheckIn      NullableGateEvent `db:"check_in" json:"checkIn"`
	Version      int64             `db:"version" json:"version"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// Token returns the mutable pass for a direction.
func (o *OutingRequest) Token(direction Direction) *QRToken {
	if direction == DirectionIncoming {
		return &o.QRIncoming
	}
	return &o.QROutgoing
}

// Terminal reports whether the approval sequence has halted.
func (o *OutingRequest) Terminal() bool {
	return o.CurrentLevel == LevelCompleted || o.Status != OutingStatusPending
}

// Clone returns a deep copy safe to mutate without touching o.
func (o *OutingRequest) Clone() *OutingRequest {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Flow = append(ApprovalFlow(nil), o.Flow...)
	clone.Flags = ApprovalFlags{
		FloorIncharge:  o.Flags.FloorIncharge.clone(),
		HostelIncharge: o.Flags.HostelIncharge.clone(),
		Warden:         o.Flags.Warden.clone(),
	}
	clone.QROutgoing = o.QROutgoing.clone()
	clone.QRIncoming = o.QRIncoming.clone()
	if o.CheckOut.Event != nil {
		event := *o.CheckOut.Event
		clone.CheckOut = NullableGateEvent{Event: &event}
	}
	if o.CheckIn.Event != nil {
		event := *o.CheckIn.Event
		clone.CheckIn = NullableGateEvent{Event: &event}
	}
	return &clone
}

// OutInstant combines the outing date and out time in loc.
func (o *OutingRequest) OutInstant(loc *time.Location) (time.Time, error) {
	return CombineDateTime(o.OutingDate, o.OutTime, loc)
}

// ReturnInstant combines the return date and return time in loc.
func (o *OutingRequest) ReturnInstant(loc *time.Location) (time.Time, error) {
	return CombineDateTime(o.ReturnDate, o.ReturnTime, loc)
}

// CombineDateTime merges a calendar date and an HH:MM time-of-day.
func CombineDateTime(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	tod, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time of day %q: %w", clock, err)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// OutingFilter constrains listing queries.
type OutingFilter struct {
	StudentID string
	Status    []OutingStatus
	Level     Level
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// StudentSummary is what the gate console shows for a scanned pass.
type StudentSummary struct {
	ID         string `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"fullName"`
	RollNumber string `db:"roll_number" json:"rollNumber"`
	Room       string `db:"room" json:"room,omitempty"`
}

func (f ApprovalFlag) clone() ApprovalFlag {
	if f.Timestamp != nil {
		ts := *f.Timestamp
		f.Timestamp = &ts
	}
	return f
}

func (t QRToken) clone() QRToken {
	if t.Token != nil {
		v := *t.Token
		t.Token = &v
	}
	t.IssuedAt = cloneTime(t.IssuedAt)
	t.ValidUntil = cloneTime(t.ValidUntil)
	t.ScannedAt = cloneTime(t.ScannedAt)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
