package models

import "time"

// OutingEventType names the observable transitions of an outing.
type OutingEventType string

const (
	EventOutingAdvanced    OutingEventType = "outing.advanced"
	EventOutingApproved    OutingEventType = "outing.approved"
	EventOutingDenied      OutingEventType = "outing.denied"
	EventOutingAutoExpired OutingEventType = "outing.auto_expired"
	EventPassIssued        OutingEventType = "pass.issued"
	EventPassExpired       OutingEventType = "pass.expired"
	EventGateScanned       OutingEventType = "gate.scanned"
)

// OutingEvent is the envelope handed to downstream notification delivery.
type OutingEvent struct {
	Type       OutingEventType `json:"event_type"`
	OutingID   string          `json:"outing_id"`
	StudentID  string          `json:"student_id"`
	Status     OutingStatus    `json:"status,omitempty"`
	Level      Level           `json:"level,omitempty"`
	Direction  Direction       `json:"direction,omitempty"`
	Location   string          `json:"location,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
