package dto

import (
	"time"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// CreateOutingRequest is the student's leave application.
type CreateOutingRequest struct {
	OutingDate  string `json:"outingDate" validate:"required,datetime=2006-01-02"`
	OutTime     string `json:"outTime" validate:"required,datetime=15:04"`
	ReturnDate  string `json:"returnDate" validate:"required,datetime=2006-01-02"`
	ReturnTime  string `json:"returnTime" validate:"required,datetime=15:04"`
	Category    string `json:"category" validate:"omitempty,oneof=NORMAL EMERGENCY"`
	Destination string `json:"destination" validate:"required,max=200"`
	Purpose     string `json:"purpose" validate:"required,max=500"`
}

// DecisionRequest carries an approver's verdict.
type DecisionRequest struct {
	Decision models.Decision `json:"decision" validate:"required,oneof=APPROVE DENY"`
	Remarks  string          `json:"remarks" validate:"max=500"`
}

// RegeneratePassRequest selects the pass to replace.
type RegeneratePassRequest struct {
	Direction models.Direction `json:"direction" validate:"required,oneof=outgoing incoming"`
}

// OutingQuery mirrors supported listing filters.
type OutingQuery struct {
	StudentID string
	Status    []models.OutingStatus
	Level     models.Level
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// ScanRequest is submitted by the gate console.
type ScanRequest struct {
	Token    string `json:"token" validate:"required"`
	Location string `json:"location" validate:"max=100"`
}

// PassView is the client-facing state of one gate pass.
type PassView struct {
	Token      *string    `json:"token,omitempty"`
	IssuedAt   *time.Time `json:"issuedAt,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
	IsExpired  bool       `json:"isExpired"`
	ScannedAt  *time.Time `json:"scannedAt,omitempty"`
	ScannedBy  string     `json:"scannedBy,omitempty"`
}

// OutingResponse wraps a request together with its passes. Token strings
// are only included for callers allowed to present them.
type OutingResponse struct {
	*models.OutingRequest
	Passes struct {
		Outgoing PassView `json:"outgoing"`
		Incoming PassView `json:"incoming"`
	} `json:"qrCode"`
}

// NewOutingResponse builds the response view. withTokens controls whether
// live token strings are exposed.
func NewOutingResponse(o *models.OutingRequest, withTokens bool) OutingResponse {
	resp := OutingResponse{OutingRequest: o}
	resp.Passes.Outgoing = passView(o.QROutgoing, withTokens)
	resp.Passes.Incoming = passView(o.QRIncoming, withTokens)
	return resp
}

func passView(t models.QRToken, withToken bool) PassView {
	view := PassView{
		IssuedAt:   t.IssuedAt,
		ValidUntil: t.ValidUntil,
		IsExpired:  t.IsExpired,
		ScannedAt:  t.ScannedAt,
		ScannedBy:  t.ScannedBy,
	}
	if withToken {
		view.Token = t.Token
	}
	return view
}

// ScanResponse is returned to the gate console.
type ScanResponse struct {
	OutingID       string                `json:"outingId"`
	Direction      models.Direction      `json:"direction"`
	Student        models.StudentSummary `json:"student"`
	OutingDate     string                `json:"outingDate"`
	OutTime        string                `json:"outTime"`
	ReturnDate     string                `json:"returnDate"`
	ReturnTime     string                `json:"returnTime"`
	Status         models.OutingStatus   `json:"status"`
	ScanTime       *time.Time            `json:"scanTime,omitempty"`
	LateReturn     bool                  `json:"lateReturn"`
	IncomingIssued bool                  `json:"incomingIssued"`
}
