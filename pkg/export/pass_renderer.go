package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PassSlip is everything printed on a gate pass slip.
type PassSlip struct {
	OutingID    string
	StudentName string
	RollNumber  string
	Room        string
	Category    string
	Status      string
	Destination string
	LeaveAt     string
	ReturnBy    string
	Direction   string
	Token       string
	ValidUntil  *time.Time
	Approvals   []ApprovalLine
	GeneratedAt time.Time
}

// ApprovalLine is one row of the approval trail.
type ApprovalLine struct {
	Level    string
	Decision string
	By       string
	At       time.Time
	Remarks  string
}

// PassRenderer renders gate pass slips as single-page PDFs.
type PassRenderer struct {
	loc *time.Location
}

// NewPassRenderer constructs a renderer that prints times in loc.
func NewPassRenderer(loc *time.Location) *PassRenderer {
	if loc == nil {
		loc = time.Local
	}
	return &PassRenderer{loc: loc}
}

// Render produces the PDF bytes for slip.
func (r *PassRenderer) Render(slip PassSlip) ([]byte, error) {
	if slip.OutingID == "" {
		return nil, fmt.Errorf("pass slip requires an outing id")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "HOSTEL OUTING PASS", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Reference "+slip.OutingID, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Student", slip.StudentName},
		{"Roll number", slip.RollNumber},
		{"Room", slip.Room},
		{"Category", slip.Category},
		{"Status", slip.Status},
		{"Destination", slip.Destination},
		{"Leave at", slip.LeaveAt},
		{"Return by", slip.ReturnBy},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "", false, 0, "")
	}

	if len(slip.Approvals) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "Approval trail", "", 1, "", false, 0, "")
		widths := []float64{40, 25, 45, 70}
		pdf.SetFont("Arial", "B", 9)
		for i, header := range []string{"Stage", "Decision", "By", "At"} {
			pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, line := range slip.Approvals {
			cells := []string{line.Level, line.Decision, line.By, line.At.In(r.loc).Format("02 Jan 2006 15:04")}
			for i, cell := range cells {
				pdf.CellFormat(widths[i], 7, cell, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
			if line.Remarks != "" {
				pdf.SetFont("Arial", "I", 8)
				pdf.MultiCell(0, 5, "Remarks: "+line.Remarks, "", "", false)
				pdf.SetFont("Arial", "", 9)
			}
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	title := "Gate pass"
	if slip.Direction != "" {
		title = strings.ToUpper(slip.Direction[:1]) + slip.Direction[1:] + " gate pass"
	}
	pdf.CellFormat(0, 8, title, "", 1, "", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	if slip.Token == "" {
		pdf.MultiCell(0, 5, "No live pass. Ask the warden's office to issue or regenerate one.", "1", "", false)
	} else {
		pdf.MultiCell(0, 5, slip.Token, "1", "", false)
	}
	if slip.ValidUntil != nil {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, "Valid until "+slip.ValidUntil.In(r.loc).Format("02 Jan 2006 15:04"), "", 1, "", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+slip.GeneratedAt.In(r.loc).Format(time.RFC1123), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pass slip: %w", err)
	}
	return buf.Bytes(), nil
}
