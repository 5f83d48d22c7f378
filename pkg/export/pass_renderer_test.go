package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassRendererRender(t *testing.T) {
	renderer := NewPassRenderer(time.UTC)
	until := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	out, err := renderer.Render(PassSlip{
		OutingID:    "out-1",
		StudentName: "Asha Rao",
		RollNumber:  "21CS042",
		Status:      "APPROVED",
		LeaveAt:     "2026-03-10 10:00",
		ReturnBy:    "2026-03-10 18:00",
		Direction:   "outgoing",
		Token:       "op1.outgoing.body.sig",
		ValidUntil:  &until,
		Approvals: []ApprovalLine{
			{Level: "warden", Decision: "APPROVE", By: "Warden", At: until.Add(-12 * time.Hour), Remarks: "ok"},
		},
		GeneratedAt: until.Add(-13 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = renderer.Render(PassSlip{})
	assert.Error(t, err)
}
