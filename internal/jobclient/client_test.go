package jobclient

import (
	"testing"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{"valid submit", SubmitRequest{StartDate: "2025-01-06", Weeks: 4}, ""},
		{"zero weeks", SubmitRequest{StartDate: "2025-01-06"}, "Weeks must be greater than 0"},
		{"bad date", SubmitRequest{StartDate: "6 Jan", Weeks: 1}, "StartDate must be a date"},
		{"empty batch", ModifyRequest{}, "Changes is required"},
		{"add without doctor", ModifyRequest{Changes: []ShiftChange{{SlotKey: "k", Action: ActionAdd}}}, "Doctor is required"},
		{"unknown action", ModifyRequest{Changes: []ShiftChange{{SlotKey: "k", Action: "swap"}}}, "Action must be one of"},
		{"reassign to self", ReassignRequest{Date: "2025-01-06", ShiftType: "Blue", From: "Dr A", To: "Dr A"}, "To must differ from From"},
		{"test mode needs email", DistributeOptions{TestMode: true}, "TestEmail is required"},
		{"bad email", DistributeOptions{TestEmail: "nobody"}, "TestEmail must be an email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("op", tt.req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSubmitRequest_EndDate(t *testing.T) {
	assert.Equal(t, "2025-01-19", SubmitRequest{StartDate: "2025-01-06", Weeks: 2}.EndDate())
	assert.Equal(t, "", SubmitRequest{StartDate: "bogus", Weeks: 2}.EndDate())
	assert.Equal(t, "", SubmitRequest{StartDate: "2025-01-06"}.EndDate())
}

func TestJobSummary_Overlaps(t *testing.T) {
	s := JobSummary{StartDate: "2025-01-06", EndDate: "2025-01-19"}
	assert.True(t, s.Overlaps("2025-01-19", "2025-02-01"))
	assert.True(t, s.Overlaps("2025-01-01", "2025-01-06"))
	assert.True(t, s.Overlaps("2025-01-08", "2025-01-09"))
	assert.False(t, s.Overlaps("2025-01-20", "2025-02-01"))
	assert.False(t, s.Overlaps("2024-12-01", "2025-01-05"))
}

func TestDistributeResult_PartialFailure(t *testing.T) {
	r := &DistributeResult{
		Successful: []Recipient{{Doctor: "Dr A"}},
		Failed:     []Recipient{{Doctor: "Dr B", Reason: "bounce"}},
	}
	err := r.PartialFailure()
	require.ErrorIs(t, err, apperr.ErrPartialFailure)
	assert.Contains(t, err.Error(), "1 of 2 deliveries failed: Dr B")

	assert.NoError(t, (&DistributeResult{Skipped: []Recipient{{Doctor: "Dr C"}}}).PartialFailure())
}
