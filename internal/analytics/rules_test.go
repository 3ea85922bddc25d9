package analytics

import (
	"testing"

	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	r := DefaultRules()

	c := r.Classify("Rosebud Blue PM")
	assert.True(t, c.Leadership)
	assert.Equal(t, "Rosebud", c.RemoteSite)
	assert.True(t, c.Evening)
	assert.False(t, c.Admin)

	c = r.Classify("frankston red am")
	assert.Equal(t, ShiftClass{}, c)

	c = r.Classify("Frankston Admin-3 Admin")
	assert.True(t, c.Admin)
	assert.False(t, r.IsClinical("Frankston Admin-3 Admin"))
	assert.True(t, r.IsClinical("Frankston Red AM"))
}

func TestScore(t *testing.T) {
	r := DefaultRules()
	// 2025-01-03 is a Friday, 2025-01-04 a Saturday.
	tests := []struct {
		name   string
		shift  string
		date   string
		points int
	}{
		{"plain day shift", "Frankston Red AM", "2025-01-04", 0},
		{"evening only", "Frankston Red PM", "2025-01-04", 1},
		{"friday evening", "Frankston Red PM", "2025-01-03", 2},
		{"remote day", "Rosebud Red AM", "2025-01-04", 2},
		{"leadership day", "Frankston Blue AM", "2025-01-04", 3},
		{"leadership plus remote is capped", "Rosebud Blue AM", "2025-01-04", 3},
		{"everything is capped", "Rosebud Green PM", "2025-01-03", 3},
		{"undated evening", "Frankston Red PM", "", 1},
		{"bad date ignores end of week", "Frankston Red PM", "03/01/2025", 1},
		{"admin scores zero", "Rosebud Admin-1 Admin", "2025-01-03", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := r.Score(tt.shift, tt.date)
			assert.Equal(t, tt.points, s.Points)
			if tt.points == 0 {
				assert.Empty(t, s.Reasons)
			} else {
				assert.NotEmpty(t, s.Reasons)
			}
		})
	}
}

func TestScoreReasons(t *testing.T) {
	s := DefaultRules().Score("Rosebud Red PM", "2025-01-03")
	require.Equal(t, 3, s.Points)
	assert.Equal(t, []string{"remote site (Rosebud)", "evening shift", "end-of-week evening"}, s.Reasons)
}

func TestUrgency(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, models.UrgencyCritical, r.Urgency("Frankston Blue PM"))
	assert.Equal(t, models.UrgencyCritical, r.Urgency("Rosebud Red PM"))
	assert.Equal(t, models.UrgencyHigh, r.Urgency("Frankston Green AM"))
	assert.Equal(t, models.UrgencyMedium, r.Urgency("Rosebud Red AM"))
	assert.Equal(t, models.UrgencyMedium, r.Urgency("Frankston Red PM"))
}
