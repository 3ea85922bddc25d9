package reporting

import (
	"strings"
	"testing"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/stretchr/testify/assert"
)

const sampleCalendar = "Date,Frankston Blue AM,Rosebud Red PM,Frankston Admin-1 Admin\n" +
	"2025-01-03,Dr A,,Dr B\n" +
	"2025-01-04,Dr B,Dr A,\n"

func sampleReport() *analytics.Report {
	engine := analytics.NewEngine(analytics.DefaultRules())
	return engine.Analyze(analytics.Input{Calendar: dataset.ParseCalendar(sampleCalendar)})
}

func TestInterpretVacancyRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"full", 0, "Fully staffed"},
		{"nearly", 0.02, "Nearly full (2.0% vacant)"},
		{"gaps", 0.10, "Some gaps (10.0% vacant)"},
		{"boundary", 0.15, "Understaffed (15.0% vacant)"},
		{"under", 0.5, "Understaffed (50.0% vacant)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretVacancyRate(tt.rate))
		})
	}
}

func TestInterpretFairness(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "Even (>=90)"},
		{90, "Even (>=90)"},
		{89.99, "Mostly even (70-90)"},
		{70, "Mostly even (70-90)"},
		{50, "Uneven (50-70)"},
		{49.9, "Skewed (<50)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretFairness(tt.score), "score %v", tt.score)
	}
}

func TestInterpretUtilization(t *testing.T) {
	assert.Equal(t, "No shifts", InterpretUtilization(0))
	assert.Equal(t, "Under contract (50%)", InterpretUtilization(50))
	assert.Equal(t, "On contract (100%)", InterpretUtilization(100))
	assert.Equal(t, "Over contract (125%)", InterpretUtilization(125))
}

func TestFormatSummaryReport(t *testing.T) {
	out := FormatSummaryReport(sampleReport())

	assert.True(t, strings.HasPrefix(out, "=== Roster Summary ==="))
	assert.Contains(t, out, "Understaffed (25.0% vacant)")
	assert.Contains(t, out, "Clinical slots: 4 total, 1 vacant")
	assert.Contains(t, out, "Doctors:       2 rostered")
	assert.Contains(t, out, "Vacancies by urgency:")
}
