package reporting

import (
	"fmt"
	"strings"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// InterpretVacancyRate returns a plain-language label for a vacancy rate (0–1).
func InterpretVacancyRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct == 0:
		return "Fully staffed"
	case pct < 5:
		return fmt.Sprintf("Nearly full (%.1f%% vacant)", pct)
	case pct < 15:
		return fmt.Sprintf("Some gaps (%.1f%% vacant)", pct)
	default:
		return fmt.Sprintf("Understaffed (%.1f%% vacant)", pct)
	}
}

// InterpretFairness returns a label for a fairness score (0–100).
func InterpretFairness(score float64) string {
	switch {
	case score >= 90:
		return "Even (>=90)"
	case score >= 70:
		return "Mostly even (70-90)"
	case score >= 50:
		return "Uneven (50-70)"
	default:
		return "Skewed (<50)"
	}
}

// InterpretUtilization explains a utilization percentage against contracted hours.
func InterpretUtilization(pct float64) string {
	switch {
	case pct > 110:
		return fmt.Sprintf("Over contract (%.0f%%)", pct)
	case pct >= 90:
		return fmt.Sprintf("On contract (%.0f%%)", pct)
	case pct > 0:
		return fmt.Sprintf("Under contract (%.0f%%)", pct)
	default:
		return "No shifts"
	}
}

// FormatSummaryReport produces a plain-language summary of an analytics report.
func FormatSummaryReport(rep *analytics.Report) string {
	var b strings.Builder
	t := rep.Team

	b.WriteString("=== Roster Summary ===\n\n")
	b.WriteString(fmt.Sprintf("Coverage:      %s\n", InterpretVacancyRate(rep.Vacancy.Rate)))
	b.WriteString(fmt.Sprintf("Clinical slots: %s total, %s vacant\n", formatInt(rep.Vacancy.TotalSlots), formatInt(rep.Vacancy.VacantSlots)))
	b.WriteString(fmt.Sprintf("Doctors:       %d rostered, average FTE %.2f, average %.1f hours\n", t.Doctors, t.AverageFTE, t.AverageHours))
	b.WriteString(fmt.Sprintf("Fairness:      %.2f — %s\n", t.AverageFairness, InterpretFairness(t.AverageFairness)))
	b.WriteString(fmt.Sprintf("Utilization:   %s\n", InterpretUtilization(t.AverageUtilization)))
	b.WriteString(fmt.Sprintf("Undesirable:   %.2f per doctor (std dev %.2f)\n", t.AverageUndesirable, t.UndesirableStdDev))

	if counts := rep.Vacancy.CountByUrgency(); len(counts) > 0 {
		b.WriteString("\nVacancies by urgency:\n")
		for _, u := range []models.Urgency{models.UrgencyCritical, models.UrgencyHigh, models.UrgencyMedium} {
			if counts[u] > 0 {
				b.WriteString(fmt.Sprintf("  %-8s %d\n", u, counts[u]))
			}
		}
	}

	if outliers := fairnessOutliers(rep.Doctors); len(outliers) > 0 {
		b.WriteString("\nCarrying more than their share of undesirable shifts:\n")
		for _, d := range outliers {
			b.WriteString(fmt.Sprintf("  ✗ %s: %d undesirable (ratio %.2f)\n", d.Doctor, d.UndesirableShifts, d.FairnessRatio))
		}
	}
	return b.String()
}

// fairnessOutliers returns doctors whose undesirable load is at least 1.5x the average.
func fairnessOutliers(doctors []models.DoctorStatistic) []models.DoctorStatistic {
	var out []models.DoctorStatistic
	for _, d := range doctors {
		if d.FairnessRatio >= 1.5 {
			out = append(out, d)
		}
	}
	return out
}
