package catalog

import (
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/metrics"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// StatsStrategy derives summary numbers from one representation of a job.
// ok is false when the representation is absent or empty.
type StatsStrategy struct {
	Name   string
	Derive func(job *models.RosterJob) (stats models.SummaryStats, ok bool)
}

// DefaultStrategies is tried in order: structured roster data, then the
// calendar document, then whatever the doctor summary offers.
var DefaultStrategies = []StatsStrategy{
	{Name: "roster_data", Derive: statsFromRosterData},
	{Name: "calendar_view", Derive: statsFromCalendarView},
	{Name: "fallback", Derive: fallbackStats},
}

// DeriveStats runs strategies in order and returns the first result along
// with the name of the strategy that produced it.
func DeriveStats(job *models.RosterJob, strategies []StatsStrategy) (models.SummaryStats, string) {
	if job != nil {
		for _, s := range strategies {
			if stats, ok := s.Derive(job); ok {
				return stats, s.Name
			}
		}
	}
	return models.SummaryStats{}, "none"
}

func statsFromGrid(g *dataset.CalendarGrid) (models.SummaryStats, bool) {
	total, assigned := g.Counts()
	if total == 0 {
		return models.SummaryStats{}, false
	}
	return models.SummaryStats{
		TotalShifts:  total,
		TotalDoctors: len(g.Doctors()),
		CoverageRate: metrics.Percent(assigned, total),
	}, true
}

func statsFromRosterData(job *models.RosterJob) (models.SummaryStats, bool) {
	if len(job.RosterData) == 0 {
		return models.SummaryStats{}, false
	}
	return statsFromGrid(dataset.CalendarFromRosterData(job.RosterData))
}

func statsFromCalendarView(job *models.RosterJob) (models.SummaryStats, bool) {
	if job.Outputs == nil || job.Outputs.CalendarView == "" {
		return models.SummaryStats{}, false
	}
	return statsFromGrid(dataset.ParseCalendar(job.Outputs.CalendarView))
}

// fallbackStats reads the doctor summary: one row per doctor, shifts summed.
// The summary carries no vacancies, so coverage stays 0.
func fallbackStats(job *models.RosterJob) (models.SummaryStats, bool) {
	var stats models.SummaryStats
	if job.Outputs == nil || job.Outputs.DoctorSummary == "" {
		return stats, true
	}
	rows := dataset.ParseDoctorSummary(job.Outputs.DoctorSummary).Rows
	stats.TotalDoctors = len(rows)
	for _, row := range rows {
		stats.TotalShifts += row.TotalShifts
	}
	return stats, true
}
