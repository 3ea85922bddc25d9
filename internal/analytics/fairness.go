package analytics

import (
	"math"

	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/metrics"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// UndesirableAssignments scores every worked (non-off) cell and keeps those
// with a positive score.
func (e *Engine) UndesirableAssignments(g *dataset.DoctorGrid) []models.UndesirableAssignment {
	var out []models.UndesirableAssignment
	for _, a := range g.Assignments() {
		s := e.rules.Score(a.ShiftType, a.Date)
		if s.Points <= 0 {
			continue
		}
		out = append(out, models.UndesirableAssignment{
			Doctor:    a.Doctor,
			Date:      a.Date,
			ShiftType: a.ShiftType,
			Score:     s.Points,
			Reasons:   s.Reasons,
		})
	}
	return out
}

// DoctorStatistics computes per-doctor workload, FTE, utilization and
// fairness, in doctor-grid column order, over a period of weeks. summary may
// be nil.
func (e *Engine) DoctorStatistics(g *dataset.DoctorGrid, undesirable []models.UndesirableAssignment, summary *dataset.DoctorSummary, weeks float64) []models.DoctorStatistic {
	stats := make([]models.DoctorStatistic, len(g.Doctors))
	index := make(map[string]int, len(g.Doctors))
	for i, name := range g.Doctors {
		stats[i].Doctor = name
		index[name] = i
	}

	for _, a := range g.Assignments() {
		s := &stats[index[a.Doctor]]
		s.TotalShifts++
		if e.rules.IsClinical(a.ShiftType) {
			s.ClinicalShifts++
		} else {
			s.AdminShifts++
		}
	}
	for _, u := range undesirable {
		i, ok := index[u.Doctor]
		if !ok {
			continue
		}
		stats[i].UndesirableShifts++
		stats[i].PenaltyPoints += u.Score
	}

	if weeks <= 0 {
		weeks = weeksIn(len(g.Days))
	}
	var counts []int
	for i := range stats {
		s := &stats[i]
		s.TotalHours = float64(s.TotalShifts) * e.rules.ShiftHours
		s.EstimatedFTE = e.estimateFTE(s.Doctor, s.TotalHours, weeks, summary)
		if capacity := s.EstimatedFTE * e.rules.FullTimeHours * weeks; capacity > 0 {
			s.Utilization = metrics.Round2(s.TotalHours / capacity * 100)
		}
		s.EstimatedFTE = metrics.Round2(s.EstimatedFTE)
		if s.TotalShifts > 0 {
			counts = append(counts, s.UndesirableShifts)
		}
	}

	average := metrics.Mean(counts)
	for i := range stats {
		s := &stats[i]
		s.FairnessRatio = 1.0
		if average > 0 {
			s.FairnessRatio = float64(s.UndesirableShifts) / average
		}
		s.FairnessScore = e.fairnessScore(s.FairnessRatio)
		s.FairnessRatio = metrics.Round2(s.FairnessRatio)
	}
	return stats
}

// fairnessScore is 100 minus a penalty proportional to how far ratio sits
// above 1.0, floored at 0.
func (e *Engine) fairnessScore(ratio float64) float64 {
	penalty := math.Max(0, ratio-1) * e.rules.FairnessPenalty
	return metrics.Round2(metrics.Clamp(100-penalty, 0, 100))
}

func (e *Engine) estimateFTE(doctor string, hours, weeks float64, summary *dataset.DoctorSummary) float64 {
	if e.fteSource == FTESummary && summary != nil {
		if eft, ok := summary.EFT(doctor); ok {
			return math.Min(1, eft)
		}
	}
	if e.rules.FullTimeHours <= 0 {
		return 0
	}
	return math.Min(1, hours/weeks/e.rules.FullTimeHours)
}

// Team averages the per-doctor figures over doctors with at least one shift.
func (e *Engine) Team(doctors []models.DoctorStatistic, vacancy VacancyReport) models.TeamStatistic {
	var fte, hours, util, fair []float64
	var undesirable []int
	for _, d := range doctors {
		if d.TotalShifts == 0 {
			continue
		}
		fte = append(fte, d.EstimatedFTE)
		hours = append(hours, d.TotalHours)
		util = append(util, d.Utilization)
		fair = append(fair, d.FairnessScore)
		undesirable = append(undesirable, d.UndesirableShifts)
	}
	return models.TeamStatistic{
		Doctors:            len(fte),
		AverageFTE:         metrics.Round2(metrics.Mean(fte)),
		AverageHours:       metrics.Round2(metrics.Mean(hours)),
		AverageUtilization: metrics.Round2(metrics.Mean(util)),
		AverageFairness:    metrics.Round2(metrics.Mean(fair)),
		AverageUndesirable: metrics.Round2(metrics.Mean(undesirable)),
		UndesirableStdDev:  metrics.Round2(metrics.StdDev(undesirable)),
		TotalSlots:         vacancy.TotalSlots,
		VacantSlots:        vacancy.VacantSlots,
		OverallVacancyRate: metrics.Round2(vacancy.Rate),
	}
}
