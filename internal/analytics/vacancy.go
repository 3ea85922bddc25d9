package analytics

import (
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/metrics"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// VacancyReport tallies unfilled clinical slots.
type VacancyReport struct {
	ByShift     []models.ShiftVacancy `json:"by_shift"`
	Vacancies   []models.VacantSlot   `json:"vacancies"`
	TotalSlots  int                   `json:"total_slots"`
	VacantSlots int                   `json:"vacant_slots"`
	Rate        float64               `json:"rate"`
}

// Vacancy tallies vacant vs total slots per clinical shift type, in calendar
// column order. Administrative shift types are left out entirely.
func (e *Engine) Vacancy(cal *dataset.CalendarGrid) VacancyReport {
	var rep VacancyReport
	clinical := make([]int, 0, len(cal.ShiftTypes))
	for i, shift := range cal.ShiftTypes {
		if e.rules.IsClinical(shift) {
			clinical = append(clinical, i)
		}
	}

	tallies := make([]models.ShiftVacancy, len(clinical))
	for k, col := range clinical {
		tallies[k].ShiftType = cal.ShiftTypes[col]
	}
	for _, day := range cal.Days {
		for k, col := range clinical {
			tallies[k].Total++
			if day.Assignments[col] != "" {
				continue
			}
			tallies[k].Vacant++
			shift := cal.ShiftTypes[col]
			rep.Vacancies = append(rep.Vacancies, models.VacantSlot{
				Date:      day.Date,
				ShiftType: shift,
				Urgency:   e.rules.Urgency(shift),
			})
		}
	}
	for k := range tallies {
		tallies[k].Rate = metrics.Ratio(tallies[k].Vacant, tallies[k].Total)
		rep.TotalSlots += tallies[k].Total
		rep.VacantSlots += tallies[k].Vacant
	}
	rep.ByShift = tallies
	rep.Rate = metrics.Ratio(rep.VacantSlots, rep.TotalSlots)
	return rep
}

// CountByUrgency groups the vacancy records by urgency tier.
func (v VacancyReport) CountByUrgency() map[models.Urgency]int {
	counts := make(map[models.Urgency]int, 3)
	for _, slot := range v.Vacancies {
		counts[slot.Urgency]++
	}
	return counts
}
