package models

// Urgency ranks how badly a vacant slot needs filling.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
)

// VacantSlot is a vacancy-report record for one unfilled clinical slot.
type VacantSlot struct {
	Date      string  `json:"date"`
	ShiftType string  `json:"shift_type"`
	Urgency   Urgency `json:"urgency"`
}

// ShiftVacancy tallies vacancies for one clinical shift type.
type ShiftVacancy struct {
	ShiftType string  `json:"shift_type"`
	Total     int     `json:"total"`
	Vacant    int     `json:"vacant"`
	Rate      float64 `json:"rate"`
}

// UndesirableAssignment is one assigned slot that carries a nonzero penalty.
type UndesirableAssignment struct {
	Doctor    string   `json:"doctor"`
	Date      string   `json:"date"`
	ShiftType string   `json:"shift_type"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
}

// DoctorStatistic is the per-doctor fairness and utilization summary.
type DoctorStatistic struct {
	Doctor            string  `json:"doctor"`
	EstimatedFTE      float64 `json:"estimated_fte"`
	TotalHours        float64 `json:"total_hours"`
	TotalShifts       int     `json:"total_shifts"`
	ClinicalShifts    int     `json:"clinical_shifts"`
	AdminShifts       int     `json:"admin_shifts"`
	UndesirableShifts int     `json:"undesirable_shifts"`
	PenaltyPoints     int     `json:"penalty_points"`
	FairnessRatio     float64 `json:"fairness_ratio"`
	FairnessScore     float64 `json:"fairness_score"`
	Utilization       float64 `json:"utilization_pct"`
}

// TeamStatistic aggregates DoctorStatistic across doctors with at least one shift.
type TeamStatistic struct {
	Doctors            int     `json:"doctors"`
	AverageFTE         float64 `json:"average_fte"`
	AverageHours       float64 `json:"average_hours"`
	AverageUtilization float64 `json:"average_utilization_pct"`
	AverageFairness    float64 `json:"average_fairness_score"`
	AverageUndesirable float64 `json:"average_undesirable"`
	UndesirableStdDev  float64 `json:"undesirable_stddev"`
	TotalSlots         int     `json:"total_slots"`
	VacantSlots        int     `json:"vacant_slots"`
	OverallVacancyRate float64 `json:"overall_vacancy_rate"`
}
