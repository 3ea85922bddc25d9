package analytics

import (
	"testing"

	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-01-03 is a Friday.
const sampleCalendar = "Date,Frankston Blue AM,Rosebud Red PM,Frankston Admin-1 Admin\n" +
	"2025-01-03,Dr A,,Dr B\n" +
	"2025-01-04,Dr B,Dr A,\n"

func TestVacancy(t *testing.T) {
	e := NewEngine(DefaultRules())
	v := e.Vacancy(dataset.ParseCalendar(sampleCalendar))

	require.Len(t, v.ByShift, 2, "admin column is not tallied")
	assert.Equal(t, models.ShiftVacancy{ShiftType: "Frankston Blue AM", Total: 2}, v.ByShift[0])
	assert.Equal(t, models.ShiftVacancy{ShiftType: "Rosebud Red PM", Total: 2, Vacant: 1, Rate: 0.5}, v.ByShift[1])
	assert.Equal(t, 4, v.TotalSlots)
	assert.Equal(t, 1, v.VacantSlots)
	assert.InDelta(t, 0.25, v.Rate, 1e-9)

	require.Len(t, v.Vacancies, 1)
	assert.Equal(t, models.VacantSlot{Date: "2025-01-03", ShiftType: "Rosebud Red PM", Urgency: models.UrgencyCritical}, v.Vacancies[0])
	assert.Equal(t, map[models.Urgency]int{models.UrgencyCritical: 1}, v.CountByUrgency())
}

func TestVacancyBlankCellIsVacant(t *testing.T) {
	e := NewEngine(DefaultRules())
	v := e.Vacancy(dataset.ParseCalendar("Date,Blue,Green\n2025-01-01,,Dr.X\n"))

	require.Len(t, v.ByShift, 2)
	assert.Equal(t, 1, v.ByShift[0].Vacant)
	assert.Equal(t, 0, v.ByShift[1].Vacant)
}

func TestAnalyze(t *testing.T) {
	e := NewEngine(DefaultRules())
	r := e.Analyze(Input{Calendar: dataset.ParseCalendar(sampleCalendar)})

	// Dr A: Blue AM (3) and Rosebud Red PM on Saturday (3). Dr B: Blue AM (3), admin (0).
	require.Len(t, r.Undesirable, 3)
	for _, u := range r.Undesirable {
		assert.Equal(t, 3, u.Score)
	}

	require.Len(t, r.Doctors, 2)
	a, b := r.Doctors[0], r.Doctors[1]
	assert.Equal(t, "Dr A", a.Doctor)
	assert.Equal(t, 2, a.TotalShifts)
	assert.Equal(t, 2, a.ClinicalShifts)
	assert.Equal(t, 2, a.UndesirableShifts)
	assert.Equal(t, 6, a.PenaltyPoints)
	assert.InDelta(t, 20.0, a.TotalHours, 1e-9)
	assert.InDelta(t, 0.5, a.EstimatedFTE, 1e-9)
	assert.InDelta(t, 100.0, a.Utilization, 1e-9)
	assert.InDelta(t, 1.33, a.FairnessRatio, 1e-9)
	assert.InDelta(t, 83.33, a.FairnessScore, 1e-9)

	assert.Equal(t, "Dr B", b.Doctor)
	assert.Equal(t, 1, b.ClinicalShifts)
	assert.Equal(t, 1, b.AdminShifts)
	assert.InDelta(t, 0.67, b.FairnessRatio, 1e-9)
	assert.InDelta(t, 100.0, b.FairnessScore, 1e-9)

	assert.Equal(t, 2, r.Team.Doctors)
	assert.InDelta(t, 1.5, r.Team.AverageUndesirable, 1e-9)
	assert.InDelta(t, 0.5, r.Team.UndesirableStdDev, 1e-9)
	assert.InDelta(t, 91.67, r.Team.AverageFairness, 0.01)
	assert.Equal(t, 4, r.Team.TotalSlots)
	assert.Equal(t, 1, r.Team.VacantSlots)
	assert.InDelta(t, 0.25, r.Team.OverallVacancyRate, 1e-9)
}

func TestAnalyzeSummaryFTE(t *testing.T) {
	summary := dataset.ParseDoctorSummary("Doctor_Name,EFT\nDr A,0.8\n")
	in := Input{Calendar: dataset.ParseCalendar(sampleCalendar), Summary: summary}

	derived := NewEngine(DefaultRules()).Analyze(in)
	assert.InDelta(t, 0.5, derived.Doctors[0].EstimatedFTE, 1e-9)

	r := NewEngine(DefaultRules(), WithFTESource(FTESummary)).Analyze(in)
	assert.InDelta(t, 0.8, r.Doctors[0].EstimatedFTE, 1e-9)
	assert.InDelta(t, 62.5, r.Doctors[0].Utilization, 1e-9)
	// Dr B has no summary row and falls back to the derived estimate.
	assert.InDelta(t, 0.5, r.Doctors[1].EstimatedFTE, 1e-9)
}

func TestAnalyzeNoUndesirableShifts(t *testing.T) {
	r := NewEngine(DefaultRules()).Analyze(Input{
		Calendar: dataset.ParseCalendar("Date,Frankston Red AM\n2025-01-01,Dr A\n2025-01-02,Dr B\n"),
	})
	require.Len(t, r.Doctors, 2)
	for _, d := range r.Doctors {
		assert.InDelta(t, 1.0, d.FairnessRatio, 1e-9)
		assert.InDelta(t, 100.0, d.FairnessScore, 1e-9)
	}
	assert.Empty(t, r.Undesirable)
}

func TestAnalyzeEmpty(t *testing.T) {
	r := NewEngine(DefaultRules()).Analyze(Input{})
	assert.Empty(t, r.Doctors)
	assert.Zero(t, r.Vacancy.TotalSlots)
	assert.Zero(t, r.Team.Doctors)
}

func TestInputFromJob(t *testing.T) {
	_, err := InputFromJob(nil)
	require.ErrorIs(t, err, ErrNoRoster)

	_, err = InputFromJob(&models.RosterJob{ID: "j1"})
	require.ErrorIs(t, err, ErrNoRoster)

	job := &models.RosterJob{
		ID: "j1",
		RosterData: models.RosterData{
			"2025-01-01": {"Frankston Blue AM": "Dr A", "Rosebud Red PM": "VACANT"},
		},
	}
	in, err := InputFromJob(job)
	require.NoError(t, err)
	require.NotNil(t, in.Calendar)
	assert.Nil(t, in.Doctors)
	total, assigned := in.Calendar.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, assigned)

	job.Outputs = &models.RosterOutputs{
		CalendarView:  sampleCalendar,
		DoctorView:    "Date,Dr A,Dr B\n2025-01-03,Frankston Blue AM,Frankston Admin-1 Admin\n",
		DoctorSummary: "Doctor_Name,EFT\nDr A,1.0\n",
	}
	in, err = InputFromJob(job)
	require.NoError(t, err)
	assert.Len(t, in.Calendar.Days, 1, "roster data takes precedence over the calendar view")
	assert.Nil(t, in.Doctors, "doctor grid is pivoted from roster data")
	require.NotNil(t, in.Summary)

	r, err := NewEngine(DefaultRules()).AnalyzeJob(job)
	require.NoError(t, err)
	assert.Len(t, r.Undesirable, 1)
	assert.Equal(t, 2, r.Vacancy.TotalSlots)

	job.RosterData = nil
	in, err = InputFromJob(job)
	require.NoError(t, err)
	assert.Len(t, in.Calendar.Days, 2)
	require.NotNil(t, in.Doctors)
}

func TestAnalyzeJobUsesRequestedWeeks(t *testing.T) {
	job := &models.RosterJob{
		ID:     "j1",
		Params: &models.GenerationParams{StartDate: "2025-01-03", Weeks: 2},
		Outputs: &models.RosterOutputs{
			CalendarView:  sampleCalendar,
			DoctorSummary: "Doctor_Name,EFT\nDr A,0.8\n",
		},
	}

	derived, err := NewEngine(DefaultRules()).AnalyzeJob(job)
	require.NoError(t, err)
	// 20 hours over two weeks rather than the one week the two dates span.
	assert.InDelta(t, 0.25, derived.Doctors[0].EstimatedFTE, 1e-9)

	r, err := NewEngine(DefaultRules(), WithFTESource(FTESummary)).AnalyzeJob(job)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r.Doctors[0].EstimatedFTE, 1e-9)
	assert.InDelta(t, 31.25, r.Doctors[0].Utilization, 1e-9)

	job.Params = nil
	r, err = NewEngine(DefaultRules(), WithFTESource(FTESummary)).AnalyzeJob(job)
	require.NoError(t, err)
	assert.InDelta(t, 62.5, r.Doctors[0].Utilization, 1e-9)
}
