package analytics

import (
	"errors"
	"math"

	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// ErrNoRoster is returned when a job carries neither outputs nor roster data.
var ErrNoRoster = errors.New("job has no roster output to analyze")

// FTESource selects where a doctor's FTE fraction comes from.
type FTESource string

const (
	// FTEDerived estimates FTE from observed hours.
	FTEDerived FTESource = "derived"
	// FTESummary reads EFT from the doctor summary, falling back to derived.
	FTESummary FTESource = "summary"
)

// Input is the parsed material one analysis runs over.
type Input struct {
	Calendar *dataset.CalendarGrid
	// Doctors is optional; it is pivoted from Calendar when nil.
	Doctors *dataset.DoctorGrid
	// Summary is optional.
	Summary *dataset.DoctorSummary
	// Weeks is the length of the rostered period. When zero it is
	// derived from the number of dates on the calendar.
	Weeks int
}

// InputFromJob parses whatever the job carries. Structured roster data wins
// over the raw calendar, the same order the catalogue derives its summary
// numbers in; the doctor grid is then pivoted from it rather than read from a
// doctor view that may predate an edit.
func InputFromJob(job *models.RosterJob) (Input, error) {
	var in Input
	if job == nil {
		return in, ErrNoRoster
	}
	if job.Params != nil {
		in.Weeks = job.Params.Weeks
	}
	out := job.Outputs
	if out != nil && out.DoctorSummary != "" {
		in.Summary = dataset.ParseDoctorSummary(out.DoctorSummary)
	}
	switch {
	case len(job.RosterData) > 0:
		in.Calendar = dataset.CalendarFromRosterData(job.RosterData)
	case out != nil && out.CalendarView != "":
		in.Calendar = dataset.ParseCalendar(out.CalendarView)
		if out.DoctorView != "" {
			in.Doctors = dataset.ParseDoctorView(out.DoctorView)
		}
	default:
		return Input{}, ErrNoRoster
	}
	return in, nil
}

// Report is the full analytics result for one roster.
type Report struct {
	Vacancy     VacancyReport                  `json:"vacancy"`
	Undesirable []models.UndesirableAssignment `json:"undesirable"`
	Doctors     []models.DoctorStatistic       `json:"doctors"`
	Team        models.TeamStatistic           `json:"team"`
}

// Engine computes reports with a fixed rule set.
type Engine struct {
	rules     Rules
	fteSource FTESource
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFTESource selects the FTE source. The default is FTEDerived.
func WithFTESource(src FTESource) EngineOption {
	return func(e *Engine) {
		e.fteSource = src
	}
}

// NewEngine creates an Engine over rules.
func NewEngine(rules Rules, opts ...EngineOption) *Engine {
	e := &Engine{rules: rules, fteSource: FTEDerived}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Analyze runs every derivation over in. A nil calendar yields an empty report.
func (e *Engine) Analyze(in Input) *Report {
	cal := in.Calendar
	if cal == nil {
		cal = &dataset.CalendarGrid{}
	}
	doctors := in.Doctors
	if doctors == nil {
		doctors = dataset.DoctorGridFromCalendar(cal)
	}

	r := &Report{}
	r.Vacancy = e.Vacancy(cal)
	r.Undesirable = e.UndesirableAssignments(doctors)
	weeks := float64(in.Weeks)
	if weeks <= 0 {
		weeks = weeksIn(len(doctors.Days))
	}
	r.Doctors = e.DoctorStatistics(doctors, r.Undesirable, in.Summary, weeks)
	r.Team = e.Team(r.Doctors, r.Vacancy)
	return r
}

// AnalyzeJob is InputFromJob followed by Analyze.
func (e *Engine) AnalyzeJob(job *models.RosterJob) (*Report, error) {
	in, err := InputFromJob(job)
	if err != nil {
		return nil, err
	}
	return e.Analyze(in), nil
}

// weeksIn returns the number of (possibly partial) weeks covered by days dates.
func weeksIn(days int) float64 {
	if days <= 0 {
		return 1
	}
	return math.Ceil(float64(days) / 7)
}
