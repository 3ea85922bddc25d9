package models

import (
	"slices"
	"time"
)

// JobStatus is the lifecycle state of a roster generation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s to next.
// Re-reporting the same non-terminal state (a progress update) is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return !s.IsTerminal() || s == JobCompleted
	}
	switch s {
	case JobPending:
		return next == JobRunning || next == JobCompleted || next == JobFailed || next == JobCancelled
	case JobRunning:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	}
	return false
}

// RosterOutputs is the bundle of raw text documents produced by the optimizer.
type RosterOutputs struct {
	CalendarView  string `json:"calendar_view,omitempty"`
	DoctorView    string `json:"doctor_view,omitempty"`
	DoctorSummary string `json:"doctor_summary,omitempty"`
}

// IsEmpty reports whether none of the documents carry content.
func (o *RosterOutputs) IsEmpty() bool {
	return o == nil || (o.CalendarView == "" && o.DoctorView == "" && o.DoctorSummary == "")
}

// RosterData is the structured roster: date -> shift type -> assigned doctor.
// An empty doctor name marks a vacant slot.
type RosterData map[string]map[string]string

// Dates returns the roster dates in ascending order.
func (d RosterData) Dates() []string {
	dates := make([]string, 0, len(d))
	for date := range d {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	return dates
}

// RosterJob is the client-side snapshot of one optimizer invocation.
type RosterJob struct {
	ID             string            `json:"id"`
	Status         JobStatus         `json:"status"`
	Progress       int               `json:"progress"`
	Message        string            `json:"message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	RosterData     RosterData        `json:"roster_data,omitempty"`
	Outputs        *RosterOutputs    `json:"outputs,omitempty"`
	ModifiedShifts []string          `json:"modified_shifts,omitempty"`
	Finalized      bool              `json:"finalized,omitempty"`
	FinalizedBy    string            `json:"finalized_by,omitempty"`
	FinalizedAt    *time.Time        `json:"finalized_at,omitempty"`
	Params         *GenerationParams `json:"params,omitempty"`
}

// Clone returns a deep copy so callers may hold snapshots without sharing maps.
func (j *RosterJob) Clone() *RosterJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.FinalizedAt != nil {
		t := *j.FinalizedAt
		c.FinalizedAt = &t
	}
	if j.RosterData != nil {
		c.RosterData = make(RosterData, len(j.RosterData))
		for date, shifts := range j.RosterData {
			inner := make(map[string]string, len(shifts))
			for k, v := range shifts {
				inner[k] = v
			}
			c.RosterData[date] = inner
		}
	}
	if j.Outputs != nil {
		o := *j.Outputs
		c.Outputs = &o
	}
	c.ModifiedShifts = slices.Clone(j.ModifiedShifts)
	if j.Params != nil {
		p := *j.Params
		p.Sites = slices.Clone(j.Params.Sites)
		c.Params = &p
	}
	return &c
}

// MarkModified appends slot keys that are not already tracked. The list only grows.
func (j *RosterJob) MarkModified(keys ...string) {
	for _, k := range keys {
		if k == "" || slices.Contains(j.ModifiedShifts, k) {
			continue
		}
		j.ModifiedShifts = append(j.ModifiedShifts, k)
	}
}

// GenerationParams records what was asked of the optimizer.
type GenerationParams struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date,omitempty"`
	Weeks     int      `json:"weeks"`
	Sites     []string `json:"sites,omitempty"`
}
