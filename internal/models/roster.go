package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// VacantDoctor is the sentinel carried by a ShiftSlot with no assignment.
const VacantDoctor = "VACANT"

// SlotKeySeparator joins the date and shift type inside a slot key.
const SlotKeySeparator = "|"

// ShiftSlot is one (date, shift type) cell of the calendar grid.
type ShiftSlot struct {
	Date      string `json:"date"`
	ShiftType string `json:"shift_type"`
	Doctor    string `json:"doctor"`
}

// Vacant reports whether the slot has no real assignment.
func (s ShiftSlot) Vacant() bool {
	return s.Doctor == "" || s.Doctor == VacantDoctor
}

// Key returns the slot key used by modification requests.
func (s ShiftSlot) Key() string {
	return SlotKey(s.Date, s.ShiftType)
}

// SlotKey builds the canonical "date|shift type" key.
func SlotKey(date, shiftType string) string {
	return date + SlotKeySeparator + shiftType
}

// ParseSlotKey splits a slot key into its date and shift type.
func ParseSlotKey(key string) (date, shiftType string, err error) {
	date, shiftType, ok := strings.Cut(key, SlotKeySeparator)
	date = strings.TrimSpace(date)
	shiftType = strings.TrimSpace(shiftType)
	if !ok || date == "" || shiftType == "" {
		return "", "", fmt.Errorf("slot key %q must have the form YYYY-MM-DD%sshift", key, SlotKeySeparator)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", "", fmt.Errorf("slot key %q has an invalid date: %w", key, err)
	}
	return date, shiftType, nil
}

// SavedRoster is the durable projection of a completed job.
type SavedRoster struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	JobID        string     `json:"job_id"`
	Job          *RosterJob `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	GeneratedAt  time.Time  `json:"generated_at"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Sites        []string   `json:"sites"`
	TotalShifts  int        `json:"total_shifts"`
	TotalDoctors int        `json:"total_doctors"`
	CoverageRate int        `json:"coverage_rate"`
	Archived     bool       `json:"archived"`
}

// Clone returns a deep copy of r.
func (r *SavedRoster) Clone() *SavedRoster {
	if r == nil {
		return nil
	}
	c := *r
	c.Job = r.Job.Clone()
	c.Sites = slices.Clone(r.Sites)
	return &c
}

// SummaryStats are the derived numbers stored on a SavedRoster.
type SummaryStats struct {
	TotalShifts  int `json:"total_shifts"`
	TotalDoctors int `json:"total_doctors"`
	CoverageRate int `json:"coverage_rate"`
}

// Stats returns the summary numbers currently stored on r.
func (r *SavedRoster) Stats() SummaryStats {
	return SummaryStats{
		TotalShifts:  r.TotalShifts,
		TotalDoctors: r.TotalDoctors,
		CoverageRate: r.CoverageRate,
	}
}

// ApplyStats overwrites the summary numbers on r.
func (r *SavedRoster) ApplyStats(s SummaryStats) {
	r.TotalShifts = s.TotalShifts
	r.TotalDoctors = s.TotalDoctors
	r.CoverageRate = s.CoverageRate
}
