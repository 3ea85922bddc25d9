package dataset

import (
	"slices"
	"strings"

	"github.com/peninsula-health/rosterctl/internal/models"
)

// vacancyTokens are the placeholder values the optimizer writes for unfilled slots.
var vacancyTokens = map[string]struct{}{
	"vacant":     {},
	"unassigned": {},
	"unfilled":   {},
	"-":          {},
	"n/a":        {},
}

// IsVacant reports whether a calendar cell holds no real assignment.
func IsVacant(cell string) bool {
	cell = strings.ToLower(strings.TrimSpace(cell))
	if cell == "" {
		return true
	}
	_, ok := vacancyTokens[cell]
	return ok
}

// CalendarGrid is the calendar view: rows are dates, columns are shift types.
type CalendarGrid struct {
	ShiftTypes []string
	Days       []CalendarDay
	Warnings   []string
}

// CalendarDay holds one date's assignments, aligned with ShiftTypes.
// A vacant slot is stored as the empty string.
type CalendarDay struct {
	Date        string
	Assignments []string
}

// ParseCalendar parses a calendar-view document. Blank cells and vacancy
// tokens both become vacant, and missing trailing cells default to vacant.
func ParseCalendar(doc string) *CalendarGrid {
	t := ParseTableString(doc)
	g := &CalendarGrid{ShiftTypes: t.Columns, Warnings: t.Warnings}
	for _, row := range t.Rows {
		day := CalendarDay{Date: row.Key, Assignments: make([]string, len(row.Cells))}
		for i, cell := range row.Cells {
			if !IsVacant(cell) {
				day.Assignments[i] = cell
			}
		}
		g.Days = append(g.Days, day)
	}
	return g
}

// Slots expands the grid into one ShiftSlot per cell, vacant cells carrying
// models.VacantDoctor.
func (g *CalendarGrid) Slots() []models.ShiftSlot {
	slots := make([]models.ShiftSlot, 0, len(g.Days)*len(g.ShiftTypes))
	for _, day := range g.Days {
		for i, shift := range g.ShiftTypes {
			doctor := day.Assignments[i]
			if doctor == "" {
				doctor = models.VacantDoctor
			}
			slots = append(slots, models.ShiftSlot{Date: day.Date, ShiftType: shift, Doctor: doctor})
		}
	}
	return slots
}

// Lookup returns the occupant of a slot and whether the (date, shift) pair exists.
// A vacant slot returns "" and true.
func (g *CalendarGrid) Lookup(date, shiftType string) (string, bool) {
	col := -1
	for i, s := range g.ShiftTypes {
		if s == shiftType {
			col = i
			break
		}
	}
	if col < 0 {
		return "", false
	}
	for _, day := range g.Days {
		if day.Date == date {
			return day.Assignments[col], true
		}
	}
	return "", false
}

// Doctors returns the distinct assigned doctor names in first-seen order.
func (g *CalendarGrid) Doctors() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, day := range g.Days {
		for _, d := range day.Assignments {
			if d == "" {
				continue
			}
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				names = append(names, d)
			}
		}
	}
	return names
}

// Counts returns the total number of slots and how many carry an assignment.
func (g *CalendarGrid) Counts() (total, assigned int) {
	for _, day := range g.Days {
		for _, d := range day.Assignments {
			total++
			if d != "" {
				assigned++
			}
		}
	}
	return total, assigned
}

// CalendarFromRosterData builds a grid from structured roster data. Shift
// types are ordered by first appearance across sorted dates, then by name
// within a date, so the result is deterministic. A shift type missing from
// some date shows up as vacant on that date.
func CalendarFromRosterData(data models.RosterData) *CalendarGrid {
	g := &CalendarGrid{}
	index := make(map[string]int)
	dates := data.Dates()
	for _, date := range dates {
		shifts := make([]string, 0, len(data[date]))
		for s := range data[date] {
			shifts = append(shifts, s)
		}
		slices.Sort(shifts)
		for _, s := range shifts {
			if _, ok := index[s]; !ok {
				index[s] = len(g.ShiftTypes)
				g.ShiftTypes = append(g.ShiftTypes, s)
			}
		}
	}
	for _, date := range dates {
		day := CalendarDay{Date: date, Assignments: make([]string, len(g.ShiftTypes))}
		for s, doctor := range data[date] {
			if !IsVacant(doctor) {
				day.Assignments[index[s]] = strings.TrimSpace(doctor)
			}
		}
		g.Days = append(g.Days, day)
	}
	return g
}
