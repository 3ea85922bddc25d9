package dataset

import (
	"strconv"
	"strings"
)

// OffToken is the doctor-view value for a day without an assignment.
const OffToken = "OFF"

// IsOff reports whether a doctor-view cell means no assignment.
func IsOff(cell string) bool {
	cell = strings.TrimSpace(cell)
	return cell == "" || cell == "-" || strings.EqualFold(cell, OffToken)
}

// DoctorGrid is the doctor view: rows are dates, columns are doctor names.
type DoctorGrid struct {
	Doctors  []string
	Days     []DoctorDay
	Warnings []string
}

// DoctorDay holds the shift label each doctor works on one date, aligned
// with Doctors. A day off is stored as the empty string.
type DoctorDay struct {
	Date   string
	Shifts []string
}

// ParseDoctorView parses a doctor-view document. Blank cells, missing
// trailing cells and the off token all become "off".
func ParseDoctorView(doc string) *DoctorGrid {
	t := ParseTableString(doc)
	g := &DoctorGrid{Doctors: t.Columns, Warnings: t.Warnings}
	for _, row := range t.Rows {
		day := DoctorDay{Date: row.Key, Shifts: make([]string, len(row.Cells))}
		for i, cell := range row.Cells {
			if !IsOff(cell) {
				day.Shifts[i] = cell
			}
		}
		g.Days = append(g.Days, day)
	}
	return g
}

// Assignment is one worked day for one doctor.
type Assignment struct {
	Doctor    string
	Date      string
	ShiftType string
}

// Assignments lists every non-off cell in date order, then column order.
func (g *DoctorGrid) Assignments() []Assignment {
	var out []Assignment
	for _, day := range g.Days {
		for i, shift := range day.Shifts {
			if shift == "" {
				continue
			}
			out = append(out, Assignment{Doctor: g.Doctors[i], Date: day.Date, ShiftType: shift})
		}
	}
	return out
}

// DoctorGridFromCalendar pivots a calendar grid into the doctor view. Doctor
// columns appear in first-seen order.
func DoctorGridFromCalendar(c *CalendarGrid) *DoctorGrid {
	g := &DoctorGrid{Doctors: c.Doctors()}
	col := make(map[string]int, len(g.Doctors))
	for i, d := range g.Doctors {
		col[d] = i
	}
	for _, cday := range c.Days {
		day := DoctorDay{Date: cday.Date, Shifts: make([]string, len(g.Doctors))}
		for i, doctor := range cday.Assignments {
			if doctor == "" {
				continue
			}
			// A doctor listed twice on one date keeps the first shift.
			if day.Shifts[col[doctor]] == "" {
				day.Shifts[col[doctor]] = c.ShiftTypes[i]
			}
		}
		g.Days = append(g.Days, day)
	}
	return g
}

// SummaryRow is one line of the doctor summary document.
type SummaryRow struct {
	Doctor            string
	EFT               float64
	TotalHours        float64
	MaxHours          float64
	Utilization       float64
	TotalShifts       int
	UndesirableShifts int
	ClinicalShifts    int
	AdminShifts       int
	RemainingHours    float64
}

// DoctorSummary is the parsed doctor summary document.
type DoctorSummary struct {
	Rows     []SummaryRow
	Warnings []string
}

// ParseDoctorSummary parses the doctor summary table. Unknown columns are
// ignored and unparsable numbers read as zero.
func ParseDoctorSummary(doc string) *DoctorSummary {
	t := ParseTableString(doc)
	s := &DoctorSummary{Warnings: t.Warnings}
	for i, row := range t.Rows {
		rec := t.Record(i)
		s.Rows = append(s.Rows, SummaryRow{
			Doctor:            row.Key,
			EFT:               parseFloat(rec["EFT"]),
			TotalHours:        parseFloat(rec["Total_Hours"]),
			MaxHours:          parseFloat(rec["Max_Hours"]),
			Utilization:       parseFloat(rec["EFT_Utilization_%"]),
			TotalShifts:       parseInt(rec["Total_Shifts"]),
			UndesirableShifts: parseInt(rec["Undesirable_Shifts"]),
			ClinicalShifts:    parseInt(rec["Clinical_Shifts"]),
			AdminShifts:       parseInt(rec["Admin_Shifts"]),
			RemainingHours:    parseFloat(rec["Remaining_Hours"]),
		})
	}
	return s
}

// EFT returns the summary EFT for doctor and whether a positive value is present.
func (s *DoctorSummary) EFT(doctor string) (float64, bool) {
	for _, r := range s.Rows {
		if r.Doctor == doctor && r.EFT > 0 {
			return r.EFT, true
		}
	}
	return 0, false
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseInt(v string) int {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return int(parseFloat(v))
}
