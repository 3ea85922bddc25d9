package dataset

import (
	"bytes"
	"encoding/csv"

	"github.com/peninsula-health/rosterctl/internal/models"
)

// FormatTable renders a label plus columns header and keyed rows in the
// optimizer's comma-delimited form.
func FormatTable(label string, columns []string, rows []TableRow) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(append([]string{label}, columns...))
	for _, r := range rows {
		_ = w.Write(append([]string{r.Key}, r.Cells...))
	}
	w.Flush()
	return buf.String()
}

// FormatCalendar renders a calendar grid, writing vacant slots as VACANT.
func FormatCalendar(g *CalendarGrid) string {
	rows := make([]TableRow, 0, len(g.Days))
	for _, day := range g.Days {
		cells := make([]string, len(g.ShiftTypes))
		for i := range cells {
			cells[i] = models.VacantDoctor
			if i < len(day.Assignments) && day.Assignments[i] != "" {
				cells[i] = day.Assignments[i]
			}
		}
		rows = append(rows, TableRow{Key: day.Date, Cells: cells})
	}
	return FormatTable("Date", g.ShiftTypes, rows)
}

// FormatDoctorView renders a doctor grid, writing days off as OFF.
func FormatDoctorView(g *DoctorGrid) string {
	rows := make([]TableRow, 0, len(g.Days))
	for _, day := range g.Days {
		cells := make([]string, len(g.Doctors))
		for i := range cells {
			cells[i] = OffToken
			if i < len(day.Shifts) && day.Shifts[i] != "" {
				cells[i] = day.Shifts[i]
			}
		}
		rows = append(rows, TableRow{Key: day.Date, Cells: cells})
	}
	return FormatTable("Date", g.Doctors, rows)
}
