// Package reporting renders analytics reports and saved-roster listings for
// terminals and spreadsheets.
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/peninsula-health/rosterctl/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatInt renders n with thousands separators.
func formatInt(n int) string {
	return printer.Sprintf("%d", n)
}

// MaxCellWidth caps column width; longer cells are truncated with "…".
const MaxCellWidth = 40

// WriteTable writes an aligned, space-separated table. Widths are measured
// in terminal cells so names with wide characters line up.
func WriteTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range min(len(row), len(widths)) {
			widths[i] = max(widths[i], min(MaxCellWidth, runewidth.StringWidth(row[i])))
		}
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = truncateName(cells[i], MaxCellWidth)
			}
			if i == len(widths)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = padRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " ")) //nolint:errcheck
	}

	writeRow(headers)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("─", n)
	}
	writeRow(rule)
	for _, row := range rows {
		writeRow(row)
	}
}

// truncateName shortens s to maxWidth terminal cells, replacing the tail with "…".
func truncateName(s string, maxWidth int) string {
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteDoctorTable lists per-doctor statistics.
func WriteDoctorTable(w io.Writer, rep *analytics.Report) {
	rows := make([][]string, 0, len(rep.Doctors))
	for _, d := range rep.Doctors {
		rows = append(rows, []string{
			d.Doctor,
			fixed2(d.EstimatedFTE),
			printer.Sprintf("%.1f", d.TotalHours),
			strconv.Itoa(d.TotalShifts),
			strconv.Itoa(d.ClinicalShifts),
			strconv.Itoa(d.AdminShifts),
			strconv.Itoa(d.UndesirableShifts),
			fixed2(d.FairnessScore),
			fixed2(d.Utilization) + "%",
		})
	}
	WriteTable(w, []string{"DOCTOR", "FTE", "HOURS", "SHIFTS", "CLINICAL", "ADMIN", "UNDESIRABLE", "FAIRNESS", "UTILIZATION"}, rows)
}

// WriteVacancyTable lists vacancy tallies per clinical shift type.
func WriteVacancyTable(w io.Writer, rep *analytics.Report) {
	rows := make([][]string, 0, len(rep.Vacancy.ByShift))
	for _, s := range rep.Vacancy.ByShift {
		rows = append(rows, []string{
			s.ShiftType,
			formatInt(s.Total),
			formatInt(s.Vacant),
			printer.Sprintf("%.1f%%", s.Rate*100),
		})
	}
	WriteTable(w, []string{"SHIFT", "SLOTS", "VACANT", "RATE"}, rows)
}

// WriteRosterTable lists saved rosters.
func WriteRosterTable(w io.Writer, rosters []*models.SavedRoster) {
	rows := make([][]string, 0, len(rosters))
	for _, r := range rosters {
		name := r.Name
		if r.Archived {
			name += " (archived)"
		}
		rows = append(rows, []string{
			r.ID,
			name,
			r.StartDate + " → " + r.EndDate,
			formatInt(r.TotalShifts),
			strconv.Itoa(r.TotalDoctors),
			strconv.Itoa(r.CoverageRate) + "%",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	WriteTable(w, []string{"ID", "NAME", "PERIOD", "SHIFTS", "DOCTORS", "COVERAGE", "SAVED"}, rows)
}
