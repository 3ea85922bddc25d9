package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/xuri/excelize/v2"
)

// Sheet names written by WriteWorkbook.
const (
	SheetTeam        = "Team"
	SheetDoctors     = "Doctors"
	SheetVacancies   = "Vacancies"
	SheetUndesirable = "Undesirable"
)

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (s *sheetWriter) write(values ...any) {
	if s.err != nil {
		return
	}
	s.row++
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			s.err = err
			return
		}
		if err := s.f.SetCellValue(s.sheet, cell, v); err != nil {
			s.err = err
			return
		}
	}
}

// WriteWorkbook writes rep as an XLSX workbook with one sheet per section.
func WriteWorkbook(w io.Writer, rep *analytics.Report) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", SheetTeam); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	for _, name := range []string{SheetDoctors, SheetVacancies, SheetUndesirable} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx: adding sheet %s: %w", name, err)
		}
	}

	t := rep.Team
	team := &sheetWriter{f: f, sheet: SheetTeam}
	team.write("Metric", "Value")
	team.write("Doctors", t.Doctors)
	team.write("Average FTE", t.AverageFTE)
	team.write("Average hours", t.AverageHours)
	team.write("Average utilization %", t.AverageUtilization)
	team.write("Average fairness score", t.AverageFairness)
	team.write("Average undesirable shifts", t.AverageUndesirable)
	team.write("Undesirable std dev", t.UndesirableStdDev)
	team.write("Clinical slots", t.TotalSlots)
	team.write("Vacant slots", t.VacantSlots)
	team.write("Vacancy rate", t.OverallVacancyRate)

	doctors := &sheetWriter{f: f, sheet: SheetDoctors}
	doctors.write("Doctor", "FTE", "Hours", "Shifts", "Clinical", "Admin", "Undesirable", "Penalty points", "Fairness ratio", "Fairness score", "Utilization %")
	for _, d := range rep.Doctors {
		doctors.write(d.Doctor, d.EstimatedFTE, d.TotalHours, d.TotalShifts, d.ClinicalShifts, d.AdminShifts,
			d.UndesirableShifts, d.PenaltyPoints, d.FairnessRatio, d.FairnessScore, d.Utilization)
	}

	vac := &sheetWriter{f: f, sheet: SheetVacancies}
	vac.write("Date", "Shift", "Urgency")
	for _, v := range rep.Vacancy.Vacancies {
		vac.write(v.Date, v.ShiftType, string(v.Urgency))
	}

	und := &sheetWriter{f: f, sheet: SheetUndesirable}
	und.write("Doctor", "Date", "Shift", "Score", "Reasons")
	for _, u := range rep.Undesirable {
		und.write(u.Doctor, u.Date, u.ShiftType, u.Score, strings.Join(u.Reasons, "; "))
	}

	for _, s := range []*sheetWriter{team, doctors, vac, und} {
		if s.err != nil {
			return fmt.Errorf("xlsx: writing %s: %w", s.sheet, s.err)
		}
	}
	_ = f.SetColWidth(SheetTeam, "A", "A", 28)
	_ = f.SetColWidth(SheetDoctors, "A", "A", 22)
	_ = f.SetColWidth(SheetVacancies, "B", "B", 28)
	_ = f.SetColWidth(SheetUndesirable, "C", "C", 28)
	_ = f.SetColWidth(SheetUndesirable, "E", "E", 48)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
