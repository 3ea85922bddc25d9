package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDoctorView(t *testing.T) {
	doc := "Date,Dr A,Dr B,Dr C\n" +
		"2025-01-03,Frankston Blue AM,OFF,\n" +
		"2025-01-04,off,Rosebud Red PM\n"
	g := ParseDoctorView(doc)

	require.Equal(t, []string{"Dr A", "Dr B", "Dr C"}, g.Doctors)
	require.Len(t, g.Days, 2)
	assert.Equal(t, []string{"Frankston Blue AM", "", ""}, g.Days[0].Shifts)
	assert.Equal(t, []string{"", "Rosebud Red PM", ""}, g.Days[1].Shifts)

	assignments := g.Assignments()
	require.Len(t, assignments, 2)
	assert.Equal(t, Assignment{Doctor: "Dr A", Date: "2025-01-03", ShiftType: "Frankston Blue AM"}, assignments[0])
	assert.Equal(t, Assignment{Doctor: "Dr B", Date: "2025-01-04", ShiftType: "Rosebud Red PM"}, assignments[1])
}

func TestDoctorGridFromCalendar(t *testing.T) {
	c := ParseCalendar("Date,Blue,Green\n2025-01-01,Dr A,Dr B\n2025-01-02,VACANT,Dr A\n")
	g := DoctorGridFromCalendar(c)

	assert.Equal(t, []string{"Dr A", "Dr B"}, g.Doctors)
	require.Len(t, g.Days, 2)
	assert.Equal(t, []string{"Blue", "Green"}, g.Days[0].Shifts)
	assert.Equal(t, []string{"Green", ""}, g.Days[1].Shifts)
}

func TestParseDoctorSummary(t *testing.T) {
	doc := "Doctor_Name,EFT,Total_Hours,Max_Hours,EFT_Utilization_%,Total_Shifts,Undesirable_Shifts,Clinical_Shifts,Admin_Shifts,Remaining_Hours\n" +
		"Dr A,1.00,118.0,120.0,98.3,12,3,9,3,2.0\n" +
		"Dr B,abc,40.0\n"
	s := ParseDoctorSummary(doc)

	require.Len(t, s.Rows, 2)
	a := s.Rows[0]
	assert.Equal(t, "Dr A", a.Doctor)
	assert.InDelta(t, 1.0, a.EFT, 1e-9)
	assert.InDelta(t, 98.3, a.Utilization, 1e-9)
	assert.Equal(t, 12, a.TotalShifts)
	assert.Equal(t, 3, a.UndesirableShifts)
	assert.Equal(t, 9, a.ClinicalShifts)
	assert.Equal(t, 3, a.AdminShifts)

	b := s.Rows[1]
	assert.Zero(t, b.EFT)
	assert.InDelta(t, 40.0, b.TotalHours, 1e-9)
	assert.Zero(t, b.TotalShifts)

	eft, ok := s.EFT("Dr A")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, eft, 1e-9)
	_, ok = s.EFT("Dr B")
	assert.False(t, ok)
}

func TestIsOff(t *testing.T) {
	for _, cell := range []string{"", " ", "OFF", "off", "Off", "-"} {
		assert.True(t, IsOff(cell), cell)
	}
	assert.False(t, IsOff("Frankston Admin-1 Admin"))
}
