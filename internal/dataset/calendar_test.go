package dataset

import (
	"testing"

	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCalendar_BlankCellIsVacant(t *testing.T) {
	g := ParseCalendar("Date,Blue,Green\n2025-01-01,,Dr.X\n")

	require.Equal(t, []string{"Blue", "Green"}, g.ShiftTypes)
	slots := g.Slots()
	require.Len(t, slots, 2)

	assert.Equal(t, models.ShiftSlot{Date: "2025-01-01", ShiftType: "Blue", Doctor: models.VacantDoctor}, slots[0])
	assert.True(t, slots[0].Vacant())
	assert.Equal(t, models.ShiftSlot{Date: "2025-01-01", ShiftType: "Green", Doctor: "Dr.X"}, slots[1])
	assert.False(t, slots[1].Vacant())

	total, assigned := g.Counts()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, assigned)
}

func TestParseCalendar_VacancyTokens(t *testing.T) {
	doc := "Date,A,B,C,D,E\n2025-01-01,VACANT,vacant,Unassigned,-,Dr Y\n"
	g := ParseCalendar(doc)

	total, assigned := g.Counts()
	assert.Equal(t, 5, total)
	assert.Equal(t, 1, assigned)
	assert.Equal(t, []string{"Dr Y"}, g.Doctors())
}

func TestParseCalendar_ShortRowDefaultsToVacant(t *testing.T) {
	g := ParseCalendar("Date,Blue,Green,Red\n2025-01-01,Dr A\n2025-01-02,Dr B,Dr C,Dr D\n")

	require.Len(t, g.Days, 2)
	assert.Equal(t, []string{"Dr A", "", ""}, g.Days[0].Assignments)

	total, assigned := g.Counts()
	assert.Equal(t, 6, total)
	assert.Equal(t, 4, assigned)
}

func TestCalendarLookup(t *testing.T) {
	g := ParseCalendar("Date,Blue,Green\n2025-01-01,Dr A,VACANT\n")

	doctor, ok := g.Lookup("2025-01-01", "Blue")
	assert.True(t, ok)
	assert.Equal(t, "Dr A", doctor)

	doctor, ok = g.Lookup("2025-01-01", "Green")
	assert.True(t, ok)
	assert.Empty(t, doctor)

	_, ok = g.Lookup("2025-01-02", "Blue")
	assert.False(t, ok)
	_, ok = g.Lookup("2025-01-01", "Purple")
	assert.False(t, ok)
}

func TestCalendarFromRosterData(t *testing.T) {
	data := models.RosterData{
		"2025-01-02": {"Blue": "Dr A", "Green": ""},
		"2025-01-01": {"Green": "Dr B", "Blue": "VACANT"},
	}
	g := CalendarFromRosterData(data)

	assert.Equal(t, []string{"Blue", "Green"}, g.ShiftTypes)
	require.Len(t, g.Days, 2)
	assert.Equal(t, "2025-01-01", g.Days[0].Date)
	assert.Equal(t, []string{"", "Dr B"}, g.Days[0].Assignments)
	assert.Equal(t, []string{"Dr A", ""}, g.Days[1].Assignments)
}
