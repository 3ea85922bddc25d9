package reporting

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	rep := sampleReport()

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rep))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	assert.Equal(t, []string{SheetTeam, SheetDoctors, SheetVacancies, SheetUndesirable}, f.GetSheetList())

	doctors, err := f.GetRows(SheetDoctors)
	require.NoError(t, err)
	require.Len(t, doctors, 1+len(rep.Doctors))
	assert.Equal(t, "Doctor", doctors[0][0])

	vacancies, err := f.GetRows(SheetVacancies)
	require.NoError(t, err)
	require.Len(t, vacancies, 2)
	assert.Equal(t, []string{"2025-01-03", "Rosebud Red PM"}, vacancies[1][:2])

	team, err := f.GetRows(SheetTeam)
	require.NoError(t, err)
	assert.Equal(t, []string{"Doctors", "2"}, team[1])
}
