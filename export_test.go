package Gozonal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []StatRecord {
	stats := []string{StatCount, StatMin, StatMax}
	return []StatRecord{
		ComputeStats([]float64{1, 2, 3}, stats, 0, 0),
		ComputeStats(nil, stats, 0, 0),
	}
}

func TestExportZonal_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonal.xlsx")
	require.NoError(t, ExportZonal(path, sampleRecords()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ZonalSheet}, f.GetSheetList())
	rows, err := f.GetRows(ZonalSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"feature", "count", "max", "min"}, rows[0])
	assert.Equal(t, []string{"0", "3", "3", "1"}, rows[1])
	assert.Equal(t, []string{"1", "0"}, rows[2])
}

func TestExportZonal_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zonal.json")
	require.NoError(t, ExportZonal(path, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"count":3,"max":3,"min":1},{"count":0,"max":null,"min":null}]`, string(data))
}

func TestExportZonal_UnsupportedFormat(t *testing.T) {
	err := ExportZonal(filepath.Join(t.TempDir(), "zonal.csv"), sampleRecords())
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
}

func TestWritePointsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.xlsx")
	coords := []orb.Point{{0.5, 1.5}, {3, 4}}
	require.NoError(t, WritePointsXLSX(path, coords, []*float64{floatPtr(2), nil}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(PointSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"point", "x", "y", "value"}, rows[0])
	assert.Equal(t, []string{"0", "0.5", "1.5", "2"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 3)
	assert.Equal(t, []string{"1", "3", "4"}, rows[2][:3])

	assert.Error(t, WritePointsXLSX(path, coords, nil))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
