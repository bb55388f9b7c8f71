package Gozonal

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	s, err := OpenResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResultStore_RunZonal(t *testing.T) {
	s := openTestStore(t)
	e := memEngine(t, square(0, 2, 2), nil)

	opts := DefaultZonalOptions()
	opts.Stats = []string{StatCount, StatMin, StatMean}
	taskID, records, err := s.RunZonal(e, "zones.geojson", "dem.asc", opts)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, taskID, 36)

	task, err := s.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskKindZonal, task.Kind)
	assert.Equal(t, TaskDone, task.Status)
	assert.Equal(t, 2, task.ItemCount)
	assert.Equal(t, "dem.asc", task.RasterPath)
	assert.Contains(t, task.Args, `"Stats":["count","min","mean"]`)

	loaded, err := s.LoadZonal(taskID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(4), loaded[0].Ints[StatCount])
	assert.Equal(t, 1.0, *loaded[0].Floats[StatMin])
	assert.Equal(t, 3.5, *loaded[0].Floats[StatMean])
	assert.Equal(t, int64(0), loaded[1].Ints[StatCount])
	v, ok := loaded[1].Get(StatMean)
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestResultStore_FailedTask(t *testing.T) {
	s := openTestStore(t)
	e := memEngine(t, square(0, 2, 2))

	opts := DefaultZonalOptions()
	opts.Layer = 3
	taskID, _, err := s.RunZonal(e, "zones.geojson", "dem.asc", opts)
	require.Error(t, err)
	require.NotEmpty(t, taskID)

	task, err := s.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskFailed, task.Status)
	assert.Contains(t, task.Message, "out of range")

	_, err = s.GetTask("missing")
	assert.Error(t, err)
}

func TestResultStore_Points(t *testing.T) {
	s := openTestStore(t)
	e := memEngine(t, orb.LineString{{0.5, 3.5}, {3.5, 0.5}}, orb.Point{-10, -10})

	opts := DefaultPointQueryOptions()
	opts.Interpolate = InterpolateNearest
	taskID, values, err := s.RunPointQuery(e, "dem.asc", []orb.Point{{0.5, 3.5}, {-10, -10}}, opts)
	require.NoError(t, err)
	require.Len(t, values, 2)

	rows, err := s.LoadPoints(taskID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, *rows[0].Value)
	assert.Nil(t, rows[1].Value)
	assert.Equal(t, 1, rows[1].FeatureIndex)
	assert.Equal(t, -10.0, rows[1].X)

	vecID, groups, err := s.RunPointQueryVector(e, "pts.geojson", "dem.asc", opts)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	rows, err = s.LoadPoints(vecID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{0, 0, 1}, []int{rows[0].FeatureIndex, rows[1].FeatureIndex, rows[2].FeatureIndex})
	assert.Equal(t, 16.0, *rows[1].Value)

	task, err := s.GetTask(vecID)
	require.NoError(t, err)
	assert.Equal(t, TaskKindPointVector, task.Kind)
	assert.Equal(t, 2, task.ItemCount)

	tasks, err := s.ListTasks(1)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, vecID, tasks[0].TaskID)

	tasks, err = s.ListTasks(0)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestResultStore_SavePointsMismatch(t *testing.T) {
	s := openTestStore(t)
	err := s.SavePoints("t", []orb.Point{{1, 1}}, nil, nil)
	assert.Error(t, err)
}

func TestResultStore_BeginTaskUnencodableArgs(t *testing.T) {
	s := openTestStore(t)

	opts := DefaultZonalOptions()
	nan := math.NaN()
	opts.NoData = &nan
	taskID, err := s.BeginTask(TaskKindZonal, "zones.geojson", "dem.asc", opts)
	require.NoError(t, err)

	task, err := s.GetTask(taskID)
	require.NoError(t, err)
	assert.Contains(t, task.Args, "unsupported value")
	assert.Equal(t, TaskRunning, task.Status)
}
