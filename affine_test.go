package Gozonal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// northUp 左上角 (x0,y0)、像元大小 size 的北向上变换
func northUp(x0, y0, size float64) GeoTransform {
	return GeoTransform{x0, size, 0, y0, 0, -size}
}

// newTestContext 以内存栅格构造单波段句柄
func newTestContext(t *testing.T, width, height int, gt GeoTransform, data []float64, nodata *float64) *RasterContext {
	t.Helper()
	mem, err := NewMemRaster(width, height, gt, data)
	require.NoError(t, err)
	rc, err := NewRasterContext(mem, 1, nodata)
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestGeoTransform_InvertRoundTrip(t *testing.T) {
	gt := GeoTransform{100, 2, 0.5, 200, 0.3, -2}
	inv, ok := gt.Invert()
	require.True(t, ok)

	x, y := gt.PixelToWorld(3, 4)
	col, row := inv.Apply(x, y)
	assert.InDelta(t, 3.0, col, 1e-9)
	assert.InDelta(t, 4.0, row, 1e-9)
}

func TestGeoTransform_Singular(t *testing.T) {
	gt := GeoTransform{0, 1, 2, 0, 2, 4}
	assert.False(t, gt.Invertible())
	_, ok := gt.Invert()
	assert.False(t, ok)

	_, err := NewRasterContext(&MemRaster{Width: 1, Height: 1, Transform: gt, Bands: []MemBand{{Data: []float64{1}}}}, 1, nil)
	require.Error(t, err)
	assert.Equal(t, KindRuntime, KindOf(err))
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestGeoTransform_WindowGeoTransform(t *testing.T) {
	gt := northUp(10, 50, 2)
	w := PixelWindow{RowStart: 4, RowEnd: 6, ColStart: 3, ColEnd: 5}
	assert.Equal(t, GeoTransform{16, 2, 0, 42, 0, -2}, gt.WindowGeoTransform(w))

	rotated := GeoTransform{0, 1, 0.5, 10, 0.5, -1}
	got := rotated.WindowGeoTransform(PixelWindow{RowStart: 2, ColStart: 1})
	assert.Equal(t, GeoTransform{2, 1, 0.5, 8.5, 0.5, -1}, got)
}

func TestPixelWindow_Size(t *testing.T) {
	w := PixelWindow{RowStart: -1, RowEnd: 2, ColStart: 3, ColEnd: 3}
	assert.False(t, w.IsEmpty())
	assert.Equal(t, 1, w.Width())
	assert.Equal(t, 4, w.Height())

	empty := PixelWindow{RowStart: 2, RowEnd: 1}
	assert.True(t, empty.IsEmpty())
	assert.Zero(t, empty.Width())
	assert.Zero(t, empty.Height())
}

func TestToIndex_Saturates(t *testing.T) {
	assert.Equal(t, maxIndex, toIndex(math.Inf(1)))
	assert.Equal(t, -maxIndex, toIndex(math.Inf(-1)))
	assert.Equal(t, 0, toIndex(math.NaN()))
	assert.Equal(t, -3, toIndex(-3))
}
