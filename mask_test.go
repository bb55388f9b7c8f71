package Gozonal

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countOnes(mask []uint8) int {
	n := 0
	for _, m := range mask {
		n += int(m)
	}
	return n
}

func TestPlanarRasterizer_CenterVsAllTouched(t *testing.T) {
	gt := northUp(0, 4, 1)
	poly := orb.Polygon{{{0.6, 1.6}, {2.4, 1.6}, {2.4, 3.4}, {0.6, 3.4}, {0.6, 1.6}}}

	center, err := PlanarRasterizer{}.RasterizeMask(poly, 4, 4, gt, false)
	require.NoError(t, err)
	assert.Equal(t, 1, countOnes(center))
	assert.Equal(t, uint8(1), center[1*4+1])

	touched, err := PlanarRasterizer{}.RasterizeMask(poly, 4, 4, gt, true)
	require.NoError(t, err)
	assert.Equal(t, 9, countOnes(touched))
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.Equal(t, uint8(1), touched[r*4+c], "row %d col %d", r, c)
		}
	}
}

func TestPlanarRasterizer_Hole(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {3, 0}, {3, 3}, {0, 3}, {0, 0}},
		{{1.2, 1.2}, {1.8, 1.2}, {1.8, 1.8}, {1.2, 1.8}, {1.2, 1.2}},
	}
	mask, err := PlanarRasterizer{}.RasterizeMask(poly, 3, 3, northUp(0, 3, 1), false)
	require.NoError(t, err)
	assert.Equal(t, 8, countOnes(mask))
	assert.Equal(t, uint8(0), mask[4])
}

func TestPlanarRasterizer_SharedEdgesCountOnce(t *testing.T) {
	gt := northUp(0, 4, 1)
	rect := func(x0, y0, x1, y1 float64) orb.Polygon {
		return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
	}
	// 分割线穿过像元中心
	parts := []orb.Polygon{
		rect(0, 0, 1.5, 2.5),
		rect(1.5, 0, 4, 2.5),
		rect(0, 2.5, 1.5, 4),
		rect(1.5, 2.5, 4, 4),
	}

	union := make([]uint8, 16)
	total := 0
	for _, p := range parts {
		mask, err := PlanarRasterizer{}.RasterizeMask(p, 4, 4, gt, false)
		require.NoError(t, err)
		for i, m := range mask {
			if m == 1 {
				assert.Zero(t, union[i], "cell %d burned twice", i)
				union[i] = 1
			}
		}
		total += countOnes(mask)
	}
	assert.Equal(t, 16, total)
	assert.Equal(t, 16, countOnes(union))

	whole, err := PlanarRasterizer{}.RasterizeMask(rect(0, 0, 4, 4), 4, 4, gt, false)
	require.NoError(t, err)
	assert.Equal(t, 16, countOnes(whole))
}

func TestContainsHalfOpen(t *testing.T) {
	sq := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	assert.True(t, containsHalfOpen(sq, orb.Point{1, 1}))
	assert.True(t, containsHalfOpen(sq, orb.Point{0, 1}))
	assert.False(t, containsHalfOpen(sq, orb.Point{2, 1}))
	assert.True(t, containsHalfOpen(sq, orb.Point{1, 0}))
	assert.False(t, containsHalfOpen(sq, orb.Point{1, 2}))
	assert.False(t, containsHalfOpen(sq, orb.Point{3, 1}))
	assert.False(t, containsHalfOpen(orb.Polygon{}, orb.Point{1, 1}))
}

func TestPlanarRasterizer_Line(t *testing.T) {
	line := orb.LineString{{0.5, 3.5}, {3.5, 3.5}}
	mask, err := PlanarRasterizer{}.RasterizeMask(line, 4, 4, northUp(0, 4, 1), false)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 1, 1, 1}, mask[:4])
	assert.Equal(t, 4, countOnes(mask))

	diag := orb.LineString{{0.5, 3.5}, {3.5, 0.5}}
	mask, err = PlanarRasterizer{}.RasterizeMask(diag, 4, 4, northUp(0, 4, 1), false)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint8(1), mask[i*4+i])
	}
}

func TestPlanarRasterizer_Edges(t *testing.T) {
	mask, err := PlanarRasterizer{}.RasterizeMask(nil, 2, 2, northUp(0, 2, 1), true)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 0, 0}, mask)

	mask, err = PlanarRasterizer{}.RasterizeMask(orb.Point{10, 10}, 2, 2, northUp(0, 2, 1), true)
	require.NoError(t, err)
	assert.Zero(t, countOnes(mask))

	_, err = PlanarRasterizer{}.RasterizeMask(orb.Point{1, 1}, 2, 2, GeoTransform{}, false)
	require.Error(t, err)
	assert.Equal(t, KindRuntime, KindOf(err))

	_, err = PlanarRasterizer{}.RasterizeMask(orb.Point{1, 1}, -1, 2, northUp(0, 2, 1), false)
	assert.True(t, IsInvalidArgument(err))
}

func TestClipSegment(t *testing.T) {
	x0, y0, x1, y1, ok := clipSegment(-1, 1, 5, 1, 4, 4)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 4, 1}, []float64{x0, y0, x1, y1})

	_, _, _, _, ok = clipSegment(-3, -1, -1, -2, 4, 4)
	assert.False(t, ok)
}
