package Gozonal

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBilinear(t *testing.T) {
	block := [2][2]*float64{
		{floatPtr(10), floatPtr(20)},
		{floatPtr(30), floatPtr(40)},
	}
	v := bilinear(block, 0.5, 0.5)
	require.NotNil(t, v)
	assert.Equal(t, 25.0, *v)

	// (0,0) 为左下，(1,1) 为右上
	assert.Equal(t, 30.0, *bilinear(block, 0, 0))
	assert.Equal(t, 20.0, *bilinear(block, 1, 1))

	assert.Nil(t, bilinear(block, -0.1, 0.5))
	assert.Nil(t, bilinear(block, 0.5, 1.1))
}

func TestBilinear_MissingCornerFallsBackToNearest(t *testing.T) {
	block := [2][2]*float64{
		{nil, floatPtr(20)},
		{floatPtr(30), floatPtr(40)},
	}
	assert.Nil(t, bilinear(block, 0.2, 0.9))
	assert.Equal(t, 20.0, *bilinear(block, 0.8, 0.9))
	assert.Equal(t, 30.0, *bilinear(block, 0.2, 0.1))
}

func TestSamplePoints(t *testing.T) {
	nodata := -1.0
	data := []float64{
		10, 20, 0,
		30, 40, 0,
		0, 0, nodata,
	}
	rc := newTestContext(t, 3, 3, northUp(0, 3, 1), data, &nodata)

	values, err := SamplePoints(rc, []orb.Point{{1, 2}, {0.5, 2.5}}, InterpolateBilinear, true)
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.NotNil(t, values[0])
	assert.Equal(t, 25.0, *values[0])
	require.NotNil(t, values[1])
	assert.Equal(t, 10.0, *values[1])

	values, err = SamplePoints(rc, []orb.Point{{2.5, 0.5}, {0.5, 2.5}, {-5, -5}}, InterpolateNearest, true)
	require.NoError(t, err)
	assert.Nil(t, values[0], "nodata")
	assert.Equal(t, 10.0, *values[1])
	assert.Nil(t, values[2], "outside")
}

func TestSamplePoints_InvalidArguments(t *testing.T) {
	rc := newTestContext(t, 2, 2, northUp(0, 2, 1), seq(4), nil)

	_, err := SamplePoints(rc, []orb.Point{{math.NaN(), 1}}, InterpolateNearest, true)
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "x must be finite")

	_, err = SamplePoints(rc, []orb.Point{{1, math.Inf(1)}}, InterpolateBilinear, true)
	assert.Contains(t, err.Error(), "y must be finite")

	_, err = SamplePoints(rc, []orb.Point{{1, 1}}, "cubic", true)
	assert.True(t, IsInvalidArgument(err))

	values, err := SamplePoints(rc, nil, InterpolateNearest, true)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestGeometryCoords(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {4, 0}, {4, 4}, {0, 0}},
		{{1, 1}, {2, 1}, {1, 2}, {1, 1}},
	}
	assert.Len(t, GeometryCoords(poly), 8)

	coll := orb.Collection{orb.Point{1, 2}, orb.LineString{{3, 4}, {5, 6}}}
	assert.Equal(t, []orb.Point{{1, 2}, {3, 4}, {5, 6}}, GeometryCoords(coll))

	assert.Empty(t, GeometryCoords(nil))
}

func TestPointValues_MarshalJSON(t *testing.T) {
	single := PointValues{Values: []*float64{floatPtr(1.5)}}
	multi := PointValues{Values: []*float64{floatPtr(1), nil, floatPtr(math.NaN())}}

	data, err := json.Marshal([]PointValues{single, multi})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,[1,null,null]]`, string(data))

	data, err = json.Marshal(NullableFloats{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}
