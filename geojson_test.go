package Gozonal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFeatures(t *testing.T, src VectorSource, index int) []Feature {
	t.Helper()
	layer, err := src.Layer(index)
	require.NoError(t, err)
	var out []Feature
	require.NoError(t, layer.Range(func(f Feature) error {
		out = append(out, f)
		return nil
	}))
	return out
}

func TestParseGeoJSON_FeatureCollection(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","id":7,"properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[1,2]}},
		{"type":"Feature","properties":{},"geometry":null}
	]}`)
	src, err := ParseGeoJSON("zones", data)
	require.NoError(t, err)
	assert.Equal(t, 1, src.LayerCount())

	features := collectFeatures(t, src, 0)
	require.Len(t, features, 2)
	assert.Equal(t, int64(7), features[0].FID)
	assert.Equal(t, orb.Point{1, 2}, features[0].Geometry)
	assert.Equal(t, "a", features[0].Properties["name"])
	assert.Equal(t, int64(1), features[1].FID)
	assert.Nil(t, features[1].Geometry)

	layer, err := src.Layer(0)
	require.NoError(t, err)
	assert.Equal(t, "zones", layer.Name())

	_, err = src.Layer(1)
	assert.Error(t, err)
}

func TestParseGeoJSON_FeatureAndBareGeometry(t *testing.T) {
	src, err := ParseGeoJSON("one", []byte(`{"type":"Feature","properties":null,"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`))
	require.NoError(t, err)
	features := collectFeatures(t, src, 0)
	require.Len(t, features, 1)
	assert.Equal(t, orb.LineString{{0, 0}, {1, 1}}, features[0].Geometry)

	src, err = ParseGeoJSON("bare", []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	require.NoError(t, err)
	features = collectFeatures(t, src, 0)
	require.Len(t, features, 1)
	assert.Equal(t, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, features[0].Geometry)
}

func TestParseGeoJSON_Errors(t *testing.T) {
	_, err := ParseGeoJSON("x", []byte(`{"features":[]}`))
	assert.Error(t, err)

	_, err = ParseGeoJSON("x", []byte(`not json`))
	assert.Error(t, err)
}

func TestOpenVector_GeoJSONDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Point","coordinates":[3,4]}`), 0o644))

	src, err := OpenVector(path)
	require.NoError(t, err)
	defer src.Close()
	features := collectFeatures(t, src, 0)
	require.Len(t, features, 1)
	assert.Equal(t, orb.Point{3, 4}, features[0].Geometry)

	_, err = OpenVector(filepath.Join(t.TempDir(), "absent.geojson"))
	require.Error(t, err)
	assert.Equal(t, KindDataSource, KindOf(err))
}
