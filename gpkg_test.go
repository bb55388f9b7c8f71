package Gozonal

import (
	"database/sql"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gpkgBlob 拼装 GP 头部，envCode 为 1 时附带 32 字节信封
func gpkgBlob(t *testing.T, geom orb.Geometry, envCode byte) []byte {
	t.Helper()
	body, err := wkb.Marshal(geom)
	require.NoError(t, err)

	head := []byte{'G', 'P', 0, 0x01 | envCode<<1, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(head[4:], 4326)
	if envCode == 1 {
		head = append(head, make([]byte, 32)...)
	}
	return append(head, body...)
}

func TestDecodeGeoPackageGeometry(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}

	g, err := DecodeGeoPackageGeometry(gpkgBlob(t, poly, 0))
	require.NoError(t, err)
	assert.Equal(t, poly, g)

	g, err = DecodeGeoPackageGeometry(gpkgBlob(t, orb.Point{1, 2}, 1))
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1, 2}, g)

	g, err = DecodeGeoPackageGeometry(nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = DecodeGeoPackageGeometry([]byte{'G', 'P', 0, 0x11, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = DecodeGeoPackageGeometry([]byte("XX0000000000"))
	assert.ErrorIs(t, err, errGPKGHeader)

	_, err = DecodeGeoPackageGeometry([]byte{'G', 'P', 0, 0x01 | 5<<1, 0, 0, 0, 0, 1})
	assert.ErrorIs(t, err, errGPKGHeader)

	_, err = DecodeGeoPackageGeometry([]byte{'G', 'P', 0, 0x03, 0, 0, 0, 0})
	assert.ErrorIs(t, err, errGPKGHeader)
}

func writeTestGeoPackage(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_contents (table_name TEXT PRIMARY KEY, data_type TEXT NOT NULL, identifier TEXT, srs_id INTEGER)`,
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT, column_name TEXT, geometry_type_name TEXT, srs_id INTEGER, z TINYINT, m TINYINT)`,
		`CREATE TABLE parcels (fid INTEGER PRIMARY KEY AUTOINCREMENT, geom BLOB, name TEXT, area REAL)`,
		`CREATE TABLE lookup (id INTEGER PRIMARY KEY, label TEXT)`,
		`INSERT INTO gpkg_contents VALUES ('parcels', 'features', 'parcels', 4326)`,
		`INSERT INTO gpkg_contents VALUES ('lookup', 'attributes', 'lookup', 0)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('parcels', 'geom', 'POLYGON', 4326, 0, 0)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}

	_, err = db.Exec(`INSERT INTO parcels (geom, name, area) VALUES (?, ?, ?)`,
		gpkgBlob(t, orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}, 1), "a", 4.0)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO parcels (geom, name, area) VALUES (NULL, 'b', 0)`)
	require.NoError(t, err)
}

func TestOpenGeoPackage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parcels.gpkg")
	writeTestGeoPackage(t, path)

	src, err := OpenVector(path)
	require.NoError(t, err)
	defer src.Close()

	gp, ok := src.(*GeoPackage)
	require.True(t, ok)
	assert.Equal(t, []string{"parcels"}, gp.LayerNames())
	assert.Equal(t, 1, gp.LayerCount())

	features := collectFeatures(t, src, 0)
	require.Len(t, features, 2)
	assert.Equal(t, int64(1), features[0].FID)
	assert.Equal(t, orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}, features[0].Geometry)
	assert.Equal(t, "a", features[0].Properties["name"])
	assert.Equal(t, 4.0, features[0].Properties["area"])
	assert.Nil(t, features[1].Geometry)

	_, err = gp.Layer(1)
	assert.Error(t, err)
}

func TestOpenGeoPackage_Missing(t *testing.T) {
	_, err := OpenGeoPackage(filepath.Join(t.TempDir(), "absent.gpkg"))
	assert.Error(t, err)
}
