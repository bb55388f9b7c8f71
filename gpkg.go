/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package Gozonal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// GeoPackage 只读打开的 GeoPackage 矢量数据集
type GeoPackage struct {
	db     *sql.DB
	layers []gpkgLayerInfo
}

type gpkgLayerInfo struct {
	table    string
	geomCol  string
	srsID    int64
	geomType string
}

// OpenGeoPackage 打开 .gpkg，按 gpkg_contents 的 rowid 顺序列出要素图层
func OpenGeoPackage(path string) (*GeoPackage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("打开GeoPackage失败: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("打开GeoPackage失败: %w", err)
	}

	rows, err := db.Query(`
		SELECT c.table_name, g.column_name, g.srs_id, g.geometry_type_name
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.rowid`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("读取gpkg_contents失败: %w", err)
	}
	defer rows.Close()

	gp := &GeoPackage{db: db}
	for rows.Next() {
		var info gpkgLayerInfo
		if err := rows.Scan(&info.table, &info.geomCol, &info.srsID, &info.geomType); err != nil {
			db.Close()
			return nil, fmt.Errorf("读取图层信息失败: %w", err)
		}
		gp.layers = append(gp.layers, info)
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}
	return gp, nil
}

func (g *GeoPackage) LayerCount() int { return len(g.layers) }

func (g *GeoPackage) Layer(index int) (FeatureLayer, error) {
	if index < 0 || index >= len(g.layers) {
		return nil, fmt.Errorf("layer %d out of range [0,%d)", index, len(g.layers))
	}
	return &gpkgLayer{db: g.db, info: g.layers[index]}, nil
}

// LayerNames 图层名列表
func (g *GeoPackage) LayerNames() []string {
	names := make([]string, len(g.layers))
	for i, l := range g.layers {
		names[i] = l.table
	}
	return names
}

func (g *GeoPackage) Close() error {
	return g.db.Close()
}

type gpkgLayer struct {
	db   *sql.DB
	info gpkgLayerInfo
}

func (l *gpkgLayer) Name() string { return l.info.table }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Range 按 rowid 顺序遍历要素
func (l *gpkgLayer) Range(fn func(Feature) error) error {
	query := fmt.Sprintf("SELECT rowid, * FROM %s ORDER BY rowid", quoteIdent(l.info.table))
	rows, err := l.db.Query(query)
	if err != nil {
		return fmt.Errorf("查询图层 %s 失败: %w", l.info.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("读取要素失败: %w", err)
		}

		fid, _ := vals[0].(int64)
		f := Feature{FID: fid, Properties: map[string]any{}}
		for i := 1; i < len(cols); i++ {
			if strings.EqualFold(cols[i], l.info.geomCol) {
				blob, _ := vals[i].([]byte)
				geom, err := DecodeGeoPackageGeometry(blob)
				if err != nil {
					return fmt.Errorf("要素 %d 几何解析失败: %w", fid, err)
				}
				f.Geometry = geom
				continue
			}
			if b, ok := vals[i].([]byte); ok {
				f.Properties[cols[i]] = string(b)
				continue
			}
			f.Properties[cols[i]] = vals[i]
		}

		if err := fn(f); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GeoPackage 几何头部标志位
const (
	gpkgFlagEnvelope = 0x0e
	gpkgFlagEmpty    = 0x10
)

// gpkgEnvelopeSize 按信封类型返回字节数
var gpkgEnvelopeSize = [...]int{0, 32, 48, 48, 64}

var errGPKGHeader = errors.New("invalid GeoPackage geometry header")

// DecodeGeoPackageGeometry 去掉 GP 头部后解析 WKB
// 空 blob 或带空几何标志时返回 nil
func DecodeGeoPackageGeometry(blob []byte) (orb.Geometry, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errGPKGHeader
	}

	flags := blob[3]
	if flags&gpkgFlagEmpty != 0 {
		return nil, nil
	}
	envCode := int(flags&gpkgFlagEnvelope) >> 1
	if envCode >= len(gpkgEnvelopeSize) {
		return nil, fmt.Errorf("%w: envelope code %d", errGPKGHeader, envCode)
	}
	offset := 8 + gpkgEnvelopeSize[envCode]
	if len(blob) <= offset {
		return nil, fmt.Errorf("%w: truncated blob", errGPKGHeader)
	}

	geom, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, fmt.Errorf("解析WKB失败: %w", err)
	}
	return geom, nil
}
