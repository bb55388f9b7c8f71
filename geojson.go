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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// GeoJSONSource GeoJSON 矢量数据集，只有一个图层
type GeoJSONSource struct {
	layer *MemLayer
}

// OpenGeoJSON 读取 GeoJSON 文件，支持 FeatureCollection、Feature 与裸几何
func OpenGeoJSON(path string) (*GeoJSONSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取GeoJSON失败: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseGeoJSON(name, data)
}

// ParseGeoJSON 解析 GeoJSON 内容
func ParseGeoJSON(name string, data []byte) (*GeoJSONSource, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("解析GeoJSON失败: %w", err)
	}

	layer := &MemLayer{LayerName: name}
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("解析FeatureCollection失败: %w", err)
		}
		for i, f := range fc.Features {
			layer.Features = append(layer.Features, convertGeoJSONFeature(int64(i), f))
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("解析Feature失败: %w", err)
		}
		layer.Features = append(layer.Features, convertGeoJSONFeature(0, f))
	case "":
		return nil, fmt.Errorf("GeoJSON缺少type字段")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("解析几何失败: %w", err)
		}
		layer.Features = append(layer.Features, Feature{FID: 0, Geometry: g.Geometry()})
	}
	return &GeoJSONSource{layer: layer}, nil
}

// convertGeoJSONFeature 数值型 id 作为 FID，否则使用序号
func convertGeoJSONFeature(index int64, f *geojson.Feature) Feature {
	fid := index
	if id, ok := f.ID.(float64); ok && id == float64(int64(id)) {
		fid = int64(id)
	}
	return Feature{
		FID:        fid,
		Geometry:   f.Geometry,
		Properties: map[string]any(f.Properties),
	}
}

func (s *GeoJSONSource) LayerCount() int { return 1 }

func (s *GeoJSONSource) Layer(index int) (FeatureLayer, error) {
	if index != 0 {
		return nil, fmt.Errorf("GeoJSON只有一个图层，请求的图层 %d 不存在", index)
	}
	return s.layer, nil
}

func (s *GeoJSONSource) Close() error { return nil }
