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
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// ==================== 外部数据访问接口 ====================

// RasterSource 已打开的栅格数据集
type RasterSource interface {
	Size() (width, height int)
	BandCount() int
	GeoTransform() (GeoTransform, error)
	// Band 按 1 起始的序号获取波段
	Band(index int) (RasterBand, error)
	Close() error
}

// RasterBand 单个波段
type RasterBand interface {
	// NoDataValue 返回波段自带的 nodata 值
	NoDataValue() (float64, bool)
	// ReadFloat64 读取矩形区域，按行优先返回 width*height 个值。区域必须位于栅格范围内
	ReadFloat64(col, row, width, height int) ([]float64, error)
}

// Feature 矢量要素，Geometry 为 nil 表示缺失几何
type Feature struct {
	FID        int64
	Geometry   orb.Geometry
	Properties map[string]any
}

// FeatureLayer 矢量图层
type FeatureLayer interface {
	Name() string
	// Range 按要素顺序回调，fn 返回错误时停止遍历并返回该错误
	Range(fn func(Feature) error) error
}

// VectorSource 已打开的矢量数据集
type VectorSource interface {
	LayerCount() int
	Layer(index int) (FeatureLayer, error)
	Close() error
}

// MaskRasterizer 把几何栅格化为与目标网格对齐的 0/1 掩膜
type MaskRasterizer interface {
	RasterizeMask(geom orb.Geometry, width, height int, gt GeoTransform, allTouched bool) ([]uint8, error)
}

// RasterOpener 栅格驱动
type RasterOpener func(path string) (RasterSource, error)

// VectorOpener 矢量驱动
type VectorOpener func(path string) (VectorSource, error)

// ==================== 驱动注册 ====================

var registry = struct {
	mu         sync.RWMutex
	raster     map[string]RasterOpener
	vector     map[string]VectorOpener
	rasterizer MaskRasterizer
}{
	raster:     map[string]RasterOpener{},
	vector:     map[string]VectorOpener{},
	rasterizer: PlanarRasterizer{},
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// RegisterRasterDriver 注册栅格驱动，ext 为空字符串表示兜底驱动
func RegisterRasterDriver(ext string, open RasterOpener) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.raster[normalizeExt(ext)] = open
}

// RegisterVectorDriver 注册矢量驱动，ext 为空字符串表示兜底驱动
func RegisterVectorDriver(ext string, open VectorOpener) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.vector[normalizeExt(ext)] = open
}

// SetDefaultRasterizer 替换默认掩膜栅格化实现
func SetDefaultRasterizer(r MaskRasterizer) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.rasterizer = r
}

// DefaultRasterizer 当前默认掩膜栅格化实现
func DefaultRasterizer() MaskRasterizer {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.rasterizer
}

// OpenRaster 按扩展名选择驱动打开栅格
func OpenRaster(path string) (RasterSource, error) {
	ext := normalizeExt(filepath.Ext(path))
	registry.mu.RLock()
	open, ok := registry.raster[ext]
	if !ok {
		open, ok = registry.raster[""]
	}
	registry.mu.RUnlock()
	if !ok {
		return nil, dataSourcef("open raster", "no raster driver for %q", path)
	}

	src, err := open(path)
	if err != nil {
		return nil, dataSourceErr("open raster", fmt.Errorf("%s: %w", path, err))
	}
	return src, nil
}

// OpenVector 按扩展名选择驱动打开矢量
func OpenVector(path string) (VectorSource, error) {
	ext := normalizeExt(filepath.Ext(path))
	registry.mu.RLock()
	open, ok := registry.vector[ext]
	if !ok {
		open, ok = registry.vector[""]
	}
	registry.mu.RUnlock()
	if !ok {
		return nil, dataSourcef("open vector", "no vector driver for %q", path)
	}

	src, err := open(path)
	if err != nil {
		return nil, dataSourceErr("open vector", fmt.Errorf("%s: %w", path, err))
	}
	return src, nil
}

func init() {
	RegisterRasterDriver(".asc", func(path string) (RasterSource, error) {
		g, err := OpenASCIIGrid(path)
		if err != nil {
			return nil, err
		}
		return g, nil
	})

	openGeoJSON := func(path string) (VectorSource, error) {
		v, err := OpenGeoJSON(path)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	RegisterVectorDriver(".geojson", openGeoJSON)
	RegisterVectorDriver(".json", openGeoJSON)
	RegisterVectorDriver(".gpkg", func(path string) (VectorSource, error) {
		g, err := OpenGeoPackage(path)
		if err != nil {
			return nil, err
		}
		return g, nil
	})
}
