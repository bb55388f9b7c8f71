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

	"github.com/paulmach/orb"
)

// MemRaster 内存栅格，每个波段按行优先存储
type MemRaster struct {
	Width     int
	Height    int
	Transform GeoTransform
	Bands     []MemBand
	closed    bool
}

// MemBand 内存波段
type MemBand struct {
	Data      []float64
	NoData    float64
	HasNoData bool
	owner     *MemRaster
}

// NewMemRaster 创建单波段内存栅格
func NewMemRaster(width, height int, gt GeoTransform, data []float64) (*MemRaster, error) {
	r := &MemRaster{Width: width, Height: height, Transform: gt}
	if err := r.AddBand(data); err != nil {
		return nil, err
	}
	return r, nil
}

// AddBand 追加波段
func (r *MemRaster) AddBand(data []float64) error {
	if len(data) != r.Width*r.Height {
		return fmt.Errorf("band size %d does not match %dx%d", len(data), r.Width, r.Height)
	}
	r.Bands = append(r.Bands, MemBand{Data: data})
	return nil
}

// SetNoData 设置波段 nodata，index 从 1 开始
func (r *MemRaster) SetNoData(index int, nodata float64) *MemRaster {
	if index >= 1 && index <= len(r.Bands) {
		r.Bands[index-1].NoData = nodata
		r.Bands[index-1].HasNoData = true
	}
	return r
}

func (r *MemRaster) Size() (int, int) { return r.Width, r.Height }

func (r *MemRaster) BandCount() int { return len(r.Bands) }

func (r *MemRaster) GeoTransform() (GeoTransform, error) {
	return r.Transform, nil
}

func (r *MemRaster) Band(index int) (RasterBand, error) {
	if r.closed {
		return nil, fmt.Errorf("raster is closed")
	}
	if index < 1 || index > len(r.Bands) {
		return nil, fmt.Errorf("band %d out of range [1,%d]", index, len(r.Bands))
	}
	b := &r.Bands[index-1]
	b.owner = r
	return b, nil
}

// Close 标记关闭，之后的读取返回错误
func (r *MemRaster) Close() error {
	r.closed = true
	return nil
}

// Closed 是否已关闭
func (r *MemRaster) Closed() bool { return r.closed }

// Reopen 重置关闭标记，供驱动多次打开同一对象
func (r *MemRaster) Reopen() *MemRaster {
	r.closed = false
	return r
}

func (b *MemBand) NoDataValue() (float64, bool) {
	return b.NoData, b.HasNoData
}

func (b *MemBand) ReadFloat64(col, row, width, height int) ([]float64, error) {
	r := b.owner
	if r != nil && r.closed {
		return nil, fmt.Errorf("raster is closed")
	}
	w, h := len(b.Data), 1
	if r != nil {
		w, h = r.Width, r.Height
	}
	if col < 0 || row < 0 || width < 0 || height < 0 || col+width > w || row+height > h {
		return nil, fmt.Errorf("read window (%d,%d %dx%d) outside raster %dx%d", col, row, width, height, w, h)
	}

	out := make([]float64, 0, width*height)
	for y := row; y < row+height; y++ {
		off := y*w + col
		out = append(out, b.Data[off:off+width]...)
	}
	return out, nil
}

// MemVector 内存矢量数据集
type MemVector struct {
	Layers []*MemLayer
}

// MemLayer 内存图层
type MemLayer struct {
	LayerName string
	Features  []Feature
}

// NewMemVector 以几何列表创建单图层数据集，FID 从 0 开始
func NewMemVector(name string, geoms ...orb.Geometry) *MemVector {
	layer := &MemLayer{LayerName: name}
	for i, g := range geoms {
		layer.Features = append(layer.Features, Feature{FID: int64(i), Geometry: g})
	}
	return &MemVector{Layers: []*MemLayer{layer}}
}

func (v *MemVector) LayerCount() int { return len(v.Layers) }

func (v *MemVector) Layer(index int) (FeatureLayer, error) {
	if index < 0 || index >= len(v.Layers) {
		return nil, fmt.Errorf("layer %d out of range [0,%d)", index, len(v.Layers))
	}
	return v.Layers[index], nil
}

func (v *MemVector) Close() error { return nil }

func (l *MemLayer) Name() string { return l.LayerName }

func (l *MemLayer) Range(fn func(Feature) error) error {
	for _, f := range l.Features {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
