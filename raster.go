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
	"math"
)

// machineEpsilon float64 机器精度，用于 nodata 比较
const machineEpsilon = 0x1p-52

// RasterContext 一次调用内打开的单波段栅格句柄，只读，调用结束时关闭
type RasterContext struct {
	source       RasterSource
	band         RasterBand
	bandIndex    int
	nodata       float64
	hasNoData    bool
	geoTransform GeoTransform
	inverse      GeoTransform
	width        int
	height       int
}

// OpenRasterContext 打开栅格波段
// nodata 非空时覆盖波段自带的 nodata
func OpenRasterContext(open RasterOpener, path string, band int, nodata *float64) (*RasterContext, error) {
	if band < 1 {
		return nil, invalidArgf("band must be >= 1")
	}
	if open == nil {
		open = OpenRaster
	}

	src, err := open(path)
	if err != nil {
		return nil, dataSourceErr("open raster", err)
	}
	rc, err := NewRasterContext(src, band, nodata)
	if err != nil {
		src.Close()
		return nil, err
	}
	return rc, nil
}

// NewRasterContext 在已打开的数据集上构造句柄，句柄接管 src 的关闭
func NewRasterContext(src RasterSource, band int, nodata *float64) (*RasterContext, error) {
	if band < 1 {
		return nil, invalidArgf("band must be >= 1")
	}

	rb, err := src.Band(band)
	if err != nil {
		return nil, dataSourceErr("get raster band", err)
	}

	gt, err := src.GeoTransform()
	if err != nil {
		return nil, dataSourceErr("get geotransform", err)
	}
	inv, ok := gt.Invert()
	if !ok {
		return nil, runtimef("unable to invert raster geotransform")
	}

	rc := &RasterContext{
		source:       src,
		band:         rb,
		bandIndex:    band,
		geoTransform: gt,
		inverse:      inv,
	}
	rc.width, rc.height = src.Size()

	if nodata != nil {
		rc.nodata, rc.hasNoData = *nodata, true
	} else {
		rc.nodata, rc.hasNoData = rb.NoDataValue()
	}
	return rc, nil
}

// Close 关闭底层数据集
func (rc *RasterContext) Close() error {
	if rc.source == nil {
		return nil
	}
	err := rc.source.Close()
	rc.source = nil
	return err
}

// NoData 有效 nodata 值
func (rc *RasterContext) NoData() (float64, bool) {
	return rc.nodata, rc.hasNoData
}

// Size 栅格宽高
func (rc *RasterContext) Size() (width, height int) {
	return rc.width, rc.height
}

// BandIndex 波段序号
func (rc *RasterContext) BandIndex() int {
	return rc.bandIndex
}

// GeoTransform 栅格的地理变换
func (rc *RasterContext) GeoTransform() GeoTransform {
	return rc.geoTransform
}

// WorldToPixel 地理坐标转小数像素坐标
func (rc *RasterContext) WorldToPixel(x, y float64) (col, row float64) {
	return rc.inverse.Apply(x, y)
}

// IsInside 判断像元是否在 [0,height)x[0,width) 内
func (rc *RasterContext) IsInside(row, col int) bool {
	return row >= 0 && row < rc.height && col >= 0 && col < rc.width
}

func (rc *RasterContext) isNoData(v float64) bool {
	return rc.hasNoData && math.Abs(v-rc.nodata) <= machineEpsilon
}

// ReadValue 读取单个像元
// 越界、读取为空、非有限值或等于 nodata 时 ok 为 false
func (rc *RasterContext) ReadValue(row, col int, boundless bool) (v float64, ok bool, err error) {
	if !rc.IsInside(row, col) {
		// 单像元读取越界时与 boundless 无关，一律视为无值
		return 0, false, nil
	}

	buf, err := rc.band.ReadFloat64(col, row, 1, 1)
	if err != nil {
		return 0, false, dataSourceErr("read pixel", err)
	}
	if len(buf) == 0 {
		return 0, false, nil
	}

	v = buf[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	if rc.isNoData(v) {
		return 0, false, nil
	}
	return v, true, nil
}

// WindowForBoundsUnclipped 计算包围盒对应的未裁剪像素窗口
// 四个角点都要变换，旋转或错切时只取对角两点不够
func (rc *RasterContext) WindowForBoundsUnclipped(minX, minY, maxX, maxY float64) PixelWindow {
	corners := [4][2]float64{
		{minX, minY},
		{minX, maxY},
		{maxX, minY},
		{maxX, maxY},
	}

	minCol, minRow := math.Inf(1), math.Inf(1)
	maxCol, maxRow := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		col, row := rc.WorldToPixel(c[0], c[1])
		minCol = math.Min(minCol, col)
		maxCol = math.Max(maxCol, col)
		minRow = math.Min(minRow, row)
		maxRow = math.Max(maxRow, row)
	}

	return PixelWindow{
		RowStart: toIndex(math.Floor(minRow)),
		RowEnd:   toIndex(math.Ceil(maxRow)),
		ColStart: toIndex(math.Floor(minCol)),
		ColEnd:   toIndex(math.Ceil(maxCol)),
	}
}

// WindowGeoTransform 窗口左上角为原点的地理变换
func (rc *RasterContext) WindowGeoTransform(w PixelWindow) GeoTransform {
	return rc.geoTransform.WindowGeoTransform(w)
}

// WindowBeyondExtent 窗口任一边超出栅格范围
func (rc *RasterContext) WindowBeyondExtent(w PixelWindow) bool {
	return w.RowStart < 0 ||
		w.ColStart < 0 ||
		w.RowEnd >= rc.height ||
		w.ColEnd >= rc.width
}

// ClipWindow 与栅格范围求交，交集为空时 ok 为 false
func (rc *RasterContext) ClipWindow(w PixelWindow) (PixelWindow, bool) {
	clipped := PixelWindow{
		RowStart: max(w.RowStart, 0),
		RowEnd:   min(w.RowEnd, rc.height-1),
		ColStart: max(w.ColStart, 0),
		ColEnd:   min(w.ColEnd, rc.width-1),
	}
	if clipped.IsEmpty() {
		return PixelWindow{}, false
	}
	return clipped, true
}

// ReadWindowBoundless 读取窗口数据，超出范围的像元填充 fill
// boundless 为 false 且窗口越界时返回参数错误
func (rc *RasterContext) ReadWindowBoundless(w PixelWindow, boundless bool, fill float64) (width, height int, data []float64, err error) {
	if w.IsEmpty() {
		return 0, 0, []float64{}, nil
	}

	if rc.WindowBeyondExtent(w) && !boundless {
		return 0, 0, nil, invalidArgf("Window/bounds is outside dataset extent, boundless reads are disabled")
	}

	width, height = w.Width(), w.Height()
	if width > maxWindowCells/height {
		return 0, 0, nil, invalidArgf("window %dx%d exceeds %d cells", width, height, maxWindowCells)
	}
	data = make([]float64, width*height)
	for i := range data {
		data[i] = fill
	}

	overlap, ok := rc.ClipWindow(w)
	if !ok {
		return width, height, data, nil
	}

	ow, oh := overlap.Width(), overlap.Height()
	src, err := rc.band.ReadFloat64(overlap.ColStart, overlap.RowStart, ow, oh)
	if err != nil {
		return 0, 0, nil, dataSourceErr("read window", err)
	}
	if len(src) < ow*oh {
		return 0, 0, nil, dataSourcef("read window", "short read: got %d values, want %d", len(src), ow*oh)
	}

	dstRowOff := overlap.RowStart - w.RowStart
	dstColOff := overlap.ColStart - w.ColStart
	for r := 0; r < oh; r++ {
		dst := (dstRowOff+r)*width + dstColOff
		copy(data[dst:dst+ow], src[r*ow:(r+1)*ow])
	}
	return width, height, data, nil
}

// maxWindowCells 单次窗口读取的像元上限
const maxWindowCells = 1 << 28

// maxIndex 像素索引的饱和上限
const maxIndex = 1 << 53

// toIndex 浮点转像素索引，超出范围时饱和
func toIndex(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= maxIndex:
		return maxIndex
	case f <= -maxIndex:
		return -maxIndex
	}
	return int(f)
}
