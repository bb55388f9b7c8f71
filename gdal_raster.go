//go:build gdal

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

/*
#cgo LDFLAGS: -lgdal
#include <stdlib.h>
#include "gdal.h"
#include "cpl_conv.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

var gdalOnce sync.Once

// InitializeGDAL 注册全部 GDAL/OGR 驱动，只执行一次
func InitializeGDAL() {
	gdalOnce.Do(func() {
		C.GDALAllRegister()
	})
}

// GDALRaster 通过 GDAL 打开的只读栅格数据集
type GDALRaster struct {
	dataset   C.GDALDatasetH
	width     int
	height    int
	bandCount int
}

// OpenGDALRaster 以只读方式打开 GDAL 支持的任意栅格
func OpenGDALRaster(path string) (*GDALRaster, error) {
	InitializeGDAL()
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	dataset := C.GDALOpen(cPath, C.GA_ReadOnly)
	if dataset == nil {
		return nil, fmt.Errorf("failed to open raster: %s", path)
	}

	rd := &GDALRaster{
		dataset:   dataset,
		width:     int(C.GDALGetRasterXSize(dataset)),
		height:    int(C.GDALGetRasterYSize(dataset)),
		bandCount: int(C.GDALGetRasterCount(dataset)),
	}
	runtime.SetFinalizer(rd, (*GDALRaster).Close)
	return rd, nil
}

func (r *GDALRaster) Size() (int, int) { return r.width, r.height }

func (r *GDALRaster) BandCount() int { return r.bandCount }

// GeoTransform 没有地理变换的栅格返回错误，不使用像素坐标兜底
func (r *GDALRaster) GeoTransform() (GeoTransform, error) {
	if r.dataset == nil {
		return GeoTransform{}, fmt.Errorf("raster is closed")
	}
	var gt [6]C.double
	if C.GDALGetGeoTransform(r.dataset, &gt[0]) != C.CE_None {
		return GeoTransform{}, fmt.Errorf("raster has no geotransform")
	}
	var out GeoTransform
	for i := range gt {
		out[i] = float64(gt[i])
	}
	return out, nil
}

func (r *GDALRaster) Band(index int) (RasterBand, error) {
	if r.dataset == nil {
		return nil, fmt.Errorf("raster is closed")
	}
	if index < 1 || index > r.bandCount {
		return nil, fmt.Errorf("band %d out of range [1,%d]", index, r.bandCount)
	}
	band := C.GDALGetRasterBand(r.dataset, C.int(index))
	if band == nil {
		return nil, fmt.Errorf("failed to get band %d", index)
	}
	return &gdalBand{owner: r, band: band}, nil
}

// Close 关闭数据集，可重复调用
func (r *GDALRaster) Close() error {
	if r.dataset != nil {
		C.GDALClose(r.dataset)
		r.dataset = nil
	}
	return nil
}

type gdalBand struct {
	owner *GDALRaster
	band  C.GDALRasterBandH
}

func (b *gdalBand) NoDataValue() (float64, bool) {
	var ok C.int
	v := C.GDALGetRasterNoDataValue(b.band, &ok)
	return float64(v), ok != 0
}

// ReadFloat64 以 GDT_Float64 读取窗口，由 GDAL 完成类型转换
func (b *gdalBand) ReadFloat64(col, row, width, height int) ([]float64, error) {
	if b.owner.dataset == nil {
		return nil, fmt.Errorf("raster is closed")
	}
	if width <= 0 || height <= 0 {
		return []float64{}, nil
	}

	buf := make([]float64, width*height)
	err := C.GDALRasterIO(b.band, C.GF_Read,
		C.int(col), C.int(row), C.int(width), C.int(height),
		unsafe.Pointer(&buf[0]), C.int(width), C.int(height),
		C.GDT_Float64, 0, 0)
	if err != C.CE_None {
		return nil, fmt.Errorf("GDALRasterIO failed at (%d,%d %dx%d): %s",
			col, row, width, height, C.GoString(C.CPLGetLastErrorMsg()))
	}
	return buf, nil
}
