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
#include "gdal_alg.h"
#include "ogr_api.h"
#include "cpl_string.h"

static GDALDatasetH createMaskDataset(int width, int height, double *gt) {
    GDALDriverH driver = GDALGetDriverByName("MEM");
    if (driver == NULL) {
        return NULL;
    }
    GDALDatasetH ds = GDALCreate(driver, "", width, height, 1, GDT_Byte, NULL);
    if (ds == NULL) {
        return NULL;
    }
    GDALSetGeoTransform(ds, gt);
    return ds;
}

static int rasterizeGeometry(GDALDatasetH ds, OGRGeometryH geom, int allTouched) {
    int bandList[1] = {1};
    double burnValue = 1.0;
    char **options = NULL;
    if (allTouched) {
        options = CSLSetNameValue(options, "ALL_TOUCHED", "TRUE");
    }
    CPLErr err = GDALRasterizeGeometries(ds, 1, bandList, 1, &geom,
                                         NULL, NULL, &burnValue, options, NULL, NULL);
    CSLDestroy(options);
    return (int)err;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/paulmach/orb"
)

// GDALRasterizer 使用 GDALRasterizeGeometries 生成掩膜
type GDALRasterizer struct{}

// RasterizeMask 实现 MaskRasterizer
func (GDALRasterizer) RasterizeMask(geom orb.Geometry, width, height int, gt GeoTransform, allTouched bool) ([]uint8, error) {
	if width < 0 || height < 0 {
		return nil, invalidArgf("mask size must be non-negative, got %dx%d", width, height)
	}
	mask := make([]uint8, width*height)
	if geom == nil || width == 0 || height == 0 {
		return mask, nil
	}
	InitializeGDAL()

	var cgt [6]C.double
	for i, v := range gt {
		cgt[i] = C.double(v)
	}
	ds := C.createMaskDataset(C.int(width), C.int(height), &cgt[0])
	if ds == nil {
		return nil, fmt.Errorf("创建掩膜数据集失败")
	}
	defer C.GDALClose(ds)

	hGeom, err := orbToOGRGeometry(geom)
	if err != nil {
		return nil, err
	}
	defer C.OGR_G_DestroyGeometry(hGeom)

	touched := C.int(0)
	if allTouched {
		touched = 1
	}
	if rc := C.rasterizeGeometry(ds, hGeom, touched); rc != 0 {
		return nil, fmt.Errorf("栅格化失败: %s", C.GoString(C.CPLGetLastErrorMsg()))
	}

	band := C.GDALGetRasterBand(ds, 1)
	if C.GDALRasterIO(band, C.GF_Read, 0, 0, C.int(width), C.int(height),
		unsafe.Pointer(&mask[0]), C.int(width), C.int(height), C.GDT_Byte, 0, 0) != C.CE_None {
		return nil, fmt.Errorf("读取掩膜失败: %s", C.GoString(C.CPLGetLastErrorMsg()))
	}
	return mask, nil
}

// 编译时启用 gdal 标签后，未匹配扩展名的数据集交给 GDAL 打开，掩膜改由 GDAL 栅格化
func init() {
	RegisterRasterDriver("", func(path string) (RasterSource, error) {
		r, err := OpenGDALRaster(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	RegisterVectorDriver("", func(path string) (VectorSource, error) {
		v, err := OpenGDALVector(path)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	SetDefaultRasterizer(GDALRasterizer{})
}
