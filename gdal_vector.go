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
#include "ogr_api.h"

static GDALDatasetH openVectorReadOnly(const char* path) {
    return GDALOpenEx(path, GDAL_OF_VECTOR | GDAL_OF_READONLY, NULL, NULL, NULL);
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// GDALVector 通过 OGR 打开的只读矢量数据集
type GDALVector struct {
	dataset C.GDALDatasetH
}

// OpenGDALVector 以只读方式打开 OGR 支持的任意矢量
func OpenGDALVector(path string) (*GDALVector, error) {
	InitializeGDAL()
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	dataset := C.openVectorReadOnly(cPath)
	if dataset == nil {
		return nil, fmt.Errorf("failed to open vector: %s", path)
	}
	v := &GDALVector{dataset: dataset}
	runtime.SetFinalizer(v, (*GDALVector).Close)
	return v, nil
}

func (v *GDALVector) LayerCount() int {
	if v.dataset == nil {
		return 0
	}
	return int(C.GDALDatasetGetLayerCount(v.dataset))
}

func (v *GDALVector) Layer(index int) (FeatureLayer, error) {
	if v.dataset == nil {
		return nil, fmt.Errorf("vector is closed")
	}
	layer := C.GDALDatasetGetLayer(v.dataset, C.int(index))
	if layer == nil {
		return nil, fmt.Errorf("layer %d out of range [0,%d)", index, v.LayerCount())
	}
	return &gdalLayer{owner: v, layer: layer}, nil
}

// Close 关闭数据集，可重复调用
func (v *GDALVector) Close() error {
	if v.dataset != nil {
		C.GDALClose(v.dataset)
		v.dataset = nil
	}
	return nil
}

type gdalLayer struct {
	owner *GDALVector
	layer C.OGRLayerH
}

func (l *gdalLayer) Name() string {
	return C.GoString(C.OGR_L_GetName(l.layer))
}

// Range 从头遍历要素，几何经 WKB 转为 orb 几何
func (l *gdalLayer) Range(fn func(Feature) error) error {
	if l.owner.dataset == nil {
		return fmt.Errorf("vector is closed")
	}
	C.OGR_L_ResetReading(l.layer)

	for {
		hFeature := C.OGR_L_GetNextFeature(l.layer)
		if hFeature == nil {
			return nil
		}
		f, err := convertOGRFeature(hFeature)
		C.OGR_F_Destroy(hFeature)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

func convertOGRFeature(hFeature C.OGRFeatureH) (Feature, error) {
	f := Feature{
		FID:        int64(C.OGR_F_GetFID(hFeature)),
		Properties: map[string]any{},
	}

	if hGeom := C.OGR_F_GetGeometryRef(hFeature); hGeom != nil && C.OGR_G_IsEmpty(hGeom) == 0 {
		g, err := ogrGeometryToOrb(hGeom)
		if err != nil {
			return f, fmt.Errorf("feature %d: %w", f.FID, err)
		}
		f.Geometry = g
	}

	fieldCount := int(C.OGR_F_GetFieldCount(hFeature))
	for i := 0; i < fieldCount; i++ {
		hFieldDefn := C.OGR_F_GetFieldDefnRef(hFeature, C.int(i))
		name := C.GoString(C.OGR_Fld_GetNameRef(hFieldDefn))
		if C.OGR_F_IsFieldSetAndNotNull(hFeature, C.int(i)) == 0 {
			f.Properties[name] = nil
			continue
		}
		switch C.OGR_Fld_GetType(hFieldDefn) {
		case C.OFTInteger, C.OFTInteger64:
			f.Properties[name] = int64(C.OGR_F_GetFieldAsInteger64(hFeature, C.int(i)))
		case C.OFTReal:
			f.Properties[name] = float64(C.OGR_F_GetFieldAsDouble(hFeature, C.int(i)))
		default:
			f.Properties[name] = C.GoString(C.OGR_F_GetFieldAsString(hFeature, C.int(i)))
		}
	}
	return f, nil
}

// ogrGeometryToOrb 降为二维后导出小端 WKB 再解码，会修改传入的几何
func ogrGeometryToOrb(hGeometry C.OGRGeometryH) (orb.Geometry, error) {
	C.OGR_G_FlattenTo2D(hGeometry)
	wkbSize := C.OGR_G_WkbSize(hGeometry)
	if wkbSize <= 0 {
		return nil, fmt.Errorf("无效的几何对象")
	}

	wkbData := C.malloc(C.size_t(wkbSize))
	if wkbData == nil {
		return nil, fmt.Errorf("内存分配失败")
	}
	defer C.free(wkbData)

	if C.OGR_G_ExportToWkb(hGeometry, C.wkbNDR, (*C.uchar)(wkbData)) != C.OGRERR_NONE {
		return nil, fmt.Errorf("导出WKB失败")
	}
	return wkb.Unmarshal(C.GoBytes(wkbData, wkbSize))
}

// orbToOGRGeometry 调用方负责 OGR_G_DestroyGeometry
func orbToOGRGeometry(g orb.Geometry) (C.OGRGeometryH, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("编码WKB失败: %w", err)
	}
	cWkb := C.CBytes(data)
	defer C.free(cWkb)

	var geom C.OGRGeometryH
	if C.OGR_G_CreateFromWkb(cWkb, nil, &geom, C.int(len(data))) != C.OGRERR_NONE || geom == nil {
		return nil, fmt.Errorf("创建OGR几何失败")
	}
	return geom, nil
}
