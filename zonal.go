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

	"github.com/paulmach/orb"
)

// defaultZonalNoData 栅格没有 nodata 时用于填充越界像元
const defaultZonalNoData = -999.0

// ZoneSamples 一个区域内掩膜覆盖的像元分类结果
type ZoneSamples struct {
	Values      []float64
	NoDataCount int
	NaNCount    int
}

// CollectZone 读取几何覆盖的像元并分类
// 几何为空或窗口为空时返回零值，不视为错误
func CollectZone(rc *RasterContext, geom orb.Geometry, rasterizer MaskRasterizer, allTouched, boundless bool) (ZoneSamples, error) {
	var zs ZoneSamples
	if geom == nil {
		return zs, nil
	}

	env := geom.Bound()
	if env.IsEmpty() {
		return zs, nil
	}
	window := rc.WindowForBoundsUnclipped(env.Min[0], env.Min[1], env.Max[0], env.Max[1])
	if window.IsEmpty() {
		return zs, nil
	}

	nodata, ok := rc.NoData()
	if !ok {
		nodata = defaultZonalNoData
	}

	width, height, values, err := rc.ReadWindowBoundless(window, boundless, nodata)
	if err != nil {
		return zs, err
	}
	if width == 0 || height == 0 {
		return zs, nil
	}

	mask, err := rasterizer.RasterizeMask(geom, width, height, rc.WindowGeoTransform(window), allTouched)
	if err != nil {
		return zs, dataSourceErr("rasterize geometry", err)
	}
	if len(mask) != len(values) {
		return zs, dataSourcef("rasterize geometry", "mask size %d does not match window %dx%d", len(mask), width, height)
	}

	for i, m := range mask {
		if m == 0 {
			continue
		}
		v := values[i]
		switch {
		case math.Abs(v-nodata) <= machineEpsilon:
			zs.NoDataCount++
		case math.IsNaN(v) || math.IsInf(v, 0):
			zs.NaNCount++
		default:
			zs.Values = append(zs.Values, v)
		}
	}
	return zs, nil
}

// ZonalStatsGeometry 单个几何的分区统计
func ZonalStatsGeometry(rc *RasterContext, geom orb.Geometry, rasterizer MaskRasterizer, allTouched, boundless bool, stats []string) (StatRecord, error) {
	zs, err := CollectZone(rc, geom, rasterizer, allTouched, boundless)
	if err != nil {
		return StatRecord{}, err
	}
	return ComputeStats(zs.Values, stats, zs.NoDataCount, zs.NaNCount), nil
}
