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

// PlanarRasterizer 纯 Go 掩膜栅格化
// 面按像元中心是否落在面内判断，中心恰在边上时按半开规则只归属一侧；
// allTouched 时额外加入边界经过的像元
type PlanarRasterizer struct{}

// RasterizeMask 实现 MaskRasterizer
func (PlanarRasterizer) RasterizeMask(geom orb.Geometry, width, height int, gt GeoTransform, allTouched bool) ([]uint8, error) {
	if width < 0 || height < 0 {
		return nil, invalidArgf("mask size must be non-negative, got %dx%d", width, height)
	}
	inv, ok := gt.Invert()
	if !ok {
		return nil, runtimef("unable to invert window geotransform")
	}

	m := &maskGrid{
		width:  width,
		height: height,
		data:   make([]uint8, width*height),
	}
	if geom != nil && width > 0 && height > 0 {
		m.burn(toPixelSpace(geom, inv), allTouched)
	}
	return m.data, nil
}

type maskGrid struct {
	width, height int
	data          []uint8
}

func (m *maskGrid) set(col, row int) {
	if col < 0 || row < 0 || col >= m.width || row >= m.height {
		return
	}
	m.data[row*m.width+col] = 1
}

func (m *maskGrid) burn(g orb.Geometry, allTouched bool) {
	switch geom := g.(type) {
	case orb.Point:
		m.burnPoint(geom)
	case orb.MultiPoint:
		for _, p := range geom {
			m.burnPoint(p)
		}
	case orb.LineString:
		m.burnPath(geom)
	case orb.MultiLineString:
		for _, ls := range geom {
			m.burnPath(ls)
		}
	case orb.Ring:
		m.burnPolygon(orb.Polygon{geom}, allTouched)
	case orb.Polygon:
		m.burnPolygon(geom, allTouched)
	case orb.MultiPolygon:
		for _, p := range geom {
			m.burnPolygon(p, allTouched)
		}
	case orb.Collection:
		for _, sub := range geom {
			m.burn(sub, allTouched)
		}
	case orb.Bound:
		m.burnPolygon(geom.ToPolygon(), allTouched)
	}
}

func (m *maskGrid) burnPoint(p orb.Point) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return
	}
	m.set(toIndex(math.Floor(p[0])), toIndex(math.Floor(p[1])))
}

func (m *maskGrid) burnPath(ls []orb.Point) {
	if len(ls) == 1 {
		m.burnPoint(ls[0])
		return
	}
	for i := 1; i < len(ls); i++ {
		m.traverse(ls[i-1], ls[i])
	}
}

// burnPolygon 像元中心规则，洞内像元不计入
func (m *maskGrid) burnPolygon(poly orb.Polygon, allTouched bool) {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return
	}

	b := poly[0].Bound()
	c0 := max(toIndex(math.Floor(b.Min[0]-0.5)), 0)
	c1 := min(toIndex(math.Ceil(b.Max[0]-0.5)), m.width-1)
	r0 := max(toIndex(math.Floor(b.Min[1]-0.5)), 0)
	r1 := min(toIndex(math.Ceil(b.Max[1]-0.5)), m.height-1)

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if containsHalfOpen(poly, orb.Point{float64(c) + 0.5, float64(r) + 0.5}) {
				m.data[r*m.width+c] = 1
			}
		}
	}

	if allTouched {
		for _, ring := range poly {
			m.burnPath(ring)
		}
	}
}

// containsHalfOpen 奇偶交点规则，洞由环数自然扣除
// 边上的点：列方向含左不含右，行方向含小不含大，相邻面共享的边只计一次
func containsHalfOpen(poly orb.Polygon, p orb.Point) bool {
	in := false
	for _, ring := range poly {
		n := len(ring)
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			a, b := ring[i], ring[j]
			if (a[1] > p[1]) == (b[1] > p[1]) {
				continue
			}
			x := a[0] + (p[1]-a[1])*(b[0]-a[0])/(b[1]-a[1])
			if p[0] < x {
				in = !in
			}
		}
	}
	return in
}

// traverse 标记线段经过的全部像元
func (m *maskGrid) traverse(a, b orb.Point) {
	x0, y0, x1, y1, ok := clipSegment(a[0], a[1], b[0], b[1], float64(m.width), float64(m.height))
	if !ok {
		return
	}

	col := clampInt(toIndex(math.Floor(x0)), 0, m.width-1)
	row := clampInt(toIndex(math.Floor(y0)), 0, m.height-1)
	endCol := clampInt(toIndex(math.Floor(x1)), 0, m.width-1)
	endRow := clampInt(toIndex(math.Floor(y1)), 0, m.height-1)

	dx, dy := x1-x0, y1-y0
	stepC, tMaxX, tDeltaX := traverseAxis(x0, dx, col)
	stepR, tMaxY, tDeltaY := traverseAxis(y0, dy, row)

	for steps := m.width + m.height + 2; steps > 0; steps-- {
		m.set(col, row)
		if col == endCol && row == endRow {
			return
		}
		if tMaxX < tMaxY {
			col += stepC
			tMaxX += tDeltaX
		} else {
			row += stepR
			tMaxY += tDeltaY
		}
		if col < 0 || row < 0 || col >= m.width || row >= m.height {
			return
		}
	}
}

// traverseAxis 计算单轴的步进方向、首次越过格线的参数与步长
func traverseAxis(p, d float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case d > 0:
		return 1, (float64(cell+1) - p) / d, 1 / d
	case d < 0:
		return -1, (p - float64(cell)) / -d, 1 / -d
	}
	return 0, math.Inf(1), math.Inf(1)
}

// clipSegment Liang-Barsky 裁剪到 [0,w]x[0,h]
func clipSegment(x0, y0, x1, y1, w, h float64) (float64, float64, float64, float64, bool) {
	if math.IsNaN(x0) || math.IsNaN(y0) || math.IsNaN(x1) || math.IsNaN(y1) {
		return 0, 0, 0, 0, false
	}
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{x0, w - x0, y0, h - y0}
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// toPixelSpace 用逆变换把几何坐标转为窗口像素坐标 (col,row)
func toPixelSpace(g orb.Geometry, inv GeoTransform) orb.Geometry {
	pt := func(p orb.Point) orb.Point {
		c, r := inv.Apply(p[0], p[1])
		return orb.Point{c, r}
	}
	pts := func(in []orb.Point) []orb.Point {
		out := make([]orb.Point, len(in))
		for i, p := range in {
			out[i] = pt(p)
		}
		return out
	}
	poly := func(in orb.Polygon) orb.Polygon {
		out := make(orb.Polygon, len(in))
		for i, ring := range in {
			out[i] = orb.Ring(pts(ring))
		}
		return out
	}

	switch geom := g.(type) {
	case orb.Point:
		return pt(geom)
	case orb.MultiPoint:
		return orb.MultiPoint(pts(geom))
	case orb.LineString:
		return orb.LineString(pts(geom))
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(geom))
		for i, ls := range geom {
			out[i] = orb.LineString(pts(ls))
		}
		return out
	case orb.Ring:
		return orb.Ring(pts(geom))
	case orb.Polygon:
		return poly(geom)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, p := range geom {
			out[i] = poly(p)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(geom))
		for i, sub := range geom {
			out[i] = toPixelSpace(sub, inv)
		}
		return out
	case orb.Bound:
		// 旋转变换下包围盒不再轴对齐，按面处理
		return poly(geom.ToPolygon())
	}
	return nil
}
