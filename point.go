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
	"math"

	"github.com/paulmach/orb"
)

// 插值方式
const (
	InterpolateNearest  = "nearest"
	InterpolateBilinear = "bilinear"
)

// PointValues 单个矢量要素上各坐标点的采样结果
type PointValues struct {
	Coords []orb.Point
	Values []*float64
}

// MarshalJSON 仅含一个坐标时输出标量，否则输出数组
func (p PointValues) MarshalJSON() ([]byte, error) {
	if len(p.Values) == 1 {
		return marshalFloat(p.Values[0]), nil
	}
	return json.Marshal(NullableFloats(p.Values))
}

// NullableFloats 序列化时非有限值写为 null
type NullableFloats []*float64

func (n NullableFloats) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 8*len(n)+2)
	buf = append(buf, '[')
	for i, v := range n {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, marshalFloat(v)...)
	}
	buf = append(buf, ']')
	return buf, nil
}

func requireFinite(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalidArgf("%s must be finite", name)
	}
	return nil
}

func validateInterpolate(interpolate string) error {
	if interpolate != InterpolateNearest && interpolate != InterpolateBilinear {
		return invalidArgf("interpolate must be nearest or bilinear")
	}
	return nil
}

// bilinear 2x2 邻域插值，values[0] 为上行，values[1] 为下行
func bilinear(values [2][2]*float64, x, y float64) *float64 {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return nil
	}

	ul, ur := values[0][0], values[0][1]
	ll, lr := values[1][0], values[1][1]

	if ul == nil || ur == nil || ll == nil || lr == nil {
		row := int(math.Round(1 - y))
		col := int(math.Round(x))
		return values[row][col]
	}

	v := *ll*(1-x)*(1-y) +
		*lr*x*(1-y) +
		*ul*(1-x)*y +
		*ur*x*y
	return &v
}

// SamplePoints 在已打开的栅格上逐点采样，结果与 coords 一一对应
func SamplePoints(rc *RasterContext, coords []orb.Point, interpolate string, boundless bool) ([]*float64, error) {
	if err := validateInterpolate(interpolate); err != nil {
		return nil, err
	}

	out := make([]*float64, 0, len(coords))
	for _, pt := range coords {
		if err := requireFinite(pt[0], "x"); err != nil {
			return nil, err
		}
		if err := requireFinite(pt[1], "y"); err != nil {
			return nil, err
		}
		fcol, frow := rc.WorldToPixel(pt[0], pt[1])

		if interpolate == InterpolateNearest {
			v, err := rc.readOptional(toIndex(math.Floor(frow)), toIndex(math.Floor(fcol)), boundless)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			continue
		}

		r := toIndex(math.Round(frow))
		c := toIndex(math.Round(fcol))
		unitx := 0.5 - (float64(c) - fcol)
		unity := 0.5 + (float64(r) - frow)

		var block [2][2]*float64
		cells := [4][2]int{{r - 1, c - 1}, {r - 1, c}, {r, c - 1}, {r, c}}
		for i, cell := range cells {
			v, err := rc.readOptional(cell[0], cell[1], boundless)
			if err != nil {
				return nil, err
			}
			block[i/2][i%2] = v
		}
		out = append(out, bilinear(block, unitx, unity))
	}
	return out, nil
}

func (rc *RasterContext) readOptional(row, col int, boundless bool) (*float64, error) {
	v, ok, err := rc.ReadValue(row, col, boundless)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// GeometryCoords 按顺序展开几何的全部坐标
// 面包含外环和内环的每个顶点，集合类几何递归展开
func GeometryCoords(g orb.Geometry) []orb.Point {
	var pts []orb.Point
	appendGeometryCoords(&pts, g)
	return pts
}

func appendGeometryCoords(pts *[]orb.Point, g orb.Geometry) {
	switch geom := g.(type) {
	case nil:
	case orb.Point:
		*pts = append(*pts, geom)
	case orb.MultiPoint:
		*pts = append(*pts, geom...)
	case orb.LineString:
		*pts = append(*pts, geom...)
	case orb.Ring:
		*pts = append(*pts, geom...)
	case orb.MultiLineString:
		for _, ls := range geom {
			*pts = append(*pts, ls...)
		}
	case orb.Polygon:
		for _, ring := range geom {
			*pts = append(*pts, ring...)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			appendGeometryCoords(pts, poly)
		}
	case orb.Collection:
		for _, sub := range geom {
			appendGeometryCoords(pts, sub)
		}
	case orb.Bound:
		appendGeometryCoords(pts, geom.ToPolygon())
	}
}
