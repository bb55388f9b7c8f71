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

import "math"

// singularDeterminant 行列式绝对值低于该阈值时视为不可逆
const singularDeterminant = 1e-15

// GeoTransform GDAL 约定的六参数仿射变换
//
//	X = gt[0] + col*gt[1] + row*gt[2]
//	Y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// Determinant 2x2 线性部分的行列式
func (gt GeoTransform) Determinant() float64 {
	return gt[1]*gt[5] - gt[2]*gt[4]
}

// Invertible 判断是否可逆
func (gt GeoTransform) Invertible() bool {
	return math.Abs(gt.Determinant()) >= singularDeterminant
}

// Invert 求逆变换，行列式过小时 ok 为 false
func (gt GeoTransform) Invert() (inv GeoTransform, ok bool) {
	det := gt.Determinant()
	if math.Abs(det) < singularDeterminant {
		return GeoTransform{}, false
	}

	invDet := 1.0 / det
	return GeoTransform{
		(gt[2]*gt[3] - gt[0]*gt[5]) * invDet,
		gt[5] * invDet,
		-gt[2] * invDet,
		(gt[0]*gt[4] - gt[1]*gt[3]) * invDet,
		-gt[4] * invDet,
		gt[1] * invDet,
	}, true
}

// Apply 应用变换。对正变换传入 (col,row) 得到 (x,y)；对逆变换传入 (x,y) 得到 (col,row)
func (gt GeoTransform) Apply(a, b float64) (float64, float64) {
	return gt[0] + gt[1]*a + gt[2]*b, gt[3] + gt[4]*a + gt[5]*b
}

// PixelToWorld 像素坐标转地理坐标
func (gt GeoTransform) PixelToWorld(col, row float64) (x, y float64) {
	return gt.Apply(col, row)
}

// WindowGeoTransform 将原点平移到窗口左上角像元，像元大小和旋转保持不变
func (gt GeoTransform) WindowGeoTransform(w PixelWindow) GeoTransform {
	colOff := float64(w.ColStart)
	rowOff := float64(w.RowStart)
	return GeoTransform{
		gt[0] + colOff*gt[1] + rowOff*gt[2],
		gt[1],
		gt[2],
		gt[3] + colOff*gt[4] + rowOff*gt[5],
		gt[4],
		gt[5],
	}
}

// PixelWindow 闭区间像素窗口，可以部分或完全位于栅格范围之外
type PixelWindow struct {
	RowStart int
	RowEnd   int
	ColStart int
	ColEnd   int
}

// IsEmpty 行或列范围为空
func (w PixelWindow) IsEmpty() bool {
	return w.RowEnd < w.RowStart || w.ColEnd < w.ColStart
}

// Width 列数，空窗口为 0
func (w PixelWindow) Width() int {
	if w.IsEmpty() {
		return 0
	}
	return w.ColEnd - w.ColStart + 1
}

// Height 行数，空窗口为 0
func (w PixelWindow) Height() int {
	if w.IsEmpty() {
		return 0
	}
	return w.RowEnd - w.RowStart + 1
}
