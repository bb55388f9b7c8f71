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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ASCII 栅格整体读入内存，头部声明的尺寸不可信，预分配有上限
const (
	maxASCIICells = 1 << 28
	asciiPrealloc = 1 << 16
)

// ASCIIGrid ESRI ASCII Grid 栅格，数据整体读入内存
type ASCIIGrid struct {
	*MemRaster
	Ncols, Nrows int
	// XLL/YLL 左下角坐标，Center 为 true 时表示左下像元中心
	XLL, YLL float64
	Center   bool
	DX, DY   float64
}

// OpenASCIIGrid 读取 .asc 文件
func OpenASCIIGrid(path string) (*ASCIIGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开ASCII栅格失败: %w", err)
	}
	defer f.Close()

	g, err := ReadASCIIGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadASCIIGrid 从 reader 解析 ASCII 栅格
func ReadASCIIGrid(r io.Reader) (*ASCIIGrid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	g := &ASCIIGrid{}
	var (
		haveX, haveY, haveCell, haveDX, haveDY bool
		nodata                                 float64
		hasNoData                              bool
		first                                  string
	)

	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if !isASCIIHeaderKey(key) {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header %q has no value", key)
		}
		val := sc.Text()

		var err error
		switch key {
		case "ncols":
			g.Ncols, err = strconv.Atoi(val)
		case "nrows":
			g.Nrows, err = strconv.Atoi(val)
		case "xllcorner", "xllcenter":
			g.XLL, err = strconv.ParseFloat(val, 64)
			g.Center = g.Center || key == "xllcenter"
			haveX = true
		case "yllcorner", "yllcenter":
			g.YLL, err = strconv.ParseFloat(val, 64)
			g.Center = g.Center || key == "yllcenter"
			haveY = true
		case "cellsize":
			g.DX, err = strconv.ParseFloat(val, 64)
			g.DY = g.DX
			haveCell = true
		case "dx":
			g.DX, err = strconv.ParseFloat(val, 64)
			haveDX = true
		case "dy":
			g.DY, err = strconv.ParseFloat(val, 64)
			haveDY = true
		case "nodata_value":
			nodata, err = strconv.ParseFloat(val, 64)
			hasNoData = true
		}
		if err != nil {
			return nil, fmt.Errorf("invalid header %s %q: %w", key, val, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	switch {
	case g.Ncols <= 0 || g.Nrows <= 0:
		return nil, fmt.Errorf("ncols and nrows must be positive, got %dx%d", g.Ncols, g.Nrows)
	case !haveX || !haveY:
		return nil, fmt.Errorf("missing xll/yll header")
	case !haveCell && !(haveDX && haveDY):
		return nil, fmt.Errorf("missing cellsize header")
	case g.DX <= 0 || g.DY <= 0:
		return nil, fmt.Errorf("cell size must be positive")
	case g.Ncols > maxASCIICells/g.Nrows:
		return nil, fmt.Errorf("grid %dx%d exceeds %d cells", g.Ncols, g.Nrows, maxASCIICells)
	}

	n := g.Ncols * g.Nrows
	data := make([]float64, 0, min(n, asciiPrealloc))
	if first != "" {
		v, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cell value %q", first)
		}
		data = append(data, v)
	}
	for len(data) < n && sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cell value %q at index %d", sc.Text(), len(data))
		}
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) < n {
		return nil, fmt.Errorf("short grid: got %d values, want %d", len(data), n)
	}

	mem, err := NewMemRaster(g.Ncols, g.Nrows, g.geoTransform(), data)
	if err != nil {
		return nil, err
	}
	if hasNoData {
		mem.SetNoData(1, nodata)
	}
	g.MemRaster = mem
	return g, nil
}

func isASCIIHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter",
		"cellsize", "dx", "dy", "nodata_value":
		return true
	}
	return false
}

// geoTransform 左上角原点，北向上
func (g *ASCIIGrid) geoTransform() GeoTransform {
	x0, y0 := g.XLL, g.YLL
	if g.Center {
		x0 -= g.DX / 2
		y0 -= g.DY / 2
	}
	return GeoTransform{x0, g.DX, 0, y0 + float64(g.Nrows)*g.DY, 0, -g.DY}
}
