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
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/xuri/excelize/v2"
)

// 导出工作表名
const (
	ZonalSheet = "zonal_stats"
	PointSheet = "point_query"
)

// WriteJSON 以缩进 JSON 写出结果
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ExportZonal 按扩展名导出分区统计结果，支持 .json 与 .xlsx
func ExportZonal(path string, records []StatRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteZonalXLSX(path, records)
	case ".json":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("创建导出文件失败: %w", err)
		}
		defer f.Close()
		return WriteJSON(f, records)
	}
	return invalidArgf("unsupported export format %q, want .json or .xlsx", filepath.Ext(path))
}

// zonalColumns 所有记录中出现过的统计量，按字典序
func zonalColumns(records []StatRecord) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		for _, k := range r.Keys() {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// WriteZonalXLSX 写出分区统计结果，每个要素一行，无值单元格留空
func WriteZonalXLSX(path string, records []StatRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ZonalSheet)
	if err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("删除默认工作表失败: %w", err)
	}

	cols := zonalColumns(records)
	header := append([]string{"feature"}, cols...)
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ZonalSheet, cell, h); err != nil {
			return err
		}
	}

	for i, rec := range records {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(ZonalSheet, cell, i); err != nil {
			return err
		}
		for j, k := range cols {
			v, ok := rec.Get(k)
			if !ok || v == nil {
				continue
			}
			if fv, isFloat := v.(float64); isFloat && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			if err := f.SetCellValue(ZonalSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存XLSX失败: %w", err)
	}
	return nil
}

// WritePointsXLSX 写出点查询结果，每个点一行
func WritePointsXLSX(path string, coords []orb.Point, values []*float64) error {
	if len(coords) != len(values) {
		return fmt.Errorf("坐标数 %d 与结果数 %d 不一致", len(coords), len(values))
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(PointSheet)
	if err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("删除默认工作表失败: %w", err)
	}

	if err := f.SetSheetRow(PointSheet, "A1", &[]any{"point", "x", "y", "value"}); err != nil {
		return err
	}
	for i, c := range coords {
		row := []any{i, c[0], c[1], nil}
		if v := finiteOrNil(values[i]); v != nil {
			row[3] = *v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(PointSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存XLSX失败: %w", err)
	}
	return nil
}
