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
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// 支持的统计量
const (
	StatCount    = "count"
	StatMin      = "min"
	StatMax      = "max"
	StatMean     = "mean"
	StatSum      = "sum"
	StatStd      = "std"
	StatMedian   = "median"
	StatMajority = "majority"
	StatMinority = "minority"
	StatUnique   = "unique"
	StatRange    = "range"
	StatNoData   = "nodata"
	StatNaN      = "nan"

	percentilePrefix = "percentile_"
)

// DefaultStats 未指定统计量时使用
var DefaultStats = []string{StatCount, StatMin, StatMax, StatMean}

// AllStats "*" 或 "ALL" 展开后的统计量
var AllStats = []string{
	StatCount, StatMin, StatMax, StatMean, StatSum, StatStd, StatMedian,
	StatMajority, StatMinority, StatUnique, StatRange, StatNoData, StatNaN,
}

// IsSupportedStat 判断统计量名称是否可识别
func IsSupportedStat(name string) bool {
	if strings.HasPrefix(name, percentilePrefix) {
		return true
	}
	for _, s := range AllStats {
		if s == name {
			return true
		}
	}
	return false
}

// ParseStats 解析空格分隔的统计量列表
func ParseStats(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return append([]string(nil), DefaultStats...)
	}
	return ExpandStats(fields)
}

// ExpandStats 展开 "*" 和 "ALL"，其余名称原样保留
func ExpandStats(names []string) []string {
	if len(names) == 0 {
		return append([]string(nil), DefaultStats...)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "*" || strings.EqualFold(n, "ALL") {
			out = append(out, AllStats...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// StatRecord 单个要素的统计结果
// count/unique 存于 Ints，其余存于 Floats，nil 表示无值
type StatRecord struct {
	Ints   map[string]int64
	Floats map[string]*float64
}

// NewStatRecord 创建空记录
func NewStatRecord() StatRecord {
	return StatRecord{
		Ints:   map[string]int64{},
		Floats: map[string]*float64{},
	}
}

// Get 按名称取值，返回 int64、float64 或 nil
func (r StatRecord) Get(name string) (any, bool) {
	if v, ok := r.Ints[name]; ok {
		return v, true
	}
	if v, ok := r.Floats[name]; ok {
		if v == nil {
			return nil, true
		}
		return *v, true
	}
	return nil, false
}

// Keys 所有统计量名称，按字典序
func (r StatRecord) Keys() []string {
	keys := make([]string, 0, len(r.Ints)+len(r.Floats))
	for k := range r.Ints {
		keys = append(keys, k)
	}
	for k := range r.Floats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len 统计量个数
func (r StatRecord) Len() int {
	return len(r.Ints) + len(r.Floats)
}

// WithPrefix 返回键名加前缀后的副本
func (r StatRecord) WithPrefix(prefix string) StatRecord {
	if prefix == "" {
		return r
	}
	out := NewStatRecord()
	for k, v := range r.Ints {
		out.Ints[prefix+k] = v
	}
	for k, v := range r.Floats {
		out.Floats[prefix+k] = v
	}
	return out
}

// MarshalJSON 键按字典序输出，nil 与非有限浮点写为 null
func (r StatRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		if v, ok := r.Ints[k]; ok {
			buf.WriteString(strconv.FormatInt(v, 10))
			continue
		}
		buf.Write(marshalFloat(r.Floats[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalFloat(v *float64) []byte {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return []byte("null")
	}
	return strconv.AppendFloat(nil, *v, 'g', -1, 64)
}

// ==================== 统计计算 ====================

func floatPtr(v float64) *float64 {
	return &v
}

// sortValues 升序排序副本，NaN 与任何值比较视为相等
func sortValues(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	return sorted
}

// percentile 对已排序序列做线性插值分位数
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	if math.IsNaN(q) {
		return sorted[0]
	}
	q = math.Max(0, math.Min(100, q))

	pos := (q / 100) * float64(n-1)
	low := int(math.Floor(pos))
	high := int(math.Ceil(pos))
	if low == high {
		return sorted[low]
	}
	weight := pos - float64(low)
	return sorted[low]*(1-weight) + sorted[high]*weight
}

// histogram 按位模式计数，+0 与 -0 以及不同 NaN 载荷分属不同桶
func histogram(values []float64) map[uint64]int {
	hist := make(map[uint64]int, len(values))
	for _, v := range values {
		hist[math.Float64bits(v)]++
	}
	return hist
}

// modeValue 众数或少数，计数相同时取位模式较小者
func modeValue(hist map[uint64]int, majority bool) *float64 {
	var (
		bestBits  uint64
		bestCount int
		found     bool
	)
	for bits, count := range hist {
		if !found {
			bestBits, bestCount, found = bits, count, true
			continue
		}
		var better bool
		if majority {
			better = count > bestCount || (count == bestCount && bits < bestBits)
		} else {
			better = count < bestCount || (count == bestCount && bits < bestBits)
		}
		if better {
			bestBits, bestCount = bits, count
		}
	}
	if !found {
		return nil
	}
	return floatPtr(math.Float64frombits(bestBits))
}

// parsePercentile 取最后一个 "_" 之后的部分作为分位数，解析失败时为 50
func parsePercentile(name string) float64 {
	token := name[strings.LastIndex(name, "_")+1:]
	q, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 50
	}
	return q
}

// ComputeStats 计算统计量
// nodataCount 与 nanCount 由调用方统计，原样写入 nodata 与 nan
func ComputeStats(values []float64, stats []string, nodataCount, nanCount int) StatRecord {
	record := NewStatRecord()

	if len(values) == 0 {
		for _, stat := range stats {
			switch stat {
			case StatCount:
				record.Ints[stat] = 0
			case StatNoData:
				record.Floats[stat] = floatPtr(float64(nodataCount))
			case StatNaN:
				record.Floats[stat] = floatPtr(float64(nanCount))
			default:
				record.Floats[stat] = nil
			}
		}
		return record
	}

	sorted := sortValues(values)
	count := len(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(count)
	minV, maxV := sorted[0], sorted[count-1]

	var hist map[uint64]int
	getHist := func() map[uint64]int {
		if hist == nil {
			hist = histogram(values)
		}
		return hist
	}

	for _, stat := range stats {
		switch stat {
		case StatMin:
			record.Floats[stat] = floatPtr(minV)
		case StatMax:
			record.Floats[stat] = floatPtr(maxV)
		case StatMean:
			record.Floats[stat] = floatPtr(mean)
		case StatSum:
			record.Floats[stat] = floatPtr(sum)
		case StatCount:
			record.Ints[stat] = int64(count)
		case StatStd:
			var ss float64
			for _, v := range values {
				d := v - mean
				ss += d * d
			}
			record.Floats[stat] = floatPtr(math.Sqrt(ss / float64(count)))
		case StatMedian:
			record.Floats[stat] = floatPtr(percentile(sorted, 50))
		case StatMajority:
			record.Floats[stat] = modeValue(getHist(), true)
		case StatMinority:
			record.Floats[stat] = modeValue(getHist(), false)
		case StatUnique:
			record.Ints[stat] = int64(len(getHist()))
		case StatRange:
			record.Floats[stat] = floatPtr(maxV - minV)
		case StatNoData:
			record.Floats[stat] = floatPtr(float64(nodataCount))
		case StatNaN:
			record.Floats[stat] = floatPtr(float64(nanCount))
		default:
			if strings.HasPrefix(stat, percentilePrefix) {
				record.Floats[stat] = floatPtr(percentile(sorted, parsePercentile(stat)))
				continue
			}
			record.Floats[stat] = nil
		}
	}
	return record
}
