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
	"fmt"
	"log/slog"
	"time"

	"github.com/GrainArc/Gozonal/internal/logger"
	"github.com/paulmach/orb"
)

// Backend 引擎使用的外部数据访问能力，字段为空时使用全局注册的驱动
type Backend struct {
	OpenRaster RasterOpener
	OpenVector VectorOpener
	Rasterizer MaskRasterizer
}

func (b Backend) rasterOpener() RasterOpener {
	if b.OpenRaster != nil {
		return b.OpenRaster
	}
	return OpenRaster
}

func (b Backend) vectorOpener() VectorOpener {
	if b.OpenVector != nil {
		return b.OpenVector
	}
	return OpenVector
}

func (b Backend) rasterizer() MaskRasterizer {
	if b.Rasterizer != nil {
		return b.Rasterizer
	}
	return DefaultRasterizer()
}

// Engine 分区统计与点查询入口，每次调用独立打开并关闭数据集
// 未指定日志器时使用 internal/logger 的默认日志器
type Engine struct {
	backend Backend
	log     *slog.Logger
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithBackend 指定数据访问能力
func WithBackend(b Backend) EngineOption {
	return func(e *Engine) { e.backend = b }
}

// WithLogger 指定日志器
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine 创建引擎
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return logger.L()
}

// ZonalOptions 分区统计参数
type ZonalOptions struct {
	Layer      int
	Band       int
	NoData     *float64
	AllTouched bool
	Boundless  bool
	Stats      []string
	Prefix     string
}

// DefaultZonalOptions layer 0、band 1、boundless、默认统计量
func DefaultZonalOptions() ZonalOptions {
	return ZonalOptions{
		Layer:     0,
		Band:      1,
		Boundless: true,
		Stats:     append([]string(nil), DefaultStats...),
	}
}

// PointQueryOptions 点查询参数
type PointQueryOptions struct {
	Layer       int
	Band        int
	NoData      *float64
	Interpolate string
	Boundless   bool
}

// DefaultPointQueryOptions band 1、双线性、boundless
func DefaultPointQueryOptions() PointQueryOptions {
	return PointQueryOptions{
		Band:        1,
		Interpolate: InterpolateBilinear,
		Boundless:   true,
	}
}

// Healthcheck 存活检查
func (e *Engine) Healthcheck() string {
	return "ok"
}

func openLayer(src VectorSource, index int) (FeatureLayer, error) {
	if index < 0 || index >= src.LayerCount() {
		return nil, dataSourcef("open layer", "layer index %d out of range [0,%d)", index, src.LayerCount())
	}
	layer, err := src.Layer(index)
	if err != nil {
		return nil, dataSourceErr("open layer", err)
	}
	return layer, nil
}

// ZonalStats 对矢量图层中每个要素计算分区统计，结果顺序与要素顺序一致
func (e *Engine) ZonalStats(vectorPath, rasterPath string, opts ZonalOptions) ([]StatRecord, error) {
	stats := ExpandStats(opts.Stats)
	start := time.Now()

	rc, err := OpenRasterContext(e.backend.rasterOpener(), rasterPath, opts.Band, opts.NoData)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	vs, err := e.backend.vectorOpener()(vectorPath)
	if err != nil {
		return nil, dataSourceErr("open vector", err)
	}
	defer vs.Close()

	layer, err := openLayer(vs, opts.Layer)
	if err != nil {
		return nil, err
	}

	e.logger().Info("zonal_start",
		"vector", vectorPath,
		"raster", rasterPath,
		"layer", layer.Name(),
		"band", opts.Band,
		"all_touched", opts.AllTouched,
		"boundless", opts.Boundless,
		"stats", stats)

	records, err := e.zonalLayer(rc, layer, opts.AllTouched, opts.Boundless, stats, opts.Prefix)
	if err != nil {
		e.logger().Error("zonal_failed", "vector", vectorPath, "raster", rasterPath, "err", err)
		return nil, err
	}

	e.logger().Info("zonal_done",
		"features", len(records),
		"elapsed_ms", time.Since(start).Milliseconds())
	return records, nil
}

// ZonalStatsLayer 在已打开的栅格与图层上计算分区统计
func (e *Engine) ZonalStatsLayer(rc *RasterContext, layer FeatureLayer, opts ZonalOptions) ([]StatRecord, error) {
	return e.zonalLayer(rc, layer, opts.AllTouched, opts.Boundless, ExpandStats(opts.Stats), opts.Prefix)
}

func (e *Engine) zonalLayer(rc *RasterContext, layer FeatureLayer, allTouched, boundless bool, stats []string, prefix string) ([]StatRecord, error) {
	rasterizer := e.backend.rasterizer()
	var records []StatRecord
	index := 0
	err := layer.Range(func(f Feature) error {
		defer func() { index++ }()
		if f.Geometry == nil {
			e.logger().Debug("zonal_feature_skipped", "index", index, "fid", f.FID, "reason", "missing geometry")
		}
		rec, err := ZonalStatsGeometry(rc, f.Geometry, rasterizer, allTouched, boundless, stats)
		if err != nil {
			return fmt.Errorf("feature %d: %w", index, err)
		}
		e.logger().Debug("zonal_feature_done", "index", index, "fid", f.FID, "stats", rec.Len())
		records = append(records, rec.WithPrefix(prefix))
		return nil
	})
	if err != nil {
		return nil, dataSourceErr("read features", err)
	}
	if records == nil {
		records = []StatRecord{}
	}
	return records, nil
}

// PointQuery 在栅格上按坐标采样
func (e *Engine) PointQuery(rasterPath string, coords []orb.Point, opts PointQueryOptions) ([]*float64, error) {
	if err := validateInterpolate(opts.Interpolate); err != nil {
		return nil, err
	}

	rc, err := OpenRasterContext(e.backend.rasterOpener(), rasterPath, opts.Band, opts.NoData)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	e.logger().Info("point_query_start",
		"raster", rasterPath,
		"points", len(coords),
		"interpolate", opts.Interpolate)

	values, err := SamplePoints(rc, coords, opts.Interpolate, opts.Boundless)
	if err != nil {
		e.logger().Error("point_query_failed", "raster", rasterPath, "err", err)
		return nil, err
	}
	return values, nil
}

// PointQueryVector 以矢量要素的全部坐标作为采样点，结果按要素分组
func (e *Engine) PointQueryVector(vectorPath, rasterPath string, opts PointQueryOptions) ([]PointValues, error) {
	if err := validateInterpolate(opts.Interpolate); err != nil {
		return nil, err
	}

	vs, err := e.backend.vectorOpener()(vectorPath)
	if err != nil {
		return nil, dataSourceErr("open vector", err)
	}
	defer vs.Close()

	layer, err := openLayer(vs, opts.Layer)
	if err != nil {
		return nil, err
	}

	var (
		coords []orb.Point
		counts []int
	)
	err = layer.Range(func(f Feature) error {
		pts := GeometryCoords(f.Geometry)
		counts = append(counts, len(pts))
		coords = append(coords, pts...)
		return nil
	})
	if err != nil {
		return nil, dataSourceErr("read features", err)
	}
	if len(counts) == 0 {
		return []PointValues{}, nil
	}

	raw, err := e.PointQuery(rasterPath, coords, opts)
	if err != nil {
		return nil, err
	}

	out := make([]PointValues, 0, len(counts))
	idx := 0
	for _, n := range counts {
		out = append(out, PointValues{Coords: coords[idx : idx+n], Values: raw[idx : idx+n]})
		idx += n
	}
	return out, nil
}

var defaultEngine = NewEngine()

// Healthcheck 存活检查
func Healthcheck() string {
	return defaultEngine.Healthcheck()
}

// ZonalStats 使用默认引擎计算分区统计
func ZonalStats(vectorPath, rasterPath string, opts ZonalOptions) ([]StatRecord, error) {
	return defaultEngine.ZonalStats(vectorPath, rasterPath, opts)
}

// PointQuery 使用默认引擎做点查询
func PointQuery(rasterPath string, coords []orb.Point, opts PointQueryOptions) ([]*float64, error) {
	return defaultEngine.PointQuery(rasterPath, coords, opts)
}

// PointQueryVector 使用默认引擎做矢量驱动的点查询
func PointQueryVector(vectorPath, rasterPath string, opts PointQueryOptions) ([]PointValues, error) {
	return defaultEngine.PointQueryVector(vectorPath, rasterPath, opts)
}
