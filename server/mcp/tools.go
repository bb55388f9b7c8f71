package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/paulmach/orb"

	"github.com/GrainArc/Gozonal"
	"github.com/GrainArc/Gozonal/internal/logger"
)

// ToolDeps holds shared dependencies for MCP tool handlers
type ToolDeps struct {
	Engine       *Gozonal.Engine
	Store        *Gozonal.ResultStore // optional; results are persisted when set
	Pool         *Gozonal.CallPool
	DefaultStats []string
	Logger       *slog.Logger
}

// ZonalResult is the JSON payload returned by zonal_stats
type ZonalResult struct {
	TaskID  string               `json:"task_id,omitempty"`
	Results []Gozonal.StatRecord `json:"results"`
}

// PointResult is the JSON payload returned by point_query
type PointResult struct {
	TaskID  string                 `json:"task_id,omitempty"`
	Results Gozonal.NullableFloats `json:"results"`
}

// PointVectorResult is the JSON payload returned by point_query_vector
type PointVectorResult struct {
	TaskID  string                `json:"task_id,omitempty"`
	Results []Gozonal.PointValues `json:"results"`
}

// toolError maps the error taxonomy onto the two caller-facing categories
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	var ze *Gozonal.Error
	if errors.As(err, &ze) {
		msg = ze.Err.Error()
		if ze.Op != "" {
			msg = ze.Op + ": " + msg
		}
	}
	if Gozonal.IsInvalidArgument(err) {
		return mcp.NewToolResultError("invalid argument: " + msg)
	}
	return mcp.NewToolResultError("runtime error: " + msg)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("runtime error: encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// fillDefaults sets missing dependencies once, before any handler runs
func (d *ToolDeps) fillDefaults() {
	if d.Engine == nil {
		d.Engine = Gozonal.NewEngine()
	}
	if d.Pool == nil {
		d.Pool = Gozonal.GetCallPool()
	}
}

// engine and pool never write to d, so handlers may share one ToolDeps
func (d *ToolDeps) engine() *Gozonal.Engine {
	if d.Engine == nil {
		return Gozonal.NewEngine()
	}
	return d.Engine
}

func (d *ToolDeps) pool() *Gozonal.CallPool {
	if d.Pool == nil {
		return Gozonal.GetCallPool()
	}
	return d.Pool
}

func (d *ToolDeps) logger() *slog.Logger {
	if d.Logger == nil {
		return logger.L()
	}
	return d.Logger
}

// nodataArg returns nil when the argument is absent or null
func nodataArg(request mcp.CallToolRequest) (*float64, error) {
	raw, ok := request.GetArguments()["nodata"]
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := toFloat(raw)
	if s, isString := raw.(string); isString {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		v, ok = f, err == nil
	}
	if !ok {
		return nil, fmt.Errorf("nodata must be a number, got %v", raw)
	}
	return &v, nil
}

func (d *ToolDeps) statsArg(request mcp.CallToolRequest) []string {
	raw, ok := request.GetArguments()["stats"]
	if !ok || raw == nil {
		if len(d.DefaultStats) > 0 {
			return append([]string(nil), d.DefaultStats...)
		}
		return append([]string(nil), Gozonal.DefaultStats...)
	}
	if s, ok := raw.(string); ok {
		return Gozonal.ParseStats(s)
	}
	return Gozonal.ExpandStats(request.GetStringSlice("stats", nil))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// coordsArg parses [[x, y], ...]
func coordsArg(request mcp.CallToolRequest) ([]orb.Point, error) {
	raw, ok := request.GetArguments()["coords"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("coords parameter is required")
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case [][]float64:
		for _, p := range v {
			items = append(items, []any{p[0], p[1]})
		}
	default:
		return nil, fmt.Errorf("coords must be an array of [x, y] pairs")
	}

	coords := make([]orb.Point, 0, len(items))
	for i, item := range items {
		pair, ok := item.([]any)
		if !ok {
			if fp, isFloats := item.([]float64); isFloats {
				pair = []any{}
				for _, f := range fp {
					pair = append(pair, f)
				}
			}
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("coords[%d] must be an [x, y] pair", i)
		}
		x, okX := toFloat(pair[0])
		y, okY := toFloat(pair[1])
		if !okX || !okY {
			return nil, fmt.Errorf("coords[%d] must contain numbers", i)
		}
		coords = append(coords, orb.Point{x, y})
	}
	return coords, nil
}

// HandleHealthcheck reports liveness
func (d *ToolDeps) HandleHealthcheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(d.engine().Healthcheck()), nil
}

// HandleZonalStats computes zonal statistics for every feature of a vector layer
func (d *ToolDeps) HandleZonalStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vectorPath := request.GetString("vector", "")
	rasterPath := request.GetString("raster", "")
	if vectorPath == "" || rasterPath == "" {
		return mcp.NewToolResultError("invalid argument: vector and raster parameters are required"), nil
	}

	nodata, err := nodataArg(request)
	if err != nil {
		return mcp.NewToolResultError("invalid argument: " + err.Error()), nil
	}

	opts := Gozonal.ZonalOptions{
		Layer:      request.GetInt("layer", 0),
		Band:       request.GetInt("band", 1),
		NoData:     nodata,
		AllTouched: request.GetBool("all_touched", false),
		Boundless:  request.GetBool("boundless", true),
		Stats:      d.statsArg(request),
		Prefix:     request.GetString("prefix", ""),
	}

	start := time.Now()
	result, err := Gozonal.Do(ctx, d.pool(), func() (ZonalResult, error) {
		if d.Store != nil {
			taskID, records, err := d.Store.RunZonal(d.engine(), vectorPath, rasterPath, opts)
			return ZonalResult{TaskID: taskID, Results: records}, err
		}
		records, err := d.engine().ZonalStats(vectorPath, rasterPath, opts)
		return ZonalResult{Results: records}, err
	})
	if err != nil {
		d.logger().Warn("mcp_tool_failed", "tool", "zonal_stats", "err", err)
		return toolError(err), nil
	}

	d.logger().Info("mcp_tool_done", "tool", "zonal_stats", "features", len(result.Results), "elapsed_ms", time.Since(start).Milliseconds())
	return jsonResult(result)
}

func pointOptions(request mcp.CallToolRequest) (Gozonal.PointQueryOptions, error) {
	nodata, err := nodataArg(request)
	if err != nil {
		return Gozonal.PointQueryOptions{}, err
	}
	return Gozonal.PointQueryOptions{
		Layer:       request.GetInt("layer", 0),
		Band:        request.GetInt("band", 1),
		NoData:      nodata,
		Interpolate: strings.TrimSpace(request.GetString("interpolate", Gozonal.InterpolateBilinear)),
		Boundless:   request.GetBool("boundless", true),
	}, nil
}

// HandlePointQuery samples a raster at explicit coordinates
func (d *ToolDeps) HandlePointQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rasterPath := request.GetString("raster", "")
	if rasterPath == "" {
		return mcp.NewToolResultError("invalid argument: raster parameter is required"), nil
	}
	coords, err := coordsArg(request)
	if err != nil {
		return mcp.NewToolResultError("invalid argument: " + err.Error()), nil
	}
	opts, err := pointOptions(request)
	if err != nil {
		return mcp.NewToolResultError("invalid argument: " + err.Error()), nil
	}

	result, err := Gozonal.Do(ctx, d.pool(), func() (PointResult, error) {
		if d.Store != nil {
			taskID, values, err := d.Store.RunPointQuery(d.engine(), rasterPath, coords, opts)
			return PointResult{TaskID: taskID, Results: values}, err
		}
		values, err := d.engine().PointQuery(rasterPath, coords, opts)
		return PointResult{Results: values}, err
	})
	if err != nil {
		d.logger().Warn("mcp_tool_failed", "tool", "point_query", "err", err)
		return toolError(err), nil
	}

	d.logger().Info("mcp_tool_done", "tool", "point_query", "points", len(result.Results))
	return jsonResult(result)
}

// HandlePointQueryVector samples a raster at every vertex of every feature of a vector layer
func (d *ToolDeps) HandlePointQueryVector(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vectorPath := request.GetString("vector", "")
	rasterPath := request.GetString("raster", "")
	if vectorPath == "" || rasterPath == "" {
		return mcp.NewToolResultError("invalid argument: vector and raster parameters are required"), nil
	}
	opts, err := pointOptions(request)
	if err != nil {
		return mcp.NewToolResultError("invalid argument: " + err.Error()), nil
	}

	result, err := Gozonal.Do(ctx, d.pool(), func() (PointVectorResult, error) {
		if d.Store != nil {
			taskID, groups, err := d.Store.RunPointQueryVector(d.engine(), vectorPath, rasterPath, opts)
			return PointVectorResult{TaskID: taskID, Results: groups}, err
		}
		groups, err := d.engine().PointQueryVector(vectorPath, rasterPath, opts)
		return PointVectorResult{Results: groups}, err
	})
	if err != nil {
		d.logger().Warn("mcp_tool_failed", "tool", "point_query_vector", "err", err)
		return toolError(err), nil
	}

	d.logger().Info("mcp_tool_done", "tool", "point_query_vector", "features", len(result.Results))
	return jsonResult(result)
}
