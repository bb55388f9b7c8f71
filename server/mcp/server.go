package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Transport names accepted by Serve
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server is the MCP protocol server exposing zonal statistics and point queries
type Server struct {
	deps    *ToolDeps
	version string
	mcp     *mcpserver.MCPServer
	http    *mcpserver.StreamableHTTPServer
}

// NewServer creates a new MCP server and registers its tools
func NewServer(deps *ToolDeps, version string) *Server {
	if deps == nil {
		deps = &ToolDeps{}
	}
	deps.fillDefaults()
	if version == "" {
		version = "dev"
	}

	mcpSrv := mcpserver.NewMCPServer(
		"gozonal",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s := &Server{deps: deps, version: version, mcp: mcpSrv}
	s.registerTools()
	return s
}

// MCP returns the underlying mcp-go server
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	healthTool := mcp.NewTool("healthcheck",
		mcp.WithDescription("Report whether the service is alive. Returns the text \"ok\"."),
	)

	zonalTool := mcp.NewTool("zonal_stats",
		mcp.WithDescription("Compute summary statistics of raster values inside each feature of a vector layer. Returns one record per feature, in feature order."),
		mcp.WithString("vector", mcp.Description("Path to the vector dataset (GeoJSON, GeoPackage, or any format the backend opens)"), mcp.Required()),
		mcp.WithString("raster", mcp.Description("Path to the raster dataset"), mcp.Required()),
		mcp.WithNumber("layer", mcp.Description("Vector layer index"), mcp.DefaultNumber(0)),
		mcp.WithNumber("band", mcp.Description("Raster band index, starting at 1"), mcp.DefaultNumber(1)),
		mcp.WithNumber("nodata", mcp.Description("Override the band's nodata value")),
		mcp.WithBoolean("all_touched", mcp.Description("Include every pixel touched by the geometry"), mcp.DefaultBool(false)),
		mcp.WithBoolean("boundless", mcp.Description("Allow windows beyond the raster extent, padded with nodata"), mcp.DefaultBool(true)),
		mcp.WithArray("stats", mcp.Description("Statistics to compute, e.g. count min max mean sum std median majority minority unique range nodata nan percentile_90. \"*\" selects all."), mcp.WithStringItems()),
		mcp.WithString("prefix", mcp.Description("Prefix added to every statistic name")),
	)

	pointTool := mcp.NewTool("point_query",
		mcp.WithDescription("Sample raster values at coordinates using nearest or bilinear interpolation. Returns one value per coordinate, null where no data."),
		mcp.WithString("raster", mcp.Description("Path to the raster dataset"), mcp.Required()),
		mcp.WithArray("coords", mcp.Description("Coordinates as [[x, y], ...] in the raster's CRS"), mcp.Required(),
			mcp.Items(map[string]any{"type": "array", "items": map[string]any{"type": "number"}})),
		mcp.WithNumber("band", mcp.Description("Raster band index, starting at 1"), mcp.DefaultNumber(1)),
		mcp.WithNumber("nodata", mcp.Description("Override the band's nodata value")),
		mcp.WithString("interpolate", mcp.Description("nearest or bilinear"), mcp.Enum("nearest", "bilinear"), mcp.DefaultString("bilinear")),
		mcp.WithBoolean("boundless", mcp.Description("Allow reads beyond the raster extent"), mcp.DefaultBool(true)),
	)

	pointVectorTool := mcp.NewTool("point_query_vector",
		mcp.WithDescription("Sample raster values at every vertex of every feature of a vector layer. A feature with a single coordinate yields a scalar, others yield an array."),
		mcp.WithString("vector", mcp.Description("Path to the vector dataset"), mcp.Required()),
		mcp.WithString("raster", mcp.Description("Path to the raster dataset"), mcp.Required()),
		mcp.WithNumber("layer", mcp.Description("Vector layer index"), mcp.DefaultNumber(0)),
		mcp.WithNumber("band", mcp.Description("Raster band index, starting at 1"), mcp.DefaultNumber(1)),
		mcp.WithNumber("nodata", mcp.Description("Override the band's nodata value")),
		mcp.WithString("interpolate", mcp.Description("nearest or bilinear"), mcp.Enum("nearest", "bilinear"), mcp.DefaultString("bilinear")),
		mcp.WithBoolean("boundless", mcp.Description("Allow reads beyond the raster extent"), mcp.DefaultBool(true)),
	)

	s.mcp.AddTool(healthTool, s.deps.HandleHealthcheck)
	s.mcp.AddTool(zonalTool, s.deps.HandleZonalStats)
	s.mcp.AddTool(pointTool, s.deps.HandlePointQuery)
	s.mcp.AddTool(pointVectorTool, s.deps.HandlePointQueryVector)
}

// ServeStdio serves MCP over stdin/stdout (blocking)
func (s *Server) ServeStdio() error {
	s.deps.logger().Info("mcp_serve_start", "transport", TransportStdio, "version", s.version)
	return mcpserver.ServeStdio(s.mcp)
}

// ServeHTTP serves MCP over streamable HTTP at /mcp (blocking)
func (s *Server) ServeHTTP(addr string) error {
	s.http = mcpserver.NewStreamableHTTPServer(
		s.mcp,
		mcpserver.WithEndpointPath("/mcp"),
	)
	s.deps.logger().Info("mcp_serve_start", "transport", TransportHTTP, "addr", addr, "version", s.version)
	return s.http.Start(addr)
}

// Serve dispatches on the transport name
func (s *Server) Serve(transport, addr string) error {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", TransportStdio:
		return s.ServeStdio()
	case TransportHTTP, "streamable-http":
		return s.ServeHTTP(addr)
	}
	return fmt.Errorf("unknown MCP transport %q, want stdio or http", transport)
}

// Shutdown stops the HTTP transport if it is running
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
