package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"github.com/GrainArc/Gozonal"
	"github.com/GrainArc/Gozonal/internal/logger"
	mcpsrv "github.com/GrainArc/Gozonal/server/mcp"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `gozonal - zonal statistics and point queries over rasters

Usage:
  gozonal <command> [options]

Commands:
  health    Print "ok"
  zonal     Zonal statistics for every feature of a vector layer
  point     Sample raster values at coordinates or vector vertices
  serve     Run the MCP server (stdio or streamable HTTP)
  version   Print version information

Run "gozonal <command> -h" for command options.

Environment variables:
  GOZONAL_RESULT_DB       SQLite result database
  GOZONAL_MCP_ADDR        HTTP listen address for "serve -transport http"
  GOZONAL_MCP_TRANSPORT   stdio or http
  GOZONAL_DEFAULT_STATS   Space separated default statistics
  LOG_LEVEL, LOG_FORMAT   debug|info|warn|error, text|json
`

// 退出码
const (
	exitOK      = 0
	exitRuntime = 1
	exitInvalid = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitInvalid
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "gozonal %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return exitOK
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	case "health":
		fmt.Fprintln(stdout, Gozonal.Healthcheck())
		return exitOK
	case "zonal":
		return exitCode(stderr, runZonal(rest, stdout, stderr))
	case "point":
		return exitCode(stderr, runPoint(rest, stdout, stderr))
	case "serve":
		return exitCode(stderr, runServe(rest, stderr))
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
	return exitInvalid
}

func exitCode(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case Gozonal.IsInvalidArgument(err) || errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return exitInvalid
	}
	fmt.Fprintln(stderr, err)
	return exitRuntime
}

var errUsage = errors.New("usage error")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// commonFlags 各子命令共享的配置项
type commonFlags struct {
	config  string
	envFile string
	db      string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "XML config file (default $UserConfigDir/Gozonal/config.xml)")
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&c.db, "db", "", "SQLite result database; results are recorded when set")
}

// setup 加载配置并初始化日志器
func (c *commonFlags) setup() (Gozonal.Config, *slog.Logger, error) {
	cfg, err := Gozonal.LoadConfig(c.config, c.envFile)
	if err != nil {
		return cfg, nil, err
	}
	if c.db != "" {
		cfg.ResultDB = c.db
	}
	return cfg, logger.SetupWith(cfg.LogLevel, cfg.LogFormat), nil
}

func (c *commonFlags) openStore(cfg Gozonal.Config) (*Gozonal.ResultStore, error) {
	if cfg.ResultDB == "" {
		return nil, nil
	}
	return Gozonal.OpenResultStore(cfg.ResultDB)
}

// nodataFlag 可选浮点参数
type nodataFlag struct {
	value *float64
}

func (n *nodataFlag) String() string {
	if n.value == nil {
		return ""
	}
	return strconv.FormatFloat(*n.value, 'g', -1, 64)
}

func (n *nodataFlag) Set(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid nodata %q", s)
	}
	n.value = &v
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usagef("%v", err)
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func runZonal(args []string, stdout, stderr io.Writer) error {
	var (
		common commonFlags
		nodata nodataFlag
		opts   = Gozonal.DefaultZonalOptions()
		vector string
		raster string
		stats  string
		out    string
	)
	fs := newFlagSet("zonal", stderr)
	common.register(fs)
	fs.StringVar(&vector, "vector", "", "vector dataset path (required)")
	fs.StringVar(&raster, "raster", "", "raster dataset path (required)")
	fs.IntVar(&opts.Layer, "layer", 0, "vector layer index")
	fs.IntVar(&opts.Band, "band", 1, "raster band, starting at 1")
	fs.Var(&nodata, "nodata", "override the band nodata value")
	fs.BoolVar(&opts.AllTouched, "all-touched", false, "include every pixel touched by the geometry")
	fs.BoolVar(&opts.Boundless, "boundless", true, "allow windows beyond the raster extent")
	fs.StringVar(&stats, "stats", "", `space separated statistics, "*" for all`)
	fs.StringVar(&opts.Prefix, "prefix", "", "prefix for statistic names")
	fs.StringVar(&out, "out", "", "write results to a .json or .xlsx file instead of stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if vector == "" || raster == "" {
		return usagef("-vector and -raster are required")
	}

	cfg, l, err := common.setup()
	if err != nil {
		return err
	}
	opts.NoData = nodata.value
	if strings.TrimSpace(stats) != "" {
		opts.Stats = Gozonal.ParseStats(stats)
	} else {
		opts.Stats = cfg.Stats()
	}

	store, err := common.openStore(cfg)
	if err != nil {
		return err
	}
	var records []Gozonal.StatRecord
	engine := Gozonal.NewEngine(Gozonal.WithLogger(l))
	if store != nil {
		defer store.Close()
		var taskID string
		taskID, records, err = store.RunZonal(engine, vector, raster, opts)
		if taskID != "" {
			l.Info("task_recorded", "task_id", taskID, "db", cfg.ResultDB)
		}
	} else {
		records, err = engine.ZonalStats(vector, raster, opts)
	}
	if err != nil {
		return err
	}

	if out != "" {
		return Gozonal.ExportZonal(out, records)
	}
	return Gozonal.WriteJSON(stdout, records)
}

// parseCoords 解析 "x,y;x,y"
func parseCoords(s string) ([]orb.Point, error) {
	var coords []orb.Point
	for i, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, usagef("coordinate %d %q must be x,y", i, pair)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX != nil || errY != nil {
			return nil, usagef("coordinate %d %q must contain numbers", i, pair)
		}
		coords = append(coords, orb.Point{x, y})
	}
	return coords, nil
}

func runPoint(args []string, stdout, stderr io.Writer) error {
	var (
		common  commonFlags
		nodata  nodataFlag
		opts    = Gozonal.DefaultPointQueryOptions()
		vector  string
		raster  string
		coordsS string
		out     string
	)
	fs := newFlagSet("point", stderr)
	common.register(fs)
	fs.StringVar(&raster, "raster", "", "raster dataset path (required)")
	fs.StringVar(&coordsS, "coords", "", `coordinates "x,y;x,y"`)
	fs.StringVar(&vector, "vector", "", "sample every vertex of this vector layer instead of -coords")
	fs.IntVar(&opts.Layer, "layer", 0, "vector layer index")
	fs.IntVar(&opts.Band, "band", 1, "raster band, starting at 1")
	fs.Var(&nodata, "nodata", "override the band nodata value")
	fs.StringVar(&opts.Interpolate, "interpolate", Gozonal.InterpolateBilinear, "nearest or bilinear")
	fs.BoolVar(&opts.Boundless, "boundless", true, "allow reads beyond the raster extent")
	fs.StringVar(&out, "out", "", "write results to a .json or .xlsx file instead of stdout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if raster == "" {
		return usagef("-raster is required")
	}
	if (vector == "") == (coordsS == "") {
		return usagef("exactly one of -coords and -vector is required")
	}
	opts.NoData = nodata.value

	cfg, l, err := common.setup()
	if err != nil {
		return err
	}
	store, err := common.openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	engine := Gozonal.NewEngine(Gozonal.WithLogger(l))

	var (
		coords []orb.Point
		values []*float64
		result any
		taskID string
	)
	if vector != "" {
		var groups []Gozonal.PointValues
		if store != nil {
			taskID, groups, err = store.RunPointQueryVector(engine, vector, raster, opts)
		} else {
			groups, err = engine.PointQueryVector(vector, raster, opts)
		}
		if err != nil {
			return err
		}
		for _, g := range groups {
			coords = append(coords, g.Coords...)
			values = append(values, g.Values...)
		}
		result = groups
	} else {
		coords, err = parseCoords(coordsS)
		if err != nil {
			return err
		}
		if store != nil {
			taskID, values, err = store.RunPointQuery(engine, raster, coords, opts)
		} else {
			values, err = engine.PointQuery(raster, coords, opts)
		}
		if err != nil {
			return err
		}
		result = Gozonal.NullableFloats(values)
	}
	if taskID != "" {
		l.Info("task_recorded", "task_id", taskID, "db", cfg.ResultDB)
	}

	switch strings.ToLower(filepath.Ext(out)) {
	case "":
		return Gozonal.WriteJSON(stdout, result)
	case ".xlsx":
		return Gozonal.WritePointsXLSX(out, coords, values)
	case ".json":
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		return Gozonal.WriteJSON(f, result)
	}
	return usagef("unsupported output format %q, want .json or .xlsx", filepath.Ext(out))
}

func runServe(args []string, stderr io.Writer) error {
	var (
		common    commonFlags
		transport string
		addr      string
		poolSize  int
	)
	fs := newFlagSet("serve", stderr)
	common.register(fs)
	fs.StringVar(&transport, "transport", "", "stdio or http (default from config)")
	fs.StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	fs.IntVar(&poolSize, "pool", 0, "maximum concurrent tool calls (default 2 x CPU, 4-16)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, l, err := common.setup()
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.MCPTransport
	}
	if addr == "" {
		addr = cfg.MCPAddr
	}

	store, err := common.openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	deps := &mcpsrv.ToolDeps{
		Engine:       Gozonal.NewEngine(Gozonal.WithLogger(l)),
		Store:        store,
		Pool:         Gozonal.NewCallPool(poolSize),
		DefaultStats: cfg.Stats(),
		Logger:       l,
	}
	srv := mcpsrv.NewServer(deps, Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(transport, addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		l.Info("mcp_serve_stop")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
