// Command ebiv-process estimates the velocity field of an event recording.
//
// It loads <data_dir>/<file_stub>.evt (or -events), runs the configured
// estimator over every time step and tile, replaces outliers, and writes
// <dest_dir>/<veldata stem>.npy. Optionally the run is stored in SQLite
// and diagnostic figures are rendered next to the field. With -serve the
// stored runs are browsed over HTTP instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/banshee-data/eventflow/internal/api"
	"github.com/banshee-data/eventflow/internal/config"
	"github.com/banshee-data/eventflow/internal/ebiv/correlate"
	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/ebiv/evtfile"
	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/banshee-data/eventflow/internal/ebiv/pipeline"
	"github.com/banshee-data/eventflow/internal/ebiv/render"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"github.com/banshee-data/eventflow/internal/ebiv/storage/sqlite"
	"github.com/banshee-data/eventflow/internal/ebiv/warp"
	"github.com/banshee-data/eventflow/internal/fsutil"
	"github.com/banshee-data/eventflow/internal/metrics"
	"github.com/banshee-data/eventflow/internal/monitoring"
	"github.com/banshee-data/eventflow/internal/units"
	"github.com/banshee-data/eventflow/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Processing configuration (JSON)")
	eventsPath  = flag.String("events", "", "Event file; defaults to <data_dir>/<file_stub>.evt")
	dbPath      = flag.String("db", "", "SQLite database to record the run in (disabled when empty)")
	htmlOut     = flag.Bool("html", false, "Write an HTML velocity-field chart per time step")
	objMapOut   = flag.Bool("objective-map", false, "Write a PNG of the reward or correlation map of the centre tile")
	noClean     = flag.Bool("no-clean", false, "Skip outlier detection and replacement")
	scanVX      = flag.String("vx", "", "Override the motion scan vx axis as min:max:step [px/ms]")
	scanVY      = flag.String("vy", "", "Override the motion scan vy axis as min:max:step [px/ms]")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while processing")
	serveAddr   = flag.String("serve", "", "Serve the runs stored in -db on this address instead of processing")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options are the per-invocation settings that do not live in the
// processing configuration.
type options struct {
	EventsPath string
	DBPath     string
	HTML       bool
	ObjMap     bool
	NoClean    bool
	// ScanVX and ScanVY replace the configured scan axes when set.
	ScanVX string
	ScanVY string
}

// outcome lists what a processing run produced.
type outcome struct {
	FieldPath string
	RunID     string
	Figures   []string
	Outliers  int
	Positions int
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("ebiv-process", version.String())
		return
	}

	if *serveAddr != "" {
		if err := serve(*serveAddr, *dbPath); err != nil {
			log.Fatalf("serve: %v", err)
		}
		return
	}

	cfg, err := config.LoadProcessingConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rec := metrics.NewRecorder()
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
		monitoring.Logf("metrics on http://%s/metrics", *metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := process(ctx, fsutil.OSFileSystem{}, cfg, options{
		EventsPath: *eventsPath,
		DBPath:     *dbPath,
		HTML:       *htmlOut,
		ObjMap:     *objMapOut,
		NoClean:    *noClean,
		ScanVX:     *scanVX,
		ScanVY:     *scanVY,
	}, rec)
	if err != nil {
		log.Fatalf("process: %v", err)
	}

	fmt.Printf("velocity field: %s (%d positions, %d outliers)\n", out.FieldPath, out.Positions, out.Outliers)
	if out.RunID != "" {
		fmt.Printf("run id: %s\n", out.RunID)
	}
	for _, fig := range out.Figures {
		fmt.Printf("figure: %s\n", fig)
	}
}

// serve exposes the run database over HTTP until the server fails.
func serve(addr, dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("-serve needs -db")
	}
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	srv := api.NewServer(sqlite.NewRunStore(db.DB), metrics.NewRecorder())
	monitoring.Logf("serving runs from %s on http://%s/api/runs", dbPath, addr)
	hs := &http.Server{Addr: addr, Handler: srv.ServeMux(), ReadHeaderTimeout: 5 * time.Second}
	return hs.ListenAndServe()
}

// process runs one configured processing pass against fsys.
func process(ctx context.Context, fsys fsutil.FileSystem, cfg *config.ProcessingConfig, o options, rec *metrics.Recorder) (*outcome, error) {
	if err := overrideScanRanges(cfg, o.ScanVX, o.ScanVY); err != nil {
		return nil, err
	}
	pcfg, err := pipeline.FromProcessingConfig(cfg)
	if err != nil {
		return nil, err
	}
	proc, err := pipeline.New(pcfg, pipeline.WithMetrics(rec))
	if err != nil {
		return nil, err
	}

	src := o.EventsPath
	if src == "" {
		src = cfg.EventFile(".evt")
	}
	store, hdr, err := evtfile.Load(fsys, src, evtfile.Window{})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	monitoring.Logf("loaded %d events from %s (%dx%d sensor)", store.Len(), src, hdr.Width, hdr.Height)

	res, err := proc.Run(ctx, store)
	if err != nil {
		return nil, err
	}

	f := res.Field
	var flagged []*field.Mask
	out := &outcome{Positions: res.Positions}
	if !o.NoClean {
		cleaned, stats, err := field.Clean(f, cfg.GetMagnitudeThreshold(), cfg.GetMedianThreshold())
		if err != nil {
			return nil, fmt.Errorf("clean field: %w", err)
		}
		f, flagged = cleaned, stats.PerStep
		out.Outliers = stats.Flagged
		rec.AddOutliers(stats.Flagged)
		monitoring.Logf("replaced %d outliers in %d time steps (%d left undefined)",
			stats.Flagged, stats.TimeSteps, stats.Undefined)
	}

	dest := cfg.GetDestDir()
	if err := fsys.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	stem := filepath.Join(dest, cfg.VelocityDataFile())
	out.FieldPath = stem + ".npy"
	if err := field.SaveNPY(fsys, out.FieldPath, f); err != nil {
		return nil, fmt.Errorf("save field: %w", err)
	}

	if o.DBPath != "" {
		runID, err := storeRun(o.DBPath, cfg, src, res, f, flagged, out.Outliers)
		if err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
		out.RunID = runID
	}

	if o.HTML {
		for t := 0; t < f.NT; t++ {
			name := fmt.Sprintf("%s_t%02d.html", stem, t)
			title := fmt.Sprintf("%s t=%dµs", filepath.Base(stem), res.Times[t])
			if err := writeFile(fsys, name, func(w io.Writer) error {
				return render.FieldChart(w, f, t, title)
			}); err != nil {
				return nil, err
			}
			out.Figures = append(out.Figures, name)
		}
	}

	if o.ObjMap {
		name := stem + "_objmap.png"
		if err := writeFile(fsys, name, func(w io.Writer) error {
			return renderObjectiveMap(ctx, w, proc.Config(), store, res.Times[0])
		}); err != nil {
			return nil, err
		}
		out.Figures = append(out.Figures, name)
	}
	return out, nil
}

// overrideScanRanges replaces the vx and vy scan axes of cfg with the
// non-empty "min:max:step" specs.
func overrideScanRanges(cfg *config.ProcessingConfig, vx, vy string) error {
	if vx != "" {
		r, err := warp.ParseRangeSpec(vx)
		if err != nil {
			return fmt.Errorf("-vx: %w", err)
		}
		cfg.ScanRangeVxMin, cfg.ScanRangeVxMax, cfg.ScanResolX = &r.Min, &r.Max, &r.Step
		monitoring.Logf("vx scan range %s (%d candidates)", r, len(r.Values()))
	}
	if vy != "" {
		r, err := warp.ParseRangeSpec(vy)
		if err != nil {
			return fmt.Errorf("-vy: %w", err)
		}
		cfg.ScanRangeVyMin, cfg.ScanRangeVyMax, cfg.ScanResolY = &r.Min, &r.Max, &r.Step
		monitoring.Logf("vy scan range %s (%d candidates)", r, len(r.Values()))
	}
	return nil
}

// writeFile creates name on fsys and hands it to write.
func writeFile(fsys fsutil.FileSystem, name string, write func(w io.Writer) error) error {
	f, err := fsys.Create(name)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

func storeRun(path string, cfg *config.ProcessingConfig, src string, res *pipeline.Result, f *field.Field, flagged []*field.Mask, outliers int) (string, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	params, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	run := &sqlite.Run{
		SourceFile: src,
		Method:     cfg.GetMethod(),
		ParamsJSON: params,
		Times:      res.Times,
		Positions:  res.Positions,
		ElapsedNs:  res.Elapsed.Nanoseconds(),
		Outliers:   outliers,
	}
	if err := sqlite.NewRunStore(db.DB).Insert(run, f, flagged); err != nil {
		return "", err
	}
	monitoring.Logf("stored run %s in %s", run.RunID, path)
	return run.RunID, nil
}

// renderObjectiveMap draws the objective map of the tile at the sensor centre for
// the time step starting at t0: the reward over the velocity grid for
// motion compensation, the summed cross-correlation over pixel shifts for
// sum-of-correlation. The refined estimate is marked on the map.
func renderObjectiveMap(ctx context.Context, w io.Writer, cfg pipeline.Config, store *events.Store, t0 int64) error {
	height, width := store.SensorSize()
	roi := sample.Rect{
		X:      max((width-cfg.TileWidth)/2, 0),
		Y:      max((height-cfg.TileHeight)/2, 0),
		Width:  cfg.TileWidth,
		Height: cfg.TileHeight,
	}

	if cfg.Method == pipeline.MethodCorrSum {
		half := cfg.TimeOffset / 2
		s1, err := sample.Extract(store, roi, t0-half, t0-half+cfg.Duration, cfg.Polarity)
		if err != nil {
			return err
		}
		s2, err := sample.Extract(store, roi, t0+half, t0+half+cfg.Duration, cfg.Polarity)
		if err != nil {
			return err
		}
		v1, err := sample.AsVolume(s1, cfg.NT)
		if err != nil {
			return err
		}
		v2, err := sample.AsVolume(s2, cfg.NT)
		if err != nil {
			return err
		}
		stack, err := correlate.CrossCorrelate(v1, v2)
		if err != nil {
			return err
		}
		sum := stack.Sum()
		r, c := sum.Dims()
		opts := render.HeatMapOptions{
			Title:  fmt.Sprintf("correlation sum, tile (%d,%d), t=%dµs", roi.X, roi.Y, t0),
			XLabel: "dx (px)",
			YLabel: "dy (px)",
		}
		if p, err := correlate.Estimate(s1, s2, cfg.NT, cfg.TimeOffset, true); err == nil && p.Events > 0 {
			opts.Mark = &[2]float64{units.VelocityToShift(p.VX, cfg.TimeOffset), units.VelocityToShift(p.VY, cfg.TimeOffset)}
		}
		return render.HeatMap(w, sum, render.ShiftAxis(c), render.ShiftAxis(r), opts)
	}

	s, err := sample.Extract(store, roi, t0, t0+cfg.Duration, cfg.Polarity)
	if err != nil {
		return err
	}
	reward, _, err := warp.Scan(ctx, s, cfg.Scan)
	if err != nil {
		return err
	}
	opts := render.HeatMapOptions{
		Title:  fmt.Sprintf("%s reward, tile (%d,%d), t=%dµs", cfg.Scan.Objective, roi.X, roi.Y, t0),
		XLabel: "vx (px/ms)",
		YLabel: "vy (px/ms)",
	}
	if p, err := warp.Estimate(ctx, s, cfg.Scan); err == nil && p.Events > 0 {
		opts.Mark = &[2]float64{p.VX, p.VY}
	}
	return render.HeatMap(w, reward, cfg.Scan.VX, cfg.Scan.VY, opts)
}
