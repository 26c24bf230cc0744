// Package pipeline drives velocity-field processing of a recording: for
// every time step and every tile of the sensor it extracts event samples,
// runs the configured estimator and assembles the velocity field.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/correlate"
	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/banshee-data/eventflow/internal/ebiv/peak"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"github.com/banshee-data/eventflow/internal/ebiv/warp"
	"github.com/banshee-data/eventflow/internal/metrics"
	"github.com/banshee-data/eventflow/internal/monitoring"
	"github.com/banshee-data/eventflow/internal/timeutil"
	"golang.org/x/sync/errgroup"
)

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the clock used to time positions and runs.
func WithClock(c timeutil.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithMetrics records per-position and per-run metrics on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Processor) { p.metrics = r }
}

// Processor runs the configured estimator over a recording.
type Processor struct {
	cfg     Config
	clock   timeutil.Clock
	metrics *metrics.Recorder
}

// Result is the outcome of a run.
type Result struct {
	Field     *field.Field
	Times     []int64 // start time of each time step [µs]
	Positions int
	Elapsed   time.Duration
}

// New validates cfg and returns a Processor.
func New(cfg Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Scan.ExpFit = cfg.ExpFit
	p := &Processor{cfg: cfg, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the resolved configuration.
func (p *Processor) Config() Config { return p.cfg }

// Run processes every time step and tile of store. The field is indexed
// [time step][tile row][tile column].
func (p *Processor) Run(ctx context.Context, store *events.Store) (*Result, error) {
	height, width := store.SensorSize()
	nx, ny := p.cfg.Tiles(height, width)
	times := p.cfg.TimeSteps()
	if nx == 0 || ny == 0 {
		return nil, fmt.Errorf("%w: %dx%d tiles do not fit a %dx%d sensor",
			ebiv.ErrDegenerateInput, p.cfg.TileWidth, p.cfg.TileHeight, width, height)
	}
	f, err := field.New(len(times), ny, nx)
	if err != nil {
		return nil, err
	}

	workers := p.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	total := len(times) * ny * nx
	progress := monitoring.NewProgress(string(p.cfg.Method), total, max(total/10, 1))
	monitoring.Logf("processing %d time steps of %dx%d positions (%s, %d workers)",
		len(times), nx, ny, p.cfg.Method, workers)
	start := p.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for it, t0 := range times {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				roi := sample.Rect{
					X:      ix * p.cfg.StepX,
					Y:      iy * p.cfg.StepY,
					Width:  p.cfg.TileWidth,
					Height: p.cfg.TileHeight,
				}
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					v, err := p.Estimate(gctx, store, t0, roi)
					if err != nil {
						return fmt.Errorf("position (%d,%d) at t=%d: %w", roi.X, roi.Y, t0, err)
					}
					f.Set(it, iy, ix, v)
					progress.Step()
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elapsed := p.clock.Since(start)
	p.metrics.ObserveRun(elapsed)
	monitoring.Logf("processing %d positions took %s", total, elapsed)
	return &Result{Field: f, Times: times, Positions: total, Elapsed: elapsed}, nil
}

// Estimate computes the velocity vector of one tile for the time step
// starting at t0. The centre's Y is flipped to point up, measured from the
// sensor's bottom edge.
func (p *Processor) Estimate(ctx context.Context, store *events.Store, t0 int64, roi sample.Rect) (field.Vector, error) {
	start := p.clock.Now()
	var (
		res peak.Result
		err error
	)
	switch p.cfg.Method {
	case MethodCorrSum:
		res, err = p.estimateCorr(store, t0, roi)
	default:
		res, err = p.estimateMotion(ctx, store, t0, roi)
	}
	if err != nil {
		return field.Vector{}, err
	}
	p.metrics.ObservePosition(string(p.cfg.Method), p.clock.Since(start), res.Events)

	height, _ := store.SensorSize()
	cx, cy := roi.Center()
	return field.Vector{
		CX:    cx,
		CY:    float64(height) - cy,
		VX:    res.VX,
		VY:    res.VY,
		Score: res.Value,
		Count: float64(res.Events),
	}, nil
}

func (p *Processor) estimateMotion(ctx context.Context, store *events.Store, t0 int64, roi sample.Rect) (peak.Result, error) {
	s, err := sample.Extract(store, roi, t0, t0+p.cfg.Duration, p.cfg.Polarity)
	if err != nil {
		return peak.Result{}, err
	}
	return warp.Estimate(ctx, s, p.cfg.Scan)
}

// estimateCorr samples the window shifted by half the time offset
// backward and forward. The correlation peak is always refined with the
// Gaussian fit; ExpFit only selects the reward-map refinement.
func (p *Processor) estimateCorr(store *events.Store, t0 int64, roi sample.Rect) (peak.Result, error) {
	half := p.cfg.TimeOffset / 2
	s1, err := sample.Extract(store, roi, t0-half, t0+p.cfg.Duration-half, p.cfg.Polarity)
	if err != nil {
		return peak.Result{}, err
	}
	s2, err := sample.Extract(store, roi, t0+half, t0+p.cfg.Duration+half, p.cfg.Polarity)
	if err != nil {
		return peak.Result{}, err
	}
	return correlate.Estimate(s1, s2, p.cfg.NT, p.cfg.TimeOffset, true)
}
