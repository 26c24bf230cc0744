package warp

import (
	"context"
	"fmt"
	"runtime"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/peak"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"github.com/banshee-data/eventflow/internal/units"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ScanConfig fixes everything about a velocity scan except the sample.
type ScanConfig struct {
	// VX and VY are the candidate velocities in [px/ms].
	VX, VY        []float64
	Interpolation Interpolation
	Objective     Objective
	// ExpFit refines the peak in log space (Gaussian fit).
	ExpFit bool
	// Workers bounds the goroutines used per scan; 0 means GOMAXPROCS
	// and 1 scans serially.
	Workers int
}

// Validate checks the candidate axes and the resolved enums.
func (c ScanConfig) Validate() error {
	if len(c.VX) == 0 || len(c.VY) == 0 {
		return fmt.Errorf("%w: empty velocity axis (vx=%d vy=%d)", ebiv.ErrInvalidArgument, len(c.VX), len(c.VY))
	}
	if !c.Objective.Valid() {
		return fmt.Errorf("%w: %d", ebiv.ErrUnsupportedObjective, int(c.Objective))
	}
	if !c.Interpolation.Valid() {
		return fmt.Errorf("%w: interpolation %d", ebiv.ErrInvalidArgument, int(c.Interpolation))
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ebiv.ErrInvalidArgument, c.Workers)
	}
	return nil
}

func scanRow(s *sample.Sample, cfg ScanConfig, iy int, acc *Accumulator, reward, counts *mat.Dense) error {
	vy := units.MsToUs(cfg.VY[iy])
	for ix, vxMs := range cfg.VX {
		res, err := WarpAndScore(s, units.MsToUs(vxMs), vy, cfg.Interpolation, cfg.Objective, acc)
		if err != nil {
			return err
		}
		reward.Set(iy, ix, res.Score)
		counts.Set(iy, ix, float64(res.EventsUsed))
	}
	return nil
}

// Scan evaluates the reward for every (VX, VY) candidate pair. The
// returned reward and event-count maps are indexed [vy][vx]. With more
// than one worker, rows of the map are spread over goroutines that each
// own an Accumulator.
func Scan(ctx context.Context, s *sample.Sample, cfg ScanConfig) (reward, counts *mat.Dense, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	reward = mat.NewDense(len(cfg.VY), len(cfg.VX), nil)
	counts = mat.NewDense(len(cfg.VY), len(cfg.VX), nil)

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(cfg.VY))

	if workers <= 1 {
		acc := ForSample(s)
		for iy := range cfg.VY {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			if err := scanRow(s, cfg, iy, acc, reward, counts); err != nil {
				return nil, nil, err
			}
		}
		return reward, counts, nil
	}

	// Workers write disjoint rows, so the maps need no locking.
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			acc := ForSample(s)
			for iy := w; iy < len(cfg.VY); iy += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := scanRow(s, cfg, iy, acc, reward, counts); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return reward, counts, nil
}

// Estimate scans s over the candidate grid and returns the refined peak,
// with velocities in [px/ms]. An empty sample gives the zero Result.
func Estimate(ctx context.Context, s *sample.Sample, cfg ScanConfig) (peak.Result, error) {
	if err := cfg.Validate(); err != nil {
		return peak.Result{}, err
	}
	if s.Len() == 0 {
		return peak.Result{}, nil
	}
	reward, counts, err := Scan(ctx, s, cfg)
	if err != nil {
		return peak.Result{}, err
	}
	return peak.FindPeak(reward, counts, cfg.VX, cfg.VY, cfg.ExpFit)
}
