package pipeline

import (
	"fmt"

	"github.com/banshee-data/eventflow/internal/config"
	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/ebiv/warp"
)

// Method selects the velocity estimator.
type Method string

const (
	MethodMotionComp Method = config.MethodMotionComp
	MethodCorrSum    Method = config.MethodCorrSum
)

// Config is the resolved form of a processing configuration: tokens are
// parsed and velocity axes expanded.
type Config struct {
	Method Method

	// Time loop [µs]: t0 runs over [TimeStart, TimeEnd) in steps of
	// TimeStep. TimeEnd <= TimeStart processes TimeStart only.
	TimeStart, TimeEnd, TimeStep int64
	// Duration of each sample window [µs].
	Duration int64

	// Tile size and tile step [px].
	TileWidth, TileHeight int
	StepX, StepY          int

	Polarity events.Polarity
	// ExpFit picks the Gaussian (true) or parabolic reward-map peak fit.
	// Correlation peaks always use the Gaussian fit.
	ExpFit         bool
	SingleTimeStep bool
	// Workers bounds concurrently processed positions; 0 means GOMAXPROCS.
	Workers int

	// Sum-of-correlation: separation of the two samples [µs] and volume depth.
	TimeOffset int64
	NT         int

	// Motion compensation scan. Its ExpFit follows Config.ExpFit.
	Scan warp.ScanConfig
}

// FromProcessingConfig resolves cfg into a Config.
func FromProcessingConfig(cfg *config.ProcessingConfig) (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	pol, err := events.ParsePolarity(cfg.GetEventPolarity())
	if err != nil {
		return Config{}, err
	}
	c := Config{
		Method:         Method(cfg.GetMethod()),
		TimeStart:      cfg.GetSampleTimeStart(),
		TimeEnd:        cfg.GetSampleTimeEnd(),
		TimeStep:       cfg.GetSampleTimeStep(),
		Duration:       cfg.GetSampleDuration(),
		TileWidth:      cfg.GetSampleWidth(),
		TileHeight:     cfg.GetSampleHeight(),
		StepX:          cfg.GetSampleStepX(),
		StepY:          cfg.GetSampleStepY(),
		Polarity:       pol,
		ExpFit:         cfg.GetGaussPeakFit(),
		SingleTimeStep: cfg.GetSingleTimeStep(),
		Workers:        cfg.GetWorkers(),
		TimeOffset:     cfg.GetTimeOffset(),
		NT:             cfg.GetNT(),
	}
	if c.Method == MethodMotionComp {
		obj, err := warp.ParseObjective(cfg.GetObjectiveFxn())
		if err != nil {
			return Config{}, err
		}
		interp, err := warp.ParseInterpolation(cfg.GetInterpolation())
		if err != nil {
			return Config{}, err
		}
		c.Scan = warp.ScanConfig{
			VX:            warp.RangeSpec{Min: cfg.GetScanRangeVxMin(), Max: cfg.GetScanRangeVxMax(), Step: cfg.GetScanResolX()}.Values(),
			VY:            warp.RangeSpec{Min: cfg.GetScanRangeVyMin(), Max: cfg.GetScanRangeVyMax(), Step: cfg.GetScanResolY()}.Values(),
			Interpolation: interp,
			Objective:     obj,
			ExpFit:        c.ExpFit,
			Workers:       1,
		}
	}
	return c, c.Validate()
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if c.TileWidth <= 0 || c.TileHeight <= 0 || c.StepX <= 0 || c.StepY <= 0 {
		return fmt.Errorf("%w: tile %dx%d step %d,%d", ebiv.ErrInvalidArgument, c.TileWidth, c.TileHeight, c.StepX, c.StepY)
	}
	if c.TimeStep <= 0 || c.Duration <= 0 {
		return fmt.Errorf("%w: time step %d duration %d", ebiv.ErrInvalidArgument, c.TimeStep, c.Duration)
	}
	if !c.Polarity.Valid() {
		return fmt.Errorf("%w: polarity %d", ebiv.ErrInvalidArgument, int(c.Polarity))
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ebiv.ErrInvalidArgument, c.Workers)
	}
	switch c.Method {
	case MethodMotionComp:
		return c.Scan.Validate()
	case MethodCorrSum:
		if c.NT <= 0 || c.TimeOffset <= 0 {
			return fmt.Errorf("%w: nt %d time offset %d", ebiv.ErrInvalidArgument, c.NT, c.TimeOffset)
		}
		return nil
	}
	return fmt.Errorf("%w: method %q", ebiv.ErrInvalidArgument, string(c.Method))
}

// TimeSteps returns the start times of the processed time steps.
func (c Config) TimeSteps() []int64 {
	if c.TimeEnd <= c.TimeStart || c.SingleTimeStep {
		return []int64{c.TimeStart}
	}
	var out []int64
	for t0 := c.TimeStart; t0 < c.TimeEnd; t0 += c.TimeStep {
		out = append(out, t0)
	}
	return out
}

// Tiles returns the number of tile columns and rows that fit on a
// sensor of the given size.
func (c Config) Tiles(height, width int) (nx, ny int) {
	if width >= c.TileWidth {
		nx = (width-c.TileWidth)/c.StepX + 1
	}
	if height >= c.TileHeight {
		ny = (height-c.TileHeight)/c.StepY + 1
	}
	return nx, ny
}
