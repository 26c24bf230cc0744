// Package config loads the JSON processing configuration for event-based
// velocimetry runs.
//
// Every field is a pointer so that partial files are safe: a nil field
// falls back to the default returned by its Get* accessor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"github.com/banshee-data/eventflow/internal/ebiv/warp"
)

// DefaultConfigPath is the path to the canonical processing defaults file.
const DefaultConfigPath = "config/ebiv.defaults.json"

// Evaluation methods.
const (
	MethodMotionComp = "motion_comp"
	MethodCorrSum    = "corr_sum"
)

// ProcessingConfig is the root configuration of a processing run. Times are
// in [µs], sizes and steps in [pixel], velocities in [pixel/ms].
type ProcessingConfig struct {
	// Input and output
	DataDir  *string `json:"data_dir,omitempty"`
	DestDir  *string `json:"dest_dir,omitempty"`
	FileStub *string `json:"file_stub,omitempty"`

	// Event sampling in time
	SampleTimeStart *int64 `json:"sample_time_start,omitempty"`
	SampleTimeEnd   *int64 `json:"sample_time_end,omitempty"`
	SampleTimeStep  *int64 `json:"sample_time_step,omitempty"`
	SampleDuration  *int64 `json:"sample_duration,omitempty"`

	// Event sampling in space
	SampleWidth   *int    `json:"sample_width,omitempty"`
	SampleHeight  *int    `json:"sample_height,omitempty"`
	SampleStepX   *int    `json:"sample_step_x,omitempty"`
	SampleStepY   *int    `json:"sample_step_y,omitempty"`
	EventPolarity *string `json:"event_polarity,omitempty"` // pos, neg or both

	Method         *string `json:"method,omitempty"`
	GaussPeakFit   *bool   `json:"gauss_peak_fit,omitempty"`
	SingleTimeStep *bool   `json:"single_time_step,omitempty"`
	Workers        *int    `json:"workers,omitempty"` // 0 uses GOMAXPROCS

	// Sum-of-correlation
	TimeOffset *int64 `json:"time_offset,omitempty"`
	NT         *int   `json:"nt,omitempty"`

	// Motion compensation
	ScanRangeVxMin *float64 `json:"scan_range_vx_min,omitempty"`
	ScanRangeVxMax *float64 `json:"scan_range_vx_max,omitempty"`
	ScanRangeVyMin *float64 `json:"scan_range_vy_min,omitempty"`
	ScanRangeVyMax *float64 `json:"scan_range_vy_max,omitempty"`
	ScanResolX     *float64 `json:"scan_resol_x,omitempty"`
	ScanResolY     *float64 `json:"scan_resol_y,omitempty"`
	ObjectiveFxn   *string  `json:"objective_fxn,omitempty"`
	Interpolation  *string  `json:"interpolation,omitempty"`

	// Outlier validation; a non-positive threshold disables the test
	MagnitudeThreshold *float64 `json:"magnitude_threshold,omitempty"`
	MedianThreshold    *float64 `json:"median_threshold,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyProcessingConfig returns a ProcessingConfig with all fields nil.
func EmptyProcessingConfig() *ProcessingConfig {
	return &ProcessingConfig{}
}

// DefaultProcessingConfig returns a config with every field set to its
// default value.
func DefaultProcessingConfig() *ProcessingConfig {
	c := EmptyProcessingConfig()
	return &ProcessingConfig{
		DataDir:            ptrString(c.GetDataDir()),
		DestDir:            ptrString(c.GetDestDir()),
		FileStub:           ptrString(c.GetFileStub()),
		SampleTimeStart:    ptrInt64(c.GetSampleTimeStart()),
		SampleTimeEnd:      ptrInt64(c.GetSampleTimeEnd()),
		SampleTimeStep:     ptrInt64(c.GetSampleTimeStep()),
		SampleDuration:     ptrInt64(c.GetSampleDuration()),
		SampleWidth:        ptrInt(c.GetSampleWidth()),
		SampleHeight:       ptrInt(c.GetSampleHeight()),
		SampleStepX:        ptrInt(c.GetSampleStepX()),
		SampleStepY:        ptrInt(c.GetSampleStepY()),
		EventPolarity:      ptrString(c.GetEventPolarity()),
		Method:             ptrString(c.GetMethod()),
		GaussPeakFit:       ptrBool(c.GetGaussPeakFit()),
		SingleTimeStep:     ptrBool(c.GetSingleTimeStep()),
		Workers:            ptrInt(c.GetWorkers()),
		TimeOffset:         ptrInt64(c.GetTimeOffset()),
		NT:                 ptrInt(c.GetNT()),
		ScanRangeVxMin:     ptrFloat64(c.GetScanRangeVxMin()),
		ScanRangeVxMax:     ptrFloat64(c.GetScanRangeVxMax()),
		ScanRangeVyMin:     ptrFloat64(c.GetScanRangeVyMin()),
		ScanRangeVyMax:     ptrFloat64(c.GetScanRangeVyMax()),
		ScanResolX:         ptrFloat64(c.GetScanResolX()),
		ScanResolY:         ptrFloat64(c.GetScanResolY()),
		ObjectiveFxn:       ptrString(c.GetObjectiveFxn()),
		Interpolation:      ptrString(c.GetInterpolation()),
		MagnitudeThreshold: ptrFloat64(c.GetMagnitudeThreshold()),
		MedianThreshold:    ptrFloat64(c.GetMedianThreshold()),
	}
}

// LoadProcessingConfig loads a ProcessingConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadProcessingConfig(path string) (*ProcessingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyProcessingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. Panics if the file cannot be loaded;
// intended for test setup.
func MustLoadDefaultConfig() *ProcessingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/ebiv/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadProcessingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid and that the
// polarity, objective and interpolation tokens resolve.
func (c *ProcessingConfig) Validate() error {
	if c.GetSampleWidth() <= 0 || c.GetSampleHeight() <= 0 {
		return fmt.Errorf("sample size must be positive, got %dx%d", c.GetSampleWidth(), c.GetSampleHeight())
	}
	if c.GetSampleStepX() <= 0 || c.GetSampleStepY() <= 0 {
		return fmt.Errorf("sample steps must be positive, got %d,%d", c.GetSampleStepX(), c.GetSampleStepY())
	}
	if c.GetSampleTimeStep() <= 0 {
		return fmt.Errorf("sample_time_step must be positive, got %d", c.GetSampleTimeStep())
	}
	if c.GetSampleDuration() <= 0 {
		return fmt.Errorf("sample_duration must be positive, got %d", c.GetSampleDuration())
	}
	if c.GetSampleTimeStart() < 0 {
		return fmt.Errorf("sample_time_start must be non-negative, got %d", c.GetSampleTimeStart())
	}
	if c.GetWorkers() < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.GetWorkers())
	}
	if _, err := events.ParsePolarity(c.GetEventPolarity()); err != nil {
		return fmt.Errorf("event_polarity: %w", err)
	}

	switch c.GetMethod() {
	case MethodCorrSum:
		if c.GetNT() <= 0 {
			return fmt.Errorf("nt must be positive, got %d", c.GetNT())
		}
		if c.GetTimeOffset() <= 0 {
			return fmt.Errorf("time_offset must be positive, got %d", c.GetTimeOffset())
		}
	case MethodMotionComp:
		if _, err := warp.ParseObjective(c.GetObjectiveFxn()); err != nil {
			return fmt.Errorf("objective_fxn: %w", err)
		}
		if _, err := warp.ParseInterpolation(c.GetInterpolation()); err != nil {
			return fmt.Errorf("interpolation: %w", err)
		}
		if c.GetScanResolX() <= 0 || c.GetScanResolY() <= 0 {
			return fmt.Errorf("scan resolution must be positive, got %g,%g", c.GetScanResolX(), c.GetScanResolY())
		}
		if c.GetScanRangeVxMin() > c.GetScanRangeVxMax() {
			return fmt.Errorf("scan_range_vx min %g > max %g", c.GetScanRangeVxMin(), c.GetScanRangeVxMax())
		}
		if c.GetScanRangeVyMin() > c.GetScanRangeVyMax() {
			return fmt.Errorf("scan_range_vy min %g > max %g", c.GetScanRangeVyMin(), c.GetScanRangeVyMax())
		}
	default:
		return fmt.Errorf("unknown method %q (want %s or %s)", c.GetMethod(), MethodMotionComp, MethodCorrSum)
	}
	return nil
}

// EventFile returns the path of the input event file with extension ext.
func (c *ProcessingConfig) EventFile(ext string) string {
	return filepath.Join(c.GetDataDir(), c.GetFileStub()+ext)
}

// VelocityDataFile returns the output file stem (without extension) that
// encodes the main processing parameters.
func (c *ProcessingConfig) VelocityDataFile() string {
	name := fmt.Sprintf("veldata_t%.0fms_w%d", float64(c.GetSampleTimeStart())/1000, c.GetSampleWidth())
	if c.GetMethod() == MethodCorrSum {
		return name + fmt.Sprintf("_corr_tau%.0fms", float64(c.GetTimeOffset())/1000)
	}
	res := strconv.FormatFloat(c.GetScanResolX(), 'f', -1, 64)
	if !strings.Contains(res, ".") {
		res += ".0"
	}
	return name + "_motion_" + strings.ToLower(c.GetObjectiveFxn()) + "_res" + strings.ReplaceAll(res, ".", "_")
}

// GetDataDir returns the data_dir value or the default.
func (c *ProcessingConfig) GetDataDir() string {
	if c.DataDir == nil {
		return "."
	}
	return *c.DataDir
}

// GetDestDir returns the dest_dir value, falling back to the data directory.
func (c *ProcessingConfig) GetDestDir() string {
	if c.DestDir == nil || *c.DestDir == "" {
		return c.GetDataDir()
	}
	return *c.DestDir
}

// GetFileStub returns the file_stub value or the default.
func (c *ProcessingConfig) GetFileStub() string {
	if c.FileStub == nil {
		return "events"
	}
	return *c.FileStub
}

// GetSampleTimeStart returns the sample_time_start value or the default.
func (c *ProcessingConfig) GetSampleTimeStart() int64 {
	if c.SampleTimeStart == nil {
		return 10000
	}
	return *c.SampleTimeStart
}

// GetSampleTimeEnd returns the sample_time_end value or the default.
func (c *ProcessingConfig) GetSampleTimeEnd() int64 {
	if c.SampleTimeEnd == nil {
		return 10000
	}
	return *c.SampleTimeEnd
}

// GetSampleTimeStep returns the sample_time_step value or the default.
func (c *ProcessingConfig) GetSampleTimeStep() int64 {
	if c.SampleTimeStep == nil {
		return 10000
	}
	return *c.SampleTimeStep
}

// GetSampleDuration returns the sample_duration value or the default.
func (c *ProcessingConfig) GetSampleDuration() int64 {
	if c.SampleDuration == nil {
		return 10000
	}
	return *c.SampleDuration
}

// GetSampleWidth returns the sample_width value or the default.
func (c *ProcessingConfig) GetSampleWidth() int {
	if c.SampleWidth == nil {
		return 40
	}
	return *c.SampleWidth
}

// GetSampleHeight returns the sample_height value or the default.
func (c *ProcessingConfig) GetSampleHeight() int {
	if c.SampleHeight == nil {
		return 40
	}
	return *c.SampleHeight
}

// GetSampleStepX returns the sample_step_x value or the default.
func (c *ProcessingConfig) GetSampleStepX() int {
	if c.SampleStepX == nil {
		return 20
	}
	return *c.SampleStepX
}

// GetSampleStepY returns the sample_step_y value or the default.
func (c *ProcessingConfig) GetSampleStepY() int {
	if c.SampleStepY == nil {
		return 20
	}
	return *c.SampleStepY
}

// GetEventPolarity returns the event_polarity token or the default.
func (c *ProcessingConfig) GetEventPolarity() string {
	if c.EventPolarity == nil {
		return "pos"
	}
	return *c.EventPolarity
}

// GetMethod returns the method value or the default.
func (c *ProcessingConfig) GetMethod() string {
	if c.Method == nil {
		return MethodMotionComp
	}
	return *c.Method
}

// GetGaussPeakFit returns the gauss_peak_fit value or the default.
func (c *ProcessingConfig) GetGaussPeakFit() bool {
	if c.GaussPeakFit == nil {
		return true
	}
	return *c.GaussPeakFit
}

// GetSingleTimeStep returns the single_time_step value or the default.
func (c *ProcessingConfig) GetSingleTimeStep() bool {
	if c.SingleTimeStep == nil {
		return true
	}
	return *c.SingleTimeStep
}

// GetWorkers returns the workers value or the default.
func (c *ProcessingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetTimeOffset returns the time_offset value or the default.
func (c *ProcessingConfig) GetTimeOffset() int64 {
	if c.TimeOffset == nil {
		return 3000
	}
	return *c.TimeOffset
}

// GetNT returns the nt value or the default.
func (c *ProcessingConfig) GetNT() int {
	if c.NT == nil {
		return 20
	}
	return *c.NT
}

// GetScanRangeVxMin returns the scan_range_vx_min value or the default.
func (c *ProcessingConfig) GetScanRangeVxMin() float64 {
	if c.ScanRangeVxMin == nil {
		return -2
	}
	return *c.ScanRangeVxMin
}

// GetScanRangeVxMax returns the scan_range_vx_max value or the default.
func (c *ProcessingConfig) GetScanRangeVxMax() float64 {
	if c.ScanRangeVxMax == nil {
		return 5
	}
	return *c.ScanRangeVxMax
}

// GetScanRangeVyMin returns the scan_range_vy_min value or the default.
func (c *ProcessingConfig) GetScanRangeVyMin() float64 {
	if c.ScanRangeVyMin == nil {
		return -3
	}
	return *c.ScanRangeVyMin
}

// GetScanRangeVyMax returns the scan_range_vy_max value or the default.
func (c *ProcessingConfig) GetScanRangeVyMax() float64 {
	if c.ScanRangeVyMax == nil {
		return 3
	}
	return *c.ScanRangeVyMax
}

// GetScanResolX returns the scan_resol_x value or the default.
func (c *ProcessingConfig) GetScanResolX() float64 {
	if c.ScanResolX == nil {
		return 0.25
	}
	return *c.ScanResolX
}

// GetScanResolY returns the scan_resol_y value or the default.
func (c *ProcessingConfig) GetScanResolY() float64 {
	if c.ScanResolY == nil {
		return 0.25
	}
	return *c.ScanResolY
}

// GetObjectiveFxn returns the objective_fxn token or the default.
func (c *ProcessingConfig) GetObjectiveFxn() string {
	if c.ObjectiveFxn == nil {
		return "var"
	}
	return *c.ObjectiveFxn
}

// GetInterpolation returns the interpolation token or the default.
func (c *ProcessingConfig) GetInterpolation() string {
	if c.Interpolation == nil {
		return "nearest"
	}
	return *c.Interpolation
}

// GetMagnitudeThreshold returns the magnitude_threshold value or the default.
func (c *ProcessingConfig) GetMagnitudeThreshold() float64 {
	if c.MagnitudeThreshold == nil {
		return 6
	}
	return *c.MagnitudeThreshold
}

// GetMedianThreshold returns the median_threshold value or the default.
func (c *ProcessingConfig) GetMedianThreshold() float64 {
	if c.MedianThreshold == nil {
		return 3
	}
	return *c.MedianThreshold
}
