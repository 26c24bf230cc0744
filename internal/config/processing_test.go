package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultProcessingConfig(t *testing.T) {
	cfg := DefaultProcessingConfig()

	if cfg.SampleWidth == nil || *cfg.SampleWidth != 40 {
		t.Errorf("Expected SampleWidth 40, got %v", cfg.SampleWidth)
	}
	if cfg.EventPolarity == nil || *cfg.EventPolarity != "pos" {
		t.Errorf("Expected EventPolarity 'pos', got %v", cfg.EventPolarity)
	}
	if cfg.Method == nil || *cfg.Method != MethodMotionComp {
		t.Errorf("Expected Method %q, got %v", MethodMotionComp, cfg.Method)
	}
	if cfg.GetNT() != 20 {
		t.Errorf("GetNT() = %d, want 20", cfg.GetNT())
	}
	if cfg.GetTimeOffset() != 3000 {
		t.Errorf("GetTimeOffset() = %d, want 3000", cfg.GetTimeOffset())
	}
	if cfg.GetScanResolX() != 0.25 {
		t.Errorf("GetScanResolX() = %f, want 0.25", cfg.GetScanResolX())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyProcessingConfig()
	full := DefaultProcessingConfig()

	if cfg.GetSampleTimeStart() != *full.SampleTimeStart {
		t.Errorf("GetSampleTimeStart() = %d, want %d", cfg.GetSampleTimeStart(), *full.SampleTimeStart)
	}
	if cfg.GetScanRangeVxMin() != -2 || cfg.GetScanRangeVxMax() != 5 {
		t.Errorf("vx range = [%g,%g], want [-2,5]", cfg.GetScanRangeVxMin(), cfg.GetScanRangeVxMax())
	}
	if cfg.GetScanRangeVyMin() != -3 || cfg.GetScanRangeVyMax() != 3 {
		t.Errorf("vy range = [%g,%g], want [-3,3]", cfg.GetScanRangeVyMin(), cfg.GetScanRangeVyMax())
	}
	if !cfg.GetGaussPeakFit() || !cfg.GetSingleTimeStep() {
		t.Error("gauss_peak_fit and single_time_step default to true")
	}
	if cfg.GetMagnitudeThreshold() != 6 || cfg.GetMedianThreshold() != 3 {
		t.Errorf("thresholds = %g,%g, want 6,3", cfg.GetMagnitudeThreshold(), cfg.GetMedianThreshold())
	}
	if cfg.GetDestDir() != cfg.GetDataDir() {
		t.Errorf("dest dir should fall back to data dir, got %q", cfg.GetDestDir())
	}
}

func TestLoadProcessingConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "sample_width": 32,
  "sample_height": 24,
  "event_polarity": "both",
  "method": "corr_sum",
  "nt": 10,
  "time_offset": 2000
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadProcessingConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetSampleWidth() != 32 || cfg.GetSampleHeight() != 24 {
		t.Errorf("sample size = %dx%d, want 32x24", cfg.GetSampleWidth(), cfg.GetSampleHeight())
	}
	if cfg.GetMethod() != MethodCorrSum {
		t.Errorf("method = %q, want %q", cfg.GetMethod(), MethodCorrSum)
	}
	if cfg.GetNT() != 10 {
		t.Errorf("nt = %d, want 10", cfg.GetNT())
	}
	// omitted fields keep their defaults
	if cfg.GetSampleStepX() != 20 {
		t.Errorf("sample_step_x = %d, want default 20", cfg.GetSampleStepX())
	}
}

func TestLoadProcessingConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/path/to/config.json"},
		{"non json extension", write("config.yaml", "{}")},
		{"invalid json", write("broken.json", `{"sample_width": "wide"`)},
		{"invalid values", write("bad.json", `{"sample_width": 0}`)},
		{"unknown objective", write("obj.json", `{"objective_fxn": "entropy"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadProcessingConfig(tt.path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadProcessingConfigRejectsLargeFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "large.json")
	big := `{"file_stub": "` + strings.Repeat("x", 1024*1024) + `"}`
	if err := os.WriteFile(p, []byte(big), 0644); err != nil {
		t.Fatalf("Failed to write large config: %v", err)
	}
	_, err := LoadProcessingConfig(p)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ProcessingConfig
		wantErr bool
	}{
		{"empty config is valid", &ProcessingConfig{}, false},
		{"default config", DefaultProcessingConfig(), false},
		{"negative step", &ProcessingConfig{SampleStepX: ptrInt(-1)}, true},
		{"zero duration", &ProcessingConfig{SampleDuration: ptrInt64(0)}, true},
		{"zero time step", &ProcessingConfig{SampleTimeStep: ptrInt64(0)}, true},
		{"negative start", &ProcessingConfig{SampleTimeStart: ptrInt64(-5)}, true},
		{"negative workers", &ProcessingConfig{Workers: ptrInt(-2)}, true},
		{"bad polarity", &ProcessingConfig{EventPolarity: ptrString("up")}, true},
		{"unknown method", &ProcessingConfig{Method: ptrString("piv")}, true},
		{"bad interpolation", &ProcessingConfig{Interpolation: ptrString("cubic")}, true},
		{"zero resolution", &ProcessingConfig{ScanResolY: ptrFloat64(0)}, true},
		{"inverted vx range", &ProcessingConfig{ScanRangeVxMin: ptrFloat64(6)}, true},
		{"inverted vy range", &ProcessingConfig{ScanRangeVyMax: ptrFloat64(-4)}, true},
		{"corr zero nt", &ProcessingConfig{Method: ptrString(MethodCorrSum), NT: ptrInt(0)}, true},
		{"corr zero offset", &ProcessingConfig{Method: ptrString(MethodCorrSum), TimeOffset: ptrInt64(0)}, true},
		{"corr ignores objective", &ProcessingConfig{Method: ptrString(MethodCorrSum), ObjectiveFxn: ptrString("nope")}, false},
		{"objective alias", &ProcessingConfig{ObjectiveFxn: ptrString("Sum_Of_Squares")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVelocityDataFile(t *testing.T) {
	tests := []struct {
		name string
		cfg  *ProcessingConfig
		want string
	}{
		{"motion defaults", &ProcessingConfig{}, "veldata_t10ms_w40_motion_var_res0_25"},
		{
			"motion whole resolution",
			&ProcessingConfig{ObjectiveFxn: ptrString("SumSq"), ScanResolX: ptrFloat64(1)},
			"veldata_t10ms_w40_motion_sumsq_res1_0",
		},
		{
			"correlation",
			&ProcessingConfig{Method: ptrString(MethodCorrSum), SampleTimeStart: ptrInt64(25000), SampleWidth: ptrInt(32)},
			"veldata_t25ms_w32_corr_tau3ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.VelocityDataFile(); got != tt.want {
				t.Errorf("VelocityDataFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventFile(t *testing.T) {
	cfg := &ProcessingConfig{DataDir: ptrString("data"), FileStub: ptrString("wallflow")}
	if got, want := cfg.EventFile(".evt"), filepath.Join("data", "wallflow.evt"); got != want {
		t.Errorf("EventFile() = %q, want %q", got, want)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetSampleWidth() != 40 {
		t.Errorf("defaults file sample_width = %d, want 40", cfg.GetSampleWidth())
	}
	if cfg.GetObjectiveFxn() != "var" {
		t.Errorf("defaults file objective_fxn = %q, want var", cfg.GetObjectiveFxn())
	}
}
