package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/odeguard/internal/dynamo"
	"github.com/san-kum/odeguard/internal/problems"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Problem != "decay" {
		t.Errorf("expected problem decay, got %s", cfg.Problem)
	}
	if cfg.Guard.ScaleFactor != 0.5 {
		t.Errorf("expected scale factor 0.5, got %g", cfg.Guard.ScaleFactor)
	}
	if !cfg.Guard.Save {
		t.Error("guard should save by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Problem = "circle"
	cfg.AbsTol = []float64{1e-8, 1e-7}
	cfg.Guard.Domain = "general"
	cfg.Params = map[string]float64{"omega": 2}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got.Problem != "circle" || got.Guard.Domain != "general" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.AbsTol) != 2 || got.AbsTol[1] != 1e-7 {
		t.Errorf("abstol = %v", got.AbsTol)
	}
	if got.Params["omega"] != 2 {
		t.Errorf("params = %v", got.Params)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("problem: sir\nguard:\n  domain: general\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Method != DefaultMethod {
		t.Errorf("expected default method, got %q", cfg.Method)
	}
	if cfg.Guard.ScaleFactor != DefaultScaleFactor {
		t.Errorf("expected default scale factor, got %g", cfg.Guard.ScaleFactor)
	}
	if cfg.Guard.Projection.MaxIterations != 10 {
		t.Errorf("expected default projection iterations, got %d", cfg.Guard.Projection.MaxIterations)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("problem: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no problem", func(c *Config) { c.Problem = "" }, "problem is required"},
		{"fixed without dt", func(c *Config) { c.Fixed = true }, "positive dt"},
		{"bad tspan", func(c *Config) { c.TSpan = []float64{1, 1} }, "tspan"},
		{"negative tolerance", func(c *Config) { c.AbsTol = []float64{-1} }, "tolerances must be positive"},
		{"guard tolerance", func(c *Config) { c.Guard.AbsTol = []float64{0} }, "tolerances must be positive"},
		{"scale factor", func(c *Config) { c.Guard.ScaleFactor = 1 }, "scale factor"},
		{"stagnation", func(c *Config) { c.Guard.StagnationRTol = -1 }, "stagnation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestTolerance(t *testing.T) {
	if !Tolerance(nil).IsZero() {
		t.Error("empty list should be unset")
	}
	if tol := Tolerance([]float64{1e-3}); !tol.IsScalar() || tol.At(5) != 1e-3 {
		t.Errorf("single value should be a scalar, got %v", tol)
	}
	tol := Tolerance([]float64{1, 2})
	if err := tol.Check(3); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("decay", "loose")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.RelTol != 0.1 {
		t.Errorf("expected reltol 0.1, got %g", cfg.RelTol)
	}
	if cfg.MaxSteps != DefaultMaxSteps {
		t.Errorf("preset should inherit max steps, got %d", cfg.MaxSteps)
	}

	cfg.AbsTol[0] = 1
	if Presets["decay"]["loose"].AbsTol[0] != 1e-2 {
		t.Error("preset table was modified through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("decay", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "loose") != nil {
		t.Error("expected nil for nonexistent problem")
	}
}

func TestPresetsAreValid(t *testing.T) {
	for problem := range Presets {
		if _, err := problems.Get(problem); err != nil {
			t.Errorf("presets for unknown problem %s", problem)
		}
		for _, name := range ListPresets(problem) {
			cfg := GetPreset(problem, name)
			if cfg.Problem != problem {
				t.Errorf("%s/%s runs problem %s", problem, name, cfg.Problem)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", problem, name, err)
			}
		}
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent problem")
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	e, err := LoadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if e.DataDir != "./runs" || e.LogLevel != "info" || e.Verbose {
		t.Errorf("unexpected defaults %+v", e)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ODEGUARD_DATA_DIR", "/tmp/guard")
	t.Setenv("ODEGUARD_VERBOSE", "true")

	e, err := LoadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if e.DataDir != "/tmp/guard" || !e.Verbose {
		t.Errorf("overrides not applied: %+v", e)
	}
}

func TestLoadEnvError(t *testing.T) {
	t.Setenv("ODEGUARD_VERBOSE", "maybe")
	_, err := LoadEnv()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env error, got %v", err)
	}
}
