package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/odeguard/internal/dynamo"
)

const (
	DefaultMethod      = "rk45"
	DefaultAbsTol      = 1e-6
	DefaultRelTol      = 1e-3
	DefaultMaxSteps    = 100000
	DefaultScaleFactor = 0.5
)

// Config describes one guarded integration run.
type Config struct {
	Problem  string             `yaml:"problem"`
	Method   string             `yaml:"method"`
	Dt       float64            `yaml:"dt"`
	TSpan    []float64          `yaml:"tspan,omitempty"`
	AbsTol   []float64          `yaml:"abstol,omitempty"`
	RelTol   float64            `yaml:"reltol"`
	DtMin    float64            `yaml:"dtmin"`
	DtMax    float64            `yaml:"dtmax"`
	TStops   []float64          `yaml:"tstops,omitempty"`
	MaxSteps int                `yaml:"max_steps"`
	Fixed    bool               `yaml:"fixed"`
	SaveAll  bool               `yaml:"save_every_step"`
	Verbose  bool               `yaml:"verbose"`
	Init     []float64          `yaml:"init_state,omitempty"`
	Params   map[string]float64 `yaml:"params,omitempty"`
	Guard    GuardConfig        `yaml:"guard"`
}

type GuardConfig struct {
	// Domain is none, positive or general. Empty means the problem's own.
	Domain         string           `yaml:"domain"`
	AbsTol         []float64        `yaml:"abstol,omitempty"`
	ScaleFactor    float64          `yaml:"scale_factor"`
	StagnationRTol float64          `yaml:"stagnation_rtol"`
	Save           bool             `yaml:"save"`
	Projection     ProjectionConfig `yaml:"projection"`
}

type ProjectionConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	AbsTol        float64 `yaml:"abstol"`
	Method        string  `yaml:"method"`
	Strict        bool    `yaml:"strict"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem:  "decay",
		Method:   DefaultMethod,
		RelTol:   DefaultRelTol,
		MaxSteps: DefaultMaxSteps,
		SaveAll:  true,
		Guard: GuardConfig{
			ScaleFactor: DefaultScaleFactor,
			Save:        true,
			Projection: ProjectionConfig{
				MaxIterations: 10,
				AbsTol:        1e-10,
				Method:        "forward",
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no run could use. Dimension checks against the
// problem happen when the run is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Problem == "" {
		errs = append(errs, errors.New("problem is required"))
	}
	if c.Fixed && c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("fixed stepping needs a positive dt, got %g", c.Dt))
	}
	if c.Dt < 0 {
		errs = append(errs, fmt.Errorf("dt must not be negative, got %g", c.Dt))
	}
	if len(c.TSpan) != 0 && (len(c.TSpan) != 2 || c.TSpan[0] == c.TSpan[1]) {
		errs = append(errs, fmt.Errorf("%w: tspan must hold two distinct times, got %v", dynamo.ErrInvalidTimeSpan, c.TSpan))
	}
	for _, tol := range [][]float64{c.AbsTol, c.Guard.AbsTol} {
		for _, v := range tol {
			if !(v > 0) {
				errs = append(errs, fmt.Errorf("tolerances must be positive, got %g", v))
			}
		}
	}
	if sf := c.Guard.ScaleFactor; sf != 0 && !(sf > 0 && sf < 1) {
		errs = append(errs, fmt.Errorf("scale factor must lie in (0, 1), got %g", sf))
	}
	if c.Guard.StagnationRTol < 0 {
		errs = append(errs, fmt.Errorf("stagnation tolerance must not be negative, got %g", c.Guard.StagnationRTol))
	}
	return errors.Join(errs...)
}

// Tolerance turns a YAML tolerance list into a dynamo.Tolerance: empty is
// unset, one value is a scalar and more are per component.
func Tolerance(vals []float64) dynamo.Tolerance {
	switch len(vals) {
	case 0:
		return dynamo.Tolerance{}
	case 1:
		return dynamo.Scalar(vals[0])
	}
	return dynamo.Vector(vals...)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.TSpan = slices.Clone(c.TSpan)
	out.AbsTol = slices.Clone(c.AbsTol)
	out.TStops = slices.Clone(c.TStops)
	out.Init = slices.Clone(c.Init)
	out.Params = maps.Clone(c.Params)
	out.Guard.AbsTol = slices.Clone(c.Guard.AbsTol)
	return &out
}
