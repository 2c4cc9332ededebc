package config

import "slices"

var Presets = map[string]map[string]*Config{
	"decay": {
		"loose": {
			Problem: "decay", Method: "rk45", AbsTol: []float64{1e-2}, RelTol: 1e-1,
			Guard: GuardConfig{Domain: "positive", ScaleFactor: 0.5, Save: true},
		},
		"unguarded": {
			Problem: "decay", Method: "rk45", AbsTol: []float64{1e-2}, RelTol: 1e-1,
			Guard: GuardConfig{Domain: "none"},
		},
		"fixed_euler": {
			Problem: "decay", Method: "euler", Fixed: true, Dt: 0.03,
			Guard: GuardConfig{Domain: "positive", ScaleFactor: 0.5, Save: true},
		},
	},
	"lotka_volterra": {
		"collapse": {
			Problem: "lotka_volterra", Method: "rk45", AbsTol: []float64{1e-3}, RelTol: 1e-2,
			Init:  []float64{0.2, 8},
			Guard: GuardConfig{Domain: "positive", ScaleFactor: 0.5, Save: true},
		},
		"tight": {
			Problem: "lotka_volterra", Method: "rk45", AbsTol: []float64{1e-8}, RelTol: 1e-6,
			Guard: GuardConfig{Domain: "positive", ScaleFactor: 0.5, Save: true},
		},
	},
	"sir": {
		"outbreak": {
			Problem: "sir", Method: "rk4", AbsTol: []float64{1e-3}, RelTol: 1e-3,
			Params: map[string]float64{"beta": 1.5},
			Guard:  GuardConfig{Domain: "positive", ScaleFactor: 0.5, Save: true},
		},
		"conserved": {
			Problem: "sir", Method: "rk45",
			Guard: GuardConfig{Domain: "general", AbsTol: []float64{1e-6}, ScaleFactor: 0.5, Save: true,
				Projection: ProjectionConfig{MaxIterations: 5, AbsTol: 1e-9, Method: "forward"}},
		},
	},
	"circle": {
		"projected": {
			Problem: "circle", Method: "rk4",
			Guard: GuardConfig{Domain: "general", ScaleFactor: 0.5, Save: true,
				Projection: ProjectionConfig{MaxIterations: 10, AbsTol: 1e-12, Method: "central"}},
		},
		"drifting": {
			Problem: "circle", Method: "euler", Fixed: true, Dt: 0.05,
			Guard: GuardConfig{Domain: "none"},
		},
	},
	"envelope": {
		"tracked": {
			Problem: "envelope", Method: "rk45", AbsTol: []float64{1e-5},
			Guard: GuardConfig{Domain: "general", ScaleFactor: 0.5, Save: true,
				Projection: ProjectionConfig{MaxIterations: 10, AbsTol: 1e-10, Method: "forward"}},
		},
	},
}

// GetPreset returns a copy of the named preset layered over the defaults.
func GetPreset(problem, preset string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	p, ok := problemPresets[preset]
	if !ok {
		return nil
	}
	return merge(DefaultConfig(), p)
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// merge overlays the non-zero fields of p onto base.
func merge(base, p *Config) *Config {
	base.Problem = p.Problem
	if p.Method != "" {
		base.Method = p.Method
	}
	if p.Dt != 0 {
		base.Dt = p.Dt
	}
	if p.RelTol != 0 {
		base.RelTol = p.RelTol
	}
	if p.MaxSteps != 0 {
		base.MaxSteps = p.MaxSteps
	}
	base.Fixed = p.Fixed
	base.TSpan = slices.Clone(p.TSpan)
	base.AbsTol = slices.Clone(p.AbsTol)
	base.TStops = slices.Clone(p.TStops)
	base.Init = slices.Clone(p.Init)
	if p.Params != nil {
		base.Params = make(map[string]float64, len(p.Params))
		for k, v := range p.Params {
			base.Params[k] = v
		}
	}

	g := p.Guard
	base.Guard.Domain = g.Domain
	base.Guard.AbsTol = slices.Clone(g.AbsTol)
	base.Guard.Save = g.Save
	if g.ScaleFactor != 0 {
		base.Guard.ScaleFactor = g.ScaleFactor
	}
	base.Guard.StagnationRTol = g.StagnationRTol
	if g.Projection.MaxIterations != 0 {
		base.Guard.Projection = g.Projection
	}
	return base
}
