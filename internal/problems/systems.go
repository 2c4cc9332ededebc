package problems

import (
	"math"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// Decay is u_i' = -k_i u_i. With a fast rate and loose tolerances an
// explicit method overshoots below zero.
type Decay struct{ dim int }

func (d Decay) StateDim() int { return d.dim }

func (d Decay) Derive(x dynamo.State, p dynamo.Params, _ float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	for i := range x {
		dx[i] = -p[i] * x[i]
	}
	return dx
}

func NewDecay() *Problem {
	return &Problem{
		Name:        "decay",
		Description: "two decoupled linear decays, one stiff",
		System:      Decay{dim: 2},
		State0:      dynamo.State{1, 1},
		Span:        [2]float64{0, 5},
		Params:      dynamo.Params{60, 1},
		ParamNames:  []string{"k_fast", "k_slow"},
		Domain:      DomainPositive,
	}
}

// LotkaVolterra is the predator-prey model with prey x and predators y.
type LotkaVolterra struct{}

func (LotkaVolterra) StateDim() int { return 2 }

func (LotkaVolterra) Derive(s dynamo.State, p dynamo.Params, _ float64) dynamo.State {
	alpha, beta, delta, gamma := p[0], p[1], p[2], p[3]
	x, y := s[0], s[1]
	return dynamo.State{alpha*x - beta*x*y, delta*x*y - gamma*y}
}

func NewLotkaVolterra() *Problem {
	return &Problem{
		Name:        "lotka_volterra",
		Description: "predator-prey populations",
		System:      LotkaVolterra{},
		State0:      dynamo.State{10, 5},
		Span:        [2]float64{0, 15},
		Params:      dynamo.Params{1.5, 1, 1, 3},
		ParamNames:  []string{"alpha", "beta", "delta", "gamma"},
		Domain:      DomainPositive,
		Invariant: func(s dynamo.State, p dynamo.Params) float64 {
			x, y := s[0], s[1]
			if x <= 0 || y <= 0 {
				return math.NaN()
			}
			return p[2]*x - p[3]*math.Log(x) + p[1]*y - p[0]*math.Log(y)
		},
	}
}

// SIR is the susceptible-infected-recovered epidemic model.
type SIR struct{}

func (SIR) StateDim() int { return 3 }

func (SIR) Derive(s dynamo.State, p dynamo.Params, _ float64) dynamo.State {
	beta, gamma, n := p[0], p[1], p[2]
	inf := beta * s[0] * s[1] / n
	rec := gamma * s[1]
	return dynamo.State{-inf, inf - rec, rec}
}

func population(s dynamo.State, _ dynamo.Params) float64 { return s[0] + s[1] + s[2] }

func NewSIR() *Problem {
	return &Problem{
		Name:         "sir",
		Description:  "epidemic compartments with a conserved population",
		System:       SIR{},
		State0:       dynamo.State{990, 10, 0},
		Span:         [2]float64{0, 160},
		Params:       dynamo.Params{0.5, 0.1, 1000},
		ParamNames:   []string{"beta", "gamma", "population"},
		Domain:       DomainPositive,
		ResidualSize: 1,
		Residual: dynamo.TimeDependentResidual(func(resid, u dynamo.State, p dynamo.Params, _ float64) error {
			resid[0] = population(u, p) - p[2]
			return nil
		}),
		Invariant: population,
	}
}

// Rotation is uniform motion around the origin.
type Rotation struct{}

func (Rotation) StateDim() int { return 2 }

func (Rotation) Derive(s dynamo.State, p dynamo.Params, _ float64) dynamo.State {
	w := p[0]
	return dynamo.State{-w * s[1], w * s[0]}
}

func radius(s dynamo.State, _ dynamo.Params) float64 { return math.Hypot(s[0], s[1]) }

func NewCircle() *Problem {
	return &Problem{
		Name:         "circle",
		Description:  "rotation kept on the unit circle",
		System:       Rotation{},
		State0:       dynamo.State{1, 0},
		Span:         [2]float64{0, 20},
		Params:       dynamo.Params{1},
		ParamNames:   []string{"omega"},
		Domain:       DomainGeneral,
		ResidualSize: 1,
		Residual: dynamo.AutonomousResidual(func(resid, u dynamo.State) error {
			resid[0] = u[0]*u[0] + u[1]*u[1] - 1
			return nil
		}),
		Invariant: radius,
	}
}

// NewEnvelope tracks u' = -k u against its closed form A e^{-kt}, a
// manifold that moves with time.
func NewEnvelope() *Problem {
	return &Problem{
		Name:         "envelope",
		Description:  "decay tied to its exact time dependent envelope",
		System:       Decay{dim: 1},
		State0:       dynamo.State{2},
		Span:         [2]float64{0, 10},
		Params:       dynamo.Params{0.5, 2},
		ParamNames:   []string{"k", "amplitude"},
		Domain:       DomainGeneral,
		ResidualSize: 1,
		Residual: dynamo.TimeDependentResidual(func(resid, u dynamo.State, p dynamo.Params, t float64) error {
			resid[0] = u[0] - p[1]*math.Exp(-p[0]*t)
			return nil
		}),
	}
}
