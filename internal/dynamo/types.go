package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Min returns the smallest component, or +Inf for an empty state.
func (s State) Min() float64 {
	m := math.Inf(1)
	for _, v := range s {
		m = math.Min(m, v)
	}
	return m
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Params []float64

// System is an ODE right-hand side du/dt = f(u, p, t).
type System interface {
	Derive(x State, p Params, t float64) State
	StateDim() int
}

// Method advances a state by one step of size dt and returns a componentwise
// local error estimate alongside the new state.
type Method interface {
	Name() string
	Order() int
	Step(dyn System, x State, p Params, t, dt float64) (State, State)
}

// Stats summarizes one integration.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	Callbacks   int
	LastDt      float64
}

type Result struct {
	States  []State
	Times   []float64
	Metrics map[string]float64
	Stats   Stats
}
