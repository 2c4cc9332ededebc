package integrators

import "github.com/san-kum/odeguard/internal/dynamo"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }
func (e *Euler) Order() int   { return 1 }

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, p dynamo.Params, t, dt float64) (dynamo.State, dynamo.State) {
	return stepDoubling(e.single, e.Order(), dyn, x, p, t, dt)
}

func (e *Euler) single(dyn dynamo.System, x dynamo.State, p dynamo.Params, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, p, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

type singleStep func(dyn dynamo.System, x dynamo.State, p dynamo.Params, t, dt float64) dynamo.State

// stepDoubling takes one full step and two half steps. The two half steps are
// returned as the solution; their difference to the full step, scaled by
// Richardson's factor, is the error estimate.
func stepDoubling(step singleStep, order int, dyn dynamo.System, x dynamo.State, p dynamo.Params, t, dt float64) (dynamo.State, dynamo.State) {
	full := step(dyn, x, p, t, dt)
	half := step(dyn, x, p, t, dt/2)
	fine := step(dyn, half, p, t+dt/2, dt/2)

	denom := float64(int(1)<<order) - 1
	errEst := make(dynamo.State, len(x))
	for i := range x {
		errEst[i] = (fine[i] - full[i]) / denom
	}
	return fine, errEst
}
