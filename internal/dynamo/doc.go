// Package dynamo provides the core primitives shared by the integrators and
// the domain guards.
//
// The package defines the contracts between an adaptive ODE integrator and
// the callbacks it runs after each accepted step:
//
//   - [State]: vector representing system state (a scalar ODE is a length-1 State)
//   - [System]: interface for ODE systems (du/dt = f(u, p, t))
//   - [Method]: single-step numerical scheme with a local error estimate
//   - [Integrator]: the live integrator as seen by a callback
//   - [Tolerance]: scalar or per-component absolute tolerance
//   - [Residual]: constraint function g(u) or g(u, p, t)
//
// # Example
//
//	integ, _ := integrators.New(dyn, integrators.NewRK45(), u0, [2]float64{0, 10}, nil, opts)
//	result, _ := integ.Solve(ctx)
//
// # Thread Safety
//
// Integrator instances and the callbacks attached to them are NOT
// thread-safe. Run independent integrations on independent instances.
package dynamo
