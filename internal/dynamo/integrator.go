package dynamo

// Integrator is the live integrator as seen by a callback that runs after an
// accepted step. Dt and ProposedDt always carry the sign of Direction.
type Integrator interface {
	// Time is the time of the last accepted step.
	Time() float64
	// State is the integrator-owned current state. Callbacks may write to it
	// and must call MarkModified afterwards.
	State() State
	Params() Params

	// Dt is the active step size; ProposedDt is the size the integrator will
	// attempt next.
	Dt() float64
	SetDt(dt float64)
	ProposedDt() float64
	SetProposedDt(dt float64)

	// Direction is +1 for forward and -1 for backward integration.
	Direction() float64

	// SampleInto evaluates the dense-output interpolant at t into dst without
	// committing a step. t may lie beyond Time.
	SampleInto(dst State, t float64)

	// ClampDt applies the hard step-size bounds to dt and shortens it so that
	// Time()+dt does not pass the next pending stop time.
	ClampDt(dt float64) float64

	AbsTol() Tolerance
	Verbose() bool

	// MarkModified signals that State was changed out of band.
	MarkModified()
}
