package dynamo

// Residual is a constraint function g. A state u satisfies the constraint
// when every component of g(u) is close to zero. Eval overwrites resid.
type Residual interface {
	Eval(resid, u State, p Params, t float64) error
	Autonomous() bool
}

// AutonomousResidual depends on the state only.
type AutonomousResidual func(resid, u State) error

func (g AutonomousResidual) Eval(resid, u State, _ Params, _ float64) error {
	return g(resid, u)
}

func (g AutonomousResidual) Autonomous() bool { return true }

// TimeDependentResidual depends on the state, the parameters and the time.
type TimeDependentResidual func(resid, u State, p Params, t float64) error

func (g TimeDependentResidual) Eval(resid, u State, p Params, t float64) error {
	return g(resid, u, p, t)
}

func (g TimeDependentResidual) Autonomous() bool { return false }
