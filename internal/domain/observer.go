package domain

// Outcome describes one guard invocation.
type Outcome struct {
	Kind       string
	Time       float64
	Sanitized  bool
	Iterations int
	Accepted   bool
	Stagnated  bool
	ProposedDt float64
}

type Observer interface {
	ObserveGuard(Outcome)
}

type ObserverFunc func(Outcome)

func (f ObserverFunc) ObserveGuard(o Outcome) { f(o) }
