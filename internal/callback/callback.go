// Package callback defines the hooks an integrator runs after each accepted
// step.
package callback

import "github.com/san-kum/odeguard/internal/dynamo"

// Discrete is checked once after every accepted step. When Condition holds,
// Affect runs with mutable access to the integrator.
type Discrete struct {
	Name string

	// Condition defaults to always true when nil.
	Condition func(integ dynamo.Integrator) bool
	Affect    func(integ dynamo.Integrator) error

	// Initialize runs once before the first step.
	Initialize func(integ dynamo.Integrator) error

	// SaveAfter marks the step as saved in the trajectory after Affect.
	SaveAfter bool
}

// Set is an ordered list of callbacks. Callbacks run in order.
type Set []*Discrete

func Merge(sets ...Set) Set {
	var out Set
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// Init runs every Initialize hook.
func (s Set) Init(integ dynamo.Integrator) error {
	for _, cb := range s {
		if cb.Initialize == nil {
			continue
		}
		if err := cb.Initialize(integ); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs the callbacks whose condition holds and reports how many fired
// and whether any of them asked for the step to be saved.
func (s Set) Apply(integ dynamo.Integrator) (fired int, save bool, err error) {
	for _, cb := range s {
		if cb.Condition != nil && !cb.Condition(integ) {
			continue
		}
		fired++
		if cb.Affect != nil {
			if err := cb.Affect(integ); err != nil {
				return fired, save, err
			}
		}
		save = save || cb.SaveAfter
	}
	return fired, save, nil
}
