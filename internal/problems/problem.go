// Package problems holds the named initial value problems the CLI and the
// tests integrate, each with the domain its solution must stay in.
package problems

import (
	"fmt"
	"slices"

	"github.com/san-kum/odeguard/internal/dynamo"
)

// Domain names the guard a problem is meant to run with.
type Domain string

const (
	DomainNone     Domain = "none"
	DomainPositive Domain = "positive"
	DomainGeneral  Domain = "general"
)

func ParseDomain(s string) (Domain, error) {
	switch d := Domain(s); d {
	case DomainNone, DomainPositive, DomainGeneral:
		return d, nil
	}
	return "", fmt.Errorf("unknown domain %q (want none, positive or general)", s)
}

type Problem struct {
	Name        string
	Description string
	System      dynamo.System
	State0      dynamo.State
	Span        [2]float64
	Params      dynamo.Params
	ParamNames  []string
	Domain      Domain

	// Residual describes the manifold a General guard keeps the solution
	// near. ResidualSize is its number of components.
	Residual     dynamo.Residual
	ResidualSize int

	// Invariant, when set, is a quantity the exact solution conserves.
	Invariant func(dynamo.State, dynamo.Params) float64
}

// SetParam overrides a named parameter.
func (p *Problem) SetParam(name string, v float64) error {
	i := slices.Index(p.ParamNames, name)
	if i < 0 {
		return fmt.Errorf("problem %s has no parameter %q", p.Name, name)
	}
	p.Params[i] = v
	return nil
}

func (p *Problem) GetParams() map[string]float64 {
	out := make(map[string]float64, len(p.ParamNames))
	for i, n := range p.ParamNames {
		out[n] = p.Params[i]
	}
	return out
}

// Validate checks that the problem's pieces agree on dimensions.
func (p *Problem) Validate() error {
	if len(p.State0) != p.System.StateDim() {
		return fmt.Errorf("%w: problem %s has %d initial values for a %d dimensional system",
			dynamo.ErrDimensionMismatch, p.Name, len(p.State0), p.System.StateDim())
	}
	if len(p.Params) != len(p.ParamNames) {
		return fmt.Errorf("problem %s: %d params for %d names", p.Name, len(p.Params), len(p.ParamNames))
	}
	if p.Domain == DomainGeneral && p.Residual == nil {
		return fmt.Errorf("problem %s: general domain without a residual", p.Name)
	}
	return nil
}
