package problems

import (
	"fmt"
	"slices"
)

var registry = map[string]func() *Problem{
	"decay":          NewDecay,
	"lotka_volterra": NewLotkaVolterra,
	"sir":            NewSIR,
	"circle":         NewCircle,
	"envelope":       NewEnvelope,
}

// Get returns a fresh copy of the named problem.
func Get(name string) (*Problem, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
