package integrators

import (
	"fmt"
	"slices"

	"github.com/san-kum/odeguard/internal/dynamo"
)

var methods = map[string]func() dynamo.Method{
	"euler": func() dynamo.Method { return NewEuler() },
	"rk4":   func() dynamo.Method { return NewRK4() },
	"rk45":  func() dynamo.Method { return NewRK45() },
}

// NewMethod returns a fresh instance of the named method. Methods keep
// scratch buffers, so concurrent integrations need separate instances.
func NewMethod(name string) (dynamo.Method, error) {
	fn, ok := methods[name]
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", name)
	}
	return fn(), nil
}

func MethodNames() []string {
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
