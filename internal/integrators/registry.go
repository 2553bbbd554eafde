package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/dcmwalk/internal/dynamo"
)

var factories = map[string]func() dynamo.Integrator{
	"euler":     func() dynamo.Integrator { return NewEuler() },
	"heun":      func() dynamo.Integrator { return NewHeun() },
	"rk4":       func() dynamo.Integrator { return NewRK4() },
	"trapezoid": func() dynamo.Integrator { return NewTrapezoid() },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator %q (available: %v): %w", name, Names(), dynamo.ErrConfiguration)
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
