package service

import (
	"fmt"
	"sort"

	"pulseboard/internal/model"
	"pulseboard/internal/repository"
)

// Computation is one named widget: the tables it reads and the function computing it.
// Tables must be non-nil; an explicitly empty slice declares a table-free computation.
type Computation struct {
	Name   string
	Tables []string
	Invoke func(model.Snapshot, model.Params) (any, error)
}

// Registry is the immutable name -> computation catalog built at startup.
type Registry struct {
	entries map[string]Computation
}

func NewRegistry(computations ...Computation) (*Registry, error) {
	r := &Registry{entries: make(map[string]Computation, len(computations))}
	for _, c := range computations {
		if c.Name == "" {
			return nil, fmt.Errorf("registry: computation without a name")
		}
		if _, dup := r.entries[c.Name]; dup {
			return nil, fmt.Errorf("registry: %s registered twice", c.Name)
		}
		if c.Invoke == nil {
			return nil, fmt.Errorf("registry: %s has no function", c.Name)
		}
		if c.Tables == nil {
			return nil, fmt.Errorf("registry: %s does not declare its tables", c.Name)
		}
		for _, t := range c.Tables {
			if !repository.ValidIdentifier(t) {
				return nil, fmt.Errorf("registry: %s depends on invalid table %q", c.Name, t)
			}
		}
		r.entries[c.Name] = c
	}
	return r, nil
}

func MustRegistry(computations ...Computation) *Registry {
	r, err := NewRegistry(computations...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (Computation, bool) {
	c, ok := r.entries[name]
	return c, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return len(r.entries)
}
