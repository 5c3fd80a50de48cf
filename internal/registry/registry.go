package registry

import (
	"sort"
)

// Module is the interface that all engine backend modules must implement to
// be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered engine backends for a single application
// instance.
type Registry struct {
	BackendRegistry map[string]*RegisteredBackend
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		BackendRegistry: make(map[string]*RegisteredBackend),
	}
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.BackendRegistry))
	for name := range r.BackendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
