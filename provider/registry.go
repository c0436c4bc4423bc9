package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the factories for one kind of backend. Backends
// register under the name the configuration selects them by.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// RegisterFactory makes a backend selectable by name. A second
// registration under the same name replaces the first.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds the named backend from its settings. An unknown name
// reports which backends are registered, since the name usually comes
// straight from a config file.
func (r *Registry[T]) Create(name string, settings map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	var registered []string
	if !ok {
		for n := range r.factories {
			registered = append(registered, n)
		}
	}
	r.mu.RUnlock()

	if !ok {
		var zero T
		sort.Strings(registered)
		return zero, fmt.Errorf("unknown provider %q (registered: %s)", name, strings.Join(registered, ", "))
	}
	return factory(settings)
}
