package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/hlms"
)

// Registry holds render system factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	// Priority order for Default (first available wins).
	priority []string
}

// NewRegistry creates an empty registry. Default tries the names in
// priority order before any other registered backend.
func NewRegistry(priority ...string) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		priority:  slices.Clone(priority),
	}
}

// Register registers a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	return nil
}

// Unregister removes name from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// IsRegistered checks if a backend with the given name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get creates the render system registered as name.
func (r *Registry) Get(name string) (hlms.RenderSystem, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return f()
}

// Default creates the best available render system: the priority names
// first, then the remaining backends in name order. Factory errors are
// skipped and returned joined if nothing could be created.
func (r *Registry) Default() (hlms.RenderSystem, error) {
	r.mu.RLock()
	order := slices.Clone(r.priority)
	rest := make([]string, 0, len(r.factories))
	for name := range r.factories {
		if !slices.Contains(order, name) {
			rest = append(rest, name)
		}
	}
	r.mu.RUnlock()
	slices.Sort(rest)
	order = append(order, rest...)

	var errs []error
	for _, name := range order {
		rs, err := r.Get(name)
		switch {
		case errors.Is(err, ErrBackendNotAvailable):
			continue
		case err != nil:
			errs = append(errs, fmt.Errorf("backend %q: %w", name, err))
		case rs != nil:
			return rs, nil
		}
	}
	if len(errs) == 0 {
		return nil, ErrBackendNotAvailable
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}
