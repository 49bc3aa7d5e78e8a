package datasource

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps data-source handles to implementations. Providers register
// themselves once at startup; lookups after that are read-only.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]DataSource
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]DataSource)}
}

// Register adds a provider. Re-registering a handle is a programmer error.
func (r *Registry) Register(source DataSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle := source.Handle()
	if _, exists := r.sources[handle]; exists {
		return fmt.Errorf("data source %q already registered", handle)
	}
	r.sources[handle] = source
	return nil
}

// Get resolves a handle to its provider.
func (r *Registry) Get(handle string) (DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, handle)
	}
	return source, nil
}

// All returns the registered providers sorted by handle for stable listings.
func (r *Registry) All() []DataSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]DataSource, 0, len(r.sources))
	for _, s := range r.sources {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Handle() < sources[j].Handle() })
	return sources
}
