// Package sources holds the registry of source adapters. Each adapter lives
// in its own sub-package.
package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/specials/internal/interfaces"
	"github.com/ternarybob/specials/internal/models"
)

// Registry indexes adapters by source name and by the store slugs they cover
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]interfaces.SourceAdapter
	everyday map[string]interfaces.EverydaySource
	byStore  map[string][]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]interfaces.SourceAdapter),
		everyday: make(map[string]interfaces.EverydaySource),
		byStore:  make(map[string][]string),
	}
}

// Register adds a promotional source adapter
func (r *Registry) Register(adapter interfaces.SourceAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("source %s already registered", name)
	}
	r.adapters[name] = adapter
	for _, slug := range adapter.Stores() {
		r.byStore[slug] = append(r.byStore[slug], name)
		sort.Strings(r.byStore[slug])
	}
	return nil
}

// RegisterEveryday adds an everyday price source
func (r *Registry) RegisterEveryday(source interfaces.EverydaySource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := source.Name()
	if _, exists := r.everyday[name]; exists {
		return fmt.Errorf("everyday source %s already registered", name)
	}
	r.everyday[name] = source
	return nil
}

// Source returns the adapter registered under name
func (r *Registry) Source(name string) (interfaces.SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: no source named %s", models.ErrNotSupported, name)
	}
	return adapter, nil
}

// Everyday returns the everyday source registered under name
func (r *Registry) Everyday(name string) (interfaces.EverydaySource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.everyday[name]
	if !ok {
		return nil, fmt.Errorf("%w: no everyday source named %s", models.ErrNotSupported, name)
	}
	return source, nil
}

// Discoverer returns the catalogue listing capability of a source, or
// models.ErrNotSupported when the source has none.
func (r *Registry) Discoverer(name string) (interfaces.CatalogueDiscoverer, error) {
	adapter, err := r.Source(name)
	if err != nil {
		return nil, err
	}
	discoverer, ok := adapter.(interfaces.CatalogueDiscoverer)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no catalogue listing", models.ErrNotSupported, name)
	}
	return discoverer, nil
}

// ForStore returns the adapters covering a store slug, ordered by name
func (r *Registry) ForStore(slug string) []interfaces.SourceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.byStore[slug]
	out := make([]interfaces.SourceAdapter, 0, len(names))
	for _, name := range names {
		out = append(out, r.adapters[name])
	}
	return out
}

// Names lists the registered promotional sources
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedStores returns the keys of a slug-keyed map in order. Adapters use
// it to report Stores() deterministically.
func SortedStores[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for slug := range m {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// Covers reports whether slug is one of stores
func Covers(stores []string, slug string) bool {
	for _, s := range stores {
		if s == slug {
			return true
		}
	}
	return false
}
