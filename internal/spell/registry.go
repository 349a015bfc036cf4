package spell

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrDuplicateScript = errors.New("spell script already registered")
	ErrNotAScript      = errors.New("value implements no spell script hook")
	ErrUnknownScript   = errors.New("unknown spell script")
)

// Registry maps script names (as referenced by spell template data) to scripts.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scripts: make(map[string]any)}
}

// Register binds script to name.
func (r *Registry) Register(name string, script any) error {
	if !isScript(script) {
		return fmt.Errorf("%s: %w", name, ErrNotAScript)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.scripts[name]; dup {
		return fmt.Errorf("%s: %w", name, ErrDuplicateScript)
	}
	r.scripts[name] = script
	return nil
}

// Lookup returns the script bound to name.
func (r *Registry) Lookup(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownScript)
	}
	return s, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scripts))
	for n := range r.scripts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered scripts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}
