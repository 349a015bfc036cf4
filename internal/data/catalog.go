package data

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// Catalog holds the current definition of every encounter by name. Controllers keep the
// definition they were built with; a reload only affects controllers created afterwards.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*encounter.Definition
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*encounter.Definition)}
}

// LoadCatalog builds a catalog from every definition under dir.
func LoadCatalog(l *Loader, dir string) (*Catalog, error) {
	defs, err := l.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	c := NewCatalog()
	for _, def := range defs {
		c.Put(def)
	}
	slog.Info("encounter catalog loaded", "count", len(defs))
	return c, nil
}

// Get returns the definition registered under name.
func (c *Catalog) Get(name string) (*encounter.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("encounter %q not found in catalog", name)
	}
	return def, nil
}

// Put registers or replaces def.
func (c *Catalog) Put(def *encounter.Definition) {
	c.mu.Lock()
	c.defs[def.Name] = def
	c.mu.Unlock()
}

// Names returns the registered encounter names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Names(c.defs)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Reload reloads one file into the catalog. An invalid file leaves the previous
// definition in place and returns the error.
func (c *Catalog) Reload(l *Loader, path string) (*encounter.Definition, error) {
	def, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.Put(def)
	slog.Info("encounter definition reloaded", "encounter", def.Name, "path", path)
	return def, nil
}
