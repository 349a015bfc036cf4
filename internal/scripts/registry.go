// Package scripts binds script names, as referenced by world data, to the encounter and
// spell scripts of this repository.
package scripts

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/scripts/brewfest"
	"github.com/udisondev/scriptdev/internal/scripts/malygos"
	"github.com/udisondev/scriptdev/internal/scripts/rogue"
	"github.com/udisondev/scriptdev/internal/scripts/strand"
	"github.com/udisondev/scriptdev/internal/spell"
)

var (
	ErrUnknownEncounter   = errors.New("unknown encounter script")
	ErrDuplicateEncounter = errors.New("encounter script already registered")
	// ErrMissingPort is returned when the engine lacks a capability the script needs.
	ErrMissingPort = errors.New("engine does not provide the script host interface")
)

// Encounter is a running encounter script. *encounter.Controller and every script
// wrapping one satisfy it.
type Encounter interface {
	Tick(delta time.Duration)
	Dispatch(ev encounter.Event) bool
	Engage()
	Engaged() bool
	Done() bool
	PhaseName() string
	Context() *encounter.Context
	Definition() *encounter.Definition
}

// Factory builds an encounter on def for the host behind eng.
type Factory func(def *encounter.Definition, eng encounter.Engine, seed uint64) (Encounter, error)

// Registry maps encounter definition names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding every encounter script of this repository.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for name, f := range map[string]Factory{
		malygos.DefinitionName:  newMalygos,
		strand.DefinitionName:   newStrand,
		brewfest.DefinitionName: newBarker,
	} {
		// names are distinct constants
		_ = r.Register(name, f)
	}
	return r
}

// Register binds f to the definition name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("%s: %w", name, ErrDuplicateEncounter)
	}
	r.factories[name] = f
	return nil
}

// New builds the encounter script for def.
func (r *Registry) New(def *encounter.Definition, eng encounter.Engine, seed uint64) (Encounter, error) {
	r.mu.RLock()
	f, ok := r.factories[def.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", def.Name, ErrUnknownEncounter)
	}
	e, err := f(def, eng, seed)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", def.Name, err)
	}
	slog.Debug("encounter script built", "encounter", def.Name, "seed", seed)
	return e, nil
}

// Has reports whether name has a script.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered definition names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func hostOf[H any](name string, eng encounter.Engine) (H, error) {
	h, ok := eng.(H)
	if !ok {
		var zero H
		return zero, fmt.Errorf("%s: %w: %T", name, ErrMissingPort, eng)
	}
	return h, nil
}

func newMalygos(def *encounter.Definition, eng encounter.Engine, seed uint64) (Encounter, error) {
	host, err := hostOf[malygos.Host](malygos.DefinitionName, eng)
	if err != nil {
		return nil, err
	}
	b, err := malygos.New(def, host, seed)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newStrand(def *encounter.Definition, eng encounter.Engine, seed uint64) (Encounter, error) {
	host, err := hostOf[strand.Host](strand.DefinitionName, eng)
	if err != nil {
		return nil, err
	}
	b, err := strand.New(def, host, seed)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newBarker(def *encounter.Definition, eng encounter.Engine, seed uint64) (Encounter, error) {
	host, err := hostOf[brewfest.BarkerHost](brewfest.DefinitionName, eng)
	if err != nil {
		return nil, err
	}
	c, err := brewfest.NewBarker(def, host, seed)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SpellWorld is everything the spell scripts need from the host.
type SpellWorld interface {
	rogue.World
	brewfest.World
	malygos.SpellWorld
}

// RegisterSpells binds every spell script to its name in r.
func RegisterSpells(r *spell.Registry, w SpellWorld, rng *rand.Rand) error {
	return errors.Join(
		rogue.Register(r, w, rng),
		brewfest.Register(r, w),
		malygos.RegisterSpells(r, w),
	)
}
