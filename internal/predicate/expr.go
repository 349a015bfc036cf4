// Package predicate compiles tengo expressions used as phase-exit conditions in encounter
// definitions, e.g. "health < 0.5" or "phase_elapsed >= 30000 && flags.vortex".
package predicate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
)

// resultVar receives the expression value.
const resultVar = "__result"

// Vars are the values an expression can read.
//
//	health           float, 0.0..1.0
//	elapsed          int, milliseconds since engage
//	phase_elapsed    int, milliseconds in the current phase
//	phase_remaining  int, milliseconds left on the phase clock (0 if untimed)
//	phase            string, current phase name
//	flags            map of bool
//	counters         map of int
type Vars struct {
	Health         float64
	Elapsed        time.Duration
	PhaseElapsed   time.Duration
	PhaseRemaining time.Duration
	Phase          string
	Flags          map[string]bool
	Counters       map[string]int64
}

// Expr is a compiled boolean expression. Safe for concurrent use.
type Expr struct {
	src string

	mu       sync.Mutex
	compiled *tengo.Compiled
}

// Compile parses src and performs one dry evaluation with zero values so that
// syntax and obvious runtime errors surface at load time.
func Compile(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}

	script := tengo.NewScript([]byte(resultVar + " := (" + src + ")"))
	for name, zero := range map[string]any{
		"health":          0.0,
		"elapsed":         int64(0),
		"phase_elapsed":   int64(0),
		"phase_remaining": int64(0),
		"phase":           "",
		"flags":           map[string]any{},
		"counters":        map[string]any{},
	} {
		if err := script.Add(name, zero); err != nil {
			return nil, fmt.Errorf("declaring %s: %w", name, err)
		}
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", src, err)
	}

	e := &Expr{src: src, compiled: compiled}
	if _, err := e.Eval(Vars{}); err != nil {
		return nil, err
	}
	return e, nil
}

// MustCompile is Compile that panics on error. For package-level literals only.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the expression source.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against v. Non-boolean results use tengo truthiness.
func (e *Expr) Eval(v Vars) (bool, error) {
	flags := make(map[string]any, len(v.Flags))
	for k, f := range v.Flags {
		flags[k] = f
	}
	counters := make(map[string]any, len(v.Counters))
	for k, n := range v.Counters {
		counters[k] = n
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for name, value := range map[string]any{
		"health":          v.Health,
		"elapsed":         v.Elapsed.Milliseconds(),
		"phase_elapsed":   v.PhaseElapsed.Milliseconds(),
		"phase_remaining": v.PhaseRemaining.Milliseconds(),
		"phase":           v.Phase,
		"flags":           flags,
		"counters":        counters,
	} {
		if err := e.compiled.Set(name, value); err != nil {
			return false, fmt.Errorf("setting %s for %q: %w", name, e.src, err)
		}
	}

	if err := e.compiled.Run(); err != nil {
		return false, fmt.Errorf("evaluating %q: %w", e.src, err)
	}
	return e.compiled.Get(resultVar).Bool(), nil
}
