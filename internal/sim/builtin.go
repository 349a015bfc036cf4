package sim

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sync"
)

// ErrNoScenario is returned by Builtin for an encounter without a shipped scenario.
var ErrNoScenario = errors.New("no built-in scenario")

//go:embed scenarios/*.yaml
var builtinFS embed.FS

var (
	builtinOnce sync.Once
	builtins    map[string][]byte
	builtinErr  error
)

func loadBuiltins() {
	builtins = make(map[string][]byte)
	entries, err := fs.ReadDir(builtinFS, "scenarios")
	if err != nil {
		builtinErr = err
		return
	}
	for _, e := range entries {
		src, err := fs.ReadFile(builtinFS, "scenarios/"+e.Name())
		if err != nil {
			builtinErr = err
			return
		}
		s, err := ParseScenario(src)
		if err != nil {
			builtinErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		builtins[s.Encounter] = src
	}
}

// Builtin returns a fresh copy of the scenario shipped for the named encounter.
func Builtin(encounter string) (*Scenario, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}
	src, ok := builtins[encounter]
	if !ok {
		return nil, fmt.Errorf("%s: %w", encounter, ErrNoScenario)
	}
	return ParseScenario(src)
}

// BuiltinNames lists the encounters with a shipped scenario, sorted.
func BuiltinNames() []string {
	builtinOnce.Do(loadBuiltins)
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
