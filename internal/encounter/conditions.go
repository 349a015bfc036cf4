package encounter

import (
	"fmt"
	"time"

	"github.com/udisondev/scriptdev/internal/predicate"
)

// Snapshot is the read-only view exit conditions are tested against. Its maps belong to
// the controller and are only valid during Test.
type Snapshot struct {
	Phase          Phase
	PhaseName      string
	Health         float64
	Elapsed        time.Duration
	PhaseElapsed   time.Duration
	PhaseRemaining time.Duration
	Flags          map[string]bool
	Counters       map[string]int64 // subject-less counters only
}

// Condition is a phase-exit predicate.
type Condition interface {
	Test(s Snapshot) (bool, error)
}

// ConditionFunc adapts a plain function to Condition.
type ConditionFunc func(s Snapshot) bool

// Test implements Condition.
func (f ConditionFunc) Test(s Snapshot) (bool, error) { return f(s), nil }

// HealthBelow holds while the boss health fraction is strictly below f.
func HealthBelow(f float64) Condition {
	return ConditionFunc(func(s Snapshot) bool { return s.Health < f })
}

// ElapsedAtLeast holds once the encounter has been engaged for d.
func ElapsedAtLeast(d time.Duration) Condition {
	return ConditionFunc(func(s Snapshot) bool { return s.Elapsed >= d })
}

// PhaseElapsedAtLeast holds once the current phase has lasted d.
func PhaseElapsedAtLeast(d time.Duration) Condition {
	return ConditionFunc(func(s Snapshot) bool { return s.PhaseElapsed >= d })
}

// FlagSet holds while the named flag is set.
func FlagSet(name string) Condition {
	return ConditionFunc(func(s Snapshot) bool { return s.Flags[name] })
}

// CounterAtLeast holds once the named counter reached n.
func CounterAtLeast(name string, n int64) Condition {
	return ConditionFunc(func(s Snapshot) bool { return s.Counters[name] >= n })
}

type allOf []Condition

func (a allOf) Test(s Snapshot) (bool, error) {
	for _, c := range a {
		ok, err := c.Test(s)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// All holds when every condition holds.
func All(conds ...Condition) Condition { return allOf(conds) }

type exprCondition struct {
	expr *predicate.Expr
}

// Expr wraps a compiled predicate expression.
func Expr(e *predicate.Expr) Condition { return exprCondition{expr: e} }

func (c exprCondition) Test(s Snapshot) (bool, error) {
	ok, err := c.expr.Eval(predicate.Vars{
		Health:         s.Health,
		Elapsed:        s.Elapsed,
		PhaseElapsed:   s.PhaseElapsed,
		PhaseRemaining: s.PhaseRemaining,
		Phase:          s.PhaseName,
		Flags:          s.Flags,
		Counters:       s.Counters,
	})
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.expr, err)
	}
	return ok, nil
}

func (c exprCondition) String() string { return c.expr.String() }
