package encounter

import (
	"maps"
	"slices"
	"time"
)

// CounterKey addresses a counter, optionally per subject (team, player, gate).
type CounterKey struct {
	Name    string
	Subject uint32
}

// Context is the mutable state of one running encounter. Owned by exactly one Controller.
type Context struct {
	Phase          Phase
	Elapsed        time.Duration
	PhaseElapsed   time.Duration
	PhaseRemaining time.Duration // phase clock; 0 when untimed
	Engaged        bool
	Done           bool
	Outcome        Outcome

	helpers  map[string][]Ref
	counters map[CounterKey]int64
	flags    map[string]bool

	snapCounters map[string]int64 // reused by snapshot
}

func newContext() *Context {
	return &Context{
		helpers:  make(map[string][]Ref),
		counters: make(map[CounterKey]int64),
		flags:    make(map[string]bool),

		snapCounters: make(map[string]int64),
	}
}

// reset clears everything but keeps the allocated maps.
func (c *Context) reset() {
	c.Phase = NoPhase
	c.Elapsed = 0
	c.PhaseElapsed = 0
	c.PhaseRemaining = 0
	c.Engaged = false
	c.Done = false
	c.Outcome = OutcomeNotStarted
	clear(c.helpers)
	clear(c.counters)
	clear(c.flags)
	clear(c.snapCounters)
}

// AddHelper records a spawned helper under role.
func (c *Context) AddHelper(role string, ref Ref) {
	if ref == NoRef {
		return
	}
	c.helpers[role] = append(c.helpers[role], ref)
}

// RemoveHelper forgets ref wherever it is tracked. Reports the role it was found in.
func (c *Context) RemoveHelper(ref Ref) (string, bool) {
	for role, refs := range c.helpers {
		if i := slices.Index(refs, ref); i >= 0 {
			c.helpers[role] = slices.Delete(refs, i, i+1)
			if len(c.helpers[role]) == 0 {
				delete(c.helpers, role)
			}
			return role, true
		}
	}
	return "", false
}

// Helper returns the first helper of role.
func (c *Context) Helper(role string) (Ref, bool) {
	refs := c.helpers[role]
	if len(refs) == 0 {
		return NoRef, false
	}
	return refs[0], true
}

// Helpers returns a copy of the helpers tracked under role.
func (c *Context) Helpers(role string) []Ref {
	return slices.Clone(c.helpers[role])
}

// ForgetHelpers drops role and returns what was tracked under it.
func (c *Context) ForgetHelpers(role string) []Ref {
	refs := c.helpers[role]
	delete(c.helpers, role)
	return refs
}

// Roles returns the roles with at least one helper, sorted.
func (c *Context) Roles() []string {
	return slices.Sorted(maps.Keys(c.helpers))
}

// Counter returns the value of a per-subject counter.
func (c *Context) Counter(name string, subject uint32) int64 {
	return c.counters[CounterKey{Name: name, Subject: subject}]
}

// AddCounter adds delta and returns the new value.
func (c *Context) AddCounter(name string, subject uint32, delta int64) int64 {
	k := CounterKey{Name: name, Subject: subject}
	c.counters[k] += delta
	return c.counters[k]
}

// SetCounter overwrites a counter.
func (c *Context) SetCounter(name string, subject uint32, v int64) {
	c.counters[CounterKey{Name: name, Subject: subject}] = v
}

// Flag reports a named flag.
func (c *Context) Flag(name string) bool { return c.flags[name] }

// SetFlag sets or clears a named flag.
func (c *Context) SetFlag(name string, v bool) {
	if v {
		c.flags[name] = true
		return
	}
	delete(c.flags, name)
}

// snapshot views the context for exit conditions. The maps are shared with the context
// and only valid until the next snapshot; conditions must not keep or modify them.
func (c *Context) snapshot(def *Definition, health float64) Snapshot {
	clear(c.snapCounters)
	for k, v := range c.counters {
		if k.Subject == 0 {
			c.snapCounters[k.Name] = v
		}
	}
	return Snapshot{
		Phase:          c.Phase,
		PhaseName:      def.PhaseName(c.Phase),
		Health:         health,
		Elapsed:        c.Elapsed,
		PhaseElapsed:   c.PhaseElapsed,
		PhaseRemaining: c.PhaseRemaining,
		Flags:          c.flags,
		Counters:       c.snapCounters,
	}
}
