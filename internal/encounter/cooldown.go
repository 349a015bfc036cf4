package encounter

import (
	"fmt"
	"math/rand/v2"
	"time"
)

type cooldownTimer struct {
	def       CooldownDef
	remaining time.Duration
	armed     bool
}

// CooldownSet keeps one countdown per recurring ability. A timer only resets when the
// attempt succeeds; a failed attempt is retried on every following tick.
type CooldownSet struct {
	timers []cooldownTimer
	index  map[AbilityID]int
	rng    *rand.Rand
}

// NewCooldownSet builds the timers at their initial values. rng supplies the reset jitter.
func NewCooldownSet(defs []CooldownDef, rng *rand.Rand) *CooldownSet {
	s := &CooldownSet{
		timers: make([]cooldownTimer, len(defs)),
		index:  make(map[AbilityID]int, len(defs)),
		rng:    rng,
	}
	for i, d := range defs {
		s.timers[i].def = d
		s.index[d.Ability] = i
	}
	s.Reset()
	return s
}

// Reset sets every timer to its initial value and re-arms one-shot timers.
func (s *CooldownSet) Reset() {
	for i := range s.timers {
		s.timers[i].remaining = s.timers[i].def.Initial
		s.timers[i].armed = true
	}
}

// ResetPhase sets the timers that start in p back to their initial values. A timer
// shared by several phases is initialized on entering the first of them and keeps
// counting down across the others.
func (s *CooldownSet) ResetPhase(p Phase) {
	for i := range s.timers {
		t := &s.timers[i]
		if t.def.StartsIn(p) {
			t.remaining = t.def.Initial
			t.armed = true
		}
	}
}

// Tick subtracts delta from every armed timer that runs in phase and calls attempt for
// each expired one, in definition order.
func (s *CooldownSet) Tick(delta time.Duration, phase Phase, attempt func(CooldownDef) bool) {
	for i := range s.timers {
		t := &s.timers[i]
		if !t.armed || !t.def.InPhase(phase) {
			continue
		}
		t.remaining -= delta
		if t.remaining > 0 {
			continue
		}
		if !attempt(t.def) {
			t.remaining = 0
			continue
		}
		if t.def.OneShot {
			t.armed = false
			t.remaining = 0
			continue
		}
		t.remaining = s.sample(t.def.Low, t.def.High)
	}
}

// sample draws uniformly from [low, high] in whole milliseconds.
func (s *CooldownSet) sample(low, high time.Duration) time.Duration {
	if high <= low {
		return low
	}
	span := int64((high - low) / time.Millisecond)
	return low + time.Duration(s.rng.Int64N(span+1))*time.Millisecond
}

// Remaining returns the time left on ability's timer.
func (s *CooldownSet) Remaining(ability AbilityID) (time.Duration, bool) {
	i, ok := s.index[ability]
	if !ok {
		return 0, false
	}
	return s.timers[i].remaining, true
}

// Armed reports whether ability's timer still runs.
func (s *CooldownSet) Armed(ability AbilityID) bool {
	i, ok := s.index[ability]
	return ok && s.timers[i].armed
}

// Set overrides the time left on ability's timer and re-arms it.
func (s *CooldownSet) Set(ability AbilityID, d time.Duration) error {
	i, ok := s.index[ability]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAbility, ability)
	}
	if d < 0 {
		d = 0
	}
	s.timers[i].remaining = d
	s.timers[i].armed = true
	return nil
}

// Disarm stops ability's timer until the next Reset or Set.
func (s *CooldownSet) Disarm(ability AbilityID) error {
	i, ok := s.index[ability]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAbility, ability)
	}
	s.timers[i].armed = false
	return nil
}

// Len returns the number of timers.
func (s *CooldownSet) Len() int { return len(s.timers) }
