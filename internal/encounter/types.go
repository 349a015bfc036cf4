// Package encounter implements the phased-encounter scripting engine used by boss,
// battleground and world-event scripts.
//
// A Controller owns one running encounter: its Context (phase, clocks, helpers, counters),
// a Sequencer for timed dialogue/step tables, a CooldownSet for recurring abilities and a
// Bridge that routes host events into transitions or one-shot reactions.
//
// The host calls Tick once per update with the elapsed delta and Dispatch from its own event
// notifications. Both run on the same goroutine; nothing in this package locks.
package encounter

import "fmt"

// Phase identifies one stage of an encounter. Values follow definition order starting at 1.
type Phase uint8

// NoPhase is the zero Phase. It never names a defined phase.
const NoPhase Phase = 0

// AbilityID identifies a spell/ability known to the host spell system.
type AbilityID int32

// LineID identifies a scripted text line (yell, say, emote, broadcast text).
type LineID int32

// Ref is a host object handle (objectID). Zero means "no object".
type Ref uint32

// NoRef is the empty object reference.
const NoRef Ref = 0

// SpawnFlags are passed through to the host spawner untouched.
type SpawnFlags uint32

// Spawn behavior flags understood by the bundled scripts.
const (
	SpawnDespawnOnDeath SpawnFlags = 1 << iota // despawn corpse immediately
	SpawnTimed                                 // despawn after a host-defined lifetime
	SpawnPassive                               // spawn passive, never enters combat
	SpawnWithPath                              // start a waypoint path (path id in upper byte)
)

// Position is a world position with orientation.
type Position struct {
	X, Y, Z float32
	O       float32
}

// TargetMode selects how the host picks a target.
type TargetMode uint8

const (
	ModeVictim      TargetMode = iota // current victim
	ModeRandom                        // random hostile from the threat list
	ModeTopAggro                      // highest threat
	ModeBottomAggro                   // lowest threat
)

// TargetCriteria is passed to Query.SelectTarget.
type TargetCriteria struct {
	Mode     TargetMode
	Position int   // skip this many candidates (threat list offset)
	Entry    int32 // limit to this creature entry (0 = any)
}

// Outcome is the encounter status surfaced to the instance tracker.
type Outcome int32

const (
	OutcomeNotStarted Outcome = 0
	OutcomeInProgress Outcome = 1
	OutcomeFailed     Outcome = 2
	OutcomeDone       Outcome = 3
	OutcomeSpecial    Outcome = 4
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNotStarted:
		return "NOT_STARTED"
	case OutcomeInProgress:
		return "IN_PROGRESS"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeDone:
		return "DONE"
	case OutcomeSpecial:
		return "SPECIAL"
	default:
		return fmt.Sprintf("OUTCOME(%d)", int32(o))
	}
}
