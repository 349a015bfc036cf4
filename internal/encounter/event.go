package encounter

import "fmt"

// EventKind tags an Event variant.
type EventKind uint8

const (
	KindSignal EventKind = iota + 1
	KindUnitKilled
	KindSpellHit
	KindAreaEntered
)

func (k EventKind) String() string {
	switch k {
	case KindSignal:
		return "signal"
	case KindUnitKilled:
		return "unit_killed"
	case KindSpellHit:
		return "spell_hit"
	case KindAreaEntered:
		return "area_entered"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// EventKey selects reactions. ID narrows the kind (signal id, victim entry, spell, area);
// 0 matches any event of the kind.
type EventKey struct {
	Kind EventKind
	ID   int32
}

// Event is something the host reports to a running encounter.
type Event interface {
	Key() EventKey
}

// Signal is a custom AI signal declared by the encounter definition.
type Signal struct {
	ID      SignalID
	Sender  Ref
	Invoker Ref
	Value   int64
}

func (e Signal) Key() EventKey { return EventKey{Kind: KindSignal, ID: int32(e.ID)} }

// UnitKilled reports a kill made by or near the encounter owner.
type UnitKilled struct {
	Victim Ref
	Entry  int32
	Killer Ref
}

func (e UnitKilled) Key() EventKey { return EventKey{Kind: KindUnitKilled, ID: e.Entry} }

// SpellHit reports a spell landing on the encounter owner.
type SpellHit struct {
	Spell       AbilityID
	Caster      Ref
	CasterEntry int32
}

func (e SpellHit) Key() EventKey { return EventKey{Kind: KindSpellHit, ID: int32(e.Spell)} }

// AreaEntered reports a unit entering an area trigger.
type AreaEntered struct {
	Area int32
	Who  Ref
}

func (e AreaEntered) Key() EventKey { return EventKey{Kind: KindAreaEntered, ID: e.Area} }

// SignalKey is the key of the declared signal id.
func SignalKey(id SignalID) EventKey { return EventKey{Kind: KindSignal, ID: int32(id)} }

// KilledKey matches kills of the given creature entry (0 = any).
func KilledKey(entry int32) EventKey { return EventKey{Kind: KindUnitKilled, ID: entry} }

// SpellHitKey matches hits by the given spell (0 = any).
func SpellHitKey(spell AbilityID) EventKey { return EventKey{Kind: KindSpellHit, ID: int32(spell)} }

// AreaKey matches the given area trigger (0 = any).
func AreaKey(area int32) EventKey { return EventKey{Kind: KindAreaEntered, ID: area} }
