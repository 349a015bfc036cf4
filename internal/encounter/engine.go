package encounter

import "time"

// Caster invokes abilities. TryCast never blocks; false means the cast was rejected
// (busy, out of range, invalid target) and the caller should retry later.
type Caster interface {
	TryCast(ability AbilityID, target Ref) bool
}

// Spawner creates helper entities.
type Spawner interface {
	Spawn(template int32, pos Position, flags SpawnFlags) (Ref, bool)
}

// Messenger emits scripted text.
type Messenger interface {
	Say(line LineID, speaker Ref)
	Broadcast(line LineID, source, recipient Ref)
}

// World changes zone environment and client-visible world counters.
type World interface {
	SetEnvironmentState(zone, state int32, fade time.Duration)
	SetWorldCounter(counter, value int32)
}

// Progress exposes the instance data used for outcome flags.
type Progress interface {
	GetProgress(key int32) int32
	SetProgress(key, value int32)
}

// Query reads the scripted unit's view of the world.
type Query interface {
	Self() Ref
	SelectTarget(c TargetCriteria) (Ref, bool)
	HealthFraction() float64
}

// Engine is everything an encounter script may ask of the host.
type Engine interface {
	Caster
	Spawner
	Messenger
	World
	Progress
	Query
}
