package sim

import "github.com/udisondev/scriptdev/internal/encounter"

// NoticeKind tags a Notice.
type NoticeKind uint8

const (
	NoticeSpawned  NoticeKind = iota + 1 // a creature was spawned
	NoticeWaypoint                       // the scripted unit reached its move point
	NoticeSignal                         // a spell script raised a declared signal
)

// Notice is something the world did that the running script should hear about.
type Notice struct {
	Kind   NoticeKind
	Ref    encounter.Ref
	Entry  int32
	Signal string
}
