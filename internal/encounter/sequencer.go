package encounter

import (
	"fmt"
	"time"
)

// Sequencer plays back at most one Sequence at a time. Surplus time carries over from
// one step to the next, so the firing order only depends on the total time advanced.
type Sequencer struct {
	sequences map[SequenceID]*Sequence

	current *Sequence
	cursor  int
	acc     time.Duration
	paused  bool
	gen     uint64 // bumped by Start and Abort
}

// NewSequencer returns an idle sequencer over the given sequence table.
func NewSequencer(sequences map[SequenceID]*Sequence) *Sequencer {
	return &Sequencer{sequences: sequences}
}

// Start aborts the active sequence, if any, and starts id from its first step.
func (q *Sequencer) Start(id SequenceID) error {
	seq, ok := q.sequences[id]
	if !ok || seq == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSequence, id)
	}
	q.gen++
	q.current = seq
	q.cursor = 0
	q.acc = 0
	q.paused = false
	return nil
}

// Abort drops the active sequence without firing anything.
func (q *Sequencer) Abort() {
	q.gen++
	q.current = nil
	q.cursor = 0
	q.acc = 0
	q.paused = false
}

// Pause freezes the active sequence; Advance is ignored until Resume.
func (q *Sequencer) Pause() { q.paused = q.current != nil }

// Resume continues a paused sequence.
func (q *Sequencer) Resume() { q.paused = false }

// Paused reports whether the sequencer is paused.
func (q *Sequencer) Paused() bool { return q.paused }

// Active reports whether a sequence is playing.
func (q *Sequencer) Active() bool { return q.current != nil }

// Current returns the active sequence id and the index of the next step.
func (q *Sequencer) Current() (SequenceID, int, bool) {
	if q.current == nil {
		return NoSequence, 0, false
	}
	return q.current.ID, q.cursor, true
}

// Advance adds delta and fires every step whose delay is covered, in order. When the
// last step fired the sequencer goes idle and the finished sequence is returned.
// If run starts another sequence or aborts this one, Advance stops right there.
func (q *Sequencer) Advance(delta time.Duration, run func(Step)) *Sequence {
	if q.current == nil || q.paused {
		return nil
	}
	q.acc += delta

	for q.current != nil && !q.paused {
		seq := q.current
		step := seq.Steps[q.cursor]
		if q.acc < step.Delay {
			return nil
		}
		q.acc -= step.Delay
		q.cursor++
		last := q.cursor == len(seq.Steps)
		if last {
			q.current = nil
			q.cursor = 0
			q.acc = 0
		}

		gen := q.gen
		run(step)

		if last {
			return seq
		}
		if q.gen != gen {
			return nil
		}
	}
	return nil
}
