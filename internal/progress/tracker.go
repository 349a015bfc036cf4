// Package progress keeps the per-instance encounter progress values scripts read and write
// through encounter.Progress, persists them and announces outcome changes.
package progress

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// DefaultSaveInterval is how often RunSaveLoop flushes dirty values.
const DefaultSaveInterval = 5 * time.Minute

// Store provides persistence for progress values.
type Store interface {
	LoadProgress(ctx context.Context) ([]Row, error)
	SaveProgress(ctx context.Context, row Row) error
}

// Row is one persisted progress value.
type Row struct {
	InstanceID uint32
	Key        int32
	Value      int32
	UpdatedAt  time.Time
}

type slot struct {
	instance uint32
	key      int32
}

// entry tracks in-memory state for a single progress value.
type entry struct {
	value   int32
	updated time.Time
	dirty   bool
}

// Tracker holds progress values of every instance in memory and writes changed ones to
// the store.
//
// Values are kept per (instance, key). Set marks a value dirty; Flush and the periodic
// save loop write dirty values. Every change is published on TopicOutcome when a
// publisher is configured.
type Tracker struct {
	store Store
	pub   message.Publisher
	runID uuid.UUID

	mu      sync.RWMutex
	entries map[slot]*entry

	now func() time.Time
}

// NewTracker creates a tracker writing to store. pub may be nil.
func NewTracker(store Store, pub message.Publisher) *Tracker {
	return &Tracker{
		store:   store,
		pub:     pub,
		runID:   uuid.New(),
		entries: make(map[slot]*entry, 16),
		now:     time.Now,
	}
}

// RunID identifies this tracker in published outcome messages.
func (t *Tracker) RunID() uuid.UUID { return t.runID }

// Init loads persisted values. Values already set in memory win.
func (t *Tracker) Init(ctx context.Context) error {
	rows, err := t.store.LoadProgress(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	t.mu.Lock()
	for _, row := range rows {
		s := slot{row.InstanceID, row.Key}
		if _, ok := t.entries[s]; ok {
			continue
		}
		t.entries[s] = &entry{value: row.Value, updated: row.UpdatedAt}
	}
	t.mu.Unlock()

	slog.Info("progress tracker initialized", "loaded", len(rows), "run", t.runID)
	return nil
}

// Get returns the value of key in instance, zero if never set.
func (t *Tracker) Get(instance uint32, key int32) int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[slot{instance, key}]; ok {
		return e.value
	}
	return 0
}

// Set stores value and publishes the change. Setting the current value again is a no-op.
func (t *Tracker) Set(instance uint32, key, value int32) {
	t.mu.Lock()
	s := slot{instance, key}
	e, ok := t.entries[s]
	if ok && e.value == value || !ok && value == 0 {
		t.mu.Unlock()
		return
	}
	if !ok {
		e = &entry{}
		t.entries[s] = e
	}
	prev := e.value
	e.value = value
	e.updated = t.now()
	e.dirty = true
	at := e.updated
	t.mu.Unlock()

	if encounter.IsDebugEnabled() {
		slog.Debug("progress changed", "instance", instance, "key", key, "from", prev, "to", value)
	}
	t.publish(OutcomeChanged{
		RunID:      t.runID,
		InstanceID: instance,
		Key:        key,
		Previous:   encounter.Outcome(prev),
		Outcome:    encounter.Outcome(value),
		At:         at,
	})
}

// Len returns the number of tracked values.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Dirty returns the number of values changed since the last successful save.
func (t *Tracker) Dirty() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.dirty {
			n++
		}
	}
	return n
}

// Flush writes every dirty value. Values that fail to save stay dirty; all errors are
// reported.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.RLock()
	var rows []Row
	for s, e := range t.entries {
		if e.dirty {
			rows = append(rows, Row{InstanceID: s.instance, Key: s.key, Value: e.value, UpdatedAt: e.updated})
		}
	}
	t.mu.RUnlock()

	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Or(cmp.Compare(a.InstanceID, b.InstanceID), cmp.Compare(a.Key, b.Key))
	})

	var failed int
	var firstErr error
	for _, row := range rows {
		if err := t.store.SaveProgress(ctx, row); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			slog.Error("save progress", "instance", row.InstanceID, "key", row.Key, "error", err)
			continue
		}
		t.mu.Lock()
		// A newer Set keeps the entry dirty.
		if e := t.entries[slot{row.InstanceID, row.Key}]; e != nil && e.updated.Equal(row.UpdatedAt) && e.value == row.Value {
			e.dirty = false
		}
		t.mu.Unlock()
	}
	if firstErr != nil {
		return fmt.Errorf("save progress: %d of %d failed: %w", failed, len(rows), firstErr)
	}
	return nil
}

// RunSaveLoop periodically saves dirty progress values to the store.
// Blocks until context is canceled.
func (t *Tracker) RunSaveLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("progress save loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			// Final save before exit
			if err := t.Flush(context.WithoutCancel(ctx)); err != nil {
				slog.Error("final progress save", "error", err)
			}
			slog.Info("progress save loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				slog.Error("periodic progress save", "error", err)
			}
		}
	}
}

// Snapshot returns all values of instance by key.
func (t *Tracker) Snapshot(instance uint32) map[int32]int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int32]int32)
	for s, e := range t.entries {
		if s.instance == instance {
			out[s.key] = e.value
		}
	}
	return out
}

// Instances returns the ids of instances with tracked values, sorted.
func (t *Tracker) Instances() []uint32 {
	t.mu.RLock()
	seen := make(map[uint32]struct{})
	for s := range t.entries {
		seen[s.instance] = struct{}{}
	}
	t.mu.RUnlock()
	return slices.Sorted(maps.Keys(seen))
}

// Instance is the encounter.Progress view of one instance.
type Instance struct {
	t  *Tracker
	id uint32
}

var _ encounter.Progress = Instance{}

// ForInstance returns the view scripts of instance id read and write progress through.
func (t *Tracker) ForInstance(id uint32) Instance { return Instance{t: t, id: id} }

func (i Instance) GetProgress(key int32) int32  { return i.t.Get(i.id, key) }
func (i Instance) SetProgress(key, value int32) { i.t.Set(i.id, key, value) }

// ID returns the instance id.
func (i Instance) ID() uint32 { return i.id }
