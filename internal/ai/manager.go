// Package ai drives running encounter scripts from the host side.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// ErrScriptNotFound is returned for an objectID with no registered script.
var ErrScriptNotFound = errors.New("script not registered")

// DefaultInterval is the tick period used when NewTickManager gets zero.
const DefaultInterval = 100 * time.Millisecond

// Scripted is a running script the manager ticks. Encounter controllers and every script
// wrapping one satisfy it.
type Scripted interface {
	Tick(delta time.Duration)
	Dispatch(ev encounter.Event) bool
	Done() bool
}

// entry pairs a script with the lock that keeps Tick and Dispatch apart.
type entry struct {
	mu     sync.Mutex
	script Scripted
}

// TickManager ticks all registered scripts
type TickManager struct {
	scripts     sync.Map // map[uint32]*entry: objectID → script
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	scriptCount atomic.Int32 // cached count of scripts (O(1) access)

	onDone func(objectID uint32, s Scripted)
}

// NewTickManager creates a tick manager firing every interval.
func NewTickManager(interval time.Duration) *TickManager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TickManager{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnDone sets fn to run, outside any script lock, when a script finishes. Finished scripts
// are unregistered. Call before Start.
func (m *TickManager) OnDone(fn func(objectID uint32, s Scripted)) {
	m.onDone = fn
}

// Register registers the script of objectID, replacing any previous one.
func (m *TickManager) Register(objectID uint32, s Scripted) {
	if _, loaded := m.scripts.Swap(objectID, &entry{script: s}); !loaded {
		m.scriptCount.Add(1)
	}
	slog.Debug("script registered", "objectID", objectID)
}

// Unregister unregisters the script of objectID
func (m *TickManager) Unregister(objectID uint32) {
	if _, ok := m.scripts.LoadAndDelete(objectID); !ok {
		return
	}
	m.scriptCount.Add(-1)
	slog.Debug("script unregistered", "objectID", objectID)
}

// Start runs the tick loop, passing the real time elapsed since the previous tick
// (blocks until context is canceled or Stop is called)
func (m *TickManager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("script tick manager started", "interval", m.interval)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("script tick manager stopping")
			return ctx.Err()

		case <-m.stopCh:
			slog.Info("script tick manager stopped")
			return nil

		case now := <-ticker.C:
			m.Step(now.Sub(last))
			last = now
		}
	}
}

// Stop stops the tick loop
func (m *TickManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Step ticks every registered script once with delta. Start calls it on every tick;
// simulations call it directly to run faster than real time.
func (m *TickManager) Step(delta time.Duration) {
	count := 0
	var finished []uint32

	m.scripts.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		e.script.Tick(delta)
		done := e.script.Done()
		e.mu.Unlock()

		count++
		if done {
			finished = append(finished, key.(uint32))
		}
		return true
	})

	for _, id := range finished {
		value, ok := m.scripts.LoadAndDelete(id)
		if !ok {
			continue
		}
		m.scriptCount.Add(-1)
		slog.Info("script finished", "objectID", id)
		if m.onDone != nil {
			m.onDone(id, value.(*entry).script)
		}
	}

	if count > 0 && encounter.IsDebugEnabled() {
		slog.Debug("script tick completed", "scripts", count, "delta", delta)
	}
}

// Dispatch delivers ev to the script of objectID, never concurrently with its tick.
func (m *TickManager) Dispatch(objectID uint32, ev encounter.Event) (bool, error) {
	value, ok := m.scripts.Load(objectID)
	if !ok {
		return false, fmt.Errorf("objectID %d: %w", objectID, ErrScriptNotFound)
	}
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.script.Dispatch(ev), nil
}

// With runs fn with the script of objectID locked against ticks and dispatches.
func (m *TickManager) With(objectID uint32, fn func(Scripted)) error {
	value, ok := m.scripts.Load(objectID)
	if !ok {
		return fmt.Errorf("objectID %d: %w", objectID, ErrScriptNotFound)
	}
	e := value.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.script)
	return nil
}

// Count returns number of registered scripts (O(1) cached count)
func (m *TickManager) Count() int {
	return int(m.scriptCount.Load())
}

// Get returns the script of objectID
func (m *TickManager) Get(objectID uint32) (Scripted, error) {
	value, ok := m.scripts.Load(objectID)
	if !ok {
		return nil, fmt.Errorf("objectID %d: %w", objectID, ErrScriptNotFound)
	}
	return value.(*entry).script, nil
}
