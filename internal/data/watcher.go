package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow swallows the burst of events editors produce for one save.
const debounceWindow = 100 * time.Millisecond

// Watcher reloads changed definition files into a Catalog.
type Watcher struct {
	watcher *fsnotify.Watcher
	loader  *Loader
	catalog *Catalog

	// OnReload, if set, is called after every reload attempt (err == nil on success).
	OnReload func(path string, err error)
}

// NewWatcher watches dirs on the OS filesystem. loader must read the same filesystem.
func NewWatcher(loader *Loader, catalog *Catalog, dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return &Watcher{watcher: w, loader: loader, catalog: catalog}, nil
}

// Run processes file events until ctx is canceled. Closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	slog.Info("definition watcher started", "dirs", w.watcher.WatchList())

	last := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			slog.Info("definition watcher stopping")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !IsDefinitionFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, seen := last[event.Name]; seen && now.Sub(t) < debounceWindow {
				continue
			}
			last[event.Name] = now
			w.reload(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("definition watcher", "error", err)
		}
	}
}

func (w *Watcher) reload(path string) {
	_, err := w.catalog.Reload(w.loader, path)
	if err != nil {
		slog.Error("definition reload rejected, keeping previous version", "path", path, "error", err)
	}
	if w.OnReload != nil {
		w.OnReload(path, err)
	}
}
