// Package watch implements --watch: re-running a build whenever a
// terminal rule's underlying file changes. The debounced fsnotify event
// loop is adapted from the teacher's MangleWatcher (which does the same
// thing for .mg rule files), generalized from a fixed directory to an
// arbitrary set of watched paths and from "validate/repair" to "rerun a
// callback".
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Rebuild is invoked once per settled batch of filesystem changes.
type Rebuild func(ctx context.Context, changed []string) error

// Watcher watches the directories of a fixed set of paths (typically the
// outputs of a build's terminal rules) and calls Rebuild when a file in
// one of them changes, coalescing bursts of events that land within the
// debounce window into one call.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	logger      *zap.Logger
	debounce    time.Duration
	debounceMap map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New creates a Watcher over paths. Each path's containing directory is
// watched (fsnotify has no single-file watch primitive). Events are not
// filtered down to the paths given: a change to any file in a watched
// directory is reported.
func New(paths []string, logger *zap.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}

	return &Watcher{
		watcher:     fw,
		logger:      logger,
		debounce:    debounce,
		debounceMap: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Run blocks, invoking rebuild on every settled batch of changes, until
// ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context, rebuild Rebuild) error {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.debounceMap[event.Name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))

		case <-ticker.C:
			changed := w.settledEvents()
			if len(changed) == 0 {
				continue
			}
			w.logger.Debug("rebuilding on change", zap.Strings("changed", changed))
			if err := rebuild(ctx, changed); err != nil {
				w.logger.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) settledEvents() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var out []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounce {
			out = append(out, path)
			delete(w.debounceMap, path)
		}
	}
	return out
}

// Stop halts the watcher and releases its fsnotify handle.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	w.watcher.Close()
}
