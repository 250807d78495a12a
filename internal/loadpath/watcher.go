package loadpath

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/config"
)

// Watcher marks a LoadPath dirty when something changes in one of its
// directories. It never rescans by itself: the owner of the LoadPath picks
// the change up on its next Update.
type Watcher struct {
	mu      sync.Mutex
	lp      *LoadPath
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	onEvent func(fsnotify.Event)
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool

	events atomic.Int64
}

// NewWatcher creates a watcher for lp. onEvent, if not nil, is called from
// the watcher goroutine after each relevant event.
func NewWatcher(lp *LoadPath, logger *zap.Logger, onEvent func(fsnotify.Event)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		lp:      lp,
		watcher: fw,
		logger:  logger.Named("watcher"),
		onEvent: onEvent,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start watches every directory currently indexed by the load path and
// returns immediately. Call it after an Update so that class, package and
// private directories are known.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.lp.WatchDirs() {
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.logger.Debug("watching", zap.String("dir", dir))
	}

	go w.run(ctx)
	return nil
}

// Stop ends the watch and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing watcher", zap.Error(err))
	}
}

// Events counts the events that marked the path dirty.
func (w *Watcher) Events() int64 { return w.events.Load() }

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	// Directory events matter too: a new @class or private directory
	// changes what the path can resolve.
	if !config.HasFunctionFileExt(event.Name) && event.Op&fsnotify.Write != 0 {
		return
	}
	w.lp.MarkDirty()
	w.events.Add(1)
	w.logger.Debug("load path changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
	if w.onEvent != nil {
		w.onEvent(event)
	}
}
