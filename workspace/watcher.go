package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher keeps an Indexer in sync with file system changes under the
// workspace roots. Bursts of events are debounced into one Sync call.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	indexer   *Indexer
	logger    *zap.Logger
	debounce  time.Duration
	onChange  func([]Change)

	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnChange registers a callback receiving the changes of each Sync.
func WithOnChange(fn func([]Change)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// NewWatcher creates a watcher feeding ix. Call Watch to start it.
func NewWatcher(ix *Indexer, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher: fsw,
		indexer:   ix,
		logger:    logger,
		debounce:  DefaultDebounce,
		pending:   make(map[string]time.Time),
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch adds every directory under the workspace roots and starts
// processing events in the background.
func (w *Watcher) Watch() error {
	for _, root := range w.indexer.Loader().Config().Roots() {
		err := w.watchRecursive(root)
		if err != nil {
			return err
		}
	}

	go w.run()

	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && w.skipDir(path) {
			return filepath.SkipDir
		}

		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			WatcherEventsTotal.Inc()
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}

			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if w.skipDir(event.Name) {
				return
			}

			err := w.watchRecursive(event.Name)
			if err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("path", event.Name), zap.Error(err))

				return
			}

			w.enqueueExistingFiles(event.Name)

			return
		}
	}

	if !w.indexer.Loader().Accepts(event.Name) {
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))

	for path := range w.pending {
		paths = append(paths, path)
	}

	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 || w.ctx.Err() != nil {
		return
	}

	slices.Sort(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()

	changes := w.indexer.Sync(w.ctx, paths)

	w.logger.Debug("Synced changed files", zap.Int("paths", len(paths)), zap.Int("changes", len(changes)))

	if w.onChange != nil && len(changes) > 0 {
		w.onChange(changes)
	}
}

func (w *Watcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}

	return w.indexer.Loader().Config().Excluded(w.indexer.Loader().rel(path))
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		if w.indexer.Loader().Accepts(path) {
			w.scheduleChange(path)
		}

		return nil
	})
}

// Close stops the watcher. Pending changes are dropped.
func (w *Watcher) Close() error {
	w.cancel()

	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()

	return w.fsWatcher.Close()
}
