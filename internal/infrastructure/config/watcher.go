package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jbctechsolutions/connectsync/internal/infrastructure/logging"
)

// DefaultWatchDebounce absorbs the burst of events an editor save produces.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes and hands valid configs
// to subscribers. Invalid files are logged and ignored.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	loader    *Loader
	path      string
	debounce  time.Duration
	logger    *logging.Logger

	subsMu sync.Mutex
	subs   []func(*Config)

	pendingMu sync.Mutex
	pending   time.Time // zero when nothing is pending

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewWatcher creates a watcher for path. An empty path watches the loader's
// default file.
func NewWatcher(loader *Loader, path string, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = loader.DefaultConfigPath()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsWatcher: fsWatcher,
		loader:    loader,
		path:      filepath.Clean(path),
		debounce:  debounce,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Subscribe registers fn to receive every successfully reloaded config.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	w.subs = append(w.subs, fn)
}

// Start watches the file's directory. Editors often replace the file
// rather than write it, so the directory is watched and events are
// filtered by name.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.debounceProcessor()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.pendingMu.Lock()
			w.pending = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) debounceProcessor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if w.takeStable() {
				w.reload()
			}
		}
	}
}

// takeStable reports whether a pending change has been quiet for the
// debounce interval, clearing it if so.
func (w *Watcher) takeStable() bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) reload() {
	cfg, err := w.loader.LoadFromFile(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "error", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("reloaded config is invalid, keeping previous", "path", w.path, "error", err.Error())
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	w.subsMu.Lock()
	subs := append([]func(*Config){}, w.subs...)
	w.subsMu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
}
