package appshell

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"carehub/internal/common/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher serves the current config and reloads it when the file changes.
// A reload that fails validation keeps the previous config.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   logger.Logger

	mu      sync.RWMutex
	current *Config

	fsw  *fsnotify.Watcher
	done chan struct{}
}

func NewWatcher(path string, log logger.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		debounce: 200 * time.Millisecond,
		logger:   log,
		current:  cfg,
	}, nil
}

func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start watches the file's directory so editors that replace the file by
// rename are picked up. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.done = make(chan struct{})

	go w.run(ctx)
	return nil
}

// Stop blocks until the watch loop exits.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	w.fsw.Close()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	target := filepath.Clean(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("app shell watcher error", map[string]interface{}{"error": err})
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("app shell reload rejected", map[string]interface{}{
			"path":  w.path,
			"error": err,
		})
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.logger.Info("app shell config reloaded", map[string]interface{}{
		"path":    w.path,
		"version": cfg.Version,
	})
}
