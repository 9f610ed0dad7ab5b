// Package config provides configuration management for the Aperture backend.
// This file implements hot reloading of the tunables file in development.
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the tunables file and hot reloads it on change.
// This is only enabled in development environments.
type Watcher struct {
	config    *Config
	callbacks []func(Tunables)
	mu        sync.RWMutex
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// NewWatcher creates a new tunables watcher. Outside development, or when
// no tunables file is configured, the watcher is inert.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		config: initial,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if !initial.IsDevelopment() || initial.TunablesFile == "" {
		logger.Info("Tunables hot reloading disabled",
			zap.String("environment", initial.Environment),
		)
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = fsWatcher

	// Watch the directory rather than the file so editor save-and-rename
	// sequences keep the watch alive.
	dir := filepath.Dir(initial.TunablesFile)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch tunables directory: %w", err)
	}

	go w.watchLoop()

	logger.Info("Tunables hot reloading enabled",
		zap.String("file", initial.TunablesFile),
	)
	return w, nil
}

// OnReload registers a callback invoked with the new tunables after a reload
func (w *Watcher) OnReload(fn func(Tunables)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Tunables returns the current tunables snapshot
func (w *Watcher) Tunables() Tunables {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config.Tunables
}

// Stop shuts down the watcher
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.config.TunablesFile) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Tunables watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	updated := w.config.Tunables
	if err := updated.LoadFile(w.config.TunablesFile); err != nil {
		w.mu.Unlock()
		w.logger.Warn("Failed to reload tunables", zap.Error(err))
		return
	}
	w.config.Tunables = updated
	callbacks := make([]func(Tunables), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Tunables reloaded",
		zap.Int("feedPageSize", updated.FeedPageSize),
		zap.Int("activityPageSize", updated.ActivityPageSize),
	)

	for _, fn := range callbacks {
		fn(updated)
	}
}
