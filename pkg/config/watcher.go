package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a configuration file for changes and reloads it,
// notifying registered listeners. Polling keeps the dependency surface
// small; the default interval is coarse enough for config files.
type Watcher struct {
	mu          sync.RWMutex
	path        string
	interval    time.Duration
	lastModTime time.Time
	config      *Config
	listeners   []func(*Config)
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher loads the initial config from path and prepares a watcher
// for it.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if info, err := os.Stat(path); err == nil {
		w.lastModTime = info.ModTime()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start begins watching until the context is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.changed() {
				w.reload()
			}
		}
	}
}

func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// Deleted or unreadable; keep the last loaded config.
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().After(w.lastModTime) {
		w.lastModTime = info.ModTime()
		return true
	}
	return false
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", slog.String("error", err.Error()))
		return
	}
	w.mu.Lock()
	w.config = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()
	w.logger.Info("config reloaded", slog.String("path", w.path))
	for _, fn := range listeners {
		fn(cfg)
	}
}
