// Package watch reloads the serving catalog when its artifact files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/vetrina/internal/core/services"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Reloader defaults.
const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultCloseDelay = 30 * time.Second
)

// LoadFunc builds a fresh, verified catalog from disk.
type LoadFunc func(ctx context.Context) (*services.IndexedCatalog, error)

// ReloadObserver records reload outcomes. Optional.
type ReloadObserver interface {
	ObserveReload(products int, err error)
}

// Config holds reloader settings.
type Config struct {
	// Dir is the artifact directory to watch.
	Dir string

	// Files are the base names that trigger a reload (index and metadata).
	Files []string

	// Debounce waits for writes to settle before loading.
	Debounce time.Duration

	// CloseDelay keeps a replaced catalog open so in-flight queries finish.
	CloseDelay time.Duration
}

// Reloader swaps a newly loaded catalog into the holder whenever the
// artifact files change. A failed load leaves the current catalog serving.
type Reloader struct {
	holder   *services.CatalogHolder
	load     LoadFunc
	observer ReloadObserver
	cfg      Config

	mu sync.Mutex // serialises reloads
}

// New creates a reloader. The observer may be nil.
func New(holder *services.CatalogHolder, load LoadFunc, observer ReloadObserver, cfg Config) *Reloader {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.CloseDelay < 0 {
		cfg.CloseDelay = 0
	} else if cfg.CloseDelay == 0 {
		cfg.CloseDelay = DefaultCloseDelay
	}
	return &Reloader{holder: holder, load: load, observer: observer, cfg: cfg}
}

// Reload loads a new catalog and installs it. The replaced catalog is
// closed after CloseDelay.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cat, err := r.load(ctx)
	if err != nil {
		logger.Warn("Catalog reload failed, keeping current catalog: %v", err)
		r.observe(0, err)
		return fmt.Errorf("reload catalog: %w", err)
	}

	old := r.holder.Swap(cat)
	r.observe(cat.Store().Size(), nil)
	logger.Info("Catalog reloaded: %d products", cat.Store().Size())

	if old != nil && old != cat {
		time.AfterFunc(r.cfg.CloseDelay, func() {
			if err := old.Close(); err != nil {
				logger.Warn("Failed to close replaced catalog: %v", err)
			}
		})
	}
	return nil
}

// Run watches the artifact directory until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.cfg.Dir, err)
	}
	logger.Debug("Watching %s for catalog changes", r.cfg.Dir)

	timer := time.NewTimer(r.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if r.relevant(ev) {
				logger.Debug("Catalog file changed: %s (%s)", ev.Name, ev.Op)
				timer.Reset(r.cfg.Debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Catalog watcher error: %v", err)
		case <-timer.C:
			_ = r.Reload(ctx)
		}
	}
}

// relevant reports whether ev creates or writes one of the artifact files.
func (r *Reloader) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return slices.Contains(r.cfg.Files, filepath.Base(ev.Name))
}

func (r *Reloader) observe(products int, err error) {
	if r.observer != nil {
		r.observer.ObserveReload(products, err)
	}
}
