package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"filesentry/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces editor write bursts before reloading.
const DefaultReloadDelay = 2 * time.Second

// SourceStore is the subset of the configuration store the watcher syncs
// into.
type SourceStore interface {
	Upsert(ctx context.Context, cfg *models.Configuration) error
	ListActive(ctx context.Context) ([]models.Configuration, error)
	Deactivate(ctx context.Context, id string, version int64) (bool, error)
}

// SourceWatcher hot-reloads the intake sources file. On every change it
// re-reads the file, upserts each definition into the store and deactivates
// definitions that disappeared, so the scheduler's next tick sees the new
// state without a restart. A file that fails validation is rejected whole
// and the previous state stays in effect.
type SourceWatcher struct {
	path        string
	store       SourceStore
	reloadDelay time.Duration
	logger      zerolog.Logger

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSourceWatcher creates a watcher for the sources file at path.
func NewSourceWatcher(path string, store SourceStore, logger zerolog.Logger) *SourceWatcher {
	return &SourceWatcher{
		path:        path,
		store:       store,
		reloadDelay: DefaultReloadDelay,
		logger:      logger.With().Str("component", "SourceWatcher").Logger(),
		stopChan:    make(chan struct{}),
	}
}

// Sync loads the sources file and reconciles the store against it.
func (w *SourceWatcher) Sync(ctx context.Context) error {
	configs, err := LoadSources(w.path)
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(configs))
	for i := range configs {
		wanted[configs[i].ID] = struct{}{}
		if err := w.store.Upsert(ctx, &configs[i]); err != nil {
			return fmt.Errorf("failed to upsert configuration %s: %w", configs[i].ID, err)
		}
	}

	active, err := w.store.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range active {
		if _, keep := wanted[cfg.ID]; keep {
			continue
		}
		if _, err := w.store.Deactivate(ctx, cfg.ID, cfg.Version); err != nil {
			return fmt.Errorf("failed to deactivate configuration %s: %w", cfg.ID, err)
		}
		w.logger.Info().Str("configuration_id", cfg.ID).Msg("Configuration removed from sources file, deactivated")
	}

	w.logger.Info().Int("configurations", len(configs)).Str("path", w.path).Msg("Sources synced")
	return nil
}

// Start performs an initial sync and then watches the file for changes
// until the context is cancelled or Stop is called.
func (w *SourceWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("source watcher is already running")
	}
	w.isRunning = true
	w.mu.Unlock()

	if err := w.Sync(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which drops the
	// watch when it is registered on the file itself.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.watcher = watcher

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watchLoop(ctx)
	}()

	w.logger.Info().Str("path", w.path).Msg("Source watcher started")
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *SourceWatcher) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.logger.Info().Msg("Source watcher stopped")
}

func (w *SourceWatcher) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(w.reloadDelay)
			} else {
				debounce.Reset(w.reloadDelay)
			}
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			if err := w.Sync(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Sources reload failed, keeping previous state")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")
		}
	}
}
