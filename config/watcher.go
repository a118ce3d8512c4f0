package config

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/utils"
)

// DefaultWatchDebounce is how long a config file must stay unchanged before it is re-read.
const DefaultWatchDebounce = 250 * time.Millisecond

// A Watcher re-reads a config file when it changes on disk and publishes every valid config
// that differs from the last one. Invalid configs are logged and skipped.
type Watcher struct {
	path   string
	logger logging.Logger

	fsWatcher *fsnotify.Watcher
	debounced func(func())
	workers   utils.StoppableWorkers
	configs   chan *Config

	mu   sync.Mutex
	last *Config
}

// NewWatcher watches filePath. initial is the config currently in use, if any; only configs
// that differ from it are published.
func NewWatcher(filePath string, initial *Config, debounceAfter time.Duration, logger logging.Logger) (*Watcher, error) {
	if debounceAfter <= 0 {
		debounceAfter = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot watch config")
	}
	// editors commonly replace the file, so the directory is watched.
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		//nolint:errcheck
		fsWatcher.Close()
		return nil, errors.Wrapf(err, "cannot watch config directory of %s", abs)
	}

	w := &Watcher{
		path:      abs,
		logger:    logger,
		fsWatcher: fsWatcher,
		debounced: debounce.New(debounceAfter),
		configs:   make(chan *Config, 1),
		last:      initial,
	}
	w.workers = utils.NewStoppableWorkers(w.watch)
	return w, nil
}

// Configs returns the channel new configs are published on. Only the newest unread config is
// kept.
func (w *Watcher) Configs() <-chan *Config {
	return w.configs
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
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
			w.debounced(func() { w.reload(ctx) })
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := Read(ctx, w.path, w.logger)
	if err != nil {
		w.logger.Warnw("ignoring config change", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last != nil && sameConfig(w.last, cfg) {
		return
	}
	w.last = cfg
	select {
	case <-w.configs:
	default:
	}
	w.configs <- cfg
	w.logger.Infow("config changed", "path", w.path)
}

// sameConfig compares two configs ignoring where they were read from.
func sameConfig(a, b *Config) bool {
	ac, bc := *a, *b
	ac.ConfigFilePath, bc.ConfigFilePath = "", ""
	return reflect.DeepEqual(ac, bc)
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
