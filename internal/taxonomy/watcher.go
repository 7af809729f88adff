package taxonomy

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads a taxonomy file on change. The apply callback receives
// a fully validated taxonomy; a file that fails to parse or validate is
// logged and the previous taxonomy stays in effect.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(*Taxonomy)
	logger  *zap.Logger
}

// NewWatcher creates a file watcher for the given taxonomy path.
func NewWatcher(path string, apply func(*Taxonomy), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("taxonomy: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("taxonomy: watch %q: %w", path, err)
	}
	return &Watcher{watcher: fw, path: path, apply: apply, logger: logger}, nil
}

// Run watches for writes and reloads the taxonomy. Blocks until ctx is
// cancelled. Writes are debounced: editors often emit several events per
// save, and the swap should happen once, on a complete file.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("taxonomy watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	t, err := Load(w.path)
	if err != nil {
		w.logger.Error("taxonomy reload failed, keeping previous taxonomy",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.apply(t)
	w.logger.Info("taxonomy reloaded", zap.String("path", w.path))
}
