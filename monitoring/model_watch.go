package monitoring

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ModelWatcher reports changes to the model artifact after it has been loaded. The
// running model is never swapped; a changed file only takes effect after a restart,
// and the watcher makes that drift visible in logs and metrics.
type ModelWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	metrics *Metrics
}

// WatchModel starts watching the directory holding path. Watching the directory
// rather than the file keeps working when the artifact is replaced by rename.
func WatchModel(path string, logger *zap.Logger, metrics *Metrics) (*ModelWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelWatcher{path: abs, watcher: w, logger: logger, metrics: metrics}, nil
}

// Run consumes events until ctx is done or the watcher is closed.
func (mw *ModelWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != mw.path {
				continue
			}
			op := eventOp(ev.Op)
			if op == "" {
				continue
			}
			mw.metrics.ModelFileEvent(op)
			mw.logger.Warn("model artifact changed on disk, restart to load it",
				zap.String("path", mw.path), zap.String("op", op))
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Error("model watcher error", zap.Error(err))
		}
	}
}

func (mw *ModelWatcher) Close() error {
	return mw.watcher.Close()
}

func eventOp(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	default:
		return ""
	}
}
