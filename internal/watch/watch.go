// Package watch runs a callback whenever a file is written.
//
// Signup exports are usually saved over the previous download, often in
// several writes. Events for the file are coalesced until the file has been
// quiet for the debounce interval, then the callback runs once.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/racereg/internal/logging"
)

// File calls fn after every settled change to path until ctx is done. The
// parent directory is watched so that editors which replace the file by
// rename are handled. Errors from fn are logged and do not stop the watch.
func File(ctx context.Context, path string, debounce time.Duration, fn func(context.Context) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	logger := logging.FromContext(ctx)
	logger.Info("watching for changes", "file", target, "debounce", debounce)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-timer.C:
			if err := fn(ctx); err != nil {
				logger.Error("import after change failed", "file", target, "error", err)
			}
		}
	}
}
