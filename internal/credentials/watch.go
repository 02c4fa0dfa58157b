package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the credentials whenever the preferences document is
// written or replaced, so values saved by the host's own settings panel
// are picked up without a restart. Blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because
// atomic saves replace the file, which drops a watch on the old inode.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := os.MkdirAll(filepath.Dir(target), prefsDirPerm); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := s.Load(); err != nil {
				s.logger.Warn("reloading credentials failed",
					slog.String("path", s.path),
					slog.String("error", err.Error()),
				)

				continue
			}

			s.logger.Debug("credentials reloaded", slog.String("path", s.path))

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}

			s.logger.Warn("preferences watcher error", slog.String("error", err.Error()))
		}
	}
}
