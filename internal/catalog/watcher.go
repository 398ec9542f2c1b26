package catalog

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever the reference-table file changes on disk.
// Events are debounced to coalesce editor write bursts. The watcher stops
// when ctx is cancelled. Reload failures keep the previous snapshot and are
// logged, not fatal: sessions keep the catalog they started with.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("catalog.watch.create_failed", "error", err)
		return err
	}

	// Watch the directory: editors replace files via rename, which drops a
	// watch on the file itself.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		s.logger.Error("catalog.watch.add_failed", "dir", dir, "error", err)
		_ = w.Close()
		return err
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		reload := func() {
			if err := s.Load(ctx); err != nil {
				s.logger.Warn("catalog.watch.reload_failed", "error", err)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != filepath.Clean(s.path) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce > 0 {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, reload)
				} else {
					reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error("catalog.watch.error", "error", err)
			}
		}
	}()

	s.logger.Info("catalog.watch.started", "path", s.path, "debounce", debounce.String())
	return nil
}
