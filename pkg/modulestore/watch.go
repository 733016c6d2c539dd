package modulestore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/calltrace/pkg/logging"
)

// reloadDelay batches the burst of events editors produce for one save
const reloadDelay = 100 * time.Millisecond

// Watch reloads the store whenever its backing file changes, until ctx is
// done. The directory is watched rather than the file so that atomic
// rename-on-save is picked up. onReload, if set, is called after every
// reload attempt with its result.
func (s *Store) Watch(ctx context.Context, onReload func(error)) error {
	if s.path == "" {
		return fmt.Errorf("module store has no backing file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	logging.Info("watching module file", "path", target)
	go s.processEvents(ctx, watcher, target, onReload)
	return nil
}

func (s *Store) processEvents(ctx context.Context, watcher *fsnotify.Watcher, target string, onReload func(error)) {
	defer watcher.Close()

	flushTimer := time.NewTimer(reloadDelay)
	flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			flushTimer.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				flushTimer.Reset(reloadDelay)
			}

		case <-flushTimer.C:
			err := s.Reload()
			if err != nil {
				logging.Warn("failed to reload module file", "path", target, "error", err)
			} else {
				logging.Debug("reloaded module file", "path", target, "sources", len(s.Sources()))
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}
