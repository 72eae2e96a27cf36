package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 250 * time.Millisecond

// ErrNoFile is returned by WatchFile when no automations file is configured.
var ErrNoFile = errors.New("automation: no automations file configured")

// WatchFile reloads the automation entities whenever the automations file
// changes on disk, until ctx ends.
//
// The parent directory is watched rather than the file so that editors
// which replace the file, and a file that does not exist yet, are both
// seen. Bursts of events are coalesced into a single reload.
func (s *Service) WatchFile(ctx context.Context) error {
	if s.opts.File == nil {
		return ErrNoFile
	}

	path, err := filepath.Abs(s.opts.File.Path())
	if err != nil {
		return fmt.Errorf("resolving automations file path: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return fmt.Errorf("creating automations directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go s.processFileEvents(ctx, watcher, path)

	s.log.Info("watching automations file", "path", path)
	return nil
}

func (s *Service) processFileEvents(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	timer := time.NewTimer(s.watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.log.Debug("automations file changed", "op", event.Op.String())
			timer.Reset(s.watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("automations file watcher error", "error", err)

		case <-timer.C:
			count, err := s.Reload()
			if err != nil {
				s.log.Warn("reloading automations after file change", "path", path, "error", err)
				continue
			}
			s.log.Info("automations reloaded after file change", "count", count)
		}
	}
}
