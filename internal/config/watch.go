package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"liveconnect/internal/logging"
)

// WatchSettings calls onChange with the freshly loaded settings whenever the
// file at path is written or replaced. It watches the parent directory so
// editors that save via rename are still picked up. Blocks until ctx ends.
func WatchSettings(ctx context.Context, path string, logger *logging.Logger, onChange func(Settings)) error {
	if logger == nil {
		panic("config.WatchSettings: logger must not be nil")
	}
	if onChange == nil {
		return errors.New("settings change callback is required")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch settings directory %s: %w", dir, err)
	}
	logger.Debug("watching settings file", logging.Field("path", path))

	name := filepath.Base(path)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("stopping settings watcher: context canceled")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			settings, loadErr := LoadSettingsFrom(path)
			if loadErr != nil {
				// partial writes show up as invalid JSON; the next write event retries
				logger.Debug("settings reload skipped", logging.Field("error", loadErr))
				continue
			}
			logger.Debug("settings file changed", logging.Field("debug", settings.Debug))
			onChange(settings)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", logging.Field("error", watchErr))
		}
	}
}
