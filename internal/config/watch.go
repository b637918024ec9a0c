package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and hands valid results to onChange.
// It blocks until ctx is cancelled. Invalid files are logged and skipped.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("watch config: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-on-save keeps working.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	target := filepath.Clean(path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", slog.Any("error", err))
		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config reload rejected", slog.String("path", path), slog.Any("error", err))
				continue
			}
			logger.Info("config reloaded", slog.String("path", path))
			onChange(cfg)
		}
	}
}
