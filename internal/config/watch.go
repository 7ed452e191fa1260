package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchModerationPolicy blocks until ctx ends, re-reading the policy file on
// every write and handing each valid version to apply. A malformed edit is
// logged and the previous policy stays in force. The parent directory is
// watched, not the file, so editors that replace the file atomically still
// trigger a reload.
func WatchModerationPolicy(ctx context.Context, path string, logger *slog.Logger, apply func(ModerationPolicy)) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch policy dir: %w", err)
	}

	target := filepath.Clean(path)
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
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			policy, err := LoadModerationPolicy(path)
			if err != nil {
				logger.Warn("moderation_policy_reload_failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			logger.Info("moderation_policy_reloaded",
				slog.Bool("enabled", policy.Enabled),
				slog.Float64("auto_approve_threshold", policy.AutoApproveThreshold),
			)
			apply(policy)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("policy_watcher_error", slog.String("error", err.Error()))
		}
	}
}
