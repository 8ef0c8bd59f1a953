package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounceDelay is the delay before re-sending after a file change
const WatchDebounceDelay = 300 * time.Millisecond

func watchPaths(paths ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// watchAndRun calls run after changes to any of paths settle, until ctx is
// done. Parent directories are watched so editors that replace files on
// save still trigger a run.
func watchAndRun(ctx context.Context, w io.Writer, paths []string, logger *slog.Logger, run func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		targets[filepath.Clean(p)] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(w, "\nStopped watching.\n")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("file changed", "path", event.Name, "op", event.Op.String())
			debounce = time.After(WatchDebounceDelay)

		case <-debounce:
			debounce = nil
			fmt.Fprintf(w, "\n--- Change detected, re-sending ---\n\n")
			run()
			fmt.Fprintf(w, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
