package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/rowbound/rowbound/internal/config"
	"github.com/rowbound/rowbound/internal/manifest"
)

// watchDebounce is how long the filesystem has to stay quiet after a
// change before the suite re-runs. Editors often emit several events for
// a single save.
const watchDebounce = 400 * time.Millisecond

// watchState tracks which paths matter to the current manifest. The set is
// refreshed after every pass because edits can add or remove data sources.
type watchState struct {
	manifest string
	sources  map[string]bool
}

// watchSuite runs the suite, then re-runs it whenever the manifest or one
// of its data sources changes, until ctx is cancelled. Failing runs and
// broken manifests keep the watch alive so the next save retries.
func watchSuite(ctx context.Context, opts *RunOptions, cfg *config.Config, logger *slog.Logger, manifestPath string, cmd *cobra.Command) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start file watcher", err)
	}
	defer watcher.Close()

	ws := &watchState{manifest: filepath.Clean(manifestPath)}
	ws.rearm(watcher, logger)

	runPass := func() {
		err := executeOnce(ctx, opts, cfg, logger, manifestPath, cmd)
		if err != nil && GetExitCode(err) == ExitCommandError {
			// Case failures were already rendered by executeOnce; only
			// command errors (bad manifest, unreadable ledger) need a line.
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		ws.rearm(watcher, logger)
		// Write-back rewrites source files during the pass. Drop the events
		// it raised so a run does not trigger itself.
		drainEvents(watcher)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (press Ctrl-C to stop)\n", manifestPath)
	runPass()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ws.relevant(event) {
				continue
			}
			logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			settle = time.After(watchDebounce)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", werr)

		case <-settle:
			settle = nil
			fmt.Fprintln(cmd.OutOrStdout())
			runPass()
		}
	}
}

// rearm points the watcher at the manifest directory plus every directory
// holding a declared source. Directories are watched rather than files
// because editors and write-back replace files, which drops file watches.
func (ws *watchState) rearm(watcher *fsnotify.Watcher, logger *slog.Logger) {
	ws.sources = make(map[string]bool)
	dirs := map[string]bool{filepath.Dir(ws.manifest): true}
	if m, err := manifest.Compile(ws.manifest); err == nil {
		for _, p := range m.SourcePaths() {
			p = filepath.Clean(p)
			ws.sources[p] = true
			dirs[filepath.Dir(p)] = true
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Debug("cannot watch directory", "dir", dir, "error", err)
		}
	}
}

// relevant reports whether the event touches the manifest or a bound
// source. Chmod-only events never trigger a run.
func (ws *watchState) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	path := filepath.Clean(event.Name)
	return path == ws.manifest || ws.sources[path]
}

// drainEvents discards everything queued on the watcher channels without
// blocking.
func drainEvents(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-watcher.Events:
		case <-watcher.Errors:
		default:
			return
		}
	}
}
