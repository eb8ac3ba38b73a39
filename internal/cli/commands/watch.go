package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 150 * time.Millisecond

// watchScript runs a script file and runs it again after every change until
// ctx is cancelled. Each run gets a fresh engine so state left in an
// in-memory database does not leak into the next run.
func watchScript(ctx context.Context, cmdCtx *CommandContext, path string, args map[string]any, opts *RunOptions) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	r := cmdCtx.Renderer
	runOnce := func() {
		s, err := readScriptFile(abs)
		if err != nil {
			r.Error(err.Error())
			return
		}
		s.Args = args

		eng, err := createEngine(cmdCtx.Cfg, cmdCtx.Logger)
		if err != nil {
			r.Error(err.Error())
			return
		}
		defer func() { _ = eng.Close() }()

		// The outcome is already rendered; keep watching either way.
		if err := executeScript(ctx, eng, r, s, opts); err != nil {
			cmdCtx.Logger.Debug("watched run failed", "script", abs, "error", err.Error())
		}
	}

	runOnce()
	r.Muted(fmt.Sprintf("watching %s (ctrl-c to stop)", path))

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Warn("file watcher error", "error", err.Error())

		case <-timer.C:
			r.Println("")
			runOnce()
		}
	}
}
