package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the burst of events editors produce on save.
const debounce = 200 * time.Millisecond

// Watch reloads the configuration whenever one of the files consulted by
// Load changes and calls fn with the new value. fn is only called when the
// reloaded Config differs from the previous one. Watch blocks until ctx is
// cancelled.
//
// Directories are watched rather than files so that atomic
// write-and-rename saves are seen.
func Watch(ctx context.Context, overridePath string, current Config, fn func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := make(map[string]bool)
	files := make(map[string]bool)
	for _, p := range Paths(overridePath) {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			slog.Debug("not watching config directory", "dir", dir, "error", err)
			continue
		}
		watched[dir] = true
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !files[abs] {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		case <-fire:
			fire = nil
			next, err := Load(overridePath)
			if err != nil {
				slog.Warn("ignoring invalid config change", "error", err)
				continue
			}
			if reflect.DeepEqual(*next, current) {
				continue
			}
			current = *next
			slog.Info("configuration changed")
			fn(current)
		}
	}
}
