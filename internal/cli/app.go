package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alanmeadows/catcode/internal/assistant"
	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/journal"
	"github.com/alanmeadows/catcode/internal/metrics"
)

// ErrReported marks a command failure the user has already been notified
// about. main exits non-zero without printing it again.
var ErrReported = errors.New("command failed")

// openAssistant builds an Assistant for the loaded config together with
// its journal and metrics scope. The returned func releases all of them.
func openAssistant(ctx context.Context) (*assistant.Assistant, func(), error) {
	cfg := *appConfig

	var rec journal.Recorder = journal.Nop{}
	var store *journal.Store
	if cfg.Journal.IsEnabled() {
		s, err := journal.Open(ctx, config.ExpandHome(cfg.Journal.Path))
		if err != nil {
			// The journal is an audit aid; commands still run without it.
			slog.Warn("journal unavailable", "path", cfg.Journal.Path, "error", err)
		} else {
			store, rec = s, s
		}
	}

	scope, closer := metrics.NewRootScope(metrics.DefaultInterval)

	a, err := assistant.New(cfg, assistant.Deps{
		Dial:     assistant.DefaultDialer,
		Notifier: editor.NewTerminalNotifier(os.Stderr),
		Journal:  rec,
		Stats:    scope,
	})
	if err != nil {
		closer.Close()
		store.Close()
		return nil, nil, fmt.Errorf("creating assistant: %w", err)
	}

	release := func() {
		if err := a.Close(); err != nil {
			slog.Debug("closing session", "error", err)
		}
		if err := closer.Close(); err != nil {
			slog.Debug("flushing metrics", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.Debug("closing journal", "error", err)
		}
	}
	return a, release, nil
}

// reported converts an error the assistant already surfaced to the user.
func reported(err error) error {
	if err == nil {
		return nil
	}
	slog.Debug("command failed", "error", err)
	return ErrReported
}
