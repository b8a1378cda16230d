// Package capability decides, from facts queried at runtime, whether a
// task can be offered: the assistant must have the plugin installed and
// must be configured with a model the task supports.
package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/uber-go/tally"
	"golang.org/x/sync/errgroup"

	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/session"
	"github.com/alanmeadows/catcode/internal/task"
)

// ErrCapabilityDenied is wrapped by every DeniedError.
var ErrCapabilityDenied = errors.New("capability denied")

// Reason says why a task was denied.
type Reason string

const (
	ReasonNotChecked        Reason = "not_checked"
	ReasonPluginMissing     Reason = "plugin_missing"
	ReasonUnknownConfig     Reason = "unknown_config"
	ReasonModelIncompatible Reason = "model_incompatible"
)

// DeniedError is returned by Check. Its message tells the user how to
// re-check, since capabilities may have changed on the service since the
// last refresh.
type DeniedError struct {
	Task   task.Kind
	Reason Reason
	Detail string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s is unavailable: %s. %s", e.Task.Label(), e.Detail, e.Hint())
}

func (e *DeniedError) Unwrap() error { return ErrCapabilityDenied }

// Hint names the command that re-queries the failing fact.
func (e *DeniedError) Hint() string {
	switch e.Reason {
	case ReasonPluginMissing:
		return "Install it on the assistant, then run 'catcode plugins' to re-check"
	case ReasonUnknownConfig, ReasonModelIncompatible:
		return "Select a supported model, then run 'catcode llm' to re-check"
	default:
		return "Run 'catcode connect' to check the assistant"
	}
}

// Snapshot is one consistent view of the capability facts. A Snapshot is
// never modified after it is published.
type Snapshot struct {
	PluginInstalled      bool
	ConfiguredModelName  string
	ConfiguredConfigKind string
	IsModelCompatible    bool
	SupportedTasks       []task.Kind
	PluginChecked        bool
	ModelChecked         bool
	CheckedAt            time.Time
}

// Checked reports whether both facts have been queried.
func (s *Snapshot) Checked() bool {
	return s != nil && s.PluginChecked && s.ModelChecked
}

// StateSource reports the session state. Capability queries require a
// connected session.
type StateSource interface {
	State() session.State
}

// Options configures a Gate.
type Options struct {
	PluginID string
	Table    Table
	Stats    tally.Scope
}

// Gate caches the capability snapshot and answers Check from it.
type Gate struct {
	api      catclient.API
	conn     StateSource
	pluginID string
	table    Table
	stats    tally.Scope
	now      func() time.Time

	snap atomic.Pointer[Snapshot]
}

// New creates a Gate with an unchecked snapshot.
func New(api catclient.API, conn StateSource, opts Options) *Gate {
	stats := opts.Stats
	if stats == nil {
		stats = tally.NoopScope
	}
	g := &Gate{
		api:      api,
		conn:     conn,
		pluginID: opts.PluginID,
		table:    opts.Table,
		stats:    stats.SubScope("capability"),
		now:      time.Now,
	}
	g.snap.Store(&Snapshot{})
	return g
}

// Snapshot returns the current snapshot.
func (g *Gate) Snapshot() *Snapshot {
	return g.snap.Load()
}

// Refresh queries both facts in parallel and publishes a new snapshot.
// On error the previous snapshot stays in place.
func (g *Gate) Refresh(ctx context.Context) (*Snapshot, error) {
	if err := g.requireConnected(); err != nil {
		return nil, err
	}

	var (
		plugins  *catclient.PluginList
		settings *catclient.LLMSettings
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		plugins, err = g.api.ListPlugins(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		settings, err = g.api.GetLLMSettings(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("refreshing capabilities: %w", err)
	}

	next := &Snapshot{}
	g.applyPlugins(next, plugins)
	g.applySettings(next, settings)
	return g.publish(next), nil
}

// RefreshPlugins re-queries only plugin presence.
func (g *Gate) RefreshPlugins(ctx context.Context) (*Snapshot, error) {
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	plugins, err := g.api.ListPlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing plugins: %w", err)
	}
	next := *g.snap.Load()
	g.applyPlugins(&next, plugins)
	return g.publish(&next), nil
}

// RefreshLLM re-queries only the model configuration.
func (g *Gate) RefreshLLM(ctx context.Context) (*Snapshot, error) {
	if err := g.requireConnected(); err != nil {
		return nil, err
	}
	settings, err := g.api.GetLLMSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing LLM settings: %w", err)
	}
	next := *g.snap.Load()
	g.applySettings(&next, settings)
	return g.publish(&next), nil
}

// Check reports whether k may run against the current snapshot. It makes
// no network calls; nil means allowed.
func (g *Gate) Check(k task.Kind) error {
	snap := g.snap.Load()
	if err := g.decide(snap, k); err != nil {
		g.stats.Tagged(map[string]string{"reason": string(err.Reason)}).Counter("denied").Inc(1)
		return err
	}
	return nil
}

func (g *Gate) decide(snap *Snapshot, k task.Kind) *DeniedError {
	switch {
	case !snap.Checked():
		return &DeniedError{Task: k, Reason: ReasonNotChecked, Detail: "capabilities have not been checked yet"}
	case !snap.PluginInstalled:
		return &DeniedError{Task: k, Reason: ReasonPluginMissing,
			Detail: fmt.Sprintf("the %q plugin is not installed on the assistant", g.pluginID)}
	case !g.table.KnowsKind(snap.ConfiguredConfigKind):
		kind := snap.ConfiguredConfigKind
		if kind == "" {
			kind = "none"
		}
		return &DeniedError{Task: k, Reason: ReasonUnknownConfig,
			Detail: fmt.Sprintf("the configured LLM kind %q is not supported", kind)}
	case !slices.Contains(snap.SupportedTasks, k):
		return &DeniedError{Task: k, Reason: ReasonModelIncompatible,
			Detail: fmt.Sprintf("the model %q (%s) does not support this task", snap.ConfiguredModelName, snap.ConfiguredConfigKind)}
	}
	return nil
}

func (g *Gate) requireConnected() error {
	if g.conn.State() != session.Connected {
		return fmt.Errorf("querying capabilities: %w", session.ErrNotConnected)
	}
	return nil
}

func (g *Gate) applyPlugins(s *Snapshot, plugins *catclient.PluginList) {
	s.PluginInstalled = plugins != nil && plugins.Has(g.pluginID)
	s.PluginChecked = true
}

func (g *Gate) applySettings(s *Snapshot, settings *catclient.LLMSettings) {
	s.ConfiguredConfigKind, s.ConfiguredModelName = "", ""
	if settings != nil {
		s.ConfiguredConfigKind = settings.SelectedConfiguration
		if sel, ok := settings.Selected(); ok {
			s.ConfiguredModelName = sel.ModelName()
		}
	}
	s.SupportedTasks = g.table.TasksFor(s.ConfiguredConfigKind, s.ConfiguredModelName)
	s.IsModelCompatible = len(s.SupportedTasks) > 0
	s.ModelChecked = true
}

func (g *Gate) publish(s *Snapshot) *Snapshot {
	s.CheckedAt = g.now()
	g.snap.Store(s)
	g.stats.Counter("refreshes").Inc(1)
	slog.Debug("capabilities refreshed",
		"plugin_installed", s.PluginInstalled,
		"config_kind", s.ConfiguredConfigKind,
		"model", s.ConfiguredModelName,
		"tasks", s.SupportedTasks,
	)
	return s
}
