// Package assistant wires the session supervisor, capability gate, request
// correlator and dispatcher into the user-facing commands. It is the
// boundary where every failure becomes a notification.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uber-go/tally"

	"github.com/alanmeadows/catcode/internal/capability"
	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/correlator"
	"github.com/alanmeadows/catcode/internal/dispatch"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/journal"
	"github.com/alanmeadows/catcode/internal/session"
	"github.com/alanmeadows/catcode/internal/task"
)

const refreshTimeout = 15 * time.Second

// Dialer builds the transport and admin client for one set of connection
// parameters. It must not perform I/O.
type Dialer func(ctx context.Context, cfg config.AssistantConfig) (catclient.Transport, catclient.API)

// DefaultDialer returns the websocket transport and HTTP admin client.
func DefaultDialer(ctx context.Context, cfg config.AssistantConfig) (catclient.Transport, catclient.API) {
	return catclient.NewWSTransport(cfg.WebSocketURL(), cfg.AuthKey),
		catclient.NewHTTPClient(ctx, cfg.HTTPBase(), cfg.AuthKey)
}

// Deps are the collaborators of an Assistant. Only Dial is required.
type Deps struct {
	Dial     Dialer
	Notifier editor.Notifier
	Journal  journal.Recorder
	Stats    tally.Scope
}

// Assistant runs commands against one live session.
type Assistant struct {
	dial       Dialer
	notify     editor.Notifier
	journal    journal.Recorder
	stats      tally.Scope
	dispatcher *dispatch.Dispatcher

	applyMu sync.Mutex

	mu  sync.Mutex
	cfg config.Config
	w   *wiring
}

// wiring is the set of components bound to one transport. A change of
// connection parameters replaces the whole set.
type wiring struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string

	sup  *session.Supervisor
	api  catclient.API
	corr *correlator.Correlator
	gate atomic.Pointer[capability.Gate]
}

// New creates an Assistant for cfg. No connection is made until Start or
// the first command.
func New(cfg config.Config, deps Deps) (*Assistant, error) {
	if deps.Dial == nil {
		deps.Dial = DefaultDialer
	}
	if deps.Notifier == nil {
		deps.Notifier = editor.NewTerminalNotifier(os.Stderr)
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Stats == nil {
		deps.Stats = tally.NoopScope
	}

	a := &Assistant{
		dial:       deps.Dial,
		notify:     deps.Notifier,
		journal:    deps.Journal,
		stats:      deps.Stats,
		dispatcher: dispatch.New(),
		cfg:        cfg,
	}
	w, err := a.build(cfg)
	if err != nil {
		return nil, err
	}
	a.w = w
	return a, nil
}

// Config returns the configuration currently in effect.
func (a *Assistant) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Start connects and waits for the first capability check.
func (a *Assistant) Start(ctx context.Context) error {
	return a.ensureConnected(ctx, a.current())
}

// Close tears the session down. A pending request is cancelled.
func (a *Assistant) Close() error {
	a.mu.Lock()
	w := a.w
	a.mu.Unlock()
	return w.shutdown("assistant closed")
}

// ApplyConfig switches to next. Connection or retry changes recreate the
// session; capability rule changes rebuild the gate; a model change is
// pushed to the assistant when enough is configured to do so.
func (a *Assistant) ApplyConfig(ctx context.Context, next config.Config) error {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	a.mu.Lock()
	prev, w := a.cfg, a.w
	a.mu.Unlock()

	switch {
	case prev.Assistant != next.Assistant || prev.Session != next.Session:
		nw, err := a.build(next)
		if err != nil {
			a.notify.Error(fmt.Sprintf("Configuration not applied: %v", err))
			return err
		}
		a.mu.Lock()
		a.cfg, a.w = next, nw
		a.mu.Unlock()

		slog.Info("connection settings changed, recreating session", "url", nw.url)
		if err := w.shutdown("connection settings changed"); err != nil {
			slog.Debug("closing previous session", "error", err)
		}
		if err := a.ensureConnected(ctx, nw); err != nil {
			return err
		}
		w = nw

	case !reflect.DeepEqual(prev.Capability, next.Capability):
		gate, err := a.newGate(next, w)
		if err != nil {
			a.notify.Error(fmt.Sprintf("Configuration not applied: %v", err))
			return err
		}
		a.mu.Lock()
		a.cfg = next
		a.mu.Unlock()

		w.gate.Store(gate)
		if w.sup.State() == session.Connected {
			a.refreshCapabilities(w)
		}

	default:
		a.mu.Lock()
		a.cfg = next
		a.mu.Unlock()
	}

	if prev.Model != next.Model && next.Model.CanSync() && w.sup.State() == session.Connected {
		if err := a.syncModel(ctx, w, next.Model); err != nil {
			return err
		}
		if _, err := w.gate.Load().RefreshLLM(ctx); err != nil {
			a.notify.Warn(fmt.Sprintf("Could not re-check the LLM configuration: %v", err))
			return err
		}
	}
	return nil
}

func (a *Assistant) current() *wiring {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w
}

func (a *Assistant) build(cfg config.Config) (*wiring, error) {
	ctx, cancel := context.WithCancel(context.Background())
	transport, api := a.dial(ctx, cfg.Assistant)

	w := &wiring{
		ctx:    ctx,
		cancel: cancel,
		url:    cfg.Assistant.WebSocketURL(),
		api:    api,
	}
	w.sup = session.New(transport, session.PolicyFromConfig(cfg.Session), a.stats)
	w.corr = correlator.New(w.sup, a.stats)

	gate, err := a.newGate(cfg, w)
	if err != nil {
		cancel()
		return nil, err
	}
	w.gate.Store(gate)
	w.sup.Subscribe(a.listen(w))
	return w, nil
}

func (a *Assistant) newGate(cfg config.Config, w *wiring) (*capability.Gate, error) {
	table, err := capability.LoadTable(cfg.Capability.Rules)
	if err != nil {
		return nil, err
	}
	return capability.New(w.api, w.sup, capability.Options{
		PluginID: cfg.Capability.PluginID,
		Table:    table,
		Stats:    a.stats,
	}), nil
}

// listen reacts to supervisor events. It runs on the supervisor's or the
// transport's goroutine and must not call Connect or Reset.
func (a *Assistant) listen(w *wiring) session.Listener {
	return func(ev session.Event) {
		switch ev.Kind {
		case session.EventConnected:
			slog.Info("connected to assistant", "url", w.url)
			a.refreshCapabilities(w)
		case session.EventFailed:
			a.notify.Error(fmt.Sprintf("Could not connect to the assistant at %s: %v. Run 'catcode connect' to retry.", w.url, ev.Err))
		case session.EventDisconnected:
			w.corr.Invalidate("connection lost: " + ev.Reason)
			a.notify.Warn("Lost the connection to the assistant, reconnecting.")
		case session.EventReset:
			w.corr.Invalidate("session reset")
		case session.EventTransportError:
			slog.Debug("transport error", "url", w.url, "error", ev.Err, "reason", ev.Reason)
			if _, ok := w.corr.Pending(); ok {
				w.corr.OnError(ev.Err.Error())
			}
		case session.EventMessage:
			w.corr.OnResponse(correlator.Envelope{
				Content:  ev.Message.Content,
				IsError:  ev.Message.IsError,
				TaskHint: taskHint(ev.Message.TaskHint),
			})
		}
	}
}

func (a *Assistant) refreshCapabilities(w *wiring) {
	ctx, cancel := context.WithTimeout(w.ctx, refreshTimeout)
	defer cancel()
	if _, err := w.gate.Load().Refresh(ctx); err != nil {
		if w.ctx.Err() != nil {
			return
		}
		slog.Warn("capability refresh failed", "error", err)
		a.notify.Warn(fmt.Sprintf("Could not check the assistant's capabilities: %v", err))
	}
}

// discard resets a session whose connection may still carry the reply to
// an abandoned request, so that reply cannot be matched to a later one.
func (w *wiring) discard(ctx context.Context, reason string) {
	if w.ctx.Err() != nil {
		return
	}
	slog.Info("resetting connection to discard an abandoned reply", "url", w.url, "reason", reason)
	if err := w.sup.Reset(ctx, reason); err != nil {
		slog.Debug("reconnect after discarding reply", "error", err)
	}
}

func (w *wiring) shutdown(reason string) error {
	w.corr.Invalidate(reason)
	w.cancel()
	return w.sup.Close()
}

// taskHint normalizes the task echoed by the service. An unknown value is
// kept as is so that it never matches a pending request.
func taskHint(raw string) task.Kind {
	if raw == "" {
		return ""
	}
	if k, err := task.Parse(raw); err == nil {
		return k
	}
	return task.Kind(raw)
}
