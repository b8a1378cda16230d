package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanmeadows/catcode/internal/capability"
	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/correlator"
	"github.com/alanmeadows/catcode/internal/dispatch"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/journal"
	"github.com/alanmeadows/catcode/internal/session"
	"github.com/alanmeadows/catcode/internal/task"
)

// Status is a point-in-time view of the assistant.
type Status struct {
	URL          string
	Session      session.Status
	Capabilities *capability.Snapshot
	Pending      *correlator.PendingRequest
}

// Status reports the session, the capability snapshot and any pending request.
func (a *Assistant) Status() Status {
	w := a.current()
	st := Status{
		URL:          w.url,
		Session:      w.sup.Status(),
		Capabilities: w.gate.Load().Snapshot(),
	}
	if p, ok := w.corr.Pending(); ok {
		st.Pending = &p
	}
	return st
}

// RefreshConnection forces a reset and reconnect. Any pending request is
// cancelled and its late reply is dropped.
func (a *Assistant) RefreshConnection(ctx context.Context) error {
	w := a.current()
	if err := w.sup.Reset(ctx, "refresh requested"); err != nil {
		a.notifyConnectErr(err)
		return err
	}
	a.notify.Info(fmt.Sprintf("Connected to the assistant at %s.", w.url))
	return nil
}

// FetchPlugins re-checks whether the assistant plugin is installed.
func (a *Assistant) FetchPlugins(ctx context.Context) (*capability.Snapshot, error) {
	w := a.current()
	if err := a.ensureConnected(ctx, w); err != nil {
		return nil, err
	}
	snap, err := w.gate.Load().RefreshPlugins(ctx)
	if err != nil {
		a.notify.Error(fmt.Sprintf("Could not list the assistant's plugins: %v", err))
		return nil, err
	}

	id := a.Config().Capability.PluginID
	if snap.PluginInstalled {
		a.notify.Info(fmt.Sprintf("The %q plugin is installed.", id))
	} else {
		a.notify.Warn(fmt.Sprintf("The %q plugin is not installed on the assistant.", id))
	}
	return snap, nil
}

// FetchLLM re-checks the assistant's model configuration. With sync set the
// configured model is pushed to the assistant first.
func (a *Assistant) FetchLLM(ctx context.Context, sync bool) (*capability.Snapshot, error) {
	w := a.current()
	if err := a.ensureConnected(ctx, w); err != nil {
		return nil, err
	}
	if sync {
		model := a.Config().Model
		if !model.CanSync() {
			err := errors.New("model.config_kind, model.name and model.api_key must all be set to sync")
			a.notify.Warn(fmt.Sprintf("Model not synced: %v", err))
			return nil, err
		}
		if err := a.syncModel(ctx, w, model); err != nil {
			return nil, err
		}
	}

	snap, err := w.gate.Load().RefreshLLM(ctx)
	if err != nil {
		a.notify.Error(fmt.Sprintf("Could not read the assistant's LLM settings: %v", err))
		return nil, err
	}

	switch {
	case snap.ConfiguredConfigKind == "":
		a.notify.Warn("The assistant has no LLM configured.")
	case snap.IsModelCompatible:
		a.notify.Info(fmt.Sprintf("%s (%s) supports: %s.",
			displayModel(snap), snap.ConfiguredConfigKind, labels(snap.SupportedTasks)))
	default:
		a.notify.Warn(fmt.Sprintf("%s (%s) is not supported for code tasks.",
			displayModel(snap), snap.ConfiguredConfigKind))
	}
	return snap, nil
}

// CommentSelection asks the assistant to comment the selected code and
// replaces the selection with the result.
func (a *Assistant) CommentSelection(ctx context.Context, doc editor.Document) error {
	return a.Run(ctx, task.Comment, doc)
}

// GenerateFunction asks the assistant to implement the selected signature
// and appends the result below it.
func (a *Assistant) GenerateFunction(ctx context.Context, doc editor.Document) error {
	return a.Run(ctx, task.GenerateFunction, doc)
}

// Run executes k on the selection of doc. The document is modified only
// after the reply has been interpreted successfully. Every outcome is
// reported to the user and recorded in the journal.
func (a *Assistant) Run(ctx context.Context, k task.Kind, doc editor.Document) error {
	start := time.Now()
	w := a.current()
	rec := journal.Entry{Task: string(k)}
	record := func(outcome journal.Outcome, err error) {
		rec.Outcome = outcome
		rec.Duration = time.Since(start)
		if err != nil {
			rec.Detail = err.Error()
		}
		a.record(ctx, rec)
	}

	if err := a.ensureConnected(ctx, w); err != nil {
		record(journal.Failed, err)
		return err
	}

	gate := w.gate.Load()
	snap := gate.Snapshot()
	rec.ConfigKind, rec.Model = snap.ConfiguredConfigKind, snap.ConfiguredModelName
	if err := gate.Check(k); err != nil {
		a.notify.Warn(err.Error())
		record(journal.Denied, err)
		return err
	}

	sel, err := doc.Selection(ctx)
	if err != nil {
		a.notify.Error(fmt.Sprintf("%s: could not read the selection: %v", k.Label(), err))
		record(journal.Failed, err)
		return err
	}
	rec.Path, rec.Range = sel.Path, sel.Range.String()

	pending, payload, err := a.dispatcher.BuildRequest(k, sel)
	if err != nil {
		a.notify.Warn(fmt.Sprintf("%s: %v.", k.Label(), err))
		record(journal.Failed, err)
		return err
	}
	rec.RequestID = pending.ID

	h, err := w.corr.Submit(ctx, pending, payload)
	if err != nil {
		if errors.Is(err, correlator.ErrBusy) {
			a.notify.Warn(fmt.Sprintf("%s was not started: %v.", k.Label(), err))
			record(journal.Busy, err)
		} else {
			a.notify.Error(fmt.Sprintf("%s could not be sent: %v", k.Label(), err))
			record(journal.Failed, err)
		}
		return err
	}

	res := a.await(ctx, w, h)
	if res.Err != nil {
		if errors.Is(res.Err, correlator.ErrCancelled) {
			a.notify.Warn(fmt.Sprintf("%s was cancelled (%v). The document was not changed.", k.Label(), res.Err))
			record(journal.Cancelled, res.Err)
		} else {
			a.notify.Error(fmt.Sprintf("%s failed: %v", k.Label(), res.Err))
			record(journal.Failed, res.Err)
		}
		return res.Err
	}

	edit, err := a.dispatcher.Interpret(res.Request, res.Envelope)
	if err != nil {
		if errors.Is(err, dispatch.ErrMalformedResponse) {
			a.notify.Warn(fmt.Sprintf("%s: the assistant's reply could not be used, the selection was left unchanged.", k.Label()))
			record(journal.Malformed, err)
		} else {
			a.notify.Error(fmt.Sprintf("%s failed: %v", k.Label(), err))
			record(journal.Failed, err)
		}
		return err
	}

	if err := doc.Apply(ctx, edit); err != nil {
		if errors.Is(err, editor.ErrStaleSelection) {
			a.notify.Warn(fmt.Sprintf("%s: the selection changed while waiting for the assistant, the edit was not applied.", k.Label()))
			record(journal.Stale, err)
		} else {
			a.notify.Error(fmt.Sprintf("%s: could not apply the edit: %v", k.Label(), err))
			record(journal.Failed, err)
		}
		return err
	}

	if _, ok := doc.(*editor.PreviewDocument); ok {
		record(journal.Previewed, nil)
		return nil
	}
	a.notify.Info(fmt.Sprintf("%s applied to %s.", k.Label(), describe(sel)))
	record(journal.Applied, nil)
	return nil
}

// await waits for the result of h. It posts a notice every wait_notice and
// cancels the request after request_timeout or when ctx is done; the
// result is always delivered through h. A request given up on this way, or
// lost to a transport error, resets the session before await returns.
func (a *Assistant) await(ctx context.Context, w *wiring, h *correlator.Handle) correlator.Result {
	cfg := a.Config().Session

	var notice <-chan time.Time
	if d := cfg.ParseWaitNotice(); d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		notice = t.C
	}
	var timeout <-chan time.Time
	limit := cfg.ParseRequestTimeout()
	if limit > 0 {
		t := time.NewTimer(limit)
		defer t.Stop()
		timeout = t.C
	}

	for {
		select {
		case res := <-h.Done():
			if errors.Is(res.Err, correlator.ErrTransport) {
				w.discard(ctx, "reply lost to a transport error")
			}
			return res
		case <-notice:
			elapsed := time.Since(h.Request.SubmittedAt).Round(time.Second)
			a.notify.Info(fmt.Sprintf("Still waiting for the assistant (%s, %s).", h.Request.Task.Label(), elapsed))
		case <-timeout:
			timeout = nil
			if w.corr.Cancel(h.Request.ID, fmt.Sprintf("no reply after %s", limit)) {
				w.discard(ctx, "request timed out")
			}
		case <-ctx.Done():
			if w.corr.Cancel(h.Request.ID, "command interrupted") {
				w.discard(ctx, "command interrupted")
			}
			return <-h.Done()
		}
	}
}

func (a *Assistant) ensureConnected(ctx context.Context, w *wiring) error {
	err := w.sup.Connect(ctx)
	if err != nil {
		a.notifyConnectErr(err)
	}
	return err
}

func (a *Assistant) notifyConnectErr(err error) {
	switch {
	case errors.Is(err, session.ErrConnectionFailed):
		// Reported by the EventFailed listener.
	case errors.Is(err, session.ErrSessionFailed):
		a.notify.Error("The connection to the assistant has failed. Run 'catcode connect' to retry.")
	default:
		a.notify.Error(fmt.Sprintf("Could not connect to the assistant: %v", err))
	}
}

func (a *Assistant) syncModel(ctx context.Context, w *wiring, m config.ModelConfig) error {
	value := map[string]any{"model_name": m.Name}
	value[apiKeyField(m.ConfigKind)] = m.APIKey
	if err := w.api.UpsertLLMSetting(ctx, m.ConfigKind, value); err != nil {
		a.notify.Error(fmt.Sprintf("Could not update the assistant's LLM setting: %v", err))
		return err
	}
	slog.Info("LLM setting synced", "config_kind", m.ConfigKind, "model", m.Name)
	return nil
}

func (a *Assistant) record(ctx context.Context, e journal.Entry) {
	if err := a.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("journal write failed", "error", err)
	}
}

// apiKeyField is the settings key holding the provider credential.
func apiKeyField(configKind string) string {
	switch configKind {
	case "LLMOpenAIChatConfig", "LLMOpenAIConfig", "LLMAzureChatOpenAIConfig", "LLMAzureOpenAIConfig":
		return "openai_api_key"
	case "LLMAnthropicChatConfig":
		return "anthropic_api_key"
	case "LLMGeminiChatConfig":
		return "google_api_key"
	}
	return "api_key"
}

func displayModel(s *capability.Snapshot) string {
	if s.ConfiguredModelName == "" {
		return "The configured model"
	}
	return fmt.Sprintf("%q", s.ConfiguredModelName)
}

func labels(kinds []task.Kind) string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Label()
	}
	return strings.Join(out, ", ")
}

func describe(sel editor.Selection) string {
	if sel.Path == "" {
		return "lines " + sel.Range.String()
	}
	return fmt.Sprintf("%s %s", sel.Path, sel.Range)
}
