// Package correlator matches assistant replies to the request that caused
// them. At most one request is in flight; a second submission is rejected
// rather than queued.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uber-go/tally"

	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/task"
)

var (
	// ErrBusy is returned by Submit while another request is pending.
	ErrBusy = errors.New("another request is still in progress")
	// ErrCancelled resolves a request that was cancelled or invalidated.
	ErrCancelled = errors.New("request cancelled")
	// ErrAssistant resolves a request the assistant answered with an error.
	ErrAssistant = errors.New("assistant error")
	// ErrTransport resolves a request whose reply was lost to a transport
	// error. The connection may still deliver that reply later.
	ErrTransport = errors.New("transport error")
)

// PendingRequest is the single in-flight request.
type PendingRequest struct {
	ID           string
	Task         task.Kind
	OriginalText string
	Target       editor.Range
	SubmittedAt  time.Time
}

// Envelope is one reply from the assistant.
type Envelope struct {
	Content string
	IsError bool
	// TaskHint is the task the reply claims to answer, when known.
	TaskHint task.Kind
}

// Result is delivered exactly once per submitted request.
type Result struct {
	Request  PendingRequest
	Envelope Envelope
	Err      error
}

// Handle waits for a submitted request's Result.
type Handle struct {
	Request PendingRequest
	ch      chan Result
}

// Done returns a channel that receives the Result.
func (h *Handle) Done() <-chan Result { return h.ch }

// Wait blocks until the Result arrives or ctx is done. Abandoning the wait
// does not cancel the request; use Correlator.Cancel for that.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-h.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Sender delivers a request to the assistant.
type Sender interface {
	Send(ctx context.Context, req catclient.Request) error
}

type slot struct {
	req PendingRequest
	ch  chan Result
}

// Correlator owns the pending-request slot.
type Correlator struct {
	sender Sender
	stats  tally.Scope

	// sendMu is held from claiming the slot until Send returns, so an
	// Invalidate cannot fall between the two.
	sendMu  sync.Mutex
	mu      sync.Mutex
	pending *slot
}

// New creates a Correlator sending through sender. stats may be nil.
func New(sender Sender, stats tally.Scope) *Correlator {
	if stats == nil {
		stats = tally.NoopScope
	}
	return &Correlator{sender: sender, stats: stats.SubScope("correlator")}
}

// Submit claims the slot for req and sends payload. It fails with ErrBusy,
// leaving the pending request untouched, if the slot is taken.
func (c *Correlator) Submit(ctx context.Context, req PendingRequest, payload catclient.Request) (*Handle, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if c.pending != nil {
		busy := c.pending.req
		c.mu.Unlock()
		c.stats.Counter("busy").Inc(1)
		return nil, fmt.Errorf("%w: %s submitted at %s",
			ErrBusy, busy.Task.Label(), busy.SubmittedAt.Format(time.TimeOnly))
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	s := &slot{req: req, ch: make(chan Result, 1)}
	c.pending = s
	c.mu.Unlock()

	if err := c.sender.Send(ctx, payload); err != nil {
		c.mu.Lock()
		if c.pending == s {
			c.pending = nil
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("sending %s request: %w", req.Task, err)
	}

	c.stats.Counter("submitted").Inc(1)
	slog.Debug("request submitted", "id", req.ID, "task", req.Task)
	return &Handle{Request: req, ch: s.ch}, nil
}

// Pending returns the in-flight request, if any.
func (c *Correlator) Pending() (PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingRequest{}, false
	}
	return c.pending.req, true
}

// OnResponse resolves the pending request with env. A reply with no
// pending request, or whose task hint names another task, is dropped and
// reported false.
func (c *Correlator) OnResponse(env Envelope) bool {
	c.mu.Lock()
	s := c.pending
	if s == nil {
		c.mu.Unlock()
		c.stray("no pending request", env)
		return false
	}
	if env.TaskHint != "" && env.TaskHint != s.req.Task {
		c.mu.Unlock()
		c.stray("task mismatch", env, "pending_task", s.req.Task)
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	res := Result{Request: s.req, Envelope: env}
	if env.IsError {
		res.Err = fmt.Errorf("%w: %s", ErrAssistant, env.Content)
	}
	c.deliver(s, res)
	return true
}

// OnError resolves the pending request as failed with ErrTransport.
func (c *Correlator) OnError(reason string) bool {
	c.mu.Lock()
	s := c.pending
	c.pending = nil
	c.mu.Unlock()
	if s == nil {
		c.stray("transport error without pending request", Envelope{Content: reason, IsError: true})
		return false
	}

	c.deliver(s, Result{Request: s.req, Err: fmt.Errorf("%w: %s", ErrTransport, reason)})
	return true
}

// Cancel resolves the pending request with ErrCancelled if its ID is id.
func (c *Correlator) Cancel(id, reason string) bool {
	c.mu.Lock()
	s := c.pending
	if s == nil || s.req.ID != id {
		c.mu.Unlock()
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	c.deliver(s, Result{Request: s.req, Err: fmt.Errorf("%w: %s", ErrCancelled, reason)})
	return true
}

// Invalidate resolves whatever is pending with ErrCancelled. A reply that
// arrives for it later is a stray. It waits for a Submit that is still
// sending.
func (c *Correlator) Invalidate(reason string) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	s := c.pending
	c.pending = nil
	c.mu.Unlock()
	if s == nil {
		return false
	}

	slog.Info("pending request invalidated", "id", s.req.ID, "task", s.req.Task, "reason", reason)
	c.deliver(s, Result{Request: s.req, Err: fmt.Errorf("%w: %s", ErrCancelled, reason)})
	return true
}

func (c *Correlator) deliver(s *slot, res Result) {
	c.stats.Counter("resolved").Inc(1)
	s.ch <- res
}

func (c *Correlator) stray(why string, env Envelope, args ...any) {
	c.stats.Counter("stray_responses").Inc(1)
	attrs := append([]any{"reason", why, "is_error", env.IsError, "task_hint", env.TaskHint, "bytes", len(env.Content)}, args...)
	slog.Warn("dropping stray response", attrs...)
}
