package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uber-go/tally"

	"github.com/alanmeadows/catcode/internal/catclient"
)

var errInterrupted = fmt.Errorf("connection attempt interrupted: %w", ErrNotConnected)

// Supervisor owns the lifecycle of one session over a Transport.
//
// Disconnected --Connect--> Connecting --ok--> Connected
// Connecting --fail, budget left--> Connecting
// Connecting --fail, budget spent--> Failed
// Connected --drop--> Connecting
// any --Reset--> Disconnected --> Connecting
type Supervisor struct {
	transport catclient.Transport
	policy    RetryPolicy
	stats     tally.Scope

	mu         sync.Mutex
	state      State
	retryCount int
	lastErr    error
	gen        uint64
	cancel     context.CancelFunc
	current    *attempt
	listeners  []Listener
}

// attempt is one connect sequence. err is written before done is closed.
type attempt struct {
	done chan struct{}
	err  error
}

// New creates a Supervisor and installs itself as the transport's event
// handler. stats may be nil.
func New(transport catclient.Transport, policy RetryPolicy, stats tally.Scope) *Supervisor {
	if stats == nil {
		stats = tally.NoopScope
	}
	s := &Supervisor{
		transport: transport,
		policy:    policy,
		stats:     stats.SubScope("session"),
	}
	transport.SetHandler(s.handleTransport)
	return s
}

// Subscribe registers a listener for every subsequent event.
func (s *Supervisor) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current state together with the retry counters.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:      s.state,
		RetryCount: s.retryCount,
		MaxRetries: s.policy.budget(),
		LastError:  s.lastErr,
	}
}

// Connect starts a session and blocks until it is Connected or Failed, or
// ctx is done. Cancelling ctx abandons the wait, not the attempts.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connected:
		s.mu.Unlock()
		return nil
	case Failed:
		s.mu.Unlock()
		return ErrSessionFailed
	case Connecting:
		a := s.current
		s.mu.Unlock()
		return s.wait(ctx, a)
	}

	a := s.beginLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventStateChanged, From: Disconnected, To: Connecting})
	s.startLoop(a)
	return s.wait(ctx, a)
}

// Reset tears the session down, raises EventReset while the session is
// Disconnected, and connects again. Listeners handling EventReset run
// before any reconnect attempt.
func (s *Supervisor) Reset(ctx context.Context, reason string) error {
	from := s.stop()
	if err := s.transport.Close(); err != nil {
		slog.Debug("closing transport on reset", "error", err)
	}

	if from != Disconnected {
		s.emit(Event{Kind: EventStateChanged, From: from, To: Disconnected})
	}
	slog.Info("session reset", "reason", reason, "from", from)
	s.emit(Event{Kind: EventReset, Reason: reason})

	return s.Connect(ctx)
}

// Close stops any attempts and closes the transport without reconnecting.
func (s *Supervisor) Close() error {
	from := s.stop()
	err := s.transport.Close()
	if from != Disconnected {
		s.emit(Event{Kind: EventStateChanged, From: from, To: Disconnected})
	}
	return err
}

// Send writes a request on the live connection.
func (s *Supervisor) Send(ctx context.Context, req catclient.Request) error {
	if s.State() != Connected {
		return ErrNotConnected
	}
	return s.transport.Send(ctx, req)
}

// stop cancels any attempt loop, waits for it to exit, and moves to
// Disconnected. It returns the state it left.
func (s *Supervisor) stop() State {
	s.mu.Lock()
	from := s.state
	cancel, a := s.cancel, s.current
	s.gen++
	s.cancel, s.current = nil, nil
	s.state = Disconnected
	s.retryCount = 0
	s.lastErr = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-a.done
	}
	return from
}

// beginLocked moves to Connecting with a fresh budget. Callers hold mu.
func (s *Supervisor) beginLocked() *attempt {
	s.gen++
	s.state = Connecting
	s.retryCount = 0
	s.lastErr = nil
	s.current = &attempt{done: make(chan struct{})}
	return s.current
}

func (s *Supervisor) startLoop(a *attempt) {
	s.mu.Lock()
	if s.current != a {
		// Superseded before the loop started.
		s.mu.Unlock()
		a.err = errInterrupted
		close(a.done)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	s.mu.Unlock()

	go s.loop(ctx, gen, a)
}

func (s *Supervisor) wait(ctx context.Context, a *attempt) error {
	if a == nil {
		return ErrNotConnected
	}
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) loop(ctx context.Context, gen uint64, a *attempt) {
	a.err = errInterrupted
	defer close(a.done)

	b := backoff.WithContext(s.policy.newBackOff(), ctx)
	for {
		s.stats.Counter("connect_attempts").Inc(1)
		err := s.transport.Connect(ctx)

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			if err == nil {
				slog.Debug("discarding superseded connection")
			}
			return
		}

		if err == nil {
			s.state = Connected
			s.retryCount = 0
			s.lastErr = nil
			s.mu.Unlock()
			a.err = nil

			slog.Info("connected to assistant")
			s.emit(Event{Kind: EventStateChanged, From: Connecting, To: Connected})
			s.emit(Event{Kind: EventConnected})
			return
		}

		s.stats.Counter("connect_failures").Inc(1)
		s.retryCount++
		s.lastErr = err
		n, budget := s.retryCount, s.policy.budget()
		if n >= budget {
			s.state = Failed
			s.mu.Unlock()

			failure := fmt.Errorf("%w after %d attempts: %w", ErrConnectionFailed, n, err)
			a.err = failure
			slog.Error("connection failed", "attempts", n, "error", err)
			s.emit(Event{Kind: EventStateChanged, From: Connecting, To: Failed})
			s.emit(Event{Kind: EventFailed, Err: failure})
			return
		}
		s.mu.Unlock()

		slog.Warn("connection attempt failed", "attempt", n, "max", budget, "error", err)
		s.emit(Event{Kind: EventTransportError, Err: err})

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Supervisor) handleTransport(ev catclient.Event) {
	switch ev.Type {
	case catclient.EventMessage:
		s.emit(Event{Kind: EventMessage, Message: ev})

	case catclient.EventTransportError:
		slog.Warn("transport error", "description", ev.Description)
		s.emit(Event{Kind: EventTransportError, Err: fmt.Errorf("transport: %s", ev.Description)})

	case catclient.EventDisconnected:
		s.mu.Lock()
		if s.state != Connected {
			s.mu.Unlock()
			return
		}
		a := s.beginLocked()
		s.mu.Unlock()

		s.stats.Counter("reconnects").Inc(1)
		slog.Warn("connection dropped, reconnecting", "reason", ev.Description)
		s.emit(Event{Kind: EventStateChanged, From: Connected, To: Connecting})
		s.emit(Event{Kind: EventDisconnected, Reason: ev.Description})
		s.startLoop(a)
	}
}

func (s *Supervisor) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
