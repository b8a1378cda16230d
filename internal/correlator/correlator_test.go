package correlator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/task"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []catclient.Request
	err  error
}

func (f *fakeSender) Send(_ context.Context, req catclient.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, req)
	return nil
}

func counterValue(scope tally.TestScope, name string) int64 {
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() == name {
			return c.Value()
		}
	}
	return 0
}

func commentRequest(id string) PendingRequest {
	return PendingRequest{
		ID:           id,
		Task:         task.Comment,
		OriginalText: "x=1",
		Target:       editor.Range{End: editor.Position{Column: 3}},
	}
}

func wait(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSubmitAndResolve(t *testing.T) {
	sender := &fakeSender{}
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(sender, scope)

	payload := catclient.Request{Text: "x=1", Task: "comment"}
	h, err := c.Submit(context.Background(), commentRequest("r1"), payload)
	require.NoError(t, err)
	assert.Equal(t, []catclient.Request{payload}, sender.sent)
	assert.False(t, h.Request.SubmittedAt.IsZero())

	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "r1", pending.ID)

	assert.True(t, c.OnResponse(Envelope{Content: `{"code":"x=1"}`}))

	res := wait(t, h)
	assert.NoError(t, res.Err)
	assert.Equal(t, "r1", res.Request.ID)
	assert.Equal(t, `{"code":"x=1"}`, res.Envelope.Content)

	_, ok = c.Pending()
	assert.False(t, ok, "the slot is freed after resolution")

	assert.Equal(t, int64(1), counterValue(scope, "testing.correlator.submitted"))
	assert.Equal(t, int64(1), counterValue(scope, "testing.correlator.resolved"))
}

func TestSecondSubmitIsBusy(t *testing.T) {
	sender := &fakeSender{}
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(sender, scope)

	first := commentRequest("r1")
	h, err := c.Submit(context.Background(), first, catclient.Request{Text: "x=1"})
	require.NoError(t, err)

	second := PendingRequest{ID: "r2", Task: task.GenerateFunction, OriginalText: "def foo():"}
	_, err = c.Submit(context.Background(), second, catclient.Request{Text: "def foo():"})
	require.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "Comment code")

	pending, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "r1", pending.ID)
	assert.Equal(t, first.OriginalText, pending.OriginalText)
	assert.Equal(t, first.Target, pending.Target)
	assert.Len(t, sender.sent, 1, "a busy submission sends nothing")
	assert.Equal(t, int64(1), counterValue(scope, "testing.correlator.busy"))

	c.OnResponse(Envelope{Content: "ok"})
	assert.Equal(t, "r1", wait(t, h).Request.ID)
}

func TestConcurrentSubmitsAllowOnlyOne(t *testing.T) {
	c := New(&fakeSender{}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, busy := 0, 0
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), commentRequest(string(rune('a'+i))), catclient.Request{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, ErrBusy) {
				busy++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 19, busy)
}

func TestSendFailureFreesSlot(t *testing.T) {
	sender := &fakeSender{err: errors.New("not connected")}
	c := New(sender, nil)

	_, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)

	_, ok := c.Pending()
	assert.False(t, ok)

	sender.err = nil
	_, err = c.Submit(context.Background(), commentRequest("r2"), catclient.Request{})
	assert.NoError(t, err)
}

func TestStrayResponseIsDropped(t *testing.T) {
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(&fakeSender{}, scope)

	assert.False(t, c.OnResponse(Envelope{Content: "late"}))
	assert.False(t, c.OnError("late error"))
	assert.Equal(t, int64(2), counterValue(scope, "testing.correlator.stray_responses"))
}

func TestTaskHintMismatchIsStray(t *testing.T) {
	scope := tally.NewTestScope("testing", make(map[string]string, 0))
	c := New(&fakeSender{}, scope)

	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	assert.False(t, c.OnResponse(Envelope{Content: "pass", TaskHint: task.GenerateFunction}))
	_, ok := c.Pending()
	assert.True(t, ok, "a mismatched reply must not consume the pending request")

	assert.True(t, c.OnResponse(Envelope{Content: "ok", TaskHint: task.Comment}))
	assert.NoError(t, wait(t, h).Err)
	assert.Equal(t, int64(1), counterValue(scope, "testing.correlator.stray_responses"))
}

func TestErrorEnvelopeResolvesAsFailed(t *testing.T) {
	c := New(&fakeSender{}, nil)
	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	assert.True(t, c.OnResponse(Envelope{Content: "AuthenticationError: bad key", IsError: true}))
	res := wait(t, h)
	assert.ErrorIs(t, res.Err, ErrAssistant)
	assert.Contains(t, res.Err.Error(), "bad key")
}

func TestOnErrorResolvesAsTransportFailure(t *testing.T) {
	c := New(&fakeSender{}, nil)
	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	assert.True(t, c.OnError("undecodable frame"))
	res := wait(t, h)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.NotErrorIs(t, res.Err, ErrAssistant)

	_, ok := c.Pending()
	assert.False(t, ok)
}

// blockingSender holds Send until release is closed.
type blockingSender struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSender) Send(context.Context, catclient.Request) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestInvalidateWaitsForInFlightSend(t *testing.T) {
	sender := &blockingSender{entered: make(chan struct{}), release: make(chan struct{})}
	c := New(sender, nil)

	handles := make(chan *Handle, 1)
	go func() {
		h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
		assert.NoError(t, err)
		handles <- h
	}()
	<-sender.entered

	invalidated := make(chan bool, 1)
	go func() { invalidated <- c.Invalidate("session reset") }()

	select {
	case <-invalidated:
		t.Fatal("Invalidate returned while the request was still being sent")
	case <-time.After(50 * time.Millisecond):
	}

	close(sender.release)
	assert.True(t, <-invalidated)
	assert.ErrorIs(t, wait(t, <-handles).Err, ErrCancelled)
}

func TestCancel(t *testing.T) {
	c := New(&fakeSender{}, nil)
	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	assert.False(t, c.Cancel("other", "timeout"))
	assert.True(t, c.Cancel("r1", "timed out after 30s"))

	res := wait(t, h)
	assert.ErrorIs(t, res.Err, ErrCancelled)
	assert.Contains(t, res.Err.Error(), "timed out")

	// The reply that eventually arrives is a stray.
	assert.False(t, c.OnResponse(Envelope{Content: "late"}))
}

func TestInvalidateThenLateReply(t *testing.T) {
	c := New(&fakeSender{}, nil)
	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	assert.True(t, c.Invalidate("session reset"))
	assert.False(t, c.Invalidate("again"))

	res := wait(t, h)
	assert.ErrorIs(t, res.Err, ErrCancelled)

	assert.False(t, c.OnResponse(Envelope{Content: `{"code":"y=2"}`}))

	h2, err := c.Submit(context.Background(), commentRequest("r2"), catclient.Request{})
	require.NoError(t, err)
	c.OnResponse(Envelope{Content: "fresh"})
	assert.Equal(t, "fresh", wait(t, h2).Envelope.Content)
}

func TestHandleWaitContext(t *testing.T) {
	c := New(&fakeSender{}, nil)
	h, err := c.Submit(context.Background(), commentRequest("r1"), catclient.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := c.Pending()
	assert.True(t, ok, "abandoning the wait leaves the request pending")
}
