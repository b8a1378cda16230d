package catclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers every chat request with a chat frame whose content
// is the request text upper-cased, and records the auth header.
func echoServer(t *testing.T, auth chan<- string, conns chan<- *websocket.Conn) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			auth <- r.Header.Get("Authorization")
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if conns != nil {
			conns <- c
		}
		ctx := context.Background()
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var req Request
			if json.Unmarshal(data, &req) != nil {
				continue
			}
			reply, _ := json.Marshal(map[string]string{
				"type":    "chat",
				"content": strings.ToUpper(req.Text),
				"task":    req.Task,
			})
			_ = c.Write(ctx, websocket.MessageText, reply)
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func collect(tr *WSTransport) <-chan Event {
	ch := make(chan Event, 16)
	tr.SetHandler(func(ev Event) { ch <- ev })
	return ch
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return Event{}
	}
}

func TestWSTransport_RoundTrip(t *testing.T) {
	auth := make(chan string, 1)
	srv := echoServer(t, auth, nil)
	defer srv.Close()

	tr := NewWSTransport(wsURL(srv), "meow")
	events := collect(tr)

	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()
	assert.Equal(t, "Bearer meow", <-auth)

	require.NoError(t, tr.Send(context.Background(), Request{Text: "def foo():", Task: "function"}))

	ev := waitEvent(t, events)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, "DEF FOO():", ev.Content)
	assert.Equal(t, "function", ev.TaskHint)
	assert.False(t, ev.IsError)
}

func TestWSTransport_SendWithoutConnect(t *testing.T) {
	tr := NewWSTransport("ws://127.0.0.1:1/ws", "")
	err := tr.Send(context.Background(), Request{Text: "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, tr.Close())
}

func TestWSTransport_DialFailure(t *testing.T) {
	tr := NewWSTransport("ws://127.0.0.1:1/ws", "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := tr.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dialing")
}

func TestWSTransport_ServerDropRaisesDisconnected(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := echoServer(t, nil, conns)
	defer srv.Close()

	tr := NewWSTransport(wsURL(srv), "")
	events := collect(tr)
	require.NoError(t, tr.Connect(context.Background()))

	server := <-conns
	_ = server.Close(websocket.StatusGoingAway, "restarting")

	ev := waitEvent(t, events)
	assert.Equal(t, EventDisconnected, ev.Type)
	assert.ErrorIs(t, tr.Send(context.Background(), Request{Text: "x"}), ErrNotConnected)
}

func TestWSTransport_CloseIsNotADrop(t *testing.T) {
	srv := echoServer(t, nil, nil)
	defer srv.Close()

	tr := NewWSTransport(wsURL(srv), "")
	events := collect(tr)
	require.NoError(t, tr.Connect(context.Background()))
	require.NoError(t, tr.Close())

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after Close: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		ok      bool
		want    Event
		wantErr bool
	}{
		{
			name:  "chat",
			input: `{"type":"chat","content":"x=1","task":"comment"}`,
			ok:    true,
			want:  Event{Type: EventMessage, Content: "x=1", TaskHint: "comment"},
		},
		{
			name:  "error with name",
			input: `{"type":"error","name":"AuthenticationError","description":"bad key"}`,
			ok:    true,
			want:  Event{Type: EventMessage, Content: "AuthenticationError: bad key", IsError: true},
		},
		{
			name:  "error falls back to content",
			input: `{"type":"error","content":"boom"}`,
			ok:    true,
			want:  Event{Type: EventMessage, Content: "boom", IsError: true},
		},
		{name: "token", input: `{"type":"chat_token","content":"x"}`},
		{name: "notification", input: `{"type":"notification","content":"thinking"}`},
		{name: "unknown", input: `{"type":"mystery"}`},
		{name: "garbage", input: `not json`, ok: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := decodeFrame([]byte(tt.input))
			assert.Equal(t, tt.ok, ok)
			if tt.wantErr {
				assert.Equal(t, EventTransportError, ev.Type)
				assert.Contains(t, ev.Description, "undecodable frame")
				return
			}
			if tt.ok {
				assert.Equal(t, tt.want, ev)
			}
		})
	}
}
