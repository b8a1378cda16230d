package catclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// ErrNotConnected is returned by Send when there is no live connection.
var ErrNotConnected = errors.New("websocket not connected")

// maxFrameSize bounds a single reply; generated code can be large.
const maxFrameSize = 4 << 20

// WSTransport implements Transport over a websocket connection.
type WSTransport struct {
	url     string
	authKey string

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	handler func(Event)
}

// NewWSTransport creates a transport for the given websocket URL. authKey,
// when set, is sent as a bearer token on the handshake.
func NewWSTransport(url, authKey string) *WSTransport {
	return &WSTransport{url: url, authKey: authKey}
}

// SetHandler registers the event callback. It is called from the read
// goroutine and must not block for long.
func (t *WSTransport) SetHandler(fn func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// Connect dials the websocket and starts the read loop.
func (t *WSTransport) Connect(ctx context.Context) error {
	header := http.Header{}
	if t.authKey != "" {
		header.Set("Authorization", "Bearer "+t.authKey)
	}

	conn, _, err := websocket.Dial(ctx, t.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", t.url, err)
	}
	conn.SetReadLimit(maxFrameSize)

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	old, oldCancel := t.conn, t.cancel
	t.conn, t.cancel = conn, cancel
	t.mu.Unlock()

	if old != nil {
		_ = old.Close(websocket.StatusNormalClosure, "replaced")
		oldCancel()
	}

	slog.Debug("websocket connected", "url", t.url)
	go t.readLoop(readCtx, conn)
	return nil
}

// Send writes the request as a JSON text frame.
func (t *WSTransport) Send(ctx context.Context, req Request) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	return nil
}

// Close closes the live connection, if any.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn, cancel := t.conn, t.cancel
	t.conn, t.cancel = nil, nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "")
	cancel()
	if err != nil {
		slog.Debug("websocket close", "error", err)
	}
	return nil
}

func (t *WSTransport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			current := t.conn == conn
			if current {
				t.conn, t.cancel = nil, nil
			}
			t.mu.Unlock()

			// A closed-by-us connection is not a drop.
			if current {
				t.emit(Event{Type: EventDisconnected, Description: err.Error()})
			}
			return
		}

		if ev, ok := decodeFrame(data); ok {
			t.emit(ev)
		}
	}
}

func (t *WSTransport) emit(ev Event) {
	t.mu.Lock()
	fn := t.handler
	t.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// frame is the subset of an incoming websocket message catcode cares about.
type frame struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Name        string `json:"name"`
	Task        string `json:"task"`
}

// decodeFrame maps an incoming frame to an Event. Streaming tokens and
// notifications are not replies and are dropped here.
func decodeFrame(data []byte) (Event, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{Type: EventTransportError, Description: fmt.Sprintf("undecodable frame: %v", err)}, true
	}

	switch f.Type {
	case "chat":
		return Event{Type: EventMessage, Content: f.Content, TaskHint: f.Task}, true
	case "error":
		desc := f.Description
		if desc == "" {
			desc = f.Content
		}
		if f.Name != "" {
			desc = f.Name + ": " + desc
		}
		return Event{Type: EventMessage, Content: desc, IsError: true, TaskHint: f.Task}, true
	case "chat_token", "notification":
		slog.Debug("ignoring websocket frame", "type", f.Type)
		return Event{}, false
	default:
		slog.Debug("ignoring unknown websocket frame", "type", f.Type)
		return Event{}, false
	}
}
