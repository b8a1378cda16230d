package editor

import (
	"context"
	"sync"
)

// MemoryDocument is an in-memory Document for tests and dry runs.
type MemoryDocument struct {
	mu       sync.Mutex
	path     string
	content  string
	sel      Range
	edits    []Edit
	ApplyErr error
}

// NewMemoryDocument selects lines startLine..endLine (one-based,
// inclusive) of content. It panics on an invalid range.
func NewMemoryDocument(path, content string, startLine, endLine int) *MemoryDocument {
	r, err := lineRange(content, startLine, endLine)
	if err != nil {
		panic(err)
	}
	return &MemoryDocument{path: path, content: content, sel: r}
}

// Selection returns the selected text.
func (d *MemoryDocument) Selection(_ context.Context) (Selection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, err := slice(d.content, d.sel)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Path: d.path, Language: LanguageForPath(d.path), Text: text, Range: d.sel}, nil
}

// Apply splices the edit into the content.
func (d *MemoryDocument) Apply(_ context.Context, edit Edit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ApplyErr != nil {
		return d.ApplyErr
	}
	updated, err := splice(d.content, edit)
	if err != nil {
		return err
	}
	d.content = updated
	d.edits = append(d.edits, edit)
	return nil
}

// SetContent replaces the whole document, as if the user typed.
func (d *MemoryDocument) SetContent(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = content
}

// Content returns the current document text.
func (d *MemoryDocument) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// Edits returns the edits applied so far.
func (d *MemoryDocument) Edits() []Edit {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Edit(nil), d.edits...)
}

// Level is a notification severity.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Message is one recorded notification.
type Message struct {
	Level Level
	Text  string
}

// RecordingNotifier records notifications for tests.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message
}

func (n *RecordingNotifier) Info(msg string)  { n.record(LevelInfo, msg) }
func (n *RecordingNotifier) Warn(msg string)  { n.record(LevelWarn, msg) }
func (n *RecordingNotifier) Error(msg string) { n.record(LevelError, msg) }

func (n *RecordingNotifier) record(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{Level: level, Text: msg})
}

// Messages returns all recorded notifications.
func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

// Of returns the texts recorded at level.
func (n *RecordingNotifier) Of(level Level) []string {
	var out []string
	for _, m := range n.Messages() {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}
	return out
}
