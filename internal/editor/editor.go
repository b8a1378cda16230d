// Package editor is the boundary to whatever hosts the code being
// transformed: it reads the user's selection, applies edits, and shows
// notifications. Nothing here knows about the assistant.
package editor

import (
	"context"
	"errors"
	"fmt"
)

// ErrStaleSelection is returned by Apply when the target text changed
// after the request was sent.
var ErrStaleSelection = errors.New("selection changed since the request was sent")

// Position is a zero-based line and byte column.
type Position struct {
	Line   int
	Column int
}

// Range is a half-open span of a document.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line+1, r.Start.Column+1, r.End.Line+1, r.End.Column+1)
}

// Selection is the text the user highlighted.
type Selection struct {
	Path     string
	Language string
	Text     string
	Range    Range
}

// EditMode distinguishes how NewText relates to the original text.
type EditMode int

const (
	// Replace swaps the original text for NewText.
	Replace EditMode = iota
	// Append keeps the original text and adds generated text after it.
	Append
)

func (m EditMode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// Edit rewrites Range, which held Original when the request was sent, to
// NewText. For Append edits NewText already starts with Original.
type Edit struct {
	Range    Range
	Original string
	NewText  string
	Mode     EditMode
}

// Document is an editable text document with a current selection.
type Document interface {
	Selection(ctx context.Context) (Selection, error)
	Apply(ctx context.Context, edit Edit) error
}

// Notifier shows messages to the user.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}
