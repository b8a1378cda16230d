// Package dispatch builds the task-specific request for a selection and
// turns the assistant's reply into an edit.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanmeadows/catcode/internal/catclient"
	"github.com/alanmeadows/catcode/internal/correlator"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/task"
)

var (
	// ErrMalformedResponse means the reply could not be turned into an edit.
	// The document must be left untouched.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrEmptySelection is returned when there is nothing to send.
	ErrEmptySelection = errors.New("nothing selected")
)

// CommentPayload is the structured reply to a comment request.
type CommentPayload struct {
	Language string  `json:"language"`
	Code     *string `json:"code"`
}

// Dispatcher builds and interprets task payloads.
type Dispatcher struct {
	newID func() string
	now   func() time.Time
}

// New creates a Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{newID: uuid.NewString, now: time.Now}
}

// BuildRequest creates the pending request and wire payload for k. The
// assistant's memories are never consulted or written for code requests.
func (d *Dispatcher) BuildRequest(k task.Kind, sel editor.Selection) (correlator.PendingRequest, catclient.Request, error) {
	if _, err := task.Parse(string(k)); err != nil {
		return correlator.PendingRequest{}, catclient.Request{}, err
	}
	if strings.TrimSpace(sel.Text) == "" {
		return correlator.PendingRequest{}, catclient.Request{}, ErrEmptySelection
	}

	pending := correlator.PendingRequest{
		ID:           d.newID(),
		Task:         k,
		OriginalText: sel.Text,
		Target:       sel.Range,
		SubmittedAt:  d.now(),
	}
	payload := catclient.Request{
		Text:                 sel.Text,
		UseDeclarativeMemory: false,
		UseProceduralMemory:  false,
		UseEpisodicMemory:    false,
		Task:                 string(k),
	}
	return pending, payload, nil
}

// Interpret turns a successful reply into the edit for req.
//
// Comment replies carry {"language", "code"} and replace the selection.
// GenerateFunction replies are plain code appended below the selection.
func (d *Dispatcher) Interpret(req correlator.PendingRequest, env correlator.Envelope) (editor.Edit, error) {
	switch req.Task {
	case task.Comment:
		payload, err := parseJSON[CommentPayload](env.Content)
		if err != nil {
			return editor.Edit{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if payload.Code == nil {
			return editor.Edit{}, fmt.Errorf("%w: reply has no code field", ErrMalformedResponse)
		}
		if strings.TrimSpace(*payload.Code) == "" {
			return editor.Edit{}, fmt.Errorf("%w: reply has an empty code field", ErrMalformedResponse)
		}
		slog.Debug("comment reply", "id", req.ID, "language", payload.Language)
		return editor.Edit{
			Range:    req.Target,
			Original: req.OriginalText,
			NewText:  *payload.Code,
			Mode:     editor.Replace,
		}, nil

	case task.GenerateFunction:
		generated := stripCodeFence(env.Content)
		if strings.TrimSpace(generated) == "" {
			return editor.Edit{}, fmt.Errorf("%w: reply has no generated code", ErrMalformedResponse)
		}
		return editor.Edit{
			Range:    req.Target,
			Original: req.OriginalText,
			NewText:  req.OriginalText + "\n" + generated,
			Mode:     editor.Append,
		}, nil
	}
	return editor.Edit{}, fmt.Errorf("no interpreter for task %q", req.Task)
}
