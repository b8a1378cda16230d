package editor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// PreviewDocument wraps a Document and prints a diff of each edit instead
// of applying it.
type PreviewDocument struct {
	Document
	w io.Writer
}

// NewPreviewDocument previews edits to doc on w.
func NewPreviewDocument(doc Document, w io.Writer) *PreviewDocument {
	return &PreviewDocument{Document: doc, w: w}
}

// Apply prints the edit as a unified-style line diff.
func (p *PreviewDocument) Apply(_ context.Context, edit Edit) error {
	_, err := io.WriteString(p.w, RenderDiff(edit))
	return err
}

// RenderDiff renders the edit as line-level +/- output.
func RenderDiff(edit Edit) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(withNewline(edit.Original), withNewline(edit.NewText))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "@@ %s (%s) @@\n", edit.Range, edit.Mode)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// withNewline terminates the last line so an unchanged final line diffs
// as equal.
func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
