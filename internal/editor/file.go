package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alanmeadows/catcode/internal/store"
)

// FileDocument is a file on disk with a selection of whole lines.
type FileDocument struct {
	path      string
	startLine int
	endLine   int
}

// NewFileDocument selects lines startLine..endLine (one-based, inclusive)
// of the file at path.
func NewFileDocument(path string, startLine, endLine int) (*FileDocument, error) {
	if startLine < 1 || endLine < startLine {
		return nil, fmt.Errorf("invalid line range %d:%d", startLine, endLine)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	return &FileDocument{path: abs, startLine: startLine, endLine: endLine}, nil
}

// ParseLineRange parses "A:B" or "A" into one-based inclusive bounds.
func ParseLineRange(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	startStr, endStr, found := strings.Cut(s, ":")
	if !found {
		endStr = startStr
	}
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid line range %q", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid line range %q", s)
	}
	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("invalid line range %q", s)
	}
	return start, end, nil
}

// Path returns the absolute file path.
func (d *FileDocument) Path() string { return d.path }

// Selection reads the selected lines under a shared lock.
func (d *FileDocument) Selection(ctx context.Context) (Selection, error) {
	var content string
	err := store.WithReadLock(ctx, d.path, store.DefaultLockTimeout, func() error {
		data, err := os.ReadFile(d.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", d.path, err)
		}
		content = string(data)
		return nil
	})
	if err != nil {
		return Selection{}, err
	}

	r, err := lineRange(content, d.startLine, d.endLine)
	if err != nil {
		return Selection{}, fmt.Errorf("%s: %w", d.path, err)
	}
	text, err := slice(content, r)
	if err != nil {
		return Selection{}, err
	}
	return Selection{
		Path:     d.path,
		Language: LanguageForPath(d.path),
		Text:     text,
		Range:    r,
	}, nil
}

// Apply rewrites the edit's range under an exclusive lock. The file is
// left untouched with ErrStaleSelection if the range no longer holds the
// original text.
func (d *FileDocument) Apply(ctx context.Context, edit Edit) error {
	return store.WithLock(ctx, d.path, store.DefaultLockTimeout, func() error {
		data, err := os.ReadFile(d.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", d.path, err)
		}
		updated, err := splice(string(data), edit)
		if err != nil {
			return fmt.Errorf("%s: %w", d.path, err)
		}
		if err := store.AtomicWriteFile(d.path, []byte(updated), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", d.path, err)
		}
		return nil
	})
}

// lineRange returns the range covering whole lines start..end (one-based),
// excluding the final line break.
func lineRange(content string, start, end int) (Range, error) {
	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	if end > len(lines) {
		return Range{}, fmt.Errorf("line %d is past the end of the file (%d lines)", end, len(lines))
	}
	last := strings.TrimSuffix(lines[end-1], "\r")
	return Range{
		Start: Position{Line: start - 1},
		End:   Position{Line: end - 1, Column: len(last)},
	}, nil
}

// offset converts a position to a byte offset in content.
func offset(content string, p Position) (int, error) {
	off := 0
	for line := 0; line < p.Line; line++ {
		i := strings.IndexByte(content[off:], '\n')
		if i < 0 {
			return 0, fmt.Errorf("line %d is past the end of the document", p.Line+1)
		}
		off += i + 1
	}
	lineEnd := len(content)
	if i := strings.IndexByte(content[off:], '\n'); i >= 0 {
		lineEnd = off + i
	}
	if p.Column < 0 || off+p.Column > lineEnd {
		return 0, fmt.Errorf("column %d is past the end of line %d", p.Column+1, p.Line+1)
	}
	return off + p.Column, nil
}

func slice(content string, r Range) (string, error) {
	start, err := offset(content, r.Start)
	if err != nil {
		return "", err
	}
	end, err := offset(content, r.End)
	if err != nil {
		return "", err
	}
	if end < start {
		return "", fmt.Errorf("range %s is inverted", r)
	}
	return content[start:end], nil
}

// splice applies edit to content after checking the range still holds the
// original text.
func splice(content string, edit Edit) (string, error) {
	current, err := slice(content, edit.Range)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaleSelection, err)
	}
	if current != edit.Original {
		return "", ErrStaleSelection
	}
	start, _ := offset(content, edit.Range.Start)
	end, _ := offset(content, edit.Range.End)
	return content[:start] + edit.NewText + content[end:], nil
}

var languages = map[string]string{
	".c":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".cs":   "csharp",
	".go":   "go",
	".h":    "c",
	".java": "java",
	".js":   "javascript",
	".jsx":  "javascript",
	".kt":   "kotlin",
	".php":  "php",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".sh":   "shell",
	".ts":   "typescript",
	".tsx":  "typescript",
}

// LanguageForPath guesses the language from the file extension.
func LanguageForPath(path string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plaintext"
}
