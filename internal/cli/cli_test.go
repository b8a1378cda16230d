package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/catcode/internal/assistant"
	"github.com/alanmeadows/catcode/internal/capability"
	"github.com/alanmeadows/catcode/internal/correlator"
	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/session"
	"github.com/alanmeadows/catcode/internal/task"
)

func TestOpenDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def foo():\n    pass\n"), 0o644))

	doc, err := openDocument(path, editFlags{lines: "1:2"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &editor.FileDocument{}, doc)

	var out bytes.Buffer
	doc, err = openDocument(path, editFlags{lines: "1", dryRun: true}, &out)
	require.NoError(t, err)
	assert.IsType(t, &editor.PreviewDocument{}, doc)

	_, err = openDocument(path, editFlags{lines: "x"}, nil)
	assert.ErrorContains(t, err, "--lines")

	_, err = openDocument(filepath.Join(t.TempDir(), "missing.py"), editFlags{lines: "1"}, nil)
	assert.Error(t, err)
}

func TestReported(t *testing.T) {
	assert.NoError(t, reported(nil))
	err := reported(errors.New("boom"))
	assert.ErrorIs(t, err, ErrReported)
	assert.NotContains(t, err.Error(), "boom")
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short", 10))
	assert.Equal(t, "abcd…", truncateCell("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncateCell("éééééé", 4))
}

func TestConfigTarget(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := configTarget(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catcode", "catcode.jsonc"), path)
}

func TestRenderStatus(t *testing.T) {
	var out bytes.Buffer
	renderStatus(&out, assistant.Status{
		URL:     "ws://localhost:1865/ws",
		Session: session.Status{State: session.Connected, MaxRetries: 3},
		Capabilities: &capability.Snapshot{
			PluginInstalled:      true,
			PluginChecked:        true,
			ModelChecked:         true,
			ConfiguredConfigKind: "LLMOpenAIChatConfig",
			ConfiguredModelName:  "gpt-4o",
			SupportedTasks:       []task.Kind{task.Comment, task.GenerateFunction},
			CheckedAt:            time.Now(),
		},
		Pending: &correlator.PendingRequest{ID: "req-1", Task: task.Comment},
	})

	s := out.String()
	assert.Contains(t, s, "ws://localhost:1865/ws")
	assert.Contains(t, s, "connected")
	assert.Contains(t, s, "0/3")
	assert.Contains(t, s, "gpt-4o")
	assert.Contains(t, s, "Comment code, Generate function")
	assert.Contains(t, s, "req-1")
}

func TestRenderStatus_Unchecked(t *testing.T) {
	var out bytes.Buffer
	renderStatus(&out, assistant.Status{
		Session:      session.Status{State: session.Failed, RetryCount: 3, MaxRetries: 3, LastError: errors.New("refused")},
		Capabilities: &capability.Snapshot{},
	})
	assert.Contains(t, out.String(), "not checked")
	assert.Contains(t, out.String(), "refused")
}

func TestConsoleDispatch_Usage(t *testing.T) {
	var out bytes.Buffer
	c := &console{out: &out}
	ctx := context.Background()

	assert.True(t, c.dispatch(ctx, nil))
	assert.True(t, c.dispatch(ctx, strings.Fields("translate a.py 1")))
	assert.True(t, c.dispatch(ctx, strings.Fields("comment a.py")))
	assert.True(t, c.dispatch(ctx, strings.Fields("preview nope a.py 1")))
	assert.True(t, c.dispatch(ctx, strings.Fields("function "+filepath.Join(t.TempDir(), "missing.go")+" 1")))
	assert.False(t, c.dispatch(ctx, []string{"quit"}))

	s := out.String()
	assert.Contains(t, s, `unknown command "translate"`)
	assert.Contains(t, s, "usage: comment <file> <lines>")
	assert.Contains(t, s, `unknown task "nope"`)
	assert.Contains(t, s, "function: ")
}

func TestConsoleServe_StopsAtQuit(t *testing.T) {
	c := &console{out: &bytes.Buffer{}}
	done := make(chan struct{})
	go func() {
		c.serve(context.Background(), strings.NewReader("\nquit\ncomment a.py 1\n"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after quit")
	}
}
