package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/assistant"
	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/task"
)

func init() {
	rootCmd.AddCommand(consoleCmd)
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Keep one session open and read commands from stdin",
	Long: `Start a long-lived session and read one command per line from stdin. This
is the mode editor integrations use: the connection stays open, config file
changes are applied as they happen, and commands run concurrently so a
second edit while one is pending is rejected as busy.

Commands:
  comment <file> <lines>     comment the given lines, e.g. "comment main.py 3:9"
  function <file> <lines>    generate a function below the given lines
  preview <task> <file> <lines>
                             print the edit as a diff without applying it
  connect                    reset the connection
  plugins                    re-check the plugin
  llm [sync]                 re-check (or push, then re-check) the model
  status                     show the session status
  quit                       wait for running commands and exit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, release, err := openAssistant(ctx)
		if err != nil {
			return err
		}
		defer release()

		go func() {
			err := config.Watch(ctx, configPath, a.Config(), func(next config.Config) {
				if err := a.ApplyConfig(ctx, next); err != nil {
					slog.Debug("config change not fully applied", "error", err)
				}
			})
			if err != nil {
				slog.Warn("not watching config files", "error", err)
			}
		}()

		if err := a.Start(ctx); err != nil {
			slog.Debug("initial connect failed", "error", err)
		}

		c := &console{a: a, out: cmd.OutOrStdout()}
		c.serve(ctx, cmd.InOrStdin())
		c.wg.Wait()
		return nil
	},
}

type console struct {
	a   *assistant.Assistant
	out io.Writer
	mu  sync.Mutex
	wg  sync.WaitGroup
}

// serve reads commands until EOF, "quit" or ctx is done. Edit commands
// run in the background; the rest run inline.
func (c *console) serve(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.dispatch(ctx, strings.Fields(line)) {
				return
			}
		}
	}
}

func (c *console) dispatch(ctx context.Context, fields []string) bool {
	if len(fields) == 0 {
		return true
	}

	switch name := strings.ToLower(fields[0]); name {
	case "quit", "exit":
		return false
	case "connect", "refresh":
		_ = c.a.RefreshConnection(ctx)
	case "plugins":
		_, _ = c.a.FetchPlugins(ctx)
	case "llm":
		_, _ = c.a.FetchLLM(ctx, len(fields) > 1 && fields[1] == "sync")
	case "status":
		c.mu.Lock()
		renderStatus(c.out, c.a.Status())
		c.mu.Unlock()
	case "preview":
		if len(fields) != 4 {
			c.printf("usage: preview <task> <file> <lines>\n")
			return true
		}
		k, err := task.Parse(fields[1])
		if err != nil {
			c.printf("%v\n", err)
			return true
		}
		c.edit(ctx, k, fields[2], editFlags{lines: fields[3], dryRun: true})
	default:
		k, err := task.Parse(name)
		if err != nil {
			c.printf("unknown command %q\n", name)
			return true
		}
		if len(fields) != 3 {
			c.printf("usage: %s <file> <lines>\n", name)
			return true
		}
		c.edit(ctx, k, fields[1], editFlags{lines: fields[2]})
	}
	return true
}

func (c *console) edit(ctx context.Context, k task.Kind, path string, f editFlags) {
	var buf strings.Builder
	doc, err := openDocument(path, f, &buf)
	if err != nil {
		c.printf("%s: %v\n", k, err)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.a.Run(ctx, k, doc)
		if buf.Len() > 0 {
			c.printf("%s", buf.String())
		}
		if err != nil {
			slog.Debug("console command failed", "task", k, "path", path, "error", err)
		}
	}()
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
