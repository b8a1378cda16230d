package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/editor"
	"github.com/alanmeadows/catcode/internal/task"
)

type editFlags struct {
	lines  string
	dryRun bool
}

func init() {
	rootCmd.AddCommand(
		newEditCmd(task.Comment, "comment <file>", "Add comments to the selected code",
			`Send the selected lines to the assistant and replace them with a commented
version. The file is left untouched if the reply cannot be used or the lines
changed while waiting.`,
			`  catcode comment main.py --lines 10:24
  catcode comment main.py --lines 10:24 --dry-run`),
		newEditCmd(task.GenerateFunction, "function <file>", "Generate a function body below the selected signature",
			`Send the selected lines (typically a signature and docstring) to the
assistant and insert the generated implementation directly below them. The
selected lines themselves are kept.`,
			`  catcode function util.go --lines 42
  catcode function util.go --lines 42:45 --dry-run`),
	)
}

func newEditCmd(k task.Kind, use, short, long, example string) *cobra.Command {
	var f editFlags
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := openDocument(args[0], f, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			a, release, err := openAssistant(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return reported(a.Run(cmd.Context(), k, doc))
		},
	}
	cmd.Aliases = []string{string(k) + "-selection"}
	if k == task.GenerateFunction {
		cmd.Aliases = []string{"generate-function", "func"}
	}
	cmd.Flags().StringVarP(&f.lines, "lines", "l", "", "Lines to send, START:END (1-based, inclusive) or a single line")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print a diff instead of editing the file")
	_ = cmd.MarkFlagRequired("lines")
	return cmd
}

// openDocument selects the flagged lines of path. With --dry-run edits are
// printed to out instead of written.
func openDocument(path string, f editFlags, out io.Writer) (editor.Document, error) {
	start, end, err := editor.ParseLineRange(f.lines)
	if err != nil {
		return nil, fmt.Errorf("--lines: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	doc, err := editor.NewFileDocument(path, start, end)
	if err != nil {
		return nil, err
	}
	if f.dryRun {
		return editor.NewPreviewDocument(doc, out), nil
	}
	return doc, nil
}
