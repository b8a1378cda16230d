package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/journal"
	"github.com/alanmeadows/catcode/internal/store"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent command outcomes",
	Long: `Display the most recent comment and function commands with their
outcome: applied, previewed, denied, busy, malformed, stale, cancelled or
failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ExpandHome(appConfig.Journal.Path)
		if !store.Exists(path) {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
			return nil
		}

		j, err := journal.Open(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)
		colors := map[journal.Outcome]lipgloss.Color{
			journal.Applied:   lipgloss.Color("10"),
			journal.Previewed: lipgloss.Color("12"),
			journal.Failed:    lipgloss.Color("9"),
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			var target string
			if e.Path != "" {
				target = filepath.Base(e.Path)
			}
			if e.Range != "" {
				target += " " + e.Range
			}
			rows = append(rows, []string{
				e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
				e.Task,
				string(e.Outcome),
				target,
				orNone(e.Model),
				e.Duration.Round(100 * time.Millisecond).String(),
				truncateCell(e.Detail, 60),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TIME", "TASK", "OUTCOME", "TARGET", "MODEL", "TOOK", "DETAIL").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 2 {
					if c, ok := colors[entries[row].Outcome]; ok {
						return cellStyle.Foreground(c)
					}
					return cellStyle.Foreground(lipgloss.Color("11"))
				}
				return cellStyle
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
