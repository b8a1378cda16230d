package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/assistant"
)

var llmSyncFlag bool

func init() {
	llmCmd.Flags().BoolVar(&llmSyncFlag, "sync", false, "Push the configured model to the assistant before checking")
	rootCmd.AddCommand(connectCmd, pluginsCmd, llmCmd, statusCmd)
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Reset the connection to the assistant and re-check capabilities",
	Long: `Tear down any existing session, connect again and re-query the plugin
and LLM capabilities. Use this after a connection failure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openAssistant(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		if err := a.RefreshConnection(cmd.Context()); err != nil {
			return reported(err)
		}
		renderStatus(cmd.OutOrStdout(), a.Status())
		return nil
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Check that the code plugin is installed on the assistant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openAssistant(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		_, err = a.FetchPlugins(cmd.Context())
		return reported(err)
	},
}

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Check which tasks the assistant's model supports",
	Long: `Read the assistant's selected LLM configuration and report which tasks it
supports. With --sync, the model from the catcode config (model.config_kind,
model.name, model.api_key) is written to the assistant first.`,
	Example: `  catcode llm
  catcode llm --sync`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openAssistant(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		_, err = a.FetchLLM(cmd.Context(), llmSyncFlag)
		return reported(err)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect and show the session and capability status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openAssistant(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		startErr := a.Start(cmd.Context())
		renderStatus(cmd.OutOrStdout(), a.Status())
		return reported(startErr)
	},
}

func renderStatus(w io.Writer, st assistant.Status) {
	labelStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := [][]string{
		{"Assistant", st.URL},
		{"Session", st.Session.State.String()},
		{"Retries", fmt.Sprintf("%d/%d", st.Session.RetryCount, st.Session.MaxRetries)},
	}
	if st.Session.LastError != nil {
		rows = append(rows, []string{"Last error", st.Session.LastError.Error()})
	}

	if snap := st.Capabilities; snap.Checked() {
		tasks := make([]string, 0, len(snap.SupportedTasks))
		for _, k := range snap.SupportedTasks {
			tasks = append(tasks, k.Label())
		}
		rows = append(rows,
			[]string{"Plugin installed", strconv.FormatBool(snap.PluginInstalled)},
			[]string{"LLM config", orNone(snap.ConfiguredConfigKind)},
			[]string{"Model", orNone(snap.ConfiguredModelName)},
			[]string{"Supported tasks", orNone(strings.Join(tasks, ", "))},
			[]string{"Checked at", snap.CheckedAt.Format("15:04:05")},
		)
	} else {
		rows = append(rows, []string{"Capabilities", "not checked"})
	}

	if p := st.Pending; p != nil {
		rows = append(rows, []string{"Pending", fmt.Sprintf("%s (%s)", p.Task.Label(), p.ID)})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return labelStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
