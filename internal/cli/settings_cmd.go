package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/capability"
	"github.com/alanmeadows/catcode/internal/config"
)

func init() {
	rootCmd.AddCommand(settingsCmd)
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit the connection and model settings interactively",
	Long: `Launches an interactive form for the assistant connection (host, port,
auth key, TLS) and the model selection (configuration kind, model name, API
key). Values are saved to the user config file. Leave a secret empty to keep
the current one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appConfig

		baseURL := cfg.Assistant.BaseURL
		port := strconv.Itoa(cfg.Assistant.Port)
		secure := cfg.Assistant.Secure
		configKind := cfg.Model.ConfigKind
		modelName := cfg.Model.Name
		var authKey, apiKey string

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Assistant host").
					Value(&baseURL).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("host is required")
						}
						return nil
					}),
				huh.NewInput().
					Title("Port").
					Value(&port).
					Validate(func(s string) error {
						if n, err := strconv.Atoi(s); err != nil || n <= 0 || n > 65535 {
							return fmt.Errorf("port must be a number between 1 and 65535")
						}
						return nil
					}),
				huh.NewInput().
					Title("Auth key (leave empty to keep)").
					EchoMode(huh.EchoModePassword).
					Value(&authKey),
				huh.NewConfirm().
					Title("Use TLS (wss/https)?").
					Value(&secure),
			),
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("LLM configuration kind").
					Options(kindOptions(cfg)...).
					Value(&configKind),
				huh.NewInput().
					Title("Model name").
					Placeholder("gpt-4o").
					Value(&modelName),
				huh.NewInput().
					Title("Model API key (leave empty to keep)").
					EchoMode(huh.EchoModePassword).
					Value(&apiKey),
			),
		)

		if err := form.Run(); err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}

		portNum, _ := strconv.Atoi(port)
		values := map[string]any{
			"assistant.base_url": baseURL,
			"assistant.port":     portNum,
			"assistant.secure":   secure,
			"model.config_kind":  configKind,
			"model.name":         modelName,
		}
		if authKey != "" {
			values["assistant.auth_key"] = authKey
		}
		if apiKey != "" {
			values["model.api_key"] = apiKey
		}

		path, err := configTarget(false)
		if err != nil {
			return err
		}
		if err := config.SetValues(path, values); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved settings to %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Run 'catcode llm --sync' to push the model to the assistant.")
		return nil
	},
}

func kindOptions(cfg config.Config) []huh.Option[string] {
	table, err := capability.LoadTable(cfg.Capability.Rules)
	if err != nil {
		table = capability.BuiltinTable()
	}
	kinds := table.Kinds()
	if cfg.Model.ConfigKind != "" && !table.KnowsKind(cfg.Model.ConfigKind) {
		kinds = append(kinds, cfg.Model.ConfigKind)
	}

	opts := make([]huh.Option[string], 0, len(kinds))
	for _, k := range kinds {
		opts = append(opts, huh.NewOption(k, k))
	}
	return opts
}
