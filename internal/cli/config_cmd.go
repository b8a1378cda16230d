package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage catcode configuration",
	Long:  `Show and modify catcode configuration values.`,
}

var (
	configJSONFlag bool
	configRepoFlag bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configSetCmd.Flags().BoolVar(&configRepoFlag, "repo", false, "Write to .catcode/catcode.jsonc in the repository instead of the user config")
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := appConfig.Redacted()

		var data []byte
		var err error
		if configJSONFlag {
			data, err = json.Marshal(redacted)
		} else {
			data, err = json.MarshalIndent(redacted, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to the user config (~/.config/catcode/catcode.jsonc),
or with --repo to .catcode/catcode.jsonc in the repository root. The file
is created if it does not exist. A running 'catcode console' picks the
change up immediately.

Note: JSONC comments are not preserved on write.`,
	Example: `  catcode config set assistant.port 1865
  catcode config set model.name gpt-4o
  catcode config set session.retry_backoff exponential`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value, err := config.ParseValue(key, args[1])
		if err != nil {
			return err
		}

		path, err := configTarget(configRepoFlag)
		if err != nil {
			return err
		}
		if err := config.SetValues(path, map[string]any{key: value}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, value, path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the config files consulted, lowest precedence first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range config.Paths(configPath) {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func configTarget(repo bool) (string, error) {
	if repo {
		root := config.RepoRoot()
		if root == "" {
			return "", fmt.Errorf("not in a git repository")
		}
		return config.RepoConfigPath(root), nil
	}
	path := config.UserConfigPath()
	if path == "" {
		return "", fmt.Errorf("cannot determine the user config directory")
	}
	return path, nil
}
