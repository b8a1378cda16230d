package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/catcode/internal/config"
	"github.com/alanmeadows/catcode/internal/logging"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config

	rootCmd = &cobra.Command{
		Use:   "catcode",
		Short: "Comment code and generate functions with a Cheshire Cat assistant",
		Long: `catcode sends selected code to a Cheshire Cat assistant and applies the
result: comment-selection rewrites the selection with comments added,
generate-function implements the selected signature below it.

Commands are only offered when the assistant has the code plugin installed
and is configured with a model that supports the task.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an additional JSONC config file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose)
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg
		return nil
	}
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so a pending request is cancelled rather than abandoned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
