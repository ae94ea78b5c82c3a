package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/cli/commands"
	"github.com/usradm-dev/usradm/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the usradm command tree
func NewRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "usradm",
		Short: "usradm - administer a users API",
		Long: `usradm CLI - sign in to a users API and manage its accounts.

Sessions are kept per server in the OS keyring by default
(USRADM_SESSION_BACKEND=keyring|file|sqlite|memory).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Quiet by default so command output is not mixed with logs
			level := os.Getenv("LOG_LEVEL")
			if level == "" {
				level = "warn"
			}
			if verbose {
				level = "debug"
			}
			logger.Init(level, os.Getenv("LOG_FORMAT"), os.Stderr)

			// Evaluate the command's access policy before it runs
			return commands.Authorize(cmd)
		},
	}

	rootCmd.PersistentFlags().String("server", "", "Server URL or alias (uses the selected server if not specified)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log API requests to stderr")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "usradm version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewRefreshCmd())
	rootCmd.AddCommand(commands.NewUsersCmd())
	rootCmd.AddCommand(commands.NewDashCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", client.Message(err))
		if errors.Is(err, client.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "Run 'usradm login' to sign in again.")
		}
		return err
	}
	return nil
}
