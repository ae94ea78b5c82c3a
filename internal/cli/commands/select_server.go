package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/cli/config"
	"github.com/usradm-dev/usradm/internal/cli/serverselect"
	"github.com/usradm-dev/usradm/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Select the server to use for commands",
		Long: `Select the server to use for commands.

If no param is provided, an interactive prompt will be shown.
Each server keeps its own session, so switching servers does not log you out.

Examples:
  $ usradm select-server                          # Interactive selection
  $ usradm select-server http://127.0.0.1:8000    # Select by URL
  $ usradm select-server production               # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var urlOrAlias string
			if len(args) > 0 {
				urlOrAlias = args[0]
			}
			return runSelectServer(cmd, urlOrAlias)
		},
	}

	return cmd
}

func runSelectServer(cmd *cobra.Command, urlOrAlias string) error {
	// Load project config
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'usradm init' to create a configuration file", err)
	}

	var server *config.Server

	if urlOrAlias != "" {
		// User provided a URL or alias, find it
		server, err = serverselect.GetServerByURLOrAlias(cfg, urlOrAlias)
		if err != nil {
			return err
		}
	} else {
		// Show interactive selection
		server, err = serverselect.PromptServerSelection(cfg)
		if err != nil {
			return err
		}
	}

	// Save the selected server
	if err := userconfig.SetSelectedServer(server.URL); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Selected server: %s\n", server.Label())
	return nil
}
