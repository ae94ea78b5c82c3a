package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/cli/config"
)

type initOptions struct {
	alias string
	out   io.Writer
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a users API server to ./usradm.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = cmd.OutOrStdout()
			return runInitWithOptions(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alias, "alias", "", "Alias for the server (defaults to server-N)")

	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	out := opts.out
	if out == nil {
		out = os.Stdout
	}

	serverURL, err := config.NormalizeURL(args[0])
	if err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		// Load existing config
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintln(out, "Found existing usradm.json")
	} else {
		// Create new config
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	// Check if server already exists
	if existing, err := cfg.GetServerByURL(serverURL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in usradm.json\n", existing.Label())
		return nil
	}

	alias := opts.alias
	if alias == "" {
		alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("alias '%s' is already used in usradm.json", alias)
	}

	cfg.Servers = append(cfg.Servers, config.Server{
		URL:   serverURL,
		Alias: alias,
	})

	// Save to file
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./usradm.json with server %s (%s)\n", serverURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./usradm.json\n", serverURL, alias)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'usradm register' to create an account, if you have none")
	fmt.Fprintln(out, "  2. Run 'usradm login' to authenticate")

	return nil
}
