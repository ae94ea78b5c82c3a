package commands

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	appconfig "github.com/usradm-dev/usradm/internal/config"
)

// NewDashCmd creates the dash command
func NewDashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the local web console in browser",
		Long: `Open the local web console in browser.

The console must already be running on CONSOLE_ADDR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(cmd)
		},
	}

	return cmd
}

func runDash(cmd *cobra.Command) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}

	consoleURL := consoleURL(cfg.Console.Addr)

	fmt.Fprintln(cmd.OutOrStdout(), "Opening console...")
	fmt.Fprintf(cmd.OutOrStdout(), "URL: %s\n", consoleURL)

	// Open browser based on OS
	if err := openBrowser(consoleURL); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, consoleURL)
	}

	return nil
}

// consoleURL turns a listen address into a browsable URL
func consoleURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
