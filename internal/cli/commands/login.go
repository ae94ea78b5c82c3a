package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a users API",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), env, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set USRADM_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set USRADM_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(parent context.Context, env *Env, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("USRADM_EMAIL")
	}
	if password == "" {
		password = os.Getenv("USRADM_PASSWORD")
	}

	// Validate email
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or USRADM_EMAIL env var)")
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		var err error
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
	}

	fmt.Fprintf(env.Out, "Logging in to %s...\n", env.Server.Label())

	ctx, cancel := env.actionContext(parent)
	defer cancel()

	resp, err := env.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if !resp.Succeeded() {
		if resp.Message != "" {
			return fmt.Errorf("%s", resp.Message)
		}
		return fmt.Errorf("login failed")
	}

	rec := env.Auth.CurrentUser()
	fmt.Fprintln(env.Out, "✓ Login successful!")
	if name := rec.DisplayName(); name != "" {
		fmt.Fprintf(env.Out, "  User: %s\n", name)
	}
	fmt.Fprintf(env.Out, "  Role: %s\n", rec.RoleName())

	return nil
}

// readPassword prompts on the terminal without echo
func readPassword(prompt string) (string, error) {
	// Check if stdin is a terminal (not piped)
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or USRADM_PASSWORD env var)")
	}

	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
