package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/guard"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runRegister(cmd.Context(), env, name, email, password)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set USRADM_PASSWORD, will prompt if not provided)")

	return cmd
}

func runRegister(parent context.Context, env *Env, name, email, password string) error {
	if name == "" || email == "" {
		return fmt.Errorf("name and email are required (use --name and --email flags)")
	}
	if password == "" {
		password = os.Getenv("USRADM_PASSWORD")
	}
	if password == "" {
		var err error
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()

	if _, err := env.Auth.Register(ctx, name, email, password); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "✓ Account created for %s\n", email)
	fmt.Fprintln(env.Out, "\nSign in with: usradm login --email "+email)
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runLogout(cmd.Context(), env)
		},
	}
}

func runLogout(parent context.Context, env *Env) error {
	ctx, cancel := env.actionContext(parent)
	defer cancel()

	if env.Auth.CurrentUser() == nil {
		fmt.Fprintln(env.Out, "Not logged in.")
		return nil
	}

	if err := env.Auth.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "✓ Logged out of %s\n", env.Server.Label())
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return requires(&cobra.Command{
		Use:     "whoami",
		Aliases: []string{"profile"},
		Short:   "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runWhoami(env)
		},
	}, guard.Authenticated)
}

func runWhoami(env *Env) error {
	rec := env.Auth.CurrentUser()
	if rec == nil {
		return ErrNotLoggedIn
	}

	name, email := "", ""
	if rec.User != nil {
		name, email = rec.User.Name, rec.User.Email
	}

	fmt.Fprintf(env.Out, "Server: %s\n", env.Server.Label())
	fmt.Fprintf(env.Out, "Name:   %s\n", name)
	fmt.Fprintf(env.Out, "Email:  %s\n", email)
	fmt.Fprintf(env.Out, "Role:   %s\n", roleOrDefault(rec.RoleName()))
	if exp, ok := rec.Expiry(); ok {
		fmt.Fprintf(env.Out, "Expires: %s\n", exp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// NewRefreshCmd creates the refresh command
func NewRefreshCmd() *cobra.Command {
	return requires(&cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored token for a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runRefresh(cmd.Context(), env)
		},
	}, guard.Authenticated)
}

func runRefresh(parent context.Context, env *Env) error {
	ctx, cancel := env.actionContext(parent)
	defer cancel()

	token, err := env.Auth.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		fmt.Fprintln(env.Out, "Server did not issue a new token; session unchanged.")
		return nil
	}

	fmt.Fprintln(env.Out, "✓ Token refreshed")
	if exp, ok := env.Auth.CurrentUser().Expiry(); ok {
		fmt.Fprintf(env.Out, "  Expires: %s\n", exp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
