package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/guard"
	"github.com/usradm-dev/usradm/internal/models"
)

// confirmFunc asks the user to confirm a destructive action
var confirmFunc = promptConfirm

// NewUsersCmd creates the users command group
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage user accounts (admin only)",
	}

	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersGetCmd())
	cmd.AddCommand(newUsersCreateCmd())
	cmd.AddCommand(newUsersUpdateCmd())
	cmd.AddCommand(newUsersDeleteCmd())

	return cmd
}

// listOptions controls how the in-memory list is narrowed and shown
type listOptions struct {
	filter string
	sortBy string
	output string
}

func newUsersListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runUsersList(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only show users whose name, email or role contains this text")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "", "Sort by id, name, email or role")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "Output format: table, json or yaml")

	return requires(cmd, guard.Admin)
}

func runUsersList(parent context.Context, env *Env, opts listOptions) error {
	if err := checkOutput(opts.output); err != nil {
		return err
	}
	if err := models.CheckSortKey(opts.sortBy); err != nil {
		return err
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()

	users, err := env.Client.ListUsers(env.Auth.Context(ctx))
	if err != nil {
		return env.handle(ctx, err)
	}

	users = models.FilterUsers(users, opts.filter)
	models.SortUsers(users, opts.sortBy)

	if len(users) == 0 && opts.output == outputTable {
		if opts.filter != "" {
			fmt.Fprintf(env.Out, "No users match '%s'.\n", opts.filter)
			return nil
		}
		fmt.Fprintln(env.Out, "No users found.")
		fmt.Fprintln(env.Out, "\nCreate a user with: usradm users create --name <name> --email <email> --password <password>")
		return nil
	}

	if opts.output == outputTable {
		fmt.Fprintf(env.Out, "Users on %s:\n\n", env.Server.Label())
	}
	return printUsers(env.Out, users, opts.output)
}

func newUsersGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runUsersGet(cmd.Context(), env, models.UserID(args[0]), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")

	return requires(cmd, guard.Admin)
}

func runUsersGet(parent context.Context, env *Env, id models.UserID, output string) error {
	if err := checkOutput(output); err != nil {
		return err
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()

	user, err := env.Client.GetUser(env.Auth.Context(ctx), id)
	if err != nil {
		return env.handle(ctx, err)
	}
	if user == nil {
		return fmt.Errorf("user '%s' not found", id)
	}

	return printUser(env.Out, user, output)
}

// userFlags are the editable fields of a user
type userFlags struct {
	name     string
	email    string
	password string
	role     string
}

func (f *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Full name")
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.password, "password", "", "Password")
	cmd.Flags().StringVar(&f.role, "role", "", "Role: user, admin or moderator")
}

func newUsersCreateCmd() *cobra.Command {
	var flags userFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runUsersCreate(cmd.Context(), env, flags)
		},
	}
	flags.register(cmd)

	return requires(cmd, guard.Admin)
}

func runUsersCreate(parent context.Context, env *Env, flags userFlags) error {
	in := models.UserInput{
		Name:     flags.name,
		Email:    flags.email,
		Password: flags.password,
		Role:     flags.role,
		Create:   true,
	}
	if err := in.Validate(); err != nil {
		return err
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()
	ctx = env.Auth.Context(ctx)

	created, err := env.Client.CreateUser(ctx, in)
	if err != nil {
		return env.handle(ctx, err)
	}

	if created != nil && created.ID != "" {
		fmt.Fprintf(env.Out, "✓ Created user %s (id %s)\n\n", in.Email, created.ID)
	} else {
		fmt.Fprintf(env.Out, "✓ Created user %s\n\n", in.Email)
	}

	// Show the refreshed directory
	users, err := env.Client.ListUsers(ctx)
	if err != nil {
		err = env.handle(ctx, err)
		fmt.Fprintf(env.Out, "Could not refresh the user list: %s\n", client.Message(err))
		return nil
	}
	return printUsers(env.Out, users, outputTable)
}

func newUsersUpdateCmd() *cobra.Command {
	var flags userFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Long: `Update a user.

Only the fields given as flags are changed; the others keep their
current values. The password is left unchanged unless --password is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runUsersUpdate(cmd.Context(), env, models.UserID(args[0]), flags)
		},
	}
	flags.register(cmd)

	return requires(cmd, guard.Admin)
}

func runUsersUpdate(parent context.Context, env *Env, id models.UserID, flags userFlags) error {
	if flags == (userFlags{}) {
		return fmt.Errorf("nothing to update (use --name, --email, --password or --role)")
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()
	ctx = env.Auth.Context(ctx)

	// Start from the current record, like an edit form pre-filled from it
	current, err := env.Client.GetUser(ctx, id)
	if err != nil {
		return env.handle(ctx, err)
	}
	if current == nil {
		return fmt.Errorf("user '%s' not found", id)
	}

	in := models.UserInput{
		Name:     firstNonEmpty(flags.name, current.Name),
		Email:    firstNonEmpty(flags.email, current.Email),
		Password: flags.password,
		Role:     flags.role,
	}
	if err := in.Validate(); err != nil {
		return err
	}
	// The stored role is sent back as-is, even one this client does not know
	if in.Role == "" {
		in.Role = current.Role
	}

	updated, err := env.Client.UpdateUser(ctx, id, in)
	if err != nil {
		return env.handle(ctx, err)
	}

	fmt.Fprintf(env.Out, "✓ Updated user %s\n", id)
	if updated != nil {
		fmt.Fprintln(env.Out)
		return printUser(env.Out, updated, outputTable)
	}
	return nil
}

func newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			return runUsersDelete(cmd.Context(), env, models.UserID(args[0]), yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return requires(cmd, guard.Admin)
}

func runUsersDelete(parent context.Context, env *Env, id models.UserID, yes bool) error {
	if !yes {
		ok, err := confirmFunc(fmt.Sprintf("Delete user %s", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(env.Out, "Aborted.")
			return nil
		}
	}

	ctx, cancel := env.actionContext(parent)
	defer cancel()

	if err := env.Client.DeleteUser(env.Auth.Context(ctx), id); err != nil {
		return env.handle(ctx, err)
	}

	fmt.Fprintf(env.Out, "✓ Deleted user %s\n", id)
	return nil
}

// promptConfirm shows a y/N prompt. Declining is not an error.
func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, fmt.Errorf("cancelled")
		}
		return false, err
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
