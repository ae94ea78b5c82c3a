package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/usradm-dev/usradm/internal/cli/auth"
	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/cli/config"
	"github.com/usradm-dev/usradm/internal/cli/serverselect"
	"github.com/usradm-dev/usradm/internal/cli/userconfig"
	appconfig "github.com/usradm-dev/usradm/internal/config"
	"github.com/usradm-dev/usradm/internal/guard"
	"github.com/usradm-dev/usradm/internal/logger"
	"github.com/usradm-dev/usradm/internal/session"
)

// PolicyAnnotation marks a command with the guard policy it requires
const PolicyAnnotation = "usradm/policy"

var (
	// ErrNotLoggedIn is returned when a command needs a session and none is live
	ErrNotLoggedIn = errors.New("not authenticated. Please run 'usradm login' first")
	// ErrAdminRequired is returned when a signed-in non-admin runs an admin command
	ErrAdminRequired = errors.New("admin access required")
)

// Env is everything a command needs to act against one server
type Env struct {
	Config *appconfig.Config
	Server *config.Server
	Store  session.Store
	Client *client.Client
	Auth   *auth.Service
	Logger zerolog.Logger
	Out    io.Writer
}

type envContextKey struct{}

// withEnv stores env on ctx so the command body reuses what the guard built
func withEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envContextKey{}, env)
}

// actionContext bounds one user action with the configured request timeout.
// Every request the action issues shares this single deadline.
func (e *Env) actionContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	timeout := e.Config.API.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

// handle routes an action's error through the auth service so an expired
// session is cleared before the error is shown
func (e *Env) handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return e.Auth.Check(ctx, err)
}

// serverFlag returns the --server value inherited from the root command
func serverFlag(cmd *cobra.Command) string {
	if f := cmd.Flag("server"); f != nil {
		return f.Value.String()
	}
	return ""
}

// loadEnv returns the env the root pre-run hook stored on the command's
// context, building one when none is there
func loadEnv(cmd *cobra.Command) (*Env, error) {
	if ctx := cmd.Context(); ctx != nil {
		if env, ok := ctx.Value(envContextKey{}).(*Env); ok && env != nil {
			return env, nil
		}
	}
	return newEnv(serverFlag(cmd), cmd.OutOrStdout())
}

// newEnv loads configuration, resolves the server and opens its session store
func newEnv(serverAlias string, out io.Writer) (*Env, error) {
	// Load config
	appCfg, err := appconfig.Load()
	if err != nil {
		return nil, err
	}

	// Resolve which server to use
	server, err := getSelectedServer(appCfg, serverAlias)
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger()

	// Open session store
	backend := appCfg.Session.Backend
	if backend == "" {
		if backend, err = userconfig.GetSessionBackend(); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}
	store, err := session.Open(session.Options{
		Backend:   backend,
		Namespace: server.Namespace(),
		Dir:       appCfg.Session.Dir,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	return newEnvWith(appCfg, server, store, out, log), nil
}

// newEnvWith wires an API client and auth service around the given parts
func newEnvWith(appCfg *appconfig.Config, server *config.Server, store session.Store, out io.Writer, log zerolog.Logger) *Env {
	if out == nil {
		out = os.Stdout
	}
	apiClient := client.New(server.URL, log)
	return &Env{
		Config: appCfg,
		Server: server,
		Store:  store,
		Client: apiClient,
		Auth:   auth.NewService(apiClient, store, log),
		Logger: log,
		Out:    out,
	}
}

// getSelectedServer returns the server commands should talk to.
// USRADM_API_URL wins over the project config.
func getSelectedServer(appCfg *appconfig.Config, serverAlias string) (*config.Server, error) {
	if appCfg.API.URL != "" && serverAlias == "" {
		url, err := config.NormalizeURL(appCfg.API.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid USRADM_API_URL: %w", err)
		}
		return &config.Server{URL: url}, nil
	}

	// Load config
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'usradm init' to create a configuration file", err)
	}

	// Resolve which server to use
	server, err := serverselect.ResolveServer(cfg, serverAlias)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit usradm.json and add a valid URL")
	}

	return server, nil
}

// Authorize evaluates the policy annotated on cmd against the stored
// session. Commands without a policy are always allowed. On success the
// built env is attached to the command's context.
func Authorize(cmd *cobra.Command) error {
	name, ok := cmd.Annotations[PolicyAnnotation]
	if !ok {
		return nil
	}
	policy, ok := guard.ParsePolicy(name)
	if !ok {
		return fmt.Errorf("unknown policy '%s' on command '%s'", name, cmd.Name())
	}

	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	if err := authorize(policy, env.Auth); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withEnv(ctx, env))
	return nil
}

// authorize maps a guard decision to the error shown on the command line
func authorize(policy guard.Policy, checker guard.Checker) error {
	decision := guard.Evaluate(policy, checker)
	if decision.Allow {
		return nil
	}
	if decision.Redirect == guard.ProfilePath {
		return ErrAdminRequired
	}
	return ErrNotLoggedIn
}

// requires annotates cmd with the policy it needs
func requires(cmd *cobra.Command, policy guard.Policy) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[PolicyAnnotation] = policy.String()
	return cmd
}
