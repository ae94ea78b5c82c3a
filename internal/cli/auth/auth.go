package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	tokens "github.com/usradm-dev/usradm/internal/auth"
	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/session"
)

// APIClient is the part of the API the auth service talks to
type APIClient interface {
	CSRFCookie(ctx context.Context) error
	Login(ctx context.Context, email, password string) (*client.LoginResponse, error)
	Register(ctx context.Context, name, email, password string) (map[string]any, error)
	Logout(ctx context.Context) error
	RefreshToken(ctx context.Context) (*client.RefreshResponse, error)
}

var _ APIClient = (*client.Client)(nil)

// defaultRefreshTimeout bounds a shared refresh whose first caller set no
// deadline
const defaultRefreshTimeout = 15 * time.Second

// ErrNotAuthenticated is returned by operations that need a session when
// none is stored
var ErrNotAuthenticated = errors.New("not authenticated")

// Service issues login, registration, logout and refresh requests and keeps
// the session store in step with their outcome.
type Service struct {
	api    APIClient
	store  session.Store
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes writes to the store so a refresh merge can never
	// resurrect a session that logout just cleared
	mu      sync.Mutex
	refresh singleflight.Group
}

// NewService creates an auth service
func NewService(api APIClient, store session.Store, logger zerolog.Logger) *Service {
	return &Service{
		api:    api,
		store:  store,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for expiry checks
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Login fetches the anti-forgery cookie, then submits credentials. A
// successful payload is turned into a session record and persisted. The
// server payload is returned either way; on failure nothing is stored.
func (s *Service) Login(ctx context.Context, email, password string) (*client.LoginResponse, error) {
	if err := s.api.CSRFCookie(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to get CSRF cookie")
		return nil, err
	}

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Debug().Err(err).Str("email", email).Msg("Login rejected")
		return nil, err
	}

	if !resp.Succeeded() {
		return resp, nil
	}

	rec := recordFromLogin(resp)
	if rec.ExpiresAt == "" && rec.Token != "" {
		if exp, ok := tokens.TokenExpiry(rec.Token); ok {
			rec.ExpiresAt = exp.Format(time.RFC3339)
		}
	}

	s.mu.Lock()
	err = s.store.Save(rec)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("email", email).Str("role", rec.RoleName()).Msg("User logged in")
	return resp, nil
}

// recordFromLogin builds a normalized session record from a login payload
func recordFromLogin(resp *client.LoginResponse) *session.Record {
	rec := &session.Record{
		Token:           resp.Token,
		Role:            resp.Role,
		IsAuthenticated: true,
		ExpiresAt:       resp.ExpiresAt,
	}
	if resp.User != nil {
		u := *resp.User
		rec.User = &u
	}
	rec.Normalize()
	return rec
}

// Register fetches the anti-forgery cookie and submits a registration.
// Registration does not log the user in.
func (s *Service) Register(ctx context.Context, name, email, password string) (map[string]any, error) {
	if err := s.api.CSRFCookie(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to get CSRF cookie")
		return nil, err
	}

	payload, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("email", email).Msg("User registered")
	return payload, nil
}

// Logout tells the server the session is over, then clears local state no
// matter what the server said. Only a failure to clear the local store is
// returned.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(ctx)
}

func (s *Service) logoutLocked(ctx context.Context) error {
	if rec := s.store.Load(); rec != nil {
		if err := s.api.Logout(session.NewContext(ctx, rec)); err != nil {
			s.logger.Warn().Err(err).Msg("Logout request failed, clearing local session anyway")
		}
	}

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info().Msg("Logged out")
	return nil
}

// CurrentUser returns the stored session record, or nil
func (s *Service) CurrentUser() *session.Record {
	return s.store.Load()
}

// IsAuthenticated reports whether a live session is stored
func (s *Service) IsAuthenticated() bool {
	return s.store.Load().Valid(s.now())
}

// IsAdmin reports whether the stored session is admin under either role
// alias
func (s *Service) IsAdmin() bool {
	return s.store.Load().IsAdmin()
}

// Context returns ctx carrying the current session, for request-issuing
// calls
func (s *Service) Context(ctx context.Context) context.Context {
	rec := s.store.Load()
	if rec == nil {
		return ctx
	}
	return session.NewContext(ctx, rec)
}

// RefreshToken exchanges the current session for a new token and merges it
// into the stored record. When the exchange fails the session is logged out
// and an error matching client.ErrSessionExpired is returned. Concurrent
// callers share one in-flight request. A caller that gives up stops waiting
// but does not cancel the request for the others.
func (s *Service) RefreshToken(ctx context.Context) (string, error) {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		shared, cancel := detach(ctx)
		defer cancel()
		return s.refreshOnce(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// detach keeps ctx's values and deadline but not its cancellation
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	shared := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(shared, deadline)
	}
	return context.WithTimeout(shared, defaultRefreshTimeout)
}

func (s *Service) refreshOnce(ctx context.Context) (string, error) {
	rec := s.store.Load()
	if rec == nil {
		return "", client.SessionExpiredError(ErrNotAuthenticated)
	}

	resp, err := s.api.RefreshToken(session.NewContext(ctx, rec))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Token refresh failed")
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			s.logger.Error().Err(logoutErr).Msg("Failed to clear session after refresh failure")
		}
		return "", client.SessionExpiredError(err)
	}
	if resp.Token == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-read under the lock: a logout that ran while the request was in
	// flight wins.
	current := s.store.Load()
	if current == nil {
		return "", client.SessionExpiredError(ErrNotAuthenticated)
	}
	current.Token = resp.Token
	if resp.ExpiresAt != "" {
		current.ExpiresAt = resp.ExpiresAt
	} else if exp, ok := tokens.TokenExpiry(resp.Token); ok {
		current.ExpiresAt = exp.Format(time.RFC3339)
	}
	if err := s.store.Save(current); err != nil {
		return "", err
	}

	s.logger.Debug().Msg("Token refreshed")
	return resp.Token, nil
}

// Check inspects the error of an authenticated call. A session-expired
// error forces a logout; the error is returned unchanged so the caller can
// send the user back to login.
func (s *Service) Check(ctx context.Context, err error) error {
	if err != nil && errors.Is(err, client.ErrSessionExpired) {
		s.logger.Info().Msg("Session expired, logging out")
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			s.logger.Error().Err(logoutErr).Msg("Failed to clear expired session")
		}
	}
	return err
}
