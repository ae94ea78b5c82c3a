package console

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/usradm-dev/usradm/internal/cli/client"
	"github.com/usradm-dev/usradm/internal/guard"
)

// requirePolicy redirects away from routes the current session may not see.
// The session is re-read on every request.
func (s *Server) requirePolicy(policy guard.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Evaluate(policy, s.auth)
		if !decision.Allow {
			s.logger.Debug().
				Str("path", c.Request.URL.Path).
				Str("policy", policy.String()).
				Str("redirect", decision.Redirect).
				Msg("Route guard redirect")
			c.Redirect(http.StatusFound, decision.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

// actionContext bounds one console action with the configured request
// timeout and carries the current session
func (s *Server) actionContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := s.anonymousContext(c)
	return s.auth.Context(ctx), cancel
}

// anonymousContext bounds an action that must not present the stored
// session, such as sign-in and registration
func (s *Server) anonymousContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.config.API.RequestTimeout)
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// fail reports an API error to the browser. An expired session is logged
// out and the browser sent to the login page.
func (s *Server) fail(c *gin.Context, ctx context.Context, err error) {
	err = s.auth.Check(ctx, err)
	if errors.Is(err, client.ErrSessionExpired) {
		status := http.StatusSeeOther
		if c.Request.Method == http.MethodGet {
			status = http.StatusFound
		}
		c.Redirect(status, guard.LoginPath)
		c.Abort()
		return
	}
	respondWithError(c, s.logger, statusFor(err), err, client.Message(err))
}

// statusFor picks the console response status for an API error
func statusFor(err error) int {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case client.KindTimeout:
		return http.StatusGatewayTimeout
	case client.KindNetwork:
		return http.StatusBadGateway
	}
	if apiErr.Status >= 400 && apiErr.Status < 600 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
