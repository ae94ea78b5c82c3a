package console

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field expressions and descriptors such
// as "@every 10m"
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// newRefreshScheduler returns a cron runner that calls job on schedule. A
// run still in progress when the next one is due is skipped.
func newRefreshScheduler(schedule string, job func()) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, fmt.Errorf("invalid CONSOLE_REFRESH_SCHEDULE '%s': %w", schedule, err)
	}
	return c, nil
}

// nextRefresh calculates the next refresh time from a schedule expression
func nextRefresh(schedule string, from time.Time) *time.Time {
	if schedule == "" {
		return nil
	}

	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return nil
	}

	next := sched.Next(from)
	return &next
}

// refreshSession exchanges the stored token for a new one while a session
// is live. A failed exchange logs the session out.
func (s *Server) refreshSession() {
	if !s.auth.IsAuthenticated() {
		s.logger.Debug().Msg("No live session - skipping token refresh")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.API.RequestTimeout)
	defer cancel()

	token, err := s.auth.RefreshToken(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled token refresh failed, session cleared")
		return
	}
	if token == "" {
		s.logger.Debug().Msg("Server issued no new token")
		return
	}

	s.logger.Info().Msg("Session token refreshed")
}
