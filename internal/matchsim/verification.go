package matchsim

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
)

// ErrInconsistent reports that the service state disagrees with what the
// simulator observed while submitting.
var ErrInconsistent = errors.New("inconsistent match state")

// verifyMatch checks one match: the event log is gap-free and holds exactly
// the accepted events, session statistics count them, and the score equals
// the goals credited from accepted events.
func verifyMatch(ctx context.Context, c *Client, matchID string, accepted int, goals model.Scoreline) error {
	evs, err := c.Events(ctx, matchID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(evs) != accepted {
		return fmt.Errorf("%w: %s has %d events, %d accepted", ErrInconsistent, matchID, len(evs), accepted)
	}
	for i, ev := range evs {
		if ev.Sequence != int64(i+1) {
			return fmt.Errorf("%w: %s event %d has sequence %d", ErrInconsistent, matchID, i+1, ev.Sequence)
		}
	}

	stats, err := c.SessionStats(ctx, matchID)
	if err != nil {
		return fmt.Errorf("session stats: %w", err)
	}
	if stats.TotalEvents != accepted {
		return fmt.Errorf("%w: %s sessions counted %d events, %d accepted", ErrInconsistent, matchID, stats.TotalEvents, accepted)
	}

	state, err := c.State(ctx, matchID)
	if err != nil {
		return fmt.Errorf("match state: %w", err)
	}
	if state.LastSequence != int64(accepted) {
		return fmt.Errorf("%w: %s last sequence %d, %d accepted", ErrInconsistent, matchID, state.LastSequence, accepted)
	}
	for _, team := range []string{homeTeam, awayTeam} {
		if state.Score[team] != goals[team] {
			return fmt.Errorf("%w: %s score for %s is %d, expected %d",
				ErrInconsistent, matchID, team, state.Score[team], goals[team])
		}
	}
	return nil
}

// verifyAll checks every match and the submission totals against the
// generated traffic.
func verifyAll(ctx context.Context, c *Client, cfg *Config, subs []Submission, t *tally, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying match state", logger.Int("matches", cfg.Matches))

	var invalid, retries int
	for _, s := range subs {
		switch {
		case s.Invalid:
			invalid++
		case s.Retry:
			retries++
		}
	}
	var errs []error
	if got := int(t.rejected.Load()); got != invalid {
		errs = append(errs, fmt.Errorf("%w: %d rejected, %d generated invalid", ErrInconsistent, got, invalid))
	}
	if got := int(t.duplicate.Load()); got != retries {
		errs = append(errs, fmt.Errorf("%w: %d duplicates, %d retries sent", ErrInconsistent, got, retries))
	}

	for m := 0; m < cfg.Matches; m++ {
		matchID := MatchID(m)
		if err := verifyMatch(ctx, c, matchID, stats.AcceptedByMatch[matchID], stats.GoalsByMatch[matchID]); err != nil {
			log.Error(ctx, "match verification failed", logger.String("match_id", matchID), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		stats.MatchesVerified++
		log.Debug(ctx, "match verified", logger.String("match_id", matchID),
			logger.Int("events", stats.AcceptedByMatch[matchID]))
	}
	return errors.Join(errs...)
}
