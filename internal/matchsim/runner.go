package matchsim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/touchline/internal/domain/types"
	"github.com/okian/touchline/pkg/logger"
)

const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes a full simulation and returns its statistics. It fails when
// any submission could not be delivered or the service state is
// inconsistent with the accepted traffic.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("matchsim")
	stats := &Stats{StartTime: time.Now()}
	c := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting match simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("matches", cfg.Matches),
		logger.Int("operators", cfg.Operators),
		logger.Int("events_per_operator", cfg.EventsPerOperator),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed),
		logger.Bool("verbose", cfg.Verbose))

	// Step 1: Check service health
	if err := c.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Open matches and start their clocks
	for m := 0; m < cfg.Matches; m++ {
		matchID := MatchID(m)
		if err := c.OpenMatch(ctx, types.OpenMatchRequest{MatchID: matchID, HomeTeamID: homeTeam, AwayTeamID: awayTeam}); err != nil {
			return stats, fmt.Errorf("open %s: %w", matchID, err)
		}
		if err := c.ControlClock(ctx, matchID, types.ClockStart); err != nil {
			log.Warn(ctx, "clock not started", logger.String("match_id", matchID), logger.Error(err))
		}
		stats.MatchesOpened++
	}

	// Step 3: Start operator sessions
	var sessionIDs []string
	for m := 0; m < cfg.Matches; m++ {
		for o := 0; o < cfg.Operators; o++ {
			s, err := c.StartSession(ctx, MatchID(m), OperatorID(o))
			if err != nil {
				return stats, fmt.Errorf("start session: %w", err)
			}
			sessionIDs = append(sessionIDs, s.SessionID)
			stats.SessionsStarted++
		}
	}

	// Step 4: Generate and submit events
	subs := Generate(cfg)
	stats.EventsGenerated = len(subs)
	log.Info(ctx, "submitting events", logger.Int("submissions", len(subs)))
	t := submitAll(ctx, c, subs, cfg.Workers, log)
	stats.EventsSubmitted = int(t.submitted.Load())
	stats.EventsAccepted = int(t.accepted.Load())
	stats.EventsDuplicate = int(t.duplicate.Load())
	stats.EventsRejected = int(t.rejected.Load())
	stats.EventsFailed = int(t.failed.Load())
	stats.AcceptedByMatch = t.perMatch
	stats.GoalsByMatch = t.goals

	// Step 5: Verify
	verr := verifyAll(ctx, c, cfg, subs, t, stats)

	// Step 6: End sessions
	for _, id := range sessionIDs {
		if err := c.EndSession(ctx, id); err != nil {
			log.Warn(ctx, "failed to end session", logger.String("session_id", id), logger.Error(err))
		}
	}

	// Step 7: Save submissions
	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.EventsFailed > 0 {
		return stats, fmt.Errorf("%d submissions failed", stats.EventsFailed)
	}
	if verr != nil {
		return stats, fmt.Errorf("verification failed: %w", verr)
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

func saveSubmissions(path string, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	return os.WriteFile(path, b, outputPermission)
}

func displayFinalStats(ctx context.Context, log logger.Logger, s *Stats) {
	rate := 0.0
	if s.Duration > 0 {
		rate = float64(s.EventsSubmitted) / s.Duration.Seconds()
	}
	log.Info(ctx, "simulation statistics",
		logger.Int("matches", s.MatchesOpened),
		logger.Int("sessions", s.SessionsStarted),
		logger.Int("generated", s.EventsGenerated),
		logger.Int("submitted", s.EventsSubmitted),
		logger.Int("accepted", s.EventsAccepted),
		logger.Int("duplicates", s.EventsDuplicate),
		logger.Int("rejected", s.EventsRejected),
		logger.Int("failed", s.EventsFailed),
		logger.Int("verified", s.MatchesVerified),
		logger.Duration("duration", s.Duration),
		logger.Float64("submissions_per_second", rate))
}
