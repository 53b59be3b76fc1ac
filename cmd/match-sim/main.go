package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/touchline/internal/matchsim"
)

// Default configuration constants.
const (
	defaultMatches     = 4
	defaultOperators   = 3
	defaultEvents      = 200
	defaultDuplicates  = 0.05
	defaultInvalid     = 0.02
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &matchsim.Config{}
	var logFile string

	cmd := &cobra.Command{
		Use:   "match-sim",
		Short: "Drive a touchline service with simulated live matches",
		Long: `Drive a running service with concurrent operators entering events for
several live matches, then check the event logs, session statistics and
scores the service reports.

Examples:
  # Simulate with default settings
  match-sim

  # Heavier run against another host
  match-sim --matches 20 --operators 5 --events 1000 --url http://localhost:8080

  # Reproduce an earlier run
  match-sim --seed 1760601600 --output subs.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closer, err := matchsim.SetupLogging(logFile, cfg.Verbose)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()
			_, err = matchsim.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVarP(&cfg.Matches, "matches", "m", defaultMatches, "Number of matches to simulate")
	f.IntVarP(&cfg.Operators, "operators", "o", defaultOperators, "Operators per match")
	f.IntVarP(&cfg.EventsPerOperator, "events", "e", defaultEvents, "Events generated per operator")
	f.Float64Var(&cfg.DuplicateRate, "duplicates", defaultDuplicates, "Share of submissions retried with the same submissionId")
	f.Float64Var(&cfg.InvalidRate, "invalid", defaultInvalid, "Share of submissions with an out-of-range minute")
	f.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Generator seed")
	f.StringVar(&cfg.OutputFile, "output", "", "Write generated submissions to this JSON file")
	f.StringVar(&logFile, "log", "", "Log file (default: match_sim_TIMESTAMP.log)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
