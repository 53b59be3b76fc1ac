package matchsim

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/touchline/internal/domain/model"
)

const (
	homeTeam        = "home"
	awayTeam        = "away"
	squadSize       = 18
	invalidMinute   = model.MaxMinute + 10
	regulationLimit = 90
)

// weights approximate how often each event is logged in a real match.
var weights = []struct {
	t model.EventType
	w int
}{
	{model.EventShot, 20},
	{model.EventFoul, 18},
	{model.EventCorner, 12},
	{model.EventFreeKick, 10},
	{model.EventSave, 8},
	{model.EventOffside, 6},
	{model.EventYellowCard, 6},
	{model.EventGoal, 5},
	{model.EventSubstitution, 5},
	{model.EventAssist, 3},
	{model.EventInjury, 3},
	{model.EventOwnGoal, 1},
	{model.EventRedCard, 1},
	{model.EventPenalty, 1},
	{model.EventOther, 1},
}

// MatchID returns the id of the i-th simulated match.
func MatchID(i int) string { return fmt.Sprintf("sim-match-%03d", i+1) }

// OperatorID returns the id of the j-th operator.
func OperatorID(j int) string { return fmt.Sprintf("sim-op-%02d", j+1) }

// Generate builds the submissions for a run. Retries are appended right
// after the submission they repeat and carry the same submissionId.
func Generate(cfg *Config) []Submission {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	total := 0
	for _, w := range weights {
		total += w.w
	}

	var out []Submission
	for m := 0; m < cfg.Matches; m++ {
		matchID := MatchID(m)
		for o := 0; o < cfg.Operators; o++ {
			for e := 0; e < cfg.EventsPerOperator; e++ {
				s := Submission{
					OperatorID: OperatorID(o),
					Form:       randomForm(rng, matchID, pick(rng, total), e, cfg.EventsPerOperator),
				}
				if rng.Float64() < cfg.InvalidRate {
					s.Form.Minute = model.IntPtr(invalidMinute)
					s.Invalid = true
				}
				out = append(out, s)
				if !s.Invalid && rng.Float64() < cfg.DuplicateRate {
					retry := s
					retry.Retry = true
					out = append(out, retry)
				}
			}
		}
	}
	return out
}

func pick(rng *rand.Rand, total int) model.EventType {
	n := rng.IntN(total)
	for _, w := range weights {
		if n < w.w {
			return w.t
		}
		n -= w.w
	}
	return model.EventOther
}

func player(rng *rand.Rand, team string) string {
	return fmt.Sprintf("%s-p%d", team, rng.IntN(squadSize)+1)
}

// randomForm builds a valid form. Minutes grow with the operator's
// progress through the match so the log reads plausibly.
func randomForm(rng *rand.Rand, matchID string, t model.EventType, i, n int) model.EventEntryFormData {
	team := homeTeam
	if rng.IntN(2) == 1 {
		team = awayTeam
	}
	minute := 0
	if n > 0 {
		minute = i * regulationLimit / n
	}
	f := model.EventEntryFormData{
		MatchID:      matchID,
		EventType:    t,
		Minute:       model.IntPtr(minute),
		TeamID:       team,
		PlayerID:     player(rng, team),
		SubmissionID: uuid.NewString(),
	}
	switch t {
	case model.EventGoal:
		f.GoalType = "open_play"
		f.Location = "box"
	case model.EventAssist:
		f.SecondaryPlayerID = player(rng, team)
	case model.EventSubstitution:
		f.SecondaryPlayerID = player(rng, team)
		f.SubstitutionType = "tactical"
	case model.EventYellowCard, model.EventRedCard:
		f.CardType = "foul"
	case model.EventInjury:
		f.Severity = "minor"
	case model.EventShot:
		f.ShotType = "on_target"
	}
	return f
}
