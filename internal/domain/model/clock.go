package model

// ClockStatus is the run state of a match clock.
type ClockStatus string

// Clock statuses.
const (
	ClockNotStarted ClockStatus = "not_started"
	ClockRunning    ClockStatus = "running"
	ClockPaused     ClockStatus = "paused"
	ClockCompleted  ClockStatus = "completed"
)

// Period is a phase of the match.
type Period string

// Periods in their only valid forward order.
const (
	PeriodFirstHalf  Period = "first_half"
	PeriodHalftime   Period = "halftime"
	PeriodSecondHalf Period = "second_half"
	PeriodExtraTime  Period = "extra_time"
	PeriodPenalties  Period = "penalties"
)

var periodOrder = map[Period]int{
	PeriodFirstHalf:  0,
	PeriodHalftime:   1,
	PeriodSecondHalf: 2,
	PeriodExtraTime:  3,
	PeriodPenalties:  4,
}

// Index returns the position of p in the forward period order, or -1 if p is unknown.
func (p Period) Index() int {
	if i, ok := periodOrder[p]; ok {
		return i
	}
	return -1
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool { return p.Index() >= 0 }

// DefaultPeriodMinutes is the regulation length of one half.
const DefaultPeriodMinutes = 45

// ClockState is a point-in-time copy of a match clock.
type ClockState struct {
	MatchID               string      `json:"matchId"`
	Status                ClockStatus `json:"status"`
	CurrentPeriod         Period      `json:"currentPeriod"`
	ElapsedSeconds        int64       `json:"elapsedSeconds"`
	InjuryTimeMinutes     int         `json:"injuryTimeMinutes"`
	PeriodDurationMinutes int         `json:"periodDurationMinutes"`
	Minute                int         `json:"minute"`
	HomeTeamID            string      `json:"homeTeamId,omitempty"`
	AwayTeamID            string      `json:"awayTeamId,omitempty"`
}
