package matchsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/types"
	"github.com/okian/touchline/pkg/logger"
)

const (
	headerOperatorID   = "X-Operator-Id"
	headerOperatorRole = "X-Operator-Role"
	operatorRole       = "simulator"
	eventsPageSize     = 500
)

// Client is a thin JSON client for the service API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// do sends a request and decodes the JSON answer into out when out is not
// nil. It returns the status code; non-2xx codes are not errors.
func (c *Client) do(ctx context.Context, method, path string, body any, hdr http.Header, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func expect(status int, err error, want ...int) error {
	if err != nil {
		return err
	}
	for _, w := range want {
		if status == w {
			return nil
		}
	}
	return fmt.Errorf("unexpected status %d", status)
}

// Health checks the service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	status, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	return expect(status, err, http.StatusOK)
}

// OpenMatch puts a match under live tracking.
func (c *Client) OpenMatch(ctx context.Context, req types.OpenMatchRequest) error {
	status, err := c.do(ctx, http.MethodPost, "/matches", req, nil, nil)
	return expect(status, err, http.StatusCreated, http.StatusOK)
}

// ControlClock applies a clock action.
func (c *Client) ControlClock(ctx context.Context, matchID string, action types.ClockAction) error {
	status, err := c.do(ctx, http.MethodPost, "/matches/"+matchID+"/clock/"+string(action), nil, nil, nil)
	return expect(status, err, http.StatusOK)
}

// StartSession opens an entry session for an operator.
func (c *Client) StartSession(ctx context.Context, matchID, operatorID string) (model.EntrySession, error) {
	var s model.EntrySession
	status, err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{
		"matchId":      matchID,
		"operatorId":   operatorID,
		"operatorRole": operatorRole,
	}, nil, &s)
	return s, expect(status, err, http.StatusCreated, http.StatusOK)
}

// EndSession closes an entry session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	status, err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil, nil, nil)
	return expect(status, err, http.StatusNoContent)
}

// Submit sends one form and classifies the answer.
func (c *Client) Submit(ctx context.Context, s Submission) (Outcome, types.SubmitResult, error) {
	hdr := http.Header{}
	hdr.Set(headerOperatorID, s.OperatorID)
	hdr.Set(headerOperatorRole, operatorRole)

	var res types.SubmitResult
	status, err := c.do(ctx, http.MethodPost, "/events", s.Form, hdr, &res)
	switch {
	case err != nil:
		return OutcomeFailed, res, err
	case status == http.StatusCreated:
		return OutcomeAccepted, res, nil
	case status == http.StatusOK:
		return OutcomeDuplicate, res, nil
	case status == http.StatusUnprocessableEntity:
		return OutcomeRejected, res, nil
	default:
		return OutcomeFailed, res, fmt.Errorf("unexpected status %d", status)
	}
}

// Events pages through the full event log of a match.
func (c *Client) Events(ctx context.Context, matchID string) ([]model.MatchEvent, error) {
	var all []model.MatchEvent
	after := int64(0)
	for {
		var page struct {
			Events []model.MatchEvent `json:"events"`
		}
		path := "/matches/" + matchID + "/events?after=" + strconv.FormatInt(after, 10) +
			"&limit=" + strconv.Itoa(eventsPageSize)
		status, err := c.do(ctx, http.MethodGet, path, nil, nil, &page)
		if err := expect(status, err, http.StatusOK); err != nil {
			return nil, err
		}
		all = append(all, page.Events...)
		if len(page.Events) < eventsPageSize {
			return all, nil
		}
		after = page.Events[len(page.Events)-1].Sequence
	}
}

// SessionStats fetches the session aggregate of a match.
func (c *Client) SessionStats(ctx context.Context, matchID string) (model.SessionStats, error) {
	var st model.SessionStats
	status, err := c.do(ctx, http.MethodGet, "/matches/"+matchID+"/sessions/stats", nil, nil, &st)
	return st, expect(status, err, http.StatusOK)
}

// State fetches the observer snapshot of a match.
func (c *Client) State(ctx context.Context, matchID string) (types.MatchState, error) {
	var st types.MatchState
	status, err := c.do(ctx, http.MethodGet, "/matches/"+matchID+"/state", nil, nil, &st)
	return st, expect(status, err, http.StatusOK)
}

// tally accumulates submission outcomes from concurrent workers.
type tally struct {
	submitted, accepted, duplicate, rejected, failed atomic.Int64

	mu       sync.Mutex
	perMatch map[string]int
	goals    map[string]model.Scoreline
}

func newTally() *tally {
	return &tally{perMatch: map[string]int{}, goals: map[string]model.Scoreline{}}
}

// credit records an accepted event. Own goals count for the other side.
func (t *tally) credit(ev model.MatchEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perMatch[ev.MatchID]++
	team := ""
	switch ev.Type {
	case model.EventGoal:
		team = ev.TeamID
	case model.EventOwnGoal:
		team = opponent(ev.TeamID)
	default:
		return
	}
	if t.goals[ev.MatchID] == nil {
		t.goals[ev.MatchID] = model.Scoreline{}
	}
	t.goals[ev.MatchID][team]++
}

func opponent(team string) string {
	if team == homeTeam {
		return awayTeam
	}
	return homeTeam
}

// submitAll sends every submission through a pool of workers. Retries are
// sent after the original has been answered.
func submitAll(ctx context.Context, c *Client, subs []Submission, workers int, log logger.Logger) *tally {
	t := newTally()
	originals := make(chan []Submission)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range originals {
				for _, s := range group {
					t.submitted.Add(1)
					outcome, res, err := c.Submit(ctx, s)
					switch outcome {
					case OutcomeAccepted:
						t.accepted.Add(1)
						t.credit(res.Event)
					case OutcomeDuplicate:
						t.duplicate.Add(1)
					case OutcomeRejected:
						t.rejected.Add(1)
					case OutcomeFailed:
						t.failed.Add(1)
						log.Warn(ctx, "submission failed",
							logger.String("match_id", s.Form.MatchID),
							logger.String("submission_id", s.Form.SubmissionID),
							logger.Error(err))
					}
				}
			}
		}()
	}

	for i := 0; i < len(subs); {
		j := i + 1
		for j < len(subs) && subs[j].Retry {
			j++
		}
		select {
		case originals <- subs[i:j]:
		case <-ctx.Done():
			j = len(subs)
		}
		i = j
	}
	close(originals)
	wg.Wait()
	return t
}
