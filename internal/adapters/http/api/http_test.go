package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/touchline/internal/adapters/broadcast"
	"github.com/okian/touchline/internal/adapters/http/api"
	"github.com/okian/touchline/internal/adapters/repository"
	service "github.com/okian/touchline/internal/app"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/types"
	"github.com/okian/touchline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type brokenStore struct {
	*repository.MemoryStore
}

func (brokenStore) Persist(context.Context, model.MatchEvent) error {
	return errors.New("disk unavailable")
}

func newTestMux(opts ...service.Option) (*http.ServeMux, *service.Service) {
	svc := service.New(append([]service.Option{service.WithLogger(logger.Nop())}, opts...)...)
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return mux, svc
}

func do(mux http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	return v
}

const goalJSON = `{"matchId":"m1","eventType":"goal","minute":23,"teamId":"home","playerId":"p7","submissionId":"s-1"}`

func TestSessionsAPI(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		mux, svc := newTestMux()
		defer svc.Stop()

		Convey("When an operator starts a session twice", func() {
			first := do(mux, http.MethodPost, "/sessions", `{"matchId":"m1","operatorId":"u1","operatorRole":"scorer"}`)
			second := do(mux, http.MethodPost, "/sessions", `{"matchId":"m1","operatorId":"u1","operatorRole":"lead"}`)

			Convey("Then the first is created and the second reused", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				a := decode[map[string]any](first)
				b := decode[map[string]any](second)
				So(b["sessionId"], ShouldEqual, a["sessionId"])
				So(b["reused"], ShouldEqual, true)
				So(b["operatorRole"], ShouldEqual, "lead")
			})

			Convey("And the session can be listed, touched and ended", func() {
				id := decode[map[string]any](first)["sessionId"].(string)

				list := do(mux, http.MethodGet, "/matches/m1/sessions", "")
				So(list.Code, ShouldEqual, http.StatusOK)
				So(list.Body.String(), ShouldContainSubstring, id)

				touch := do(mux, http.MethodPost, "/sessions/"+id+"/touch", `{"draft":{"matchId":"m1","eventType":"corner"}}`)
				So(touch.Code, ShouldEqual, http.StatusOK)

				status := do(mux, http.MethodGet, "/matches/m1/operators/u1/session", "")
				So(status.Code, ShouldEqual, http.StatusOK)
				So(status.Body.String(), ShouldContainSubstring, `"eventType":"corner"`)

				So(do(mux, http.MethodDelete, "/sessions/"+id, "").Code, ShouldEqual, http.StatusNoContent)
				ended := do(mux, http.MethodGet, "/matches/m1/operators/u1/session", "")
				So(ended.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](ended), ShouldResemble, map[string]any{"isActive": false})
				So(do(mux, http.MethodPost, "/sessions/"+id+"/touch", "").Code, ShouldEqual, http.StatusNotFound)

				stats := decode[model.SessionStats](do(mux, http.MethodGet, "/matches/m1/sessions/stats", ""))
				So(stats.TotalSessions, ShouldEqual, 1)
				So(stats.ActiveSessions, ShouldEqual, 0)
			})
		})

		Convey("When an operator without a session asks for its status", func() {
			w := do(mux, http.MethodGet, "/matches/m1/operators/u1/session", "")

			Convey("Then an inactive status is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"isActive":false}`)
			})
		})

		Convey("When ending an unknown session", func() {
			So(do(mux, http.MethodDelete, "/sessions/nope", "").Code, ShouldEqual, http.StatusNoContent)
			So(do(mux, http.MethodPost, "/sessions/nope/force-end", "").Code, ShouldEqual, http.StatusNoContent)
		})

		Convey("When the request is malformed", func() {
			So(do(mux, http.MethodPost, "/sessions", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/sessions", `{"matchId":"m1"}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestEventsAPI(t *testing.T) {
	Convey("Given the API with an operator session on m1", t, func() {
		mux, svc := newTestMux()
		defer svc.Stop()
		do(mux, http.MethodPost, "/sessions", `{"matchId":"m1","operatorId":"u1","operatorRole":"scorer"}`)

		Convey("When a goal is submitted", func() {
			w := do(mux, http.MethodPost, "/events", goalJSON, api.HeaderOperatorID, "u1", api.HeaderOperatorRole, "scorer")

			Convey("Then it is created with sequence 1", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				res := decode[types.SubmitResult](w)
				So(res.Event.Sequence, ShouldEqual, int64(1))
				So(res.Event.OperatorID, ShouldEqual, "u1")
				So(res.Duplicate, ShouldBeFalse)
			})

			Convey("And a retry is answered as a duplicate", func() {
				again := do(mux, http.MethodPost, "/events", goalJSON, api.HeaderOperatorID, "u1")
				So(again.Code, ShouldEqual, http.StatusOK)
				So(decode[types.SubmitResult](again).Duplicate, ShouldBeTrue)
			})

			Convey("And the event log and session reflect it", func() {
				list := do(mux, http.MethodGet, "/matches/m1/events?after=0&limit=10", "")
				So(list.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Events []model.MatchEvent `json:"events"`
				}](list)
				So(body.Events, ShouldHaveLength, 1)
				So(body.Events[0].Details, ShouldResemble, model.GoalDetails{})

				status := decode[model.EntrySession](do(mux, http.MethodGet, "/matches/m1/operators/u1/session", ""))
				So(status.EventsEntered, ShouldEqual, 1)

				state := decode[types.MatchState](do(mux, http.MethodGet, "/matches/m1/state", ""))
				So(state.Score, ShouldResemble, model.Scoreline{"home": 1})
			})
		})

		Convey("When the submission is invalid", func() {
			w := do(mux, http.MethodPost, "/events", `{"matchId":"m1","eventType":"goal","minute":121}`, api.HeaderOperatorID, "u1")

			Convey("Then 422 carries the validation result", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				res := decode[model.ValidationResult](w)
				So(res.IsValid, ShouldBeFalse)
				So(res.Errors, ShouldContain, "teamId is required")
			})
		})

		Convey("When the operator header is missing or the body is broken", func() {
			So(do(mux, http.MethodPost, "/events", goalJSON).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/events", `{`, api.HeaderOperatorID, "u1").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing with a bad cursor", func() {
			So(do(mux, http.MethodGet, "/matches/m1/events?after=-1", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/matches/m1/events?limit=x", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When validating a form", func() {
			w := do(mux, http.MethodPost, "/events/validate", `{"matchId":"m1","eventType":"shot","minute":3,"teamId":"home","playerId":"p9"}`)

			Convey("Then the result includes suggestions and nothing is stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[model.ValidationResult](w)
				So(res.IsValid, ShouldBeTrue)
				So(res.Suggestions, ShouldNotBeEmpty)
				list := decode[struct {
					Events []model.MatchEvent `json:"events"`
				}](do(mux, http.MethodGet, "/matches/m1/events", ""))
				So(list.Events, ShouldBeEmpty)
			})
		})

		Convey("When asking for suggestions with a filled field", func() {
			w := do(mux, http.MethodGet, "/suggestions?matchId=m1&eventType=goal&location=box", "")

			Convey("Then that field's hint is omitted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Suggestions []string `json:"suggestions"`
				}](w)
				So(body.Suggestions, ShouldNotBeEmpty)
				So(body.Suggestions, ShouldNotContain, "location for better statistics")
			})
			So(do(mux, http.MethodGet, "/suggestions", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given the API over a failing store", t, func() {
		mux, svc := newTestMux(service.WithStore(brokenStore{MemoryStore: repository.NewMemoryStore()}))
		defer svc.Stop()

		Convey("When a valid event is submitted", func() {
			w := do(mux, http.MethodPost, "/events", goalJSON, api.HeaderOperatorID, "u1")

			Convey("Then the service is reported unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode[map[string]string](w)["code"], ShouldEqual, "persistence_unavailable")
			})
		})
	})
}

func TestMatchesAPI(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		mux, svc := newTestMux()
		defer svc.Stop()

		Convey("When a match is opened", func() {
			w := do(mux, http.MethodPost, "/matches", `{"matchId":"m1","homeTeamId":"home","awayTeamId":"away","periodMinutes":45}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/matches", `{"matchId":"m1"}`).Code, ShouldEqual, http.StatusOK)

			Convey("Then its clock can be driven", func() {
				So(do(mux, http.MethodGet, "/matches/m1/clock", "").Code, ShouldEqual, http.StatusOK)

				start := do(mux, http.MethodPost, "/matches/m1/clock/start", "")
				So(start.Code, ShouldEqual, http.StatusOK)
				So(decode[model.ClockState](start).Status, ShouldEqual, model.ClockRunning)

				injury := do(mux, http.MethodPost, "/matches/m1/clock/injury-time", `{"minutes":3}`)
				So(injury.Code, ShouldEqual, http.StatusOK)
				So(decode[model.ClockState](injury).InjuryTimeMinutes, ShouldEqual, 3)

				So(do(mux, http.MethodPost, "/matches/m1/clock/start", "").Code, ShouldEqual, http.StatusConflict)
				So(do(mux, http.MethodPost, "/matches/m1/clock/injury-time", `{"minutes":0}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/matches/m1/clock/rewind", "").Code, ShouldEqual, http.StatusBadRequest)

				So(do(mux, http.MethodPost, "/matches/m1/clock/pause", "").Code, ShouldEqual, http.StatusOK)
				period := do(mux, http.MethodPost, "/matches/m1/clock/period", `{"period":"second_half"}`)
				So(period.Code, ShouldEqual, http.StatusOK)
				So(decode[model.ClockState](period).Minute, ShouldEqual, 45)

				So(do(mux, http.MethodPost, "/matches/m1/clock/stop", "").Code, ShouldEqual, http.StatusOK)
				So(do(mux, http.MethodPost, "/matches/m1/clock/resume", "").Code, ShouldEqual, http.StatusConflict)
			})

			Convey("And its state is readable", func() {
				st := do(mux, http.MethodGet, "/matches/m1/state", "")
				So(st.Code, ShouldEqual, http.StatusOK)
				So(decode[types.MatchState](st).Clock.HomeTeamID, ShouldEqual, "home")
			})
		})

		Convey("When reading an unknown match", func() {
			So(do(mux, http.MethodGet, "/matches/none/clock", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/matches/none/state", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When opening without an id", func() {
			So(do(mux, http.MethodPost, "/matches", `{}`).Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalAPI(t *testing.T) {
	Convey("Given the API over a fresh service", t, func() {
		mux, svc := newTestMux()
		defer svc.Stop()

		Convey("Then health serves the metrics registry", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "touchline_")
		})

		Convey("Then stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](w)["started"], ShouldEqual, false)
		})

		Convey("Then unsupported methods are refused", func() {
			So(do(mux, http.MethodGet, "/events", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestStreamAPI(t *testing.T) {
	Convey("Given a running service with one stored event", t, func() {
		mux, svc := newTestMux()
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		srv := httptest.NewServer(mux)
		defer srv.Close()

		So(do(mux, http.MethodPost, "/events", goalJSON, api.HeaderOperatorID, "u1").Code, ShouldEqual, http.StatusCreated)

		Convey("When an observer connects from the start", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/matches/m1/stream?after=0", http.NoBody)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")
			lines := bufio.NewScanner(resp.Body)
			next := func() string {
				var id string
				for lines.Scan() {
					l := lines.Text()
					switch {
					case strings.HasPrefix(l, "id: "):
						id = l
					case l == "event: event_added":
						return id
					}
				}
				return ""
			}

			Convey("Then the stored event is replayed and new ones follow", func() {
				So(next(), ShouldEqual, "id: 1")

				second := strings.Replace(goalJSON, "s-1", "s-2", 1)
				So(do(mux, http.MethodPost, "/events", second, api.HeaderOperatorID, "u1").Code, ShouldEqual, http.StatusCreated)
				So(next(), ShouldEqual, "id: 2")
			})
		})
	})
}

type logDeps struct {
	store *repository.MemoryStore
	hub   *broadcast.Hub
}

func (d logDeps) Events(ctx context.Context, matchID string, after int64, limit int) ([]model.MatchEvent, error) {
	return d.store.ListByMatch(ctx, matchID, after, limit)
}

func (d logDeps) Subscribe(matchID string) *broadcast.Subscription { return d.hub.Subscribe(matchID) }

func TestStreamGapBackfill(t *testing.T) {
	Convey("Given a stream over an event log and a hub", t, func() {
		deps := logDeps{store: repository.NewMemoryStore(), hub: broadcast.NewHub()}
		persist := func(seq int64) model.MatchEvent {
			ev := model.MatchEvent{
				ID:        fmt.Sprintf("e-%d", seq),
				Sequence:  seq,
				MatchID:   "m1",
				Type:      model.EventCorner,
				Minute:    int(seq),
				TeamID:    "home",
				Timestamp: time.Now().UTC(),
			}
			So(deps.store.Persist(context.Background(), ev), ShouldBeNil)
			return ev
		}
		notify := func(ev model.MatchEvent) {
			deps.hub.Deliver(context.Background(), model.Notification{
				Kind: model.NotifyEventAdded, MatchID: "m1", Sequence: ev.Sequence, Event: &ev, At: ev.Timestamp,
			})
		}
		persist(1)
		persist(2)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /matches/{matchId}/stream", api.NewStreamHandler(deps, logger.Nop()).HandleStream)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/matches/m1/stream", http.NoBody)
		resp, err := http.DefaultClient.Do(req)
		So(err, ShouldBeNil)
		defer resp.Body.Close()

		lines := bufio.NewScanner(resp.Body)
		ids := func(n int) []string {
			var out []string
			for len(out) < n && lines.Scan() {
				if l := lines.Text(); strings.HasPrefix(l, "id: ") {
					out = append(out, l)
				}
			}
			return out
		}
		So(ids(2), ShouldResemble, []string{"id: 1", "id: 2"})

		Convey("When the notification for a persisted event never arrives", func() {
			persist(3)
			notify(persist(4))

			Convey("Then the missing event is read back from the log before the live one", func() {
				So(ids(2), ShouldResemble, []string{"id: 3", "id: 4"})
				So(deps.hub.Subscribers("m1"), ShouldEqual, 1)

				notify(persist(5))
				So(ids(1), ShouldResemble, []string{"id: 5"})
			})
		})

		Convey("When a live notification repeats a replayed sequence", func() {
			notify(model.MatchEvent{ID: "e-2", Sequence: 2, MatchID: "m1", Type: model.EventCorner, TeamID: "home"})
			notify(persist(3))

			Convey("Then it is not sent twice", func() {
				So(ids(1), ShouldResemble, []string{"id: 3"})
			})
		})
	})
}
