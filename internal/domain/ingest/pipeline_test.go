package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/okian/touchline/internal/adapters/repository"
	"github.com/okian/touchline/internal/domain/clock"
	"github.com/okian/touchline/internal/domain/dedupe"
	"github.com/okian/touchline/internal/domain/ingest"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/session"
	"github.com/okian/touchline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type flakyStore struct {
	*repository.MemoryStore
	mu   sync.Mutex
	fail bool
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *flakyStore) Persist(ctx context.Context, ev model.MatchEvent) error {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Persist(ctx, ev)
}

type recorder struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recorder) Publish(_ context.Context, n model.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.notes...)
}

type fixture struct {
	store    *flakyStore
	sessions *session.Registry
	clocks   *clock.Registry
	bus      *recorder
	pipeline *ingest.Pipeline
}

func newFixture(opts ...ingest.Option) *fixture {
	f := &fixture{
		store:    &flakyStore{MemoryStore: repository.NewMemoryStore()},
		sessions: session.New(session.WithLogger(logger.Nop())),
		clocks:   clock.NewRegistry(),
		bus:      &recorder{},
	}
	opts = append([]ingest.Option{
		ingest.WithLogger(logger.Nop()),
		ingest.WithDeduper(dedupe.NewCacheDeduper(dedupe.WithLogger(logger.Nop()))),
	}, opts...)
	f.pipeline = ingest.New(f.store, f.sessions, f.clocks, f.bus, opts...)
	return f
}

func goal(matchID, teamID string, minute int) *model.EventEntryFormData {
	return &model.EventEntryFormData{
		MatchID:   matchID,
		EventType: model.EventGoal,
		TeamID:    teamID,
		PlayerID:  "p7",
		Minute:    model.IntPtr(minute),
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	Convey("Given an operator with an open session on m1", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.sessions.Start(ctx, "m1", "u1", "scorer")

		Convey("When a goal is submitted", func() {
			res, err := f.pipeline.Submit(ctx, goal("m1", "home", 23), "u1", "scorer")

			Convey("Then the created event is returned", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(res.Event.Type, ShouldEqual, model.EventGoal)
				So(res.Event.Minute, ShouldEqual, 23)
				So(res.Event.TeamID, ShouldEqual, "home")
				So(res.Event.PlayerID, ShouldEqual, "p7")
				So(res.Event.Sequence, ShouldEqual, int64(1))
				So(res.Event.ID, ShouldNotBeEmpty)
				So(res.Event.OperatorID, ShouldEqual, "u1")
			})

			Convey("And the session is credited", func() {
				s, ok := f.sessions.ForOperator("m1", "u1")
				So(ok, ShouldBeTrue)
				So(s.EventsEntered, ShouldEqual, 1)
				So(f.sessions.Stats("m1"), ShouldResemble, model.SessionStats{
					TotalSessions:           1,
					ActiveSessions:          1,
					TotalEvents:             1,
					AverageEventsPerSession: 1,
				})
			})

			Convey("And observers are told about the event and the score", func() {
				notes := f.bus.all()
				So(notes, ShouldHaveLength, 2)
				So(notes[0].Kind, ShouldEqual, model.NotifyEventAdded)
				So(notes[0].Event.Sequence, ShouldEqual, int64(1))
				So(notes[1].Kind, ShouldEqual, model.NotifyScoreUpdated)
				So(notes[1].Score, ShouldResemble, model.Scoreline{"home": 1})
				So(f.pipeline.Score("m1"), ShouldResemble, model.Scoreline{"home": 1})
			})

			Convey("And the event is persisted", func() {
				evs, err := f.store.ListByMatch(ctx, "m1", 0, 0)
				So(err, ShouldBeNil)
				So(evs, ShouldHaveLength, 1)
				So(evs[0].Details, ShouldResemble, model.GoalDetails{})
			})
		})

		Convey("When a non-scoring event is submitted without a session", func() {
			res, err := f.pipeline.Submit(ctx, &model.EventEntryFormData{
				MatchID: "m1", EventType: model.EventCorner, TeamID: "away", Minute: model.IntPtr(5),
			}, "u9", "admin")

			Convey("Then it is accepted and only event_added is published", func() {
				So(err, ShouldBeNil)
				So(res.Event.Sequence, ShouldEqual, int64(1))
				notes := f.bus.all()
				So(notes, ShouldHaveLength, 1)
				So(notes[0].Kind, ShouldEqual, model.NotifyEventAdded)
			})
		})
	})
}

func TestPipeline_Rejections(t *testing.T) {
	Convey("Given a pipeline", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.sessions.Start(ctx, "m1", "u1", "scorer")

		Convey("When the submission is invalid", func() {
			_, err := f.pipeline.Submit(ctx, &model.EventEntryFormData{MatchID: "m1", EventType: model.EventGoal, Minute: model.IntPtr(130)}, "u1", "scorer")

			Convey("Then the validation result is returned with no side effects", func() {
				var rej *ingest.RejectedError
				So(errors.As(err, &rej), ShouldBeTrue)
				So(errors.Is(err, ingest.ErrValidation), ShouldBeTrue)
				So(rej.Result.IsValid, ShouldBeFalse)
				So(rej.Result.Errors, ShouldContain, "minute must be between 0 and 120")

				s, _ := f.sessions.ForOperator("m1", "u1")
				So(s.EventsEntered, ShouldEqual, 0)
				So(f.bus.all(), ShouldBeEmpty)
				n, _ := f.store.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When a nil submission arrives", func() {
			_, err := f.pipeline.Submit(ctx, nil, "u1", "scorer")
			So(errors.Is(err, ingest.ErrValidation), ShouldBeTrue)
		})

		Convey("When persistence fails", func() {
			f.store.setFail(true)
			_, err := f.pipeline.Submit(ctx, goal("m1", "home", 10), "u1", "scorer")

			Convey("Then nothing else is mutated", func() {
				So(errors.Is(err, ingest.ErrPersistence), ShouldBeTrue)
				s, _ := f.sessions.ForOperator("m1", "u1")
				So(s.EventsEntered, ShouldEqual, 0)
				So(f.bus.all(), ShouldBeEmpty)
				So(f.pipeline.Score("m1"), ShouldBeEmpty)
				last, err := f.pipeline.LastSequence(ctx, "m1")
				So(err, ShouldBeNil)
				So(last, ShouldEqual, int64(0))
			})

			Convey("And a retry after recovery takes sequence 1", func() {
				f.store.setFail(false)
				res, err := f.pipeline.Submit(ctx, goal("m1", "home", 10), "u1", "scorer")
				So(err, ShouldBeNil)
				So(res.Event.Sequence, ShouldEqual, int64(1))
			})
		})
	})
}

func TestPipeline_Duplicates(t *testing.T) {
	Convey("Given a submission carrying a submission id", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.sessions.Start(ctx, "m1", "u1", "scorer")
		form := goal("m1", "home", 30)
		form.SubmissionID = "client-42"

		first, err := f.pipeline.Submit(ctx, form, "u1", "scorer")
		So(err, ShouldBeNil)

		Convey("When the client retries it", func() {
			again, err := f.pipeline.Submit(ctx, form, "u1", "scorer")

			Convey("Then the original event is replayed without side effects", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.Event.ID, ShouldEqual, first.Event.ID)
				So(again.Event.Sequence, ShouldEqual, int64(1))

				s, _ := f.sessions.ForOperator("m1", "u1")
				So(s.EventsEntered, ShouldEqual, 1)
				So(f.pipeline.Score("m1"), ShouldResemble, model.Scoreline{"home": 1})
				So(f.bus.all(), ShouldHaveLength, 2)
			})
		})
	})
}

func TestPipeline_ClockIntegration(t *testing.T) {
	Convey("Given a running clock in the second half", t, func() {
		ctx := context.Background()
		f := newFixture()
		c, _ := f.clocks.Open("m1", "home", "away", 45)
		_, _ = c.Start()
		_, _ = c.Pause()
		_, _ = c.SkipToPeriod(model.PeriodSecondHalf)
		_, _ = c.Resume()
		c.Advance(12*time.Minute + 5*time.Second)

		Convey("When an event without a minute is submitted", func() {
			res, err := f.pipeline.Submit(ctx, &model.EventEntryFormData{
				MatchID: "m1", EventType: model.EventOwnGoal, TeamID: "away", PlayerID: "p3",
			}, "u1", "scorer")

			Convey("Then the minute and period come from the clock", func() {
				So(err, ShouldBeNil)
				So(res.Event.Minute, ShouldEqual, 57)
				So(res.Event.Period, ShouldEqual, model.PeriodSecondHalf)
			})

			Convey("And the own goal credits the opponent", func() {
				So(f.pipeline.Score("m1"), ShouldResemble, model.Scoreline{"home": 1})
			})
		})

		Convey("When validating without a minute", func() {
			res := f.pipeline.Validate(&model.EventEntryFormData{MatchID: "m1", EventType: model.EventShot, TeamID: "home", PlayerID: "p9"})

			Convey("Then the stamped minute passes and suggestions are merged", func() {
				So(res.IsValid, ShouldBeTrue)
				So(res.Suggestions, ShouldNotBeEmpty)
				seen := map[string]bool{}
				for _, s := range res.Suggestions {
					So(seen[s], ShouldBeFalse)
					seen[s] = true
				}
			})
		})
	})

	Convey("Given no clock and teams unknown", t, func() {
		ctx := context.Background()
		f := newFixture()

		Convey("When an own goal is submitted", func() {
			_, err := f.pipeline.Submit(ctx, &model.EventEntryFormData{
				MatchID: "m2", EventType: model.EventOwnGoal, TeamID: "blue", PlayerID: "p3", Minute: model.IntPtr(3),
			}, "u1", "scorer")

			Convey("Then it is recorded against the opponent key", func() {
				So(err, ShouldBeNil)
				So(f.pipeline.Score("m2"), ShouldResemble, model.Scoreline{"opponent_of:blue": 1})
			})
		})

		Convey("When the minute is missing", func() {
			_, err := f.pipeline.Submit(ctx, &model.EventEntryFormData{MatchID: "m2", EventType: model.EventCorner, TeamID: "blue"}, "u1", "scorer")
			So(errors.Is(err, ingest.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestPipeline_ResumesSequenceFromStore(t *testing.T) {
	Convey("Given a store that already holds events for m1", t, func() {
		ctx := context.Background()
		f := newFixture()
		So(f.store.MemoryStore.Persist(ctx, model.MatchEvent{ID: "old", MatchID: "m1", Sequence: 7, Type: model.EventFoul}), ShouldBeNil)

		Convey("When a new event is submitted", func() {
			res, err := f.pipeline.Submit(ctx, goal("m1", "home", 50), "u1", "scorer")

			Convey("Then it continues after the stored sequence", func() {
				So(err, ShouldBeNil)
				So(res.Event.Sequence, ShouldEqual, int64(8))
			})
		})
	})
}

func TestPipeline_Tracing(t *testing.T) {
	Convey("Given a pipeline with a recording tracer", t, func() {
		exp := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		f := newFixture(ingest.WithTracer(tp.Tracer("test")))

		Convey("When an event is submitted", func() {
			_, err := f.pipeline.Submit(context.Background(), goal("m1", "home", 1), "u1", "scorer")
			So(err, ShouldBeNil)

			Convey("Then one ingest.submit span is recorded", func() {
				spans := exp.GetSpans()
				So(spans, ShouldHaveLength, 1)
				So(spans[0].Name, ShouldEqual, "ingest.submit")
			})
		})
	})
}

func TestPipeline_ConcurrentSequencing(t *testing.T) {
	Convey("Given many operators submitting to one match at once", t, func() {
		ctx := context.Background()
		f := newFixture()

		var wg sync.WaitGroup
		for op := 0; op < 8; op++ {
			wg.Add(1)
			go func(op int) {
				defer wg.Done()
				operator := fmt.Sprintf("u%d", op)
				f.sessions.Start(ctx, "m1", operator, "scorer")
				for i := 0; i < 25; i++ {
					_, _ = f.pipeline.Submit(ctx, goal("m1", "home", i), operator, "scorer")
				}
			}(op)
		}
		wg.Wait()

		Convey("Then sequences are gap-free and published in order", func() {
			evs, err := f.store.ListByMatch(ctx, "m1", 0, 0)
			So(err, ShouldBeNil)
			So(evs, ShouldHaveLength, 200)
			for i, ev := range evs {
				So(ev.Sequence, ShouldEqual, int64(i+1))
			}

			var last int64
			for _, n := range f.bus.all() {
				if n.Kind != model.NotifyEventAdded {
					continue
				}
				So(n.Sequence, ShouldEqual, last+1)
				last = n.Sequence
			}
			So(f.sessions.Stats("m1").TotalEvents, ShouldEqual, 200)
			So(f.pipeline.Score("m1")["home"], ShouldEqual, 200)
		})
	})
}

func TestPipeline_SequencesStayDenseUnderFailures(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		f := newFixture()
		steps := rapid.SliceOfN(rapid.Bool(), 1, 30).Draw(t, "fail")

		var accepted int64
		for _, fail := range steps {
			f.store.setFail(fail)
			res, err := f.pipeline.Submit(ctx, goal("m1", "home", 1), "u1", "scorer")
			if fail {
				if !errors.Is(err, ingest.ErrPersistence) {
					t.Fatalf("expected persistence error, got %v", err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			accepted++
			if res.Event.Sequence != accepted {
				t.Fatalf("sequence %d, want %d", res.Event.Sequence, accepted)
			}
		}
		f.store.setFail(false)
		last, err := f.pipeline.LastSequence(ctx, "m1")
		if err != nil || last != accepted {
			t.Fatalf("last sequence %d (%v), want %d", last, err, accepted)
		}
	})
}
