package matchsim

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/touchline/internal/adapters/http/api"
	service "github.com/okian/touchline/internal/app"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/internal/domain/validation"
	"github.com/okian/touchline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func testConfig() *Config {
	return &Config{
		Matches:           2,
		Operators:         3,
		EventsPerOperator: 40,
		DuplicateRate:     0.2,
		InvalidRate:       0.1,
		Workers:           6,
		Timeout:           5 * time.Second,
		Seed:              42,
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a simulation config", t, func() {
		cfg := testConfig()

		Convey("When traffic is generated twice with the same seed", func() {
			a := Generate(cfg)
			b := Generate(cfg)

			Convey("Then the event mix is identical", func() {
				So(len(a), ShouldEqual, len(b))
				for i := range a {
					So(a[i].Form.EventType, ShouldEqual, b[i].Form.EventType)
					So(a[i].Retry, ShouldEqual, b[i].Retry)
				}
			})
		})

		Convey("When each submission is validated", func() {
			subs := Generate(cfg)
			v := validation.New()

			Convey("Then only the deliberately invalid ones fail", func() {
				for _, s := range subs {
					res := v.Validate(&s.Form)
					So(res.IsValid, ShouldEqual, !s.Invalid)
				}
			})
		})

		Convey("When retries are generated", func() {
			subs := Generate(cfg)

			Convey("Then each repeats the submission right before it", func() {
				retries := 0
				for i, s := range subs {
					if !s.Retry {
						continue
					}
					retries++
					So(i, ShouldBeGreaterThan, 0)
					So(s.Form.SubmissionID, ShouldEqual, subs[i-1].Form.SubmissionID)
					So(s.Invalid, ShouldBeFalse)
				}
				So(retries, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestTallyCredit(t *testing.T) {
	Convey("Given a tally", t, func() {
		tl := newTally()

		Convey("When goals and own goals are credited", func() {
			tl.credit(model.MatchEvent{MatchID: "m1", Type: model.EventGoal, TeamID: homeTeam})
			tl.credit(model.MatchEvent{MatchID: "m1", Type: model.EventOwnGoal, TeamID: homeTeam})
			tl.credit(model.MatchEvent{MatchID: "m1", Type: model.EventFoul, TeamID: awayTeam})

			Convey("Then own goals count for the other side", func() {
				So(tl.perMatch["m1"], ShouldEqual, 3)
				So(tl.goals["m1"][homeTeam], ShouldEqual, 1)
				So(tl.goals["m1"][awayTeam], ShouldEqual, 1)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := testConfig()
		cfg.BaseURL = srv.URL
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "subs.json")

		Convey("When the simulation runs", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every match verifies", func() {
				So(err, ShouldBeNil)
				So(stats.MatchesVerified, ShouldEqual, cfg.Matches)
				So(stats.EventsFailed, ShouldEqual, 0)
				So(stats.EventsAccepted+stats.EventsDuplicate+stats.EventsRejected, ShouldEqual, stats.EventsSubmitted)
				_, statErr := os.Stat(cfg.OutputFile)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the service is unreachable", func() {
			srv.Close()
			_, err := Run(context.Background(), cfg)

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
