package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/touchline/internal/domain/dedupe"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCacheDeduper(t *testing.T) {
	Convey("Given a new CacheDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewCacheDeduper(dedupe.WithLogger(logger.Nop()))

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
			_, found := d.Lookup(ctx, "m1", "s1")
			So(found, ShouldBeFalse)
		})

		Convey("When a submission is recorded", func() {
			ev := model.MatchEvent{ID: "e1", Sequence: 3, MatchID: "m1", Type: model.EventGoal}
			d.Record(ctx, "m1", "s1", ev)

			Convey("Then a lookup returns the original event", func() {
				got, found := d.Lookup(ctx, "m1", "s1")
				So(found, ShouldBeTrue)
				So(got.ID, ShouldEqual, "e1")
				So(got.Sequence, ShouldEqual, int64(3))
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same submission id on another match is unrelated", func() {
				_, found := d.Lookup(ctx, "m2", "s1")
				So(found, ShouldBeFalse)
			})

			Convey("And Unrecord forgets it", func() {
				d.Unrecord(ctx, "m1", "s1")
				_, found := d.Lookup(ctx, "m1", "s1")
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the submission id is empty", func() {
			d.Record(ctx, "m1", "", model.MatchEvent{ID: "e1"})

			Convey("Then nothing is stored", func() {
				So(d.Size(), ShouldEqual, 0)
				_, found := d.Lookup(ctx, "m1", "")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestCacheDeduperExpiry(t *testing.T) {
	Convey("Given a deduper with a short TTL", t, func() {
		ctx := context.Background()
		d := dedupe.NewCacheDeduper(
			dedupe.WithTTL(20*time.Millisecond),
			dedupe.WithCleanupInterval(10*time.Millisecond),
			dedupe.WithLogger(logger.Nop()),
		)
		d.Record(ctx, "m1", "s1", model.MatchEvent{ID: "e1"})

		Convey("When the TTL passes", func() {
			time.Sleep(60 * time.Millisecond)

			Convey("Then the submission is forgotten", func() {
				_, found := d.Lookup(ctx, "m1", "s1")
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestCacheDeduperConcurrency(t *testing.T) {
	Convey("Given concurrent writers on different matches", t, func() {
		ctx := context.Background()
		d := dedupe.NewCacheDeduper(dedupe.WithLogger(logger.Nop()))

		var wg sync.WaitGroup
		for m := 0; m < 8; m++ {
			wg.Add(1)
			go func(m int) {
				defer wg.Done()
				matchID := fmt.Sprintf("m%d", m)
				for i := 0; i < 100; i++ {
					d.Record(ctx, matchID, fmt.Sprintf("s%d", i), model.MatchEvent{Sequence: int64(i + 1)})
				}
			}(m)
		}
		wg.Wait()

		Convey("Then every submission is retrievable", func() {
			So(d.Size(), ShouldEqual, 800)
			ev, found := d.Lookup(ctx, "m5", "s42")
			So(found, ShouldBeTrue)
			So(ev.Sequence, ShouldEqual, int64(43))
		})
	})
}
