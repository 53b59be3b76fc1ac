package broadcast_test

import (
	"context"
	"testing"

	"github.com/okian/touchline/internal/adapters/broadcast"
	"github.com/okian/touchline/internal/adapters/mq/worker"
	"github.com/okian/touchline/internal/domain/model"
	"github.com/okian/touchline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func note(matchID string, seq int64) model.Notification {
	return model.Notification{Kind: model.NotifyEventAdded, MatchID: matchID, Sequence: seq}
}

func TestHub(t *testing.T) {
	Convey("Given a hub with observers on two matches", t, func() {
		ctx := context.Background()
		h := broadcast.NewHub(broadcast.WithSubscriberBuffer(2), broadcast.WithHubLogger(logger.Nop()))
		a := h.Subscribe("m1")
		b := h.Subscribe("m1")
		c := h.Subscribe("m2")

		So(h.Count(), ShouldEqual, 3)
		So(h.Subscribers("m1"), ShouldEqual, 2)

		Convey("When a notification is delivered for m1", func() {
			h.Deliver(ctx, note("m1", 1))

			Convey("Then only m1 observers receive it", func() {
				So((<-a.C()).Sequence, ShouldEqual, int64(1))
				So((<-b.C()).Sequence, ShouldEqual, int64(1))
				So(len(c.C()), ShouldEqual, 0)
			})
		})

		Convey("When an observer stops reading", func() {
			h.Deliver(ctx, note("m1", 1))
			h.Deliver(ctx, note("m1", 2))
			<-b.C()
			<-b.C()
			h.Deliver(ctx, note("m1", 3))

			Convey("Then it is dropped while the others keep receiving", func() {
				So(a.Lagged(), ShouldBeTrue)
				So(b.Lagged(), ShouldBeFalse)
				So(h.Subscribers("m1"), ShouldEqual, 1)
				So((<-b.C()).Sequence, ShouldEqual, int64(3))

				// the lagged channel drains its buffer then closes
				var seqs []int64
				for n := range a.C() {
					seqs = append(seqs, n.Sequence)
				}
				So(seqs, ShouldResemble, []int64{1, 2})
			})
		})

		Convey("When an event notification skips a sequence", func() {
			h.Deliver(ctx, note("m1", 1))
			<-a.C()
			<-b.C()
			h.Deliver(ctx, note("m1", 3))

			Convey("Then every observer of the match is dropped for resync", func() {
				So(a.Lagged(), ShouldBeTrue)
				So(b.Lagged(), ShouldBeTrue)
				So(h.Subscribers("m1"), ShouldEqual, 0)
				_, open := <-a.C()
				So(open, ShouldBeFalse)
				So(h.Subscribers("m2"), ShouldEqual, 1)
			})
		})

		Convey("When an observer joins after events were published", func() {
			late := h.Subscribe("m2")
			var got []model.Notification
			for _, n := range []model.Notification{
				note("m2", 7),
				note("m2", 8),
				{Kind: model.NotifyScoreUpdated, MatchID: "m2", Sequence: 8},
			} {
				h.Deliver(ctx, n)
				got = append(got, <-late.C())
			}

			Convey("Then its first event sets the baseline", func() {
				So(late.Lagged(), ShouldBeFalse)
				So(got[0].Sequence, ShouldEqual, int64(7))
				So(got[1].Sequence, ShouldEqual, int64(8))
				So(got[2].Kind, ShouldEqual, model.NotifyScoreUpdated)
			})
		})

		Convey("When the hub closes every subscription", func() {
			h.CloseAll()

			Convey("Then all channels close without the lagged flag", func() {
				for _, s := range []*broadcast.Subscription{a, b, c} {
					_, open := <-s.C()
					So(open, ShouldBeFalse)
					So(s.Lagged(), ShouldBeFalse)
				}
				So(h.Count(), ShouldEqual, 0)
				a.Close()
				So(h.Count(), ShouldEqual, 0)
			})

			Convey("And a later subscriber gets a closed feed", func() {
				late := h.Subscribe("m1")
				_, open := <-late.C()
				So(open, ShouldBeFalse)
				So(h.Subscribers("m1"), ShouldEqual, 0)
				late.Close()
			})
		})

		Convey("When an observer closes its subscription twice", func() {
			c.Close()
			c.Close()

			Convey("Then it is removed once and its channel is closed", func() {
				So(h.Count(), ShouldEqual, 2)
				_, open := <-c.C()
				So(open, ShouldBeFalse)
				So(c.Lagged(), ShouldBeFalse)
				h.Deliver(ctx, note("m2", 1))
			})
		})
	})
}

func TestPublisher(t *testing.T) {
	Convey("Given a publisher over a running dispatcher", t, func() {
		ctx := context.Background()
		h := broadcast.NewHub(broadcast.WithHubLogger(logger.Nop()))
		pool := worker.NewPool(2, 16, h, worker.WithPoolLogger(logger.Nop()))
		pool.Start(ctx)
		p := broadcast.NewPublisher(pool, broadcast.WithPublisherLogger(logger.Nop()))
		sub := h.Subscribe("m1")

		Convey("When notifications are published", func() {
			for seq := int64(1); seq <= 5; seq++ {
				p.Publish(ctx, note("m1", seq))
			}
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then the observer receives them in order", func() {
				for seq := int64(1); seq <= 5; seq++ {
					So((<-sub.C()).Sequence, ShouldEqual, seq)
				}
			})

			Convey("And publishing after shutdown is dropped without blocking", func() {
				p.Publish(ctx, note("m1", 6))
				So(len(sub.C()), ShouldEqual, 5)
			})
		})
	})
}
