package main

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestRootCmd(t *testing.T) {
	convey.Convey("Given the match-sim command", t, func() {
		cmd := newRootCmd()

		convey.Convey("When flags are parsed", func() {
			err := cmd.ParseFlags([]string{"-m", "7", "--events", "12", "--duplicates", "0.5", "--seed", "9", "--url", "http://sim:1"})

			convey.Convey("Then the values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				matches, _ := cmd.Flags().GetInt("matches")
				events, _ := cmd.Flags().GetInt("events")
				seed, _ := cmd.Flags().GetUint64("seed")
				url, _ := cmd.Flags().GetString("url")
				convey.So(matches, convey.ShouldEqual, 7)
				convey.So(events, convey.ShouldEqual, 12)
				convey.So(seed, convey.ShouldEqual, uint64(9))
				convey.So(url, convey.ShouldEqual, "http://sim:1")
			})
		})

		convey.Convey("When defaults are read", func() {
			operators, _ := cmd.Flags().GetInt("operators")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			convey.Convey("Then they match the documented defaults", func() {
				convey.So(operators, convey.ShouldEqual, defaultOperators)
				convey.So(timeout, convey.ShouldEqual, defaultTimeout)
			})
		})
	})
}
