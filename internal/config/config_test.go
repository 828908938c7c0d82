package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewDefaults(t *testing.T) {
	Convey("Given a default config", t, func() {
		c := New()

		Convey("Then the defaults are sane", func() {
			So(c.LogLevel, ShouldEqual, "info")
			So(c.Addr, ShouldEqual, ":9080")
			So(c.DBPath, ShouldEqual, "")
			So(c.StartingMu, ShouldEqual, 1500)
			So(c.MatchmakingAdmissionDelay, ShouldEqual, 2)
			So(c.MaxMatchPlayers, ShouldEqual, 8)
			So(c.ReportQueueSize, ShouldEqual, 100_000)
			So(c.WorkerCount, ShouldBeGreaterThan, 0)
			So(c.DedupeSize, ShouldEqual, 500_000)
			So(c.MaxLeaderboardLimit, ShouldEqual, 100)
		})

		Convey("Then the defaults validate", func() {
			So(c.validate(), ShouldBeNil)
		})
	})
}
