package model_test

import (
	"testing"

	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v int64) *int64 { return &v }

func TestFormatScore(t *testing.T) {
	Convey("Given a speedrun category", t, func() {
		Convey("Then elapsed milliseconds render as clock times", func() {
			So(model.FormatScore(ptr(3723450), true), ShouldEqual, "1:02:03.450")
			So(model.FormatScore(ptr(123450), true), ShouldEqual, "2:03.450")
			So(model.FormatScore(ptr(3450), true), ShouldEqual, "3.450")
			So(model.FormatScore(ptr(0), true), ShouldEqual, "0.000")
		})

		Convey("Then sub-minute values never grow a minutes column", func() {
			So(model.FormatScore(ptr(59999), true), ShouldEqual, "59.999")
			So(model.FormatScore(ptr(60000), true), ShouldEqual, "1:00.000")
		})

		Convey("Then hour rollover keeps zero-padded minutes", func() {
			So(model.FormatScore(ptr(3600000), true), ShouldEqual, "1:00:00.000")
		})
	})

	Convey("Given a points category", t, func() {
		Convey("Then scores render as signed deltas", func() {
			So(model.FormatScore(ptr(3), false), ShouldEqual, "+3")
			So(model.FormatScore(ptr(0), false), ShouldEqual, "±0")
			So(model.FormatScore(ptr(-2), false), ShouldEqual, "-2")
		})
	})

	Convey("Given no score at all", t, func() {
		Convey("Then both kinds render an em dash", func() {
			So(model.FormatScore(nil, true), ShouldEqual, "—")
			So(model.FormatScore(nil, false), ShouldEqual, "—")
		})
	})
}

func TestMatchHelpers(t *testing.T) {
	Convey("Given a two-team match", t, func() {
		m := &model.Match{
			ID:     "m1",
			Status: model.StatusOngoing,
			Teams: []model.Team{
				{ID: "t1", Num: "A", Players: []model.TeamPlayer{{PlayerID: "p1"}, {PlayerID: "p2"}}},
				{ID: "t2", Num: "B", Players: []model.TeamPlayer{{PlayerID: "p3"}, {PlayerID: "p4"}}},
			},
		}

		Convey("Then Entry finds a player's team and slot", func() {
			team, tp := m.Entry("p3")
			So(team, ShouldNotBeNil)
			So(team.ID, ShouldEqual, "t2")
			So(tp.PlayerID, ShouldEqual, "p3")
		})

		Convey("Then Entry misses for outsiders", func() {
			team, tp := m.Entry("p9")
			So(team, ShouldBeNil)
			So(tp, ShouldBeNil)
		})

		Convey("Then a team score exists only once every member reported", func() {
			_, ok := m.Teams[0].Score()
			So(ok, ShouldBeFalse)

			m.Teams[0].Players[0].Score = ptr(10)
			_, ok = m.Teams[0].Score()
			So(ok, ShouldBeFalse)

			m.Teams[0].Players[1].Score = ptr(5)
			total, ok := m.Teams[0].Score()
			So(ok, ShouldBeTrue)
			So(total, ShouldEqual, 15)
		})

		Convey("Then activity follows the status", func() {
			So(m.Active(), ShouldBeTrue)
			m.Status = model.StatusResultContested
			So(m.Active(), ShouldBeFalse)
			m.Status = model.StatusCancelled
			So(m.Active(), ShouldBeFalse)
		})

		Convey("Then PlayerIDs walks teams in order", func() {
			So(m.PlayerIDs(), ShouldResemble, []string{"p1", "p2", "p3", "p4"})
		})
	})
}
