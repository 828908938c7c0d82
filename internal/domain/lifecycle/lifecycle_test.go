package lifecycle_test

import (
	"testing"
	"time"

	lifecycle "github.com/okian/ladder/internal/domain/lifecycle"
	"github.com/okian/ladder/internal/domain/model"
	rating "github.com/okian/ladder/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func newEngine() *lifecycle.Engine {
	clock := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	return lifecycle.New(rating.New(), lifecycle.WithClock(func() time.Time { return clock }))
}

func speedrunDuel() *model.Category {
	return &model.Category{
		ID: "cat-1", Shortcode: "any%", Speedrun: true,
		NumTeams: 2, PlayersPerTeam: 1,
	}
}

func seeds(ids ...string) [][]lifecycle.Seed {
	teams := make([][]lifecycle.Seed, 0, len(ids))
	for _, id := range ids {
		teams = append(teams, []lifecycle.Seed{{PlayerID: id, Rating: rating.Rating{Mu: 1500, Sigma: 500}}})
	}
	return teams
}

func TestNewMatch(t *testing.T) {
	Convey("Given a lifecycle engine", t, func() {
		e := newEngine()

		Convey("When a match is created for a category without livestream checks", func() {
			m, err := e.NewMatch(speedrunDuel(), seeds("p1", "p2"))

			Convey("Then it starts ongoing with rating snapshots taken", func() {
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusOngoing)
				So(m.Teams, ShouldHaveLength, 2)
				So(m.Teams[0].Num, ShouldEqual, "A")
				So(m.Teams[1].Num, ShouldEqual, "B")
				So(m.Teams[0].Players[0].MuBefore, ShouldEqual, 1500)
				So(m.Teams[0].Players[0].SigmaBefore, ShouldEqual, 500)
				So(m.Teams[0].Players[0].ScoreFormatted, ShouldEqual, "—")
			})
		})

		Convey("When the category requires livestreams", func() {
			category := speedrunDuel()
			category.RequireLivestream = true
			m, err := e.NewMatch(category, seeds("p1", "p2"))

			Convey("Then it starts waiting for livestreams", func() {
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusWaitingForLivestreams)
			})
		})

		Convey("When a player appears in two teams", func() {
			_, err := e.NewMatch(speedrunDuel(), seeds("p1", "p1"))

			Convey("Then construction is rejected", func() {
				So(err, ShouldEqual, lifecycle.ErrDuplicatePlayer)
			})
		})

		Convey("When only one team is given", func() {
			_, err := e.NewMatch(speedrunDuel(), seeds("p1"))
			So(err, ShouldEqual, lifecycle.ErrTooFewTeams)
		})
	})
}

func TestReportScore(t *testing.T) {
	Convey("Given an ongoing 1v1 speedrun match", t, func() {
		e := newEngine()
		category := speedrunDuel()
		m, err := e.NewMatch(category, seeds("p1", "p2"))
		So(err, ShouldBeNil)

		Convey("When an outsider reports a score", func() {
			_, err := e.ReportScore(m, category, "p3", 65000)

			Convey("Then the report is rejected as invalid input", func() {
				So(err, ShouldEqual, lifecycle.ErrNotInMatch)
			})
		})

		Convey("When a negative elapsed time is reported", func() {
			_, err := e.ReportScore(m, category, "p1", -1)
			So(err, ShouldEqual, lifecycle.ErrInvalidScore)
		})

		Convey("When only one player has reported", func() {
			_, err := e.ReportScore(m, category, "p1", 65000)

			Convey("Then the match stays ongoing with no places", func() {
				So(err, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusOngoing)
				So(m.Teams[0].Place, ShouldNotBeNil) // only complete team, provisionally first
				So(m.Teams[1].Place, ShouldBeNil)
				So(m.FinishedAt, ShouldBeNil)
			})

			Convey("And the formatted score reads as a clock time", func() {
				So(m.Teams[0].Players[0].ScoreFormatted, ShouldEqual, "1:05.000")
			})
		})

		Convey("When both players have reported", func() {
			_, err := e.ReportScore(m, category, "p1", 65000)
			So(err, ShouldBeNil)
			updated, err := e.ReportScore(m, category, "p2", 70000)

			Convey("Then the faster run places first and the match finishes", func() {
				So(err, ShouldBeNil)
				So(*m.Teams[0].Place, ShouldEqual, 1)
				So(*m.Teams[1].Place, ShouldEqual, 2)
				So(m.Status, ShouldEqual, model.StatusFinished)
				So(m.FinishedAt, ShouldNotBeNil)
			})

			Convey("And ratings move with the result", func() {
				So(updated, ShouldHaveLength, 2)
				So(updated[0].PlayerID, ShouldEqual, "p1")
				So(updated[0].Mu, ShouldBeGreaterThan, 1500)
				So(updated[1].PlayerID, ShouldEqual, "p2")
				So(updated[1].Mu, ShouldBeLessThan, 1500)
			})

			Convey("And the audit trail holds rounded mu and full-precision sigma", func() {
				winner := m.Teams[0].Players[0]
				So(winner.MuAfter, ShouldNotBeNil)
				So(*winner.MuAfter, ShouldEqual, float64(rating.PublishMu(updated[0].Mu)))
				So(*winner.SigmaAfter, ShouldEqual, updated[0].Sigma)
			})

			Convey("And reporting onto the finished match is rejected", func() {
				_, err := e.ReportScore(m, category, "p1", 60000)
				So(err, ShouldEqual, lifecycle.ErrMatchNotActive)
			})
		})
	})

	Convey("Given a category that requires agreement on results", t, func() {
		e := newEngine()
		category := speedrunDuel()
		category.RequireAgrees = true
		m, err := e.NewMatch(category, seeds("p1", "p2"))
		So(err, ShouldBeNil)

		Convey("When both scores arrive", func() {
			_, err := e.ReportScore(m, category, "p1", 65000)
			So(err, ShouldBeNil)
			updated, err := e.ReportScore(m, category, "p2", 70000)

			Convey("Then the match waits for agrees instead of finishing", func() {
				So(err, ShouldBeNil)
				So(updated, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusWaitingForAgrees)
			})

			Convey("And the agree transition finishes and rates it", func() {
				updated, err := e.Transition(m, category, model.StatusFinished)
				So(err, ShouldBeNil)
				So(updated, ShouldHaveLength, 2)
				So(m.Status, ShouldEqual, model.StatusFinished)
			})

			Convey("And a contested result finishes without touching ratings", func() {
				_, err := e.Transition(m, category, model.StatusResultContested)
				So(err, ShouldBeNil)
				updated, err := e.Transition(m, category, model.StatusFinished)
				So(err, ShouldBeNil)
				So(updated, ShouldBeNil)
				So(m.Teams[0].Players[0].MuAfter, ShouldBeNil)
			})
		})
	})

	Convey("Given a match gated on livestream checks", t, func() {
		e := newEngine()
		category := speedrunDuel()
		category.RequireLivestream = true
		m, err := e.NewMatch(category, seeds("p1", "p2"))
		So(err, ShouldBeNil)

		Convey("When both scores arrive before the gate opens", func() {
			_, err := e.ReportScore(m, category, "p1", 65000)
			So(err, ShouldBeNil)
			updated, err := e.ReportScore(m, category, "p2", 70000)

			Convey("Then the match holds at the livestream gate", func() {
				So(err, ShouldBeNil)
				So(updated, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusWaitingForLivestreams)
			})

			Convey("And opening the gate completes it", func() {
				updated, err := e.Transition(m, category, model.StatusOngoing)
				So(err, ShouldBeNil)
				So(updated, ShouldHaveLength, 2)
				So(m.Status, ShouldEqual, model.StatusFinished)
			})
		})
	})
}

func TestForfeits(t *testing.T) {
	Convey("Given a four-team match", t, func() {
		e := newEngine()
		category := &model.Category{ID: "cat-ffa", Speedrun: true, NumTeams: 4, PlayersPerTeam: 1}
		m, err := e.NewMatch(category, seeds("p1", "p2", "p3", "p4"))
		So(err, ShouldBeNil)

		Convey("When teams two and four forfeit and the rest report", func() {
			_, err := e.SetForfeit(m, category, m.Teams[1].ID)
			So(err, ShouldBeNil)
			_, err = e.SetForfeit(m, category, m.Teams[3].ID)
			So(err, ShouldBeNil)
			_, err = e.ReportScore(m, category, "p1", 70000)
			So(err, ShouldBeNil)
			updated, err := e.ReportScore(m, category, "p3", 65000)
			So(err, ShouldBeNil)

			Convey("Then both forfeited teams share the place after the finishers", func() {
				So(*m.Teams[1].Place, ShouldEqual, 3)
				So(*m.Teams[3].Place, ShouldEqual, 3)
			})

			Convey("And the finishers rank purely by score", func() {
				So(*m.Teams[2].Place, ShouldEqual, 1)
				So(*m.Teams[0].Place, ShouldEqual, 2)
			})

			Convey("And the match finishes with all four teams rated", func() {
				So(m.Status, ShouldEqual, model.StatusFinished)
				So(updated, ShouldHaveLength, 4)
			})
		})

		Convey("When a forfeit names an unknown team", func() {
			_, err := e.SetForfeit(m, category, "nope")
			So(err, ShouldEqual, lifecycle.ErrTeamNotFound)
		})
	})

	Convey("Given a 1v1 match where one side forfeits immediately", t, func() {
		e := newEngine()
		category := speedrunDuel()
		m, err := e.NewMatch(category, seeds("p1", "p2"))
		So(err, ShouldBeNil)

		updated, err := e.SetForfeit(m, category, m.Teams[1].ID)

		Convey("Then the survivor wins without reporting a score", func() {
			So(err, ShouldBeNil)
			So(*m.Teams[0].Place, ShouldEqual, 1)
			So(*m.Teams[1].Place, ShouldEqual, 2)
			So(m.Status, ShouldEqual, model.StatusFinished)
			So(updated, ShouldHaveLength, 2)
			So(updated[0].Mu, ShouldBeGreaterThan, 1500)
		})
	})
}

func TestTransitions(t *testing.T) {
	Convey("Given lifecycle transitions", t, func() {
		e := newEngine()
		category := speedrunDuel()

		Convey("When a finished match is reopened", func() {
			m, err := e.NewMatch(category, seeds("p1", "p2"))
			So(err, ShouldBeNil)
			_, err = e.ReportScore(m, category, "p1", 65000)
			So(err, ShouldBeNil)
			_, err = e.ReportScore(m, category, "p2", 70000)
			So(err, ShouldBeNil)
			So(m.Status, ShouldEqual, model.StatusFinished)

			_, err = e.Transition(m, category, model.StatusOngoing)

			Convey("Then the transition is rejected", func() {
				So(err, ShouldEqual, lifecycle.ErrInvalidTransition)
			})
		})

		Convey("When a match is cancelled mid-flight", func() {
			m, err := e.NewMatch(category, seeds("p1", "p2"))
			So(err, ShouldBeNil)
			_, err = e.ReportScore(m, category, "p1", 65000)
			So(err, ShouldBeNil)

			updated, err := e.Transition(m, category, model.StatusCancelled)

			Convey("Then it terminates without any rating update", func() {
				So(err, ShouldBeNil)
				So(updated, ShouldBeNil)
				So(m.Status, ShouldEqual, model.StatusCancelled)
				So(m.Active(), ShouldBeFalse)
				So(m.Teams[0].Players[0].MuAfter, ShouldBeNil)
			})
		})

		Convey("When finishing is requested before the result is complete", func() {
			m, err := e.NewMatch(category, seeds("p1", "p2"))
			So(err, ShouldBeNil)

			_, err = e.Transition(m, category, model.StatusFinished)

			Convey("Then the transition is rejected as incomplete", func() {
				So(err, ShouldEqual, lifecycle.ErrResultIncomplete)
			})
		})

		Convey("When an unknown status is requested", func() {
			m, err := e.NewMatch(category, seeds("p1", "p2"))
			So(err, ShouldBeNil)
			_, err = e.Transition(m, category, model.Status("paused"))
			So(err, ShouldEqual, lifecycle.ErrUnknownStatus)
		})
	})
}
