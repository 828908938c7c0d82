package matchmaking_test

import (
	"testing"

	matchmaking "github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/model"
	rating "github.com/okian/ladder/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func rated(id string, mu, sigma float64) matchmaking.QueuedPlayer {
	return matchmaking.QueuedPlayer{
		PlayerID: id,
		Rating:   &rating.Rating{Mu: mu, Sigma: sigma},
	}
}

func duel() *model.Category {
	return &model.Category{ID: "cat-1", Shortcode: "any%", Speedrun: true, NumTeams: 2, PlayersPerTeam: 1}
}

func TestPlan(t *testing.T) {
	Convey("Given a matchmaker over a 1v1 category", t, func() {
		mm := matchmaking.New(rating.New(), matchmaking.WithSeed(1))
		category := duel()

		Convey("When three equal players and one outlier are queued", func() {
			queued := []matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
				rated("C", 1500, 200),
				rated("D", 3000, 200),
			}
			proposals := mm.Plan(category, queued)

			Convey("Then the first match pairs two of the equals, never the outlier", func() {
				So(len(proposals), ShouldBeGreaterThanOrEqualTo, 1)
				first := proposals[0]
				So(first.Teams, ShouldHaveLength, 2)
				for _, team := range first.Teams {
					So(team, ShouldHaveLength, 1)
					So(team[0], ShouldNotEqual, "D")
				}
			})

			Convey("And no player appears in two proposals", func() {
				seen := map[string]int{}
				for _, p := range proposals {
					for _, team := range p.Teams {
						for _, id := range team {
							seen[id]++
						}
					}
				}
				for id, count := range seen {
					So(count, ShouldEqual, 1)
					So(id, ShouldBeIn, []string{"A", "B", "C", "D"})
				}
			})

			Convey("And planning the same queue twice is deterministic", func() {
				again := mm.Plan(category, queued)
				So(again, ShouldResemble, proposals)
			})
		})

		Convey("When fewer than two players are queued", func() {
			proposals := mm.Plan(category, []matchmaking.QueuedPlayer{rated("A", 1500, 200)})

			Convey("Then nothing is planned", func() {
				So(proposals, ShouldBeEmpty)
			})
		})

		Convey("When queued players have no ratings yet", func() {
			queued := []matchmaking.QueuedPlayer{
				{PlayerID: "A"},
				{PlayerID: "B"},
			}
			proposals := mm.Plan(category, queued)

			Convey("Then they still match with zero spread penalty", func() {
				So(proposals, ShouldHaveLength, 1)
				So(proposals[0].Quality, ShouldEqual, 4)
			})
		})
	})

	Convey("Given a 2v2 category", t, func() {
		mm := matchmaking.New(rating.New(), matchmaking.WithSeed(1))
		category := &model.Category{ID: "cat-2", NumTeams: 2, PlayersPerTeam: 2}

		Convey("When five players are queued", func() {
			queued := []matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
				rated("C", 1500, 200),
				rated("D", 1500, 200),
				rated("E", 2400, 200),
			}
			proposals := mm.Plan(category, queued)

			Convey("Then one full match of two teams of two is planned", func() {
				So(proposals, ShouldHaveLength, 1)
				So(proposals[0].Teams, ShouldHaveLength, 2)
				So(proposals[0].Teams[0], ShouldHaveLength, 2)
				So(proposals[0].Teams[1], ShouldHaveLength, 2)
			})
		})

		Convey("When only three players are queued", func() {
			queued := []matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
				rated("C", 1500, 200),
			}

			Convey("Then no partial teams are formed", func() {
				So(mm.Plan(category, queued), ShouldBeEmpty)
			})
		})
	})
}

func TestQuality(t *testing.T) {
	Convey("Given the quality function", t, func() {
		mm := matchmaking.New(rating.New())

		Convey("When comparing an even pair with a mismatched pair", func() {
			even := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
			})
			spread := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("D", 3000, 200),
			})

			Convey("Then the even pair scores higher", func() {
				So(even, ShouldBeGreaterThan, spread)
				So(even, ShouldEqual, 4)
			})
		})

		Convey("When comparing group sizes", func() {
			pair := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
			})
			quad := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 1500, 200),
				rated("C", 1500, 200),
				rated("D", 1500, 200),
			})

			Convey("Then larger groups are rewarded", func() {
				So(quad, ShouldBeGreaterThan, pair)
			})
		})

		Convey("When uncertainty spread and skill spread are equal in scale", func() {
			skillSpread := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 200),
				rated("B", 2100, 200),
			})
			sigmaSpread := mm.Quality([]matchmaking.QueuedPlayer{
				rated("A", 1500, 100),
				rated("B", 1500, 300),
			})

			Convey("Then uncertainty spread is penalized less", func() {
				So(sigmaSpread, ShouldBeGreaterThan, skillSpread)
			})
		})
	})
}

func TestAdmissionDelay(t *testing.T) {
	Convey("Given a matchmaker with an admission delay", t, func() {
		mm := matchmaking.New(rating.New(), matchmaking.WithAdmissionDelay(1))

		Convey("When a player joins a queue of two", func() {
			mm.NotifyJoin(2)

			Convey("Then the next pass is suppressed and the one after runs", func() {
				So(mm.Ready(), ShouldBeFalse)
				So(mm.Ready(), ShouldBeTrue)
			})
		})

		Convey("When the queue is still below two players", func() {
			mm.NotifyJoin(1)

			Convey("Then no delay accrues", func() {
				So(mm.Ready(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a matchmaker without an admission delay", t, func() {
		mm := matchmaking.New(rating.New())

		Convey("Then joins never suppress a pass", func() {
			mm.NotifyJoin(5)
			So(mm.Ready(), ShouldBeTrue)
		})
	})
}
