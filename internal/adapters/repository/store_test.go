package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Both implementations must satisfy the same contract; each fixture is
// exercised through the identical scenario set.
func TestMemStore(t *testing.T) {
	runStoreContract(t, "an in-memory store", func() repository.Store {
		return repository.NewMemStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	dir := t.TempDir()
	var n int
	runStoreContract(t, "a sqlite store", func() repository.Store {
		n++
		s, err := repository.NewSQLiteStore(filepath.Join(dir, fmt.Sprintf("ladder-%d.db", n)))
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		return s
	})
}

func runStoreContract(t *testing.T, name string, open func() repository.Store) {
	t.Helper()
	ctx := context.Background()

	Convey("Given "+name, t, func() {
		store := open()
		Reset(func() { _ = store.Close() })

		Convey("When players are created", func() {
			p := &model.Player{
				ID: "p1", Username: "Speedy",
				CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				LastActiveAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			So(store.CreatePlayer(ctx, p), ShouldBeNil)

			Convey("Then they can be read back", func() {
				got, err := store.Player(ctx, "p1")
				So(err, ShouldBeNil)
				So(got.Username, ShouldEqual, "Speedy")
				So(store.CountPlayers(ctx), ShouldEqual, 1)
			})

			Convey("Then a second player cannot reuse the username", func() {
				dupe := &model.Player{ID: "p2", Username: "speedy",
					CreatedAt: p.CreatedAt, LastActiveAt: p.LastActiveAt}
				So(store.CreatePlayer(ctx, dupe), ShouldEqual, repository.ErrConflict)
			})

			Convey("Then updates stick and misses report not found", func() {
				p.QueuedFor = "cat-1"
				So(store.UpdatePlayer(ctx, p), ShouldBeNil)
				got, err := store.Player(ctx, "p1")
				So(err, ShouldBeNil)
				So(got.QueuedFor, ShouldEqual, "cat-1")

				ghost := &model.Player{ID: "missing", Username: "ghost",
					CreatedAt: p.CreatedAt, LastActiveAt: p.LastActiveAt}
				So(store.UpdatePlayer(ctx, ghost), ShouldEqual, repository.ErrNotFound)
				_, err = store.Player(ctx, "missing")
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Then the queue filter returns queued players in id order", func() {
				for _, id := range []string{"p3", "p2"} {
					So(store.CreatePlayer(ctx, &model.Player{
						ID: id, Username: "user-" + id, QueuedFor: "cat-1",
						CreatedAt: p.CreatedAt, LastActiveAt: p.LastActiveAt,
					}), ShouldBeNil)
				}
				queued, err := store.QueuedPlayers(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(queued, ShouldHaveLength, 2)
				So(queued[0].ID, ShouldEqual, "p2")
				So(queued[1].ID, ShouldEqual, "p3")
			})
		})

		Convey("When categories are created", func() {
			So(store.CreateCategory(ctx, &model.Category{
				ID: "cat-1", Shortcode: "any%", Name: "Any%", Speedrun: true,
				NumTeams: 2, PlayersPerTeam: 1,
			}), ShouldBeNil)

			Convey("Then shortcodes are unique", func() {
				err := store.CreateCategory(ctx, &model.Category{
					ID: "cat-2", Shortcode: "any%", Name: "Other", NumTeams: 2, PlayersPerTeam: 1,
				})
				So(err, ShouldEqual, repository.ErrConflict)
			})

			Convey("Then listing orders by shortcode", func() {
				So(store.CreateCategory(ctx, &model.Category{
					ID: "cat-2", Shortcode: "100%", Name: "Hundo", NumTeams: 2, PlayersPerTeam: 1,
				}), ShouldBeNil)
				cats, err := store.Categories(ctx)
				So(err, ShouldBeNil)
				So(cats, ShouldHaveLength, 2)
				So(cats[0].Shortcode, ShouldEqual, "100%")
				So(cats[1].Shortcode, ShouldEqual, "any%")

				got, err := store.Category(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(got.Speedrun, ShouldBeTrue)
			})
		})

		Convey("When ratings are written", func() {
			_, err := store.Rating(ctx, "p1", "cat-1")
			So(err, ShouldEqual, repository.ErrNotFound)

			So(store.UpsertRating(ctx, &model.Rating{
				PlayerID: "p1", CategoryID: "cat-1", Mu: 1500, Sigma: 500,
			}), ShouldBeNil)

			Convey("Then the row reads back and upserts overwrite", func() {
				r, err := store.Rating(ctx, "p1", "cat-1")
				So(err, ShouldBeNil)
				So(r.Mu, ShouldEqual, 1500)

				So(store.UpsertRating(ctx, &model.Rating{
					PlayerID: "p1", CategoryID: "cat-1", Mu: 1531.7, Sigma: 498.2,
				}), ShouldBeNil)
				r, err = store.Rating(ctx, "p1", "cat-1")
				So(err, ShouldBeNil)
				So(r.Mu, ShouldEqual, 1531.7)
			})

			Convey("Then category listings stay scoped and ordered", func() {
				So(store.UpsertRating(ctx, &model.Rating{
					PlayerID: "p0", CategoryID: "cat-1", Mu: 1400, Sigma: 500,
				}), ShouldBeNil)
				So(store.UpsertRating(ctx, &model.Rating{
					PlayerID: "p1", CategoryID: "cat-2", Mu: 1600, Sigma: 500,
				}), ShouldBeNil)

				ratings, err := store.CategoryRatings(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(ratings, ShouldHaveLength, 2)
				So(ratings[0].PlayerID, ShouldEqual, "p0")
				So(ratings[1].PlayerID, ShouldEqual, "p1")
			})
		})

		Convey("When a match aggregate is saved", func() {
			place := 1
			score := int64(65000)
			started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
			m := &model.Match{
				ID: "m1", CategoryID: "cat-1", StartedAt: started,
				Status: model.StatusOngoing,
				Teams: []model.Team{
					{ID: "t1", Num: "A", Place: &place, Players: []model.TeamPlayer{
						{PlayerID: "p1", Score: &score, ScoreFormatted: "1:05.000", MuBefore: 1500, SigmaBefore: 500},
					}},
					{ID: "t2", Num: "B", Players: []model.TeamPlayer{
						{PlayerID: "p2", ScoreFormatted: "—", MuBefore: 1500, SigmaBefore: 500},
					}},
				},
			}
			So(store.SaveMatch(ctx, m), ShouldBeNil)

			Convey("Then it round-trips intact", func() {
				got, err := store.Match(ctx, "m1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusOngoing)
				So(got.StartedAt.Equal(started), ShouldBeTrue)
				So(got.Teams, ShouldHaveLength, 2)
				So(*got.Teams[0].Place, ShouldEqual, 1)
				So(*got.Teams[0].Players[0].Score, ShouldEqual, 65000)
				So(got.Teams[1].Players[0].Score, ShouldBeNil)
			})

			Convey("Then a resave overwrites status and finish time", func() {
				finished := started.Add(time.Hour)
				m.Status = model.StatusFinished
				m.FinishedAt = &finished
				So(store.SaveMatch(ctx, m), ShouldBeNil)

				got, err := store.Match(ctx, "m1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.StatusFinished)
				So(got.FinishedAt, ShouldNotBeNil)
				So(got.FinishedAt.Equal(finished), ShouldBeTrue)
			})

			Convey("Then unknown ids miss", func() {
				_, err := store.Match(ctx, "m9")
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Then listings order by start time and filter by category", func() {
				So(store.SaveMatch(ctx, &model.Match{
					ID: "m0", CategoryID: "cat-1", StartedAt: started.Add(-time.Hour),
					Status: model.StatusFinished, Teams: []model.Team{},
				}), ShouldBeNil)
				So(store.SaveMatch(ctx, &model.Match{
					ID: "m2", CategoryID: "cat-2", StartedAt: started,
					Status: model.StatusOngoing, Teams: []model.Team{},
				}), ShouldBeNil)

				all, err := store.Matches(ctx, "")
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
				So(all[0].ID, ShouldEqual, "m0")
				So(all[1].ID, ShouldEqual, "m1")
				So(all[2].ID, ShouldEqual, "m2")

				scoped, err := store.Matches(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(scoped, ShouldHaveLength, 2)
				So(scoped[0].ID, ShouldEqual, "m0")
				So(scoped[1].ID, ShouldEqual, "m1")
				So(scoped[1].Teams, ShouldHaveLength, 2)
			})
		})

		Convey("When scores are saved", func() {
			started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
			So(store.SaveScore(ctx, &model.Score{
				ID: "s1", PlayerID: "p1", CategoryID: "cat-1", MatchID: "m1",
				Value: 65000, StartedAt: started,
			}), ShouldBeNil)

			Convey("Then a re-report keeps the original row identity", func() {
				So(store.SaveScore(ctx, &model.Score{
					ID: "s2", PlayerID: "p1", CategoryID: "cat-1", MatchID: "m1",
					Value: 64000, Verified: true, StartedAt: started.Add(time.Minute),
				}), ShouldBeNil)

				scores, err := store.CategoryScores(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 1)
				So(scores[0].ID, ShouldEqual, "s1")
				So(scores[0].Value, ShouldEqual, 64000)
				So(scores[0].Verified, ShouldBeTrue)
				So(scores[0].StartedAt.Equal(started), ShouldBeTrue)
			})

			Convey("Then listings stay scoped to the category", func() {
				So(store.SaveScore(ctx, &model.Score{
					ID: "s3", PlayerID: "p2", CategoryID: "cat-2", MatchID: "m2",
					Value: 10, StartedAt: started,
				}), ShouldBeNil)

				scores, err := store.CategoryScores(ctx, "cat-1")
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 1)
				So(scores[0].PlayerID, ShouldEqual, "p1")
			})
		})
	})
}
