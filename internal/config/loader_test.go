package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given no overrides", t, func() {
		os.Unsetenv("LADDER_CONFIG")

		Convey("When loading", func() {
			cfg, err := Load(ctx)

			Convey("Then defaults come back", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.StartingMu, ShouldEqual, 1500)
			})
		})
	})

	Convey("Given environment overrides", t, func() {
		t.Setenv("LADDER_ADDR", ":7070")
		t.Setenv("LADDER_WORKER_COUNT", "3")
		t.Setenv("LADDER_STARTING_MU", "2000")

		Convey("When loading", func() {
			cfg, err := Load(ctx)

			Convey("Then env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.WorkerCount, ShouldEqual, 3)
				So(cfg.StartingMu, ShouldEqual, 2000)
				So(cfg.MaxMatchPlayers, ShouldEqual, 8)
			})
		})
	})

	Convey("Given a config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "ladder.yaml")
		yaml := "addr: \":6060\"\ndb_path: \"/tmp/ladder.db\"\nmax_leaderboard_limit: 25\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
		t.Setenv("LADDER_CONFIG", path)

		Convey("When loading with an env override on top", func() {
			t.Setenv("LADDER_ADDR", ":5050")
			cfg, err := Load(ctx)

			Convey("Then env beats file beats defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
				So(cfg.DBPath, ShouldEqual, "/tmp/ladder.db")
				So(cfg.MaxLeaderboardLimit, ShouldEqual, 25)
			})
		})

		Convey("When the file is missing", func() {
			t.Setenv("LADDER_CONFIG", filepath.Join(dir, "absent.yaml"))
			_, err := Load(ctx)

			Convey("Then loading fails with the load sentinel", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrLoadConfig), ShouldBeTrue)
			})
		})
	})

	Convey("Given an invalid override", t, func() {
		t.Setenv("LADDER_CONFIG", "")
		t.Setenv("LADDER_ADDR", "")

		Convey("When loading", func() {
			cfg, err := Load(ctx)

			Convey("Then validation rejects it", func() {
				So(cfg, ShouldBeNil)
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
