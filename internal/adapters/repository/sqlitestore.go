package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// SQLiteStore is a Store backed by a SQLite database file. Match team
// state is stored as a JSON document per match; everything queried by
// the ranking paths (ratings, scores) is relational.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL COLLATE NOCASE UNIQUE,
		created_at TEXT NOT NULL,
		last_active_at TEXT NOT NULL,
		queued_for TEXT NOT NULL DEFAULT '',
		current_match_id TEXT NOT NULL DEFAULT '',
		banned INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		shortcode TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		speedrun INTEGER NOT NULL DEFAULT 0,
		require_livestream INTEGER NOT NULL DEFAULT 0,
		require_agrees INTEGER NOT NULL DEFAULT 0,
		num_teams INTEGER NOT NULL,
		players_per_team INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ratings (
		player_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		mu REAL NOT NULL,
		sigma REAL NOT NULL,
		PRIMARY KEY (player_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		category_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		teams TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scores (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		match_id TEXT NOT NULL,
		value INTEGER NOT NULL,
		verified INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		UNIQUE (match_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_category ON ratings(category_id);
	CREATE INDEX IF NOT EXISTS idx_scores_category ON scores(category_id);
	CREATE INDEX IF NOT EXISTS idx_players_queued ON players(queued_for);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// CreatePlayer registers a new player.
func (s *SQLiteStore) CreatePlayer(ctx context.Context, p *model.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, username, created_at, last_active_at, queued_for, current_match_id, banned)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, encodeTime(p.CreatedAt), encodeTime(p.LastActiveAt),
		p.QueuedFor, p.CurrentMatchID, boolToInt(p.Banned))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert player: %w", err)
	}
	metrics.UpdateTotalPlayers(s.CountPlayers(ctx))
	return nil
}

// Player returns one player by id.
func (s *SQLiteStore) Player(ctx context.Context, id string) (*model.Player, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, last_active_at, queued_for, current_match_id, banned
		FROM players WHERE id = ?`, id)
	return scanPlayer(row)
}

// UpdatePlayer overwrites an existing player record.
func (s *SQLiteStore) UpdatePlayer(ctx context.Context, p *model.Player) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE players
		SET username = ?, last_active_at = ?, queued_for = ?, current_match_id = ?, banned = ?
		WHERE id = ?`,
		p.Username, encodeTime(p.LastActiveAt), p.QueuedFor, p.CurrentMatchID, boolToInt(p.Banned), p.ID)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QueuedPlayers returns every player queued for the category.
func (s *SQLiteStore) QueuedPlayers(ctx context.Context, categoryID string) ([]model.Player, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, created_at, last_active_at, queued_for, current_match_id, banned
		FROM players WHERE queued_for = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query queued players: %w", err)
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountPlayers returns the number of registered players.
func (s *SQLiteStore) CountPlayers(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// CreateCategory registers a new category.
func (s *SQLiteStore) CreateCategory(ctx context.Context, c *model.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, shortcode, name, speedrun, require_livestream, require_agrees, num_teams, players_per_team)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Shortcode, c.Name, boolToInt(c.Speedrun), boolToInt(c.RequireLivestream),
		boolToInt(c.RequireAgrees), c.NumTeams, c.PlayersPerTeam)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// Category returns one category by id.
func (s *SQLiteStore) Category(ctx context.Context, id string) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, shortcode, name, speedrun, require_livestream, require_agrees, num_teams, players_per_team
		FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

// Categories returns every category, ordered by shortcode.
func (s *SQLiteStore) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shortcode, name, speedrun, require_livestream, require_agrees, num_teams, players_per_team
		FROM categories ORDER BY shortcode`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Rating returns a player's rating in a category.
func (s *SQLiteStore) Rating(ctx context.Context, playerID, categoryID string) (*model.Rating, error) {
	var r model.Rating
	err := s.db.QueryRowContext(ctx, `
		SELECT player_id, category_id, mu, sigma FROM ratings
		WHERE player_id = ? AND category_id = ?`, playerID, categoryID).
		Scan(&r.PlayerID, &r.CategoryID, &r.Mu, &r.Sigma)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query rating: %w", err)
	}
	return &r, nil
}

// UpsertRating inserts or overwrites a rating row.
func (s *SQLiteStore) UpsertRating(ctx context.Context, r *model.Rating) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (player_id, category_id, mu, sigma) VALUES (?, ?, ?, ?)
		ON CONFLICT (player_id, category_id) DO UPDATE SET mu = excluded.mu, sigma = excluded.sigma`,
		r.PlayerID, r.CategoryID, r.Mu, r.Sigma)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// CategoryRatings returns every rating row in a category, ordered by
// player id.
func (s *SQLiteStore) CategoryRatings(ctx context.Context, categoryID string) ([]model.Rating, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, category_id, mu, sigma FROM ratings
		WHERE category_id = ? ORDER BY player_id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var r model.Rating
		if err := rows.Scan(&r.PlayerID, &r.CategoryID, &r.Mu, &r.Sigma); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, r)
	}
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, rows.Err()
}

// SaveMatch inserts or overwrites a whole match aggregate.
func (s *SQLiteStore) SaveMatch(ctx context.Context, m *model.Match) error {
	start := time.Now()
	teams, err := json.Marshal(m.Teams)
	if err != nil {
		return fmt.Errorf("encode match teams: %w", err)
	}
	var finished any
	if m.FinishedAt != nil {
		finished = encodeTime(*m.FinishedAt)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (id, category_id, started_at, finished_at, status, teams)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET finished_at = excluded.finished_at,
			status = excluded.status, teams = excluded.teams`,
		m.ID, m.CategoryID, encodeTime(m.StartedAt), finished, string(m.Status), string(teams))
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// Match returns one match by id.
func (s *SQLiteStore) Match(ctx context.Context, id string) (*model.Match, error) {
	var (
		m        model.Match
		started  string
		finished sql.NullString
		status   string
		teams    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, category_id, started_at, finished_at, status, teams
		FROM matches WHERE id = ?`, id).
		Scan(&m.ID, &m.CategoryID, &started, &finished, &status, &teams)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query match: %w", err)
	}

	if m.StartedAt, err = decodeTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := decodeTime(finished.String)
		if err != nil {
			return nil, err
		}
		m.FinishedAt = &t
	}
	m.Status = model.Status(status)
	if err := json.Unmarshal([]byte(teams), &m.Teams); err != nil {
		return nil, fmt.Errorf("decode match teams: %w", err)
	}
	return &m, nil
}

// Matches lists matches ordered by start time then id.
func (s *SQLiteStore) Matches(ctx context.Context, categoryID string) ([]model.Match, error) {
	start := time.Now()
	query := `
		SELECT id, category_id, started_at, finished_at, status, teams
		FROM matches`
	var args []any
	if categoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY started_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var (
			m        model.Match
			started  string
			finished sql.NullString
			status   string
			teams    string
		)
		if err := rows.Scan(&m.ID, &m.CategoryID, &started, &finished, &status, &teams); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if m.StartedAt, err = decodeTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := decodeTime(finished.String)
			if err != nil {
				return nil, err
			}
			m.FinishedAt = &t
		}
		m.Status = model.Status(status)
		if err := json.Unmarshal([]byte(teams), &m.Teams); err != nil {
			return nil, fmt.Errorf("decode match teams: %w", err)
		}
		out = append(out, m)
	}
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, rows.Err()
}

// SaveScore upserts on the (match, player) pair.
func (s *SQLiteStore) SaveScore(ctx context.Context, sc *model.Score) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (id, player_id, category_id, match_id, value, verified, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, player_id) DO UPDATE SET value = excluded.value,
			verified = excluded.verified`,
		sc.ID, sc.PlayerID, sc.CategoryID, sc.MatchID, sc.Value, boolToInt(sc.Verified), encodeTime(sc.StartedAt))
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// CategoryScores returns every score row in a category, ordered by id.
func (s *SQLiteStore) CategoryScores(ctx context.Context, categoryID string) ([]model.Score, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, category_id, match_id, value, verified, started_at
		FROM scores WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var out []model.Score
	for rows.Next() {
		var (
			sc       model.Score
			verified int
			started  string
		)
		if err := rows.Scan(&sc.ID, &sc.PlayerID, &sc.CategoryID, &sc.MatchID, &sc.Value, &verified, &started); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		sc.Verified = verified != 0
		if sc.StartedAt, err = decodeTime(started); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	var p model.Player
	var created, lastActive string
	var banned int
	err := row.Scan(&p.ID, &p.Username, &created, &lastActive, &p.QueuedFor, &p.CurrentMatchID, &banned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan player: %w", err)
	}
	p.Banned = banned != 0
	if p.CreatedAt, err = decodeTime(created); err != nil {
		return nil, err
	}
	if p.LastActiveAt, err = decodeTime(lastActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var c model.Category
	var speedrun, livestream, agrees int
	err := row.Scan(&c.ID, &c.Shortcode, &c.Name, &speedrun, &livestream, &agrees, &c.NumTeams, &c.PlayersPerTeam)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	c.Speedrun = speedrun != 0
	c.RequireLivestream = livestream != 0
	c.RequireAgrees = agrees != 0
	return &c, nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode stored time: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a unique constraint failure.
// The driver error text is stable enough to match on.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
