// Package repository defines the ladder store interface and errors.
package repository

import (
	"context"

	"github.com/okian/ladder/internal/domain/model"
)

// Store provides read/write access to ladder state. Implementations are
// safe for concurrent use; returned records are copies the caller may
// mutate freely.
type Store interface {
	// CreatePlayer registers a new player. Returns ErrConflict when the
	// username is already taken.
	CreatePlayer(ctx context.Context, p *model.Player) error
	// Player returns one player by id. Returns ErrNotFound if unknown.
	Player(ctx context.Context, id string) (*model.Player, error)
	// UpdatePlayer overwrites an existing player record.
	UpdatePlayer(ctx context.Context, p *model.Player) error
	// QueuedPlayers returns every player queued for the category.
	QueuedPlayers(ctx context.Context, categoryID string) ([]model.Player, error)
	// CountPlayers returns the number of registered players.
	CountPlayers(ctx context.Context) int

	// CreateCategory registers a new category. Returns ErrConflict when
	// the shortcode is already taken.
	CreateCategory(ctx context.Context, c *model.Category) error
	// Category returns one category by id. Returns ErrNotFound if unknown.
	Category(ctx context.Context, id string) (*model.Category, error)
	// Categories returns every category, ordered by shortcode.
	Categories(ctx context.Context) ([]model.Category, error)

	// Rating returns a player's rating in a category, or ErrNotFound
	// before the player's first rated match there.
	Rating(ctx context.Context, playerID, categoryID string) (*model.Rating, error)
	// UpsertRating inserts or overwrites a rating row.
	UpsertRating(ctx context.Context, r *model.Rating) error
	// CategoryRatings returns every rating row in a category.
	CategoryRatings(ctx context.Context, categoryID string) ([]model.Rating, error)

	// SaveMatch inserts or overwrites a whole match aggregate.
	SaveMatch(ctx context.Context, m *model.Match) error
	// Match returns one match by id. Returns ErrNotFound if unknown.
	Match(ctx context.Context, id string) (*model.Match, error)
	// Matches lists matches ordered by start time then id. An empty
	// categoryID lists every match.
	Matches(ctx context.Context, categoryID string) ([]model.Match, error)

	// SaveScore upserts on the (match, player) pair; a re-report replaces
	// the value but the original row id and StartedAt survive.
	SaveScore(ctx context.Context, s *model.Score) error
	// CategoryScores returns every score row in a category.
	CategoryScores(ctx context.Context, categoryID string) ([]model.Score, error)

	// Close releases the store's resources.
	Close() error
}
