// Package matchmaking decides which queued players become matches.
package matchmaking

import "math/rand"

// Option applies a configuration option to the Matchmaker.
type Option func(*Matchmaker)

// WithMaxPlayers caps the total players in a single match.
func WithMaxPlayers(n int) Option {
	return func(m *Matchmaker) {
		if n >= 2 {
			m.maxPlayers = n
		}
	}
}

// WithAdmissionDelay makes every queue join (while two or more players
// are queued) suppress that many matchmaking passes, batching more
// players into one pass at the cost of latency. Zero disables the delay.
func WithAdmissionDelay(perJoin int) Option {
	return func(m *Matchmaker) {
		if perJoin >= 0 {
			m.delayPerJoin = perJoin
		}
	}
}

// WithSeed fixes the category-order rng, for reproducible tests.
func WithSeed(seed int64) Option {
	return func(m *Matchmaker) {
		m.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic ordering only
	}
}
