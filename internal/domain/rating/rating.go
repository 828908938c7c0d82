// Package rating implements the Bayesian team skill model used for the
// ladder. Each player carries a skill estimate (mu) and an uncertainty
// (sigma); match outcomes move both through a Bradley-Terry full-pair
// update over team aggregates.
//
// The model is pure arithmetic: identical inputs always produce identical
// outputs, and nothing here touches storage.
package rating

import "math"

// Derivation of the default parameters from the starting skill.
const (
	defaultStartingMu = 1500
	sigmaDivisor      = 3   // sigma0 = mu0/3
	betaDivisor       = 6   // beta  = mu0/6
	tauDivisor        = 300 // tau   = mu0/300
	defaultKappa      = 0.0001
)

// Rating is one player's (mu, sigma) pair within a category.
type Rating struct {
	Mu    float64
	Sigma float64
}

// Model holds the immutable deployment parameters. Beta is the
// performance variance of a single match, tau the per-match uncertainty
// growth and kappa the floor keeping sigma strictly positive.
type Model struct {
	mu0    float64
	sigma0 float64
	beta   float64
	tau    float64
	kappa  float64
}

// New creates a Model. Parameters not set by options derive from the
// starting mu the way the ladder has always derived them.
func New(opts ...Option) *Model {
	m := &Model{mu0: defaultStartingMu, kappa: defaultKappa}
	for _, opt := range opts {
		opt(m)
	}
	if m.sigma0 == 0 {
		m.sigma0 = m.mu0 / sigmaDivisor
	}
	if m.beta == 0 {
		m.beta = m.mu0 / betaDivisor
	}
	if m.tau == 0 {
		m.tau = m.mu0 / tauDivisor
	}
	return m
}

// Starting returns the rating assigned to a player's first match.
func (m *Model) Starting() Rating {
	return Rating{Mu: m.mu0, Sigma: m.sigma0}
}

// StartingMu exposes the baseline skill, used to normalize spread in
// matchmaking quality scoring.
func (m *Model) StartingMu() float64 { return m.mu0 }

// StartingSigma exposes the baseline uncertainty.
func (m *Model) StartingSigma() float64 { return m.sigma0 }

// Tau exposes the per-match uncertainty growth bound.
func (m *Model) Tau() float64 { return m.tau }

// Rate computes post-match ratings for every player. teams holds one
// rating slice per team; ranks holds each team's place for this match
// (1 = best, tied teams share a rank). The input is not mutated.
func (m *Model) Rate(teams [][]Rating, ranks []int) ([][]Rating, error) {
	if len(teams) < 2 {
		return nil, ErrTooFewTeams
	}
	if len(ranks) != len(teams) {
		return nil, ErrRankMismatch
	}

	// Grow every sigma by tau first, then aggregate per team.
	grown := make([][]Rating, len(teams))
	teamMu := make([]float64, len(teams))
	teamVar := make([]float64, len(teams))
	for i, team := range teams {
		if len(team) == 0 {
			return nil, ErrEmptyTeam
		}
		grown[i] = make([]Rating, len(team))
		for j, r := range team {
			sigma := math.Sqrt(r.Sigma*r.Sigma + m.tau*m.tau)
			grown[i][j] = Rating{Mu: r.Mu, Sigma: sigma}
			teamMu[i] += r.Mu
			teamVar[i] += sigma * sigma
		}
	}

	out := make([][]Rating, len(teams))
	for i := range teams {
		var omega, delta float64
		for q := range teams {
			if q == i {
				continue
			}
			c := math.Sqrt(teamVar[i] + teamVar[q] + 2*m.beta*m.beta)
			p := winProbability(teamMu[i], teamMu[q], c)
			s := outcomeScore(ranks[i], ranks[q])
			omega += teamVar[i] / c * (s - p)
			gamma := math.Sqrt(teamVar[i]) / c
			delta += gamma * teamVar[i] / (c * c) * p * (1 - p)
		}

		out[i] = make([]Rating, len(grown[i]))
		for j, r := range grown[i] {
			variance := r.Sigma * r.Sigma
			mu := r.Mu + variance/teamVar[i]*omega
			shrink := math.Max(1-variance/teamVar[i]*delta, m.kappa)
			out[i][j] = Rating{Mu: mu, Sigma: r.Sigma * math.Sqrt(shrink)}
		}
	}
	return out, nil
}

// PredictWin returns the probability of each team winning, as a simplex
// over teams. It never mutates ratings; forecast display only.
func (m *Model) PredictWin(teams [][]Rating) []float64 {
	k := len(teams)
	if k == 0 {
		return nil
	}
	if k == 1 {
		return []float64{1}
	}

	teamMu := make([]float64, k)
	teamVar := make([]float64, k)
	for i, team := range teams {
		for _, r := range team {
			teamMu[i] += r.Mu
			teamVar[i] += r.Sigma * r.Sigma
		}
	}

	probs := make([]float64, k)
	pairs := float64(k*(k-1)) / 2
	for i := 0; i < k; i++ {
		for q := 0; q < k; q++ {
			if q == i {
				continue
			}
			c := math.Sqrt(teamVar[i] + teamVar[q] + 2*m.beta*m.beta)
			probs[i] += winProbability(teamMu[i], teamMu[q], c)
		}
		probs[i] /= pairs
	}
	return probs
}

// PublishMu rounds a skill estimate to the whole number shown to users.
// Sigma is never rounded; it stays at full precision internally.
func PublishMu(mu float64) int {
	return int(math.Round(mu))
}

// winProbability is the logistic pairwise comparison between two team
// aggregates at combined deviation c.
func winProbability(mu, opponentMu, c float64) float64 {
	return 1 / (1 + math.Exp((opponentMu-mu)/c))
}

// outcomeScore maps two ranks onto the pairwise outcome: win 1, draw
// 0.5, loss 0. Lower rank is better.
func outcomeScore(rank, opponentRank int) float64 {
	switch {
	case opponentRank > rank:
		return 1
	case opponentRank == rank:
		return 0.5
	default:
		return 0
	}
}
