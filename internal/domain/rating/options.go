// Package rating implements the Bayesian team skill model used for the
// ladder.
package rating

// Option applies a configuration option to the Model.
type Option func(*Model)

// WithStartingMu sets the skill every player starts at. Unless overridden
// the remaining parameters derive from it (sigma0 = mu0/3, beta = mu0/6,
// tau = mu0/300).
func WithStartingMu(mu float64) Option {
	return func(m *Model) {
		if mu > 0 {
			m.mu0 = mu
		}
	}
}

// WithStartingSigma overrides the starting uncertainty.
func WithStartingSigma(sigma float64) Option {
	return func(m *Model) {
		if sigma > 0 {
			m.sigma0 = sigma
		}
	}
}

// WithBeta overrides the performance variance of a single match.
func WithBeta(beta float64) Option {
	return func(m *Model) {
		if beta > 0 {
			m.beta = beta
		}
	}
}

// WithTau overrides the per-match uncertainty growth.
func WithTau(tau float64) Option {
	return func(m *Model) {
		if tau > 0 {
			m.tau = tau
		}
	}
}
