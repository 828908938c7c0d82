// Package matchmaking decides which queued players become matches. It
// enumerates every legal grouping of a category's queue, scores each with
// a quality function that rewards size and penalizes skill spread, then
// greedily commits disjoint groups best-first.
package matchmaking

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rating"
)

// Hard cap on total players per match regardless of category shape.
const (
	maxMatchPlayers       = 8
	sigmaSpreadDownweight = 5 // uncertainty spread counts 5x less than skill spread
)

// QueuedPlayer is one queue entry with the player's current rating, if
// any. Players who have never finished a match carry a nil rating; their
// rows are created at commit time.
type QueuedPlayer struct {
	PlayerID string
	Rating   *rating.Rating
}

// Proposal is one grouping the matchmaker wants committed: player ids
// already chunked into teams of the category's size.
type Proposal struct {
	Category *model.Category
	Teams    [][]string
	Quality  float64
}

// Matchmaker plans matches over queue snapshots. Planning is pure; the
// only state is the admission-delay counter and the category-order rng.
type Matchmaker struct {
	model        *rating.Model
	maxPlayers   int
	delayPerJoin int

	mu      sync.Mutex
	counter int
	rng     *rand.Rand
}

// New creates a Matchmaker bound to a rating model.
func New(m *rating.Model, opts ...Option) *Matchmaker {
	mm := &Matchmaker{
		model:      m,
		maxPlayers: maxMatchPlayers,
		rng:        rand.New(rand.NewSource(rand.Int63())), //nolint:gosec // category order only, not security sensitive
	}
	for _, opt := range opts {
		opt(mm)
	}
	return mm
}

// NotifyJoin feeds the admission delay: each join while at least two
// players are queued buys the queue extra matchmaking passes to fill up
// before a grouping locks in. A zero delay configuration disables this.
func (m *Matchmaker) NotifyJoin(queueSize int) {
	if m.delayPerJoin <= 0 || queueSize < 2 {
		return
	}
	m.mu.Lock()
	m.counter += m.delayPerJoin
	m.mu.Unlock()
}

// Ready consumes one admission-delay tick and reports whether this pass
// should plan matches at all.
func (m *Matchmaker) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counter > 0 {
		m.counter--
		return false
	}
	return true
}

// ShuffleCategories randomizes the order categories are planned in.
// Order never affects correctness while players queue for one category
// at a time; it only decides who gets matched first.
func (m *Matchmaker) ShuffleCategories(categories []model.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng.Shuffle(len(categories), func(i, j int) {
		categories[i], categories[j] = categories[j], categories[i]
	})
}

// Plan returns the disjoint groupings to commit for one category, best
// quality first. Each committed proposal removes its players from the
// pool before the next candidate is considered, so no player appears in
// two proposals. Fewer than two queued players plans nothing.
func (m *Matchmaker) Plan(category *model.Category, queued []QueuedPlayer) []Proposal {
	perTeam := category.PlayersPerTeam
	if perTeam < 1 {
		perTeam = 1
	}
	limit := category.MatchSize()
	if limit < 2 {
		limit = 2
	}
	if limit > m.maxPlayers {
		limit = m.maxPlayers
	}
	if limit > len(queued) {
		limit = len(queued)
	}
	if len(queued) < 2*perTeam {
		return nil
	}

	// Enumerate every combination of t full teams, t >= 2.
	var candidates []candidate
	for teams := 2; teams*perTeam <= limit; teams++ {
		size := teams * perTeam
		forEachCombination(len(queued), size, func(idx []int) {
			group := make([]QueuedPlayer, size)
			for i, j := range idx {
				group[i] = queued[j]
			}
			candidates = append(candidates, candidate{
				players: group,
				quality: m.Quality(group),
			})
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	// Best quality first; equal quality breaks ties on player ids so a
	// pass over the same queue always plans the same matches.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].quality != candidates[j].quality {
			return candidates[i].quality > candidates[j].quality
		}
		return candidates[i].key() < candidates[j].key()
	})

	var proposals []Proposal
	used := make(map[string]bool)
	for _, c := range candidates {
		if c.overlaps(used) {
			continue
		}
		teams := make([][]string, 0, len(c.players)/perTeam)
		for i := 0; i < len(c.players); i += perTeam {
			team := make([]string, 0, perTeam)
			for _, p := range c.players[i : i+perTeam] {
				team = append(team, p.PlayerID)
				used[p.PlayerID] = true
			}
			teams = append(teams, team)
		}
		proposals = append(proposals, Proposal{
			Category: category,
			Teams:    teams,
			Quality:  c.quality,
		})
	}
	return proposals
}

// Quality scores a grouping: n² over one plus the normalized spread of
// skill and (down-weighted) uncertainty. Larger groups score higher;
// mismatched groups score lower. Unrated players contribute nothing to
// the spread terms.
func (m *Matchmaker) Quality(players []QueuedPlayer) float64 {
	n := float64(len(players))

	var mus, sigmas []float64
	for _, p := range players {
		if p.Rating != nil {
			mus = append(mus, p.Rating.Mu)
			sigmas = append(sigmas, p.Rating.Sigma)
		}
	}
	muSpread := stdev(mus) / m.model.StartingMu()
	sigmaSpread := stdev(sigmas) / m.model.StartingSigma()

	return n * n / (muSpread + sigmaSpread/sigmaSpreadDownweight + 1)
}

type candidate struct {
	players []QueuedPlayer
	quality float64
}

func (c *candidate) key() string {
	ids := make([]string, len(c.players))
	for i, p := range c.players {
		ids[i] = p.PlayerID
	}
	return strings.Join(ids, "|")
}

func (c *candidate) overlaps(used map[string]bool) bool {
	for _, p := range c.players {
		if used[p.PlayerID] {
			return true
		}
	}
	return false
}

// stdev is the population standard deviation; fewer than two values have
// no spread.
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// forEachCombination visits every r-subset of [0, n) in lexicographic
// order. The index slice is reused between calls.
func forEachCombination(n, r int, visit func(idx []int)) {
	if r < 1 || r > n {
		return
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		visit(idx)
		// Advance the rightmost index that can still move.
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
