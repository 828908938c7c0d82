// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	reportqueue "github.com/okian/ladder/internal/adapters/mq/queue"
	workerpool "github.com/okian/ladder/internal/adapters/mq/worker"
	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/lifecycle"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/rating"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// matchLockStripes is the number of striped match locks. Two matches
// hashing to the same stripe serialize needlessly, which is harmless.
const matchLockStripes = 64

// Service implements the API dependencies for the ladder system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	deduper     dedupe.Deduper
	reportQueue reportqueue.Queue
	workerPool  *workerpool.Pool
	ratingModel *rating.Model
	matchmaker  *matchmaking.Matchmaker
	lifecycle   *lifecycle.Engine

	// matchmakeMu serializes matchmaking passes so two concurrent
	// passes cannot commit overlapping matches from the same queue.
	matchmakeMu sync.Mutex

	// matchLocks stripes per-match write locks so score reports for the
	// same match serialize while unrelated matches proceed in parallel.
	matchLocks [matchLockStripes]sync.Mutex

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	startingMu     float64
	admissionDelay int
	maxPlayers     int
	dbPath         string

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of report worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the report queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStartingMu sets the skill estimate given to unrated players.
func WithStartingMu(mu float64) Option {
	return func(s *Service) {
		if mu > 0 {
			s.startingMu = mu
		}
	}
}

// WithAdmissionDelay sets the number of matchmaking passes suppressed
// after a join that could already match.
func WithAdmissionDelay(passes int) Option {
	return func(s *Service) {
		if passes >= 0 {
			s.admissionDelay = passes
		}
	}
}

// WithMaxMatchPlayers caps the total player count of a single match.
func WithMaxMatchPlayers(n int) Option {
	return func(s *Service) {
		if n >= 2 {
			s.maxPlayers = n
		}
	}
}

// WithDBPath selects the SQLite database file. Empty keeps the
// in-memory store.
func WithDBPath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithStore injects a prebuilt store, mainly for tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      100000,
		dedupeSize:     50000,
		startingMu:     1500,
		admissionDelay: 2,
		maxPlayers:     8,
		stopCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting ladder service...")

	if s.store == nil {
		if s.dbPath != "" {
			store, err := repository.NewSQLiteStore(s.dbPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
		} else {
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.reportQueue = reportqueue.NewInMemoryQueue(
		reportqueue.WithCapacity(s.queueSize),
	)
	s.ratingModel = rating.New(
		rating.WithStartingMu(s.startingMu),
	)
	s.matchmaker = matchmaking.New(s.ratingModel,
		matchmaking.WithMaxPlayers(s.maxPlayers),
		matchmaking.WithAdmissionDelay(s.admissionDelay),
	)
	s.lifecycle = lifecycle.New(s.ratingModel)

	s.workerPool = workerpool.NewPool(s.workerCount, s.reportQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ladder service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping ladder service...")

	if s.reportQueue != nil {
		_ = s.reportQueue.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "ladder service stopped")
}

// RegisterPlayer creates a new player with a unique username.
func (s *Service) RegisterPlayer(ctx context.Context, username string) (*model.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	now := time.Now().UTC()
	p := &model.Player{
		ID:           uuid.NewString(),
		Username:     username,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Player returns one player by id.
func (s *Service) Player(ctx context.Context, playerID string) (*model.Player, error) {
	return s.store.Player(ctx, playerID)
}

// CreateCategory registers a new competition category.
func (s *Service) CreateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	if c.Shortcode == "" || c.NumTeams < 2 || c.PlayersPerTeam < 1 {
		return nil, ErrInvalidCategory
	}
	c.ID = uuid.NewString()
	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Categories lists every competition category.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	return s.store.Categories(ctx)
}

// CategoryByShortcode returns the category with the given shortcode.
func (s *Service) CategoryByShortcode(ctx context.Context, shortcode string) (*model.Category, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Shortcode == shortcode {
			return &categories[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

// JoinQueue puts a player in a category's matchmaking queue. A player
// queues for at most one category and never while in an active match.
func (s *Service) JoinQueue(ctx context.Context, playerID, categoryID string) error {
	p, err := s.store.Player(ctx, playerID)
	if err != nil {
		return err
	}
	if p.Banned {
		return ErrPlayerBanned
	}
	if p.CurrentMatchID != "" {
		return ErrPlayerBusy
	}
	if _, err := s.store.Category(ctx, categoryID); err != nil {
		return err
	}

	p.QueuedFor = categoryID
	p.LastActiveAt = time.Now().UTC()
	if err := s.store.UpdatePlayer(ctx, p); err != nil {
		return err
	}

	queued, err := s.store.QueuedPlayers(ctx, categoryID)
	if err != nil {
		return err
	}
	s.matchmaker.NotifyJoin(len(queued))
	return nil
}

// LeaveQueue removes a player from whatever queue they are in.
func (s *Service) LeaveQueue(ctx context.Context, playerID string) error {
	p, err := s.store.Player(ctx, playerID)
	if err != nil {
		return err
	}
	if p.QueuedFor == "" {
		return nil
	}
	p.QueuedFor = ""
	return s.store.UpdatePlayer(ctx, p)
}

// ListQueue returns the players queued for a category.
func (s *Service) ListQueue(ctx context.Context, categoryID string) ([]model.Player, error) {
	if _, err := s.store.Category(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.store.QueuedPlayers(ctx, categoryID)
}

// Matchmake runs one matchmaking pass over every category and commits
// the planned matches. Passes are serialized; an admission delay from a
// recent join may suppress the pass entirely.
func (s *Service) Matchmake(ctx context.Context) ([]model.Match, error) {
	s.matchmakeMu.Lock()
	defer s.matchmakeMu.Unlock()

	if !s.matchmaker.Ready() {
		return nil, nil
	}
	metrics.RecordMatchmakingPass()

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	// Category order is the only randomness in a pass; no category gets
	// a standing head start on a shared queue of players.
	s.matchmaker.ShuffleCategories(categories)

	var created []model.Match
	for i := range categories {
		category := categories[i]
		matches, err := s.matchmakeCategory(ctx, &category)
		if err != nil {
			return created, err
		}
		created = append(created, matches...)
	}
	return created, nil
}

func (s *Service) matchmakeCategory(ctx context.Context, category *model.Category) ([]model.Match, error) {
	players, err := s.store.QueuedPlayers(ctx, category.ID)
	if err != nil {
		return nil, err
	}

	queued := make([]matchmaking.QueuedPlayer, 0, len(players))
	byID := make(map[string]*model.Player, len(players))
	for i := range players {
		p := &players[i]
		byID[p.ID] = p
		qp := matchmaking.QueuedPlayer{PlayerID: p.ID}
		if r, err := s.store.Rating(ctx, p.ID, category.ID); err == nil {
			qp.Rating = &rating.Rating{Mu: r.Mu, Sigma: r.Sigma}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		queued = append(queued, qp)
	}

	var created []model.Match
	for _, proposal := range s.matchmaker.Plan(category, queued) {
		seeds := make([][]lifecycle.Seed, len(proposal.Teams))
		for t, team := range proposal.Teams {
			seeds[t] = make([]lifecycle.Seed, len(team))
			for j, playerID := range team {
				seed := lifecycle.Seed{PlayerID: playerID, Rating: s.ratingModel.Starting()}
				for _, qp := range queued {
					if qp.PlayerID == playerID && qp.Rating != nil {
						seed.Rating = *qp.Rating
					}
				}
				seeds[t][j] = seed
			}
		}

		m, err := s.lifecycle.NewMatch(category, seeds)
		if err != nil {
			return created, fmt.Errorf("build match: %w", err)
		}
		if err := s.store.SaveMatch(ctx, m); err != nil {
			return created, err
		}

		for _, playerID := range m.PlayerIDs() {
			p := byID[playerID]
			p.QueuedFor = ""
			p.CurrentMatchID = m.ID
			if err := s.store.UpdatePlayer(ctx, p); err != nil {
				return created, err
			}
		}

		metrics.RecordMatchCreated()
		metrics.RecordMatchQuality(proposal.Quality)
		s.logger.Info(ctx, "match created",
			logger.String("matchID", m.ID),
			logger.String("category", category.Shortcode),
			logger.Float64("quality", proposal.Quality),
		)
		created = append(created, *m)
	}
	return created, nil
}

// ReportScore applies one player's raw score to their current match and
// persists every derived change, including the rating rows when the
// report completes the match.
func (s *Service) ReportScore(ctx context.Context, matchID, playerID string, value int64) (*model.Match, error) {
	unlock := s.lockMatch(matchID)
	defer unlock()

	m, category, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	updated, err := s.lifecycle.ReportScore(m, category, playerID, value)
	if err != nil {
		return nil, err
	}
	if err := s.commitMatch(ctx, m, updated); err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		metrics.RecordRatingLatency(float64(time.Since(start).Milliseconds()))
	}
	return m, nil
}

// ApplyReport is the worker entry point for asynchronously ingested
// score reports.
func (s *Service) ApplyReport(ctx context.Context, r model.Report) error {
	_, err := s.ReportScore(ctx, r.MatchID, r.PlayerID, r.Value)
	return err
}

// SetForfeit withdraws a team from its match.
func (s *Service) SetForfeit(ctx context.Context, matchID, teamID string) (*model.Match, error) {
	unlock := s.lockMatch(matchID)
	defer unlock()

	m, category, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	updated, err := s.lifecycle.SetForfeit(m, category, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.commitMatch(ctx, m, updated); err != nil {
		return nil, err
	}
	return m, nil
}

// TransitionStatus moves a match along its lifecycle.
func (s *Service) TransitionStatus(ctx context.Context, matchID string, to model.Status) (*model.Match, error) {
	unlock := s.lockMatch(matchID)
	defer unlock()

	m, category, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	updated, err := s.lifecycle.Transition(m, category, to)
	if err != nil {
		return nil, err
	}
	if err := s.commitMatch(ctx, m, updated); err != nil {
		return nil, err
	}
	return m, nil
}

// Match returns one match by id.
func (s *Service) Match(ctx context.Context, matchID string) (*model.Match, error) {
	return s.store.Match(ctx, matchID)
}

// Matches lists matches, optionally filtered to one category. An empty
// categoryID lists every match.
func (s *Service) Matches(ctx context.Context, categoryID string) ([]model.Match, error) {
	if categoryID != "" {
		if _, err := s.store.Category(ctx, categoryID); err != nil {
			return nil, err
		}
	}
	return s.store.Matches(ctx, categoryID)
}

// PredictWin forecasts each team's win probability for a match.
func (s *Service) PredictWin(ctx context.Context, matchID string) ([]float64, error) {
	m, err := s.store.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.PredictWin(m), nil
}

// Leaderboard returns up to limit ranked rows for a category.
func (s *Service) Leaderboard(ctx context.Context, categoryID string, limit int) ([]ranking.RatingRow, error) {
	if _, err := s.store.Category(ctx, categoryID); err != nil {
		return nil, err
	}
	ratings, err := s.store.CategoryRatings(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	rows := ranking.Leaderboard(ratings)
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

// Scores returns annotated score rows for a category.
func (s *Service) Scores(ctx context.Context, categoryID string, q ranking.ScoreQuery) ([]ranking.ScoreRow, error) {
	category, err := s.store.Category(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.CategoryScores(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return ranking.Scores(category, scores, q), nil
}

// SeenAndRecord atomically checks if a report event id was seen and
// records it if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordReportDuplicate()
	}
	return seen
}

// Unrecord removes a report event id from the seen list, allowing it to
// be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// EnqueueReport submits a report for asynchronous processing. Returns
// false when the queue refuses it.
func (s *Service) EnqueueReport(ctx context.Context, r model.Report) bool {
	return s.reportQueue.Enqueue(ctx, r)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.reportQueue.Len(ctx)
		totalPlayers := s.store.CountPlayers(ctx)

		stats["queueLength"] = queueLen
		stats["totalPlayers"] = totalPlayers
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalPlayers(totalPlayers)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// lockMatch takes the striped lock for a match id.
func (s *Service) lockMatch(matchID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(matchID))
	lock := &s.matchLocks[h.Sum32()%matchLockStripes]
	lock.Lock()
	return lock.Unlock
}

// loadMatch fetches a match and its category.
func (s *Service) loadMatch(ctx context.Context, matchID string) (*model.Match, *model.Category, error) {
	m, err := s.store.Match(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	category, err := s.store.Category(ctx, m.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	return m, category, nil
}

// commitMatch persists a mutated match, any rating rows a finish
// produced, and the player bookkeeping when the match left the active
// set.
func (s *Service) commitMatch(ctx context.Context, m *model.Match, updated []model.Rating) error {
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return err
	}

	for i := range updated {
		if err := s.store.UpsertRating(ctx, &updated[i]); err != nil {
			return err
		}
	}
	if len(updated) > 0 {
		metrics.RecordRatingsUpdated(len(updated))
	}
	if m.Status == model.StatusFinished {
		metrics.RecordMatchFinished()
		if err := s.persistScores(ctx, m); err != nil {
			return err
		}
	}

	if !m.Active() {
		for _, playerID := range m.PlayerIDs() {
			p, err := s.store.Player(ctx, playerID)
			if err != nil {
				// Simulated or imported matches may reference players
				// that were never registered.
				if errors.Is(err, repository.ErrNotFound) {
					continue
				}
				return err
			}
			if p.CurrentMatchID == m.ID {
				p.CurrentMatchID = ""
				p.LastActiveAt = time.Now().UTC()
				if err := s.store.UpdatePlayer(ctx, p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// persistScores writes the score-history rows for a freshly finished
// match. Rows exist only for finished matches, so reports into ongoing,
// contested or cancelled matches never reach the score leaderboard.
func (s *Service) persistScores(ctx context.Context, m *model.Match) error {
	for i := range m.Teams {
		t := &m.Teams[i]
		if t.Forfeited {
			continue
		}
		for j := range t.Players {
			tp := &t.Players[j]
			if tp.Score == nil {
				continue
			}
			if err := s.store.SaveScore(ctx, &model.Score{
				ID:         uuid.NewString(),
				PlayerID:   tp.PlayerID,
				CategoryID: m.CategoryID,
				MatchID:    m.ID,
				Value:      *tp.Score,
				Verified:   true,
				StartedAt:  m.StartedAt,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
