package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/ladder/pkg/logger"
)

// Polling parameters for match settlement.
const (
	settleTimeout      = 30 * time.Second
	settlePollInterval = 100 * time.Millisecond

	minRunMillis = 30_000
	maxRunMillis = 300_000
)

type playerDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type categoryDTO struct {
	ID        string `json:"id"`
	Shortcode string `json:"shortcode"`
}

type matchDTO struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Teams  []struct {
		ID      string `json:"id"`
		Players []struct {
			PlayerID string `json:"player_id"`
		} `json:"players"`
	} `json:"teams"`
}

type ratingRowDTO struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Mu       int    `json:"mu"`
}

type eventDTO struct {
	EventID  string `json:"event_id"`
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Value    int64  `json:"value"`
}

// Run executes the complete simulation against a running service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	lg := logger.Get()

	lg.Info(ctx, "starting ladder simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("rounds", config.Rounds),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	category, err := createCategory(ctx, client, config, rng)
	if err != nil {
		return fmt.Errorf("category setup failed: %w", err)
	}

	players, err := registerPlayers(ctx, client, config, rng)
	if err != nil {
		return fmt.Errorf("player registration failed: %w", err)
	}
	if len(players)%2 != 0 {
		// 1v1 rounds need an even population; bench the last registrant.
		players = players[:len(players)-1]
	}
	stats.PlayersRegistered = len(players)

	for round := 0; round < config.Rounds; round++ {
		matches, err := runRound(ctx, client, config, category, players, rng, stats)
		if err != nil {
			return fmt.Errorf("round %d failed: %w", round+1, err)
		}
		lg.Info(ctx, "round settled",
			logger.Int("round", round+1),
			logger.Int("matches", len(matches)))
	}

	rows, err := verifyLeaderboard(ctx, client, config, category, len(players))
	if err != nil {
		return fmt.Errorf("leaderboard verification failed: %w", err)
	}
	stats.LeaderboardRows = len(rows)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	lg.Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// createCategory creates a fresh 1v1 speedrun category for this run.
func createCategory(ctx context.Context, client *HTTPClient, config *Config, rng *rand.Rand) (*categoryDTO, error) {
	shortcode := fmt.Sprintf("sim-%06x", rng.Int31n(1<<24))
	body := map[string]any{
		"shortcode":        shortcode,
		"name":             "Simulation " + shortcode,
		"speedrun":         true,
		"num_teams":        2,
		"players_per_team": 1,
	}
	var category categoryDTO
	if err := client.postJSON(ctx, config.BaseURL+"/categories", body, &category, http.StatusCreated); err != nil {
		return nil, err
	}
	return &category, nil
}

// registerPlayers creates the simulated player population.
func registerPlayers(ctx context.Context, client *HTTPClient, config *Config, rng *rand.Rand) ([]playerDTO, error) {
	prefix := fmt.Sprintf("sim-%06x", rng.Int31n(1<<24))
	players := make([]playerDTO, 0, config.Players)
	for i := 0; i < config.Players; i++ {
		body := map[string]string{"username": fmt.Sprintf("%s-player-%04d", prefix, i)}
		var p playerDTO
		if err := client.postJSON(ctx, config.BaseURL+"/players", body, &p, http.StatusCreated); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

// runRound queues everyone, runs one matchmaking pass, reports scores
// through the async event endpoint and waits for settlement.
func runRound(ctx context.Context, client *HTTPClient, config *Config, category *categoryDTO, players []playerDTO, rng *rand.Rand, stats *Stats) ([]matchDTO, error) {
	for _, p := range players {
		body := map[string]string{"player_id": p.ID, "category_id": category.ID}
		if err := client.postJSON(ctx, config.BaseURL+"/queue", body, nil, http.StatusOK); err != nil {
			return nil, fmt.Errorf("queueing %s: %w", p.Username, err)
		}
	}

	// The admission delay suppresses early passes so queues can fill up;
	// keep passing until the matchmaker commits.
	var matches []matchDTO
	deadline := time.Now().Add(settleTimeout)
	for len(matches) == 0 {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("matchmaking produced no matches within %s", settleTimeout)
		}
		if err := client.postJSON(ctx, config.BaseURL+"/matchmake", map[string]any{}, &matches, http.StatusOK); err != nil {
			return nil, err
		}
	}
	stats.MatchesCreated += len(matches)

	events := make([]eventDTO, 0, len(matches)*2)
	for _, m := range matches {
		for _, team := range m.Teams {
			for _, tp := range team.Players {
				events = append(events, eventDTO{
					EventID:  uuid.NewString(),
					MatchID:  m.ID,
					PlayerID: tp.PlayerID,
					Value:    minRunMillis + rng.Int63n(maxRunMillis-minRunMillis),
				})
			}
		}
	}
	submitEvents(ctx, client, config, events, stats)

	if err := waitForSettlement(ctx, client, config, matches); err != nil {
		return nil, err
	}
	stats.MatchesFinished += len(matches)
	return matches, nil
}

// submitEvents posts score events concurrently through a worker pool.
func submitEvents(ctx context.Context, client *HTTPClient, config *Config, events []eventDTO, stats *Stats) {
	var accepted, duplicate, failed int64

	eventChan := make(chan eventDTO, config.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range eventChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				switch submitSingleEvent(ctx, client, config.BaseURL+"/events", event) {
				case http.StatusAccepted:
					atomic.AddInt64(&accepted, 1)
				case http.StatusOK:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(eventChan)
		for _, event := range events {
			select {
			case <-ctx.Done():
				return
			case eventChan <- event:
			}
		}
	}()
	wg.Wait()

	stats.EventsSubmitted += len(events)
	stats.EventsAccepted += int(atomic.LoadInt64(&accepted))
	stats.EventsDuplicate += int(atomic.LoadInt64(&duplicate))
	stats.EventsFailed += int(atomic.LoadInt64(&failed))
}

// submitSingleEvent posts one event and returns the HTTP status, or 0 on
// transport failure.
func submitSingleEvent(ctx context.Context, client *HTTPClient, url string, event eventDTO) int {
	resp, err := client.Post(ctx, url, event)
	if err != nil {
		return 0
	}
	if _, err := readResponseBody(resp); err != nil {
		return 0
	}
	return resp.StatusCode
}

// waitForSettlement polls until every match of the round is finished.
func waitForSettlement(ctx context.Context, client *HTTPClient, config *Config, matches []matchDTO) error {
	deadline := time.Now().Add(settleTimeout)
	pending := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		pending[m.ID] = struct{}{}
	}

	for len(pending) > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%d matches did not settle within %s", len(pending), settleTimeout)
		}
		for id := range pending {
			var m matchDTO
			if err := client.getJSON(ctx, config.BaseURL+"/matches/"+id, &m); err != nil {
				return err
			}
			if m.Status == "finished" {
				delete(pending, id)
			}
		}
		if len(pending) > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settlePollInterval):
			}
		}
	}
	return nil
}

// verifyLeaderboard fetches the leaderboard and checks its invariants:
// every player is ranked and ranks never improve as published mu drops.
func verifyLeaderboard(ctx context.Context, client *HTTPClient, config *Config, category *categoryDTO, wantPlayers int) ([]ratingRowDTO, error) {
	var rows []ratingRowDTO
	url := fmt.Sprintf("%s/leaderboard?category_id=%s", config.BaseURL, category.ID)
	if err := client.getJSON(ctx, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) != wantPlayers {
		return nil, fmt.Errorf("leaderboard has %d rows, want %d", len(rows), wantPlayers)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Mu > rows[i-1].Mu {
			return nil, fmt.Errorf("leaderboard not sorted at row %d", i)
		}
		if rows[i].Rank < rows[i-1].Rank {
			return nil, fmt.Errorf("leaderboard ranks regress at row %d", i)
		}
	}
	return rows, nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("playersRegistered", stats.PlayersRegistered),
		logger.Int("matchesCreated", stats.MatchesCreated),
		logger.Int("matchesFinished", stats.MatchesFinished),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
