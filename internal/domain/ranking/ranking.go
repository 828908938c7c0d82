// Package ranking computes leaderboard positions from rating and score
// history. All ranks use the competition strategy: tied entries share a
// rank and the next distinct entry skips ahead by the size of the tie
// group (1, 1, 3, 4 — never 1, 1, 2, 3).
//
// Everything here is a pure function over in-memory snapshots; ranks are
// computed on read and never stored.
package ranking

import (
	"sort"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/rating"
)

// RatingRow is one leaderboard line. Mu is the published whole-number
// skill; rank ties are resolved for display only by player id.
type RatingRow struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"player_id"`
	Mu       int    `json:"mu"`
}

// ScoreRow is one score-history line with its three derived ranks.
// NonObsoleteRank is nil on rows that are not that player's best.
type ScoreRow struct {
	PlayerID        string `json:"player_id"`
	MatchID         string `json:"match_id"`
	Value           int64  `json:"score"`
	ScoreFormatted  string `json:"score_formatted"`
	OverallRank     int    `json:"overall_rank"`
	PlayerRank      int    `json:"player_rank"`
	NonObsoleteRank *int   `json:"non_obsolete_rank"`
}

// ScoreQuery narrows a score listing. A player filter returns that
// player's full history; otherwise obsolete rows are omitted unless
// IncludeObsolete is set.
type ScoreQuery struct {
	PlayerID        string
	IncludeObsolete bool
}

// Leaderboard ranks ratings for one category, best first. Equal
// published mu shares a rank.
func Leaderboard(ratings []model.Rating) []RatingRow {
	rows := make([]RatingRow, len(ratings))
	for i, r := range ratings {
		rows[i] = RatingRow{PlayerID: r.PlayerID, Mu: rating.PublishMu(r.Mu)}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Mu != rows[j].Mu {
			return rows[i].Mu > rows[j].Mu
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	for i := range rows {
		switch {
		case i == 0:
			rows[i].Rank = 1
		case rows[i].Mu == rows[i-1].Mu:
			rows[i].Rank = rows[i-1].Rank
		default:
			rows[i].Rank = i + 1
		}
	}
	return rows
}

// Scores annotates a category's verified finished-match scores with
// overall, per-player and non-obsolete ranks, then applies the query
// filter. Rows come back best-to-worst for the category's direction,
// with earlier matches first among equal scores.
func Scores(category *model.Category, scores []model.Score, q ScoreQuery) []ScoreRow {
	ordered := make([]model.Score, 0, len(scores))
	for _, s := range scores {
		if s.Verified {
			ordered = append(ordered, s)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Value != ordered[j].Value {
			return betterValue(category, ordered[i].Value, ordered[j].Value)
		}
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.Before(ordered[j].StartedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	rows := make([]ScoreRow, len(ordered))
	playerSeen := make(map[string]int)        // rows emitted per player
	playerLastValue := make(map[string]int64) // previous row's value per player
	playerLastRank := make(map[string]int)    // previous row's rank per player
	bestRowIdx := make([]int, 0, len(ordered))
	bestSeen := make(map[string]bool)

	for i, s := range ordered {
		value := s.Value
		row := ScoreRow{
			PlayerID:       s.PlayerID,
			MatchID:        s.MatchID,
			Value:          value,
			ScoreFormatted: model.FormatScore(&value, category.Speedrun),
		}

		// Overall rank, competition style over the full ordering.
		switch {
		case i == 0:
			row.OverallRank = 1
		case value == ordered[i-1].Value:
			row.OverallRank = rows[i-1].OverallRank
		default:
			row.OverallRank = i + 1
		}

		// Player rank, competition style within the player's own rows.
		seen := playerSeen[s.PlayerID]
		if seen > 0 && playerLastValue[s.PlayerID] == value {
			row.PlayerRank = playerLastRank[s.PlayerID]
		} else {
			row.PlayerRank = seen + 1
		}
		playerSeen[s.PlayerID] = seen + 1
		playerLastValue[s.PlayerID] = value
		playerLastRank[s.PlayerID] = row.PlayerRank

		// The first row per player in this ordering is their best score
		// (earliest match breaks value ties).
		if !bestSeen[s.PlayerID] {
			bestSeen[s.PlayerID] = true
			bestRowIdx = append(bestRowIdx, i)
		}

		rows[i] = row
	}

	// Non-obsolete ranks over the one-best-per-player subset.
	for n, idx := range bestRowIdx {
		r := n + 1
		if n > 0 {
			prev := bestRowIdx[n-1]
			if rows[idx].Value == rows[prev].Value {
				r = *rows[prev].NonObsoleteRank
			}
		}
		rank := r
		rows[idx].NonObsoleteRank = &rank
	}

	return filterScores(rows, q)
}

func filterScores(rows []ScoreRow, q ScoreQuery) []ScoreRow {
	out := make([]ScoreRow, 0, len(rows))
	for _, row := range rows {
		if q.PlayerID != "" {
			if row.PlayerID == q.PlayerID {
				out = append(out, row)
			}
			continue
		}
		if !q.IncludeObsolete && row.NonObsoleteRank == nil {
			continue
		}
		out = append(out, row)
	}
	return out
}

// betterValue reports whether a beats b for the category's scoring
// direction: lower wins speedruns, higher wins everything else.
func betterValue(category *model.Category, a, b int64) bool {
	if category.Speedrun {
		return a < b
	}
	return a > b
}

// CompetitionPlaces ranks team scores best first and returns the place
// for each input index, sharing places across ties. Used by the match
// lifecycle when deriving team places from scores.
func CompetitionPlaces(values []int64, speedrun bool) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if speedrun {
			return values[idx[a]] < values[idx[b]]
		}
		return values[idx[a]] > values[idx[b]]
	})

	places := make([]int, len(values))
	for pos, i := range idx {
		switch {
		case pos == 0:
			places[i] = 1
		case values[i] == values[idx[pos-1]]:
			places[i] = places[idx[pos-1]]
		default:
			places[i] = pos + 1
		}
	}
	return places
}
