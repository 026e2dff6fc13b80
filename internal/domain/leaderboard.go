package domain

import (
	"encoding/json"
	"time"
)

// ScoreEntry is an immutable ledger row, one per accepted submission.
type ScoreEntry struct {
	ID       string          `json:"id"`
	Identity string          `json:"identity"`
	GameType string          `json:"game_type"`
	Score    int64           `json:"score"`
	Points   int64           `json:"points"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	PlayedAt time.Time       `json:"played_at"`
}

// ScoreSubmission represents a request to submit a score
type ScoreSubmission struct {
	GameType string          `json:"game_type"`
	Score    float64         `json:"score"`
	Points   float64         `json:"points"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// IdentifiedSubmission is a submission arriving with its player identity, as on the ingest topic.
type IdentifiedSubmission struct {
	Identity string `json:"identity"`
	ScoreSubmission
}

// ScoreRecord is a validated submission ready to be appended to the ledger.
type ScoreRecord struct {
	Identity string
	GameType string
	Score    int64
	Points   int64
	Metadata json.RawMessage
	PlayedAt time.Time
}

// PlayerStanding is a row of the overall leaderboard.
type PlayerStanding struct {
	Rank        int64            `json:"rank"`
	Identity    string           `json:"identity"`
	TotalPoints int64            `json:"total_points"`
	HighScores  map[string]int64 `json:"high_scores"`
	GamesPlayed map[string]int64 `json:"games_played"`
	TotalGames  int64            `json:"total_games"`
	CreatedAt   time.Time        `json:"created_at"`
}

// GameScoreRow is a row of the per-game recent leaderboard; one row per ledger entry.
type GameScoreRow struct {
	Rank     int64     `json:"rank"`
	Identity string    `json:"identity"`
	Score    int64     `json:"score"`
	Points   int64     `json:"points"`
	PlayedAt time.Time `json:"played_at"`
}

// PlayerBest is a row of the per-game best-per-player leaderboard.
type PlayerBest struct {
	Rank         int64     `json:"rank"`
	Identity     string    `json:"identity"`
	MaxScore     int64     `json:"max_score"`
	SumPoints    int64     `json:"sum_points"`
	Count        int64     `json:"count"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// TopPlayer names the holder of a game's best score.
type TopPlayer struct {
	Identity string     `json:"identity,omitempty"`
	PlayedAt *time.Time `json:"played_at"`
}

// GameTopScore is the best ledger entry for a game, or a zeroed placeholder.
type GameTopScore struct {
	HighestScore int64     `json:"highest_score"`
	Points       int64     `json:"points"`
	TopPlayer    TopPlayer `json:"top_player"`
}

// Pagination describes a page of a ranked view.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	TotalPages  int64 `json:"total_pages"`
	Total       int64 `json:"total"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// NewPagination derives page flags from the total row count.
func NewPagination(page, limit int, total int64) Pagination {
	p := Pagination{
		CurrentPage: page,
		Limit:       limit,
		Total:       total,
		HasNextPage: int64(page)*int64(limit) < total,
		HasPrevPage: page > 1,
	}
	if limit > 0 {
		p.TotalPages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}

// Offset returns the zero-based row offset of a page.
func (p Pagination) Offset() int {
	return (p.CurrentPage - 1) * p.Limit
}

// OverallLeaderboard is a page of players ordered by total points.
type OverallLeaderboard struct {
	Entries    []PlayerStanding `json:"leaderboard"`
	Pagination Pagination       `json:"pagination"`
}

// GameLeaderboard is a page of ledger entries for one game.
type GameLeaderboard struct {
	GameType   string         `json:"game_type"`
	Entries    []GameScoreRow `json:"leaderboard"`
	Pagination Pagination     `json:"pagination"`
}

// BestPerPlayerLeaderboard is a page of per-player bests for one game.
type BestPerPlayerLeaderboard struct {
	GameType   string       `json:"game_type"`
	Entries    []PlayerBest `json:"leaderboard"`
	Pagination Pagination   `json:"pagination"`
}

// ScoreHistory is a page of one player's ledger entries, newest first.
type ScoreHistory struct {
	Entries    []ScoreEntry `json:"scores"`
	Pagination Pagination   `json:"pagination"`
}

// Snapshot holds the views recomputed after a submission.
type Snapshot struct {
	PlayerGameStats map[string]PlayerGameStats `json:"player_game_stats,omitempty"`
	GlobalGameStats map[string]GameTopScore    `json:"global_game_stats,omitempty"`
	Overall         []PlayerStanding           `json:"overall,omitempty"`
	Game            []GameScoreRow             `json:"game,omitempty"`
}

// SubmissionResult is returned by a successful score submission.
type SubmissionResult struct {
	Entry    ScoreEntry    `json:"score"`
	Player   PlayerSummary `json:"player"`
	Snapshot Snapshot      `json:"snapshot"`
}

// MintResult is returned by a successful mint.
type MintResult struct {
	MintedAmount   int64         `json:"minted_points"`
	ConvertedUnits float64       `json:"converted_units"`
	Player         PlayerSummary `json:"player"`
}
