package domain

import (
	"math"
	"strings"
	"time"
)

// MaxValue is the largest single score or points value accepted; it is exactly representable
// as a float64, which Redis scripts and sorted-set scores use.
const MaxValue = 1 << 53

// Player is the per-identity aggregate. It is a projection of the ledger: totals, counts and
// high scores can always be recomputed from the player's score entries.
type Player struct {
	Identity     string           `json:"identity"`
	TotalPoints  int64            `json:"total_points"`
	MintedPoints int64            `json:"minted_points"`
	GamesPlayed  map[string]int64 `json:"games_played"`
	HighScores   map[string]int64 `json:"high_scores"`
	CreatedAt    time.Time        `json:"created_at"`
	LastPlayed   time.Time        `json:"last_played"`
}

// AvailablePoints returns the unminted balance, never negative.
func (p *Player) AvailablePoints() int64 {
	if p.TotalPoints <= p.MintedPoints {
		return 0
	}
	return p.TotalPoints - p.MintedPoints
}

// TotalGames sums accepted submissions over every game type.
func (p *Player) TotalGames() int64 {
	var total int64
	for _, n := range p.GamesPlayed {
		total += n
	}
	return total
}

// PlayerSummary is the client-facing view of a player aggregate.
type PlayerSummary struct {
	Identity        string           `json:"identity"`
	TotalPoints     int64            `json:"total_points"`
	MintedPoints    int64            `json:"minted_points"`
	AvailablePoints int64            `json:"available_points"`
	MintedUnits     float64          `json:"minted_units"`
	GamesPlayed     map[string]int64 `json:"games_played"`
	HighScores      map[string]int64 `json:"high_scores"`
	TotalGames      int64            `json:"total_games"`
	CreatedAt       time.Time        `json:"created_at"`
	LastPlayed      time.Time        `json:"last_played"`
}

// PlayerGameStats is the ledger reduction for one (player, game type) pair.
type PlayerGameStats struct {
	TotalGames   int64   `json:"total_games"`
	HighScore    int64   `json:"high_score"`
	TotalPoints  int64   `json:"total_points"`
	AverageScore float64 `json:"average_score"`
}

// GameHighScore is one player's standing in a single game.
type GameHighScore struct {
	Identity    string `json:"identity"`
	GameType    string `json:"game_type"`
	HighScore   int64  `json:"high_score"`
	GamesPlayed int64  `json:"games_played"`
}

// NormalizeIdentity trims and lowercases an identity key.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// RoundAverage rounds to one decimal place.
func RoundAverage(v float64) float64 {
	return math.Round(v*10) / 10
}
