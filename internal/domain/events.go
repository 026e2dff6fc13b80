package domain

import "time"

// Event types delivered to subscribers
const (
	EventConnectionAck     = "connection_ack"
	EventPlayerUpdate      = "player_update"
	EventScoresRefresh     = "scores_refresh"
	EventScoreNew          = "score_new"
	EventLeaderboardUpdate = "leaderboard_update"
	EventGameStatsUpdate   = "game_stats_update"
	EventPong              = "pong"
	EventError             = "error"
)

// TopicGlobal reaches every connected subscriber.
const TopicGlobal = "global"

// ScopeOverall tags the overall leaderboard in leaderboard_update events.
const ScopeOverall = "overall"

// PlayerTopic is the private topic of one identity.
func PlayerTopic(identity string) string {
	return "player:" + identity
}

// Event is a notification pushed to a topic.
type Event struct {
	Type      string    `json:"type"`
	Scope     string    `json:"scope,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PlayerUpdate is the payload of player_update events.
type PlayerUpdate struct {
	Player    PlayerSummary              `json:"player"`
	GameStats map[string]PlayerGameStats `json:"game_stats,omitempty"`
}

// ScoresRefresh hints a client to reload its views of one game.
type ScoresRefresh struct {
	GameType string `json:"game_type"`
}

// ScoreNew announces a freshly recorded ledger entry.
type ScoreNew struct {
	GameType string     `json:"game_type"`
	Score    ScoreEntry `json:"score"`
}

// LeaderboardUpdate carries a top-N snapshot tagged by scope.
type LeaderboardUpdate struct {
	Scope   string `json:"scope"`
	Entries any    `json:"leaderboard"`
}

// ConnectionAck names the identity resolved for a new connection, nil when anonymous.
type ConnectionAck struct {
	Connected bool    `json:"connected"`
	Identity  *string `json:"identity"`
}
