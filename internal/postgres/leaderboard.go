package postgres

import (
	"context"
	"fmt"

	"github.com/points-ledger/internal/domain"
)

// OverallLeaderboard returns players by total points, earlier accounts first on ties
func (r *Repository) OverallLeaderboard(ctx context.Context, offset, limit int) ([]domain.PlayerStanding, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("getting player count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT identity, total_points, created_at
		FROM players
		ORDER BY total_points DESC, created_at ASC, identity ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("getting overall leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.PlayerStanding{}
	index := make(map[string]int)
	identities := []string{}
	for rows.Next() {
		e := domain.PlayerStanding{
			Rank:        int64(offset + len(entries) + 1),
			HighScores:  make(map[string]int64),
			GamesPlayed: make(map[string]int64),
		}
		if err := rows.Scan(&e.Identity, &e.TotalPoints, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning standing: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		index[e.Identity] = len(entries)
		identities = append(identities, e.Identity)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading standings: %w", err)
	}
	rows.Close()
	if len(entries) == 0 {
		return entries, total, nil
	}

	games, err := r.pool.Query(ctx, `
		SELECT identity, game_type, games_played, high_score
		FROM player_games
		WHERE identity = ANY($1)
	`, identities)
	if err != nil {
		return nil, 0, fmt.Errorf("getting player games: %w", err)
	}
	defer games.Close()
	for games.Next() {
		var identity, gameType string
		var played, high int64
		if err := games.Scan(&identity, &gameType, &played, &high); err != nil {
			return nil, 0, fmt.Errorf("scanning player game: %w", err)
		}
		e := &entries[index[identity]]
		e.GamesPlayed[gameType] = played
		e.HighScores[gameType] = high
		e.TotalGames += played
	}
	if err := games.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading player games: %w", err)
	}
	return entries, total, nil
}

// GameLeaderboard returns ledger entries of a game by score, earlier plays first on ties
func (r *Repository) GameLeaderboard(ctx context.Context, gameType string, offset, limit int) ([]domain.GameScoreRow, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM score_entries WHERE game_type = $1`, gameType).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("getting entry count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT identity, score, points, played_at
		FROM score_entries
		WHERE game_type = $1
		ORDER BY score DESC, played_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, gameType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("getting game leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.GameScoreRow{}
	for rows.Next() {
		e := domain.GameScoreRow{Rank: int64(offset + len(entries) + 1)}
		if err := rows.Scan(&e.Identity, &e.Score, &e.Points, &e.PlayedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning entry: %w", err)
		}
		e.PlayedAt = e.PlayedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading entries: %w", err)
	}
	return entries, total, nil
}

// GameBestPerPlayer groups a game's ledger by player, ordered by best score then identity
func (r *Repository) GameBestPerPlayer(ctx context.Context, gameType string, offset, limit int) ([]domain.PlayerBest, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT identity) FROM score_entries WHERE game_type = $1`, gameType).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("getting player count: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT identity, MAX(score), SUM(points)::BIGINT, COUNT(*), MAX(played_at)
		FROM score_entries
		WHERE game_type = $1
		GROUP BY identity
		ORDER BY MAX(score) DESC, identity ASC
		LIMIT $2 OFFSET $3
	`, gameType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("getting best per player: %w", err)
	}
	defer rows.Close()

	entries := []domain.PlayerBest{}
	for rows.Next() {
		e := domain.PlayerBest{Rank: int64(offset + len(entries) + 1)}
		if err := rows.Scan(&e.Identity, &e.MaxScore, &e.SumPoints, &e.Count, &e.LastPlayedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning best: %w", err)
		}
		e.LastPlayedAt = e.LastPlayedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading bests: %w", err)
	}
	return entries, total, nil
}

// TopEntry returns the best entry of a game, or nil when there is none
func (r *Repository) TopEntry(ctx context.Context, gameType string) (*domain.ScoreEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity, game_type, score, points, metadata, played_at
		FROM score_entries
		WHERE game_type = $1
		ORDER BY score DESC, played_at ASC, id ASC
		LIMIT 1
	`, gameType)
	if err != nil {
		return nil, fmt.Errorf("getting top entry: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
