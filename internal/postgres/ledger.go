package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/points-ledger/internal/domain"
)

// RecordScore appends the ledger entry and folds it into the player aggregate in one transaction.
// Counters move through ON CONFLICT increments and GREATEST, never read-modify-write.
func (r *Repository) RecordScore(ctx context.Context, rec domain.ScoreRecord) (*domain.ScoreEntry, *domain.Player, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	playedAt := rec.PlayedAt.UTC().Truncate(time.Microsecond)

	_, err = tx.Exec(ctx, `
		INSERT INTO players (identity, total_points, minted_points, created_at, last_played)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (identity)
		DO UPDATE SET
			total_points = players.total_points + EXCLUDED.total_points,
			last_played = GREATEST(players.last_played, EXCLUDED.last_played)
	`, rec.Identity, rec.Points, playedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("updating player totals: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO player_games (identity, game_type, games_played, high_score)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (identity, game_type)
		DO UPDATE SET
			games_played = player_games.games_played + 1,
			high_score = GREATEST(player_games.high_score, EXCLUDED.high_score)
	`, rec.Identity, rec.GameType, rec.Score)
	if err != nil {
		return nil, nil, fmt.Errorf("updating player game counters: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO score_entries (identity, game_type, score, points, metadata, played_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.Identity, rec.GameType, rec.Score, rec.Points, []byte(rec.Metadata), playedAt).Scan(&id)
	if err != nil {
		return nil, nil, fmt.Errorf("appending ledger entry: %w", err)
	}

	player, err := getPlayer(ctx, tx, rec.Identity)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &domain.ScoreEntry{
		ID:       strconv.FormatInt(id, 10),
		Identity: rec.Identity,
		GameType: rec.GameType,
		Score:    rec.Score,
		Points:   rec.Points,
		Metadata: rec.Metadata,
		PlayedAt: playedAt,
	}, player, nil
}

// GetPlayer retrieves a player aggregate by identity
func (r *Repository) GetPlayer(ctx context.Context, identity string) (*domain.Player, error) {
	return getPlayer(ctx, r.pool, identity)
}

// MintPoints increments minted points only while they stay within total points
func (r *Repository) MintPoints(ctx context.Context, identity string, amount int64) (*domain.Player, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE players
		SET minted_points = minted_points + $2
		WHERE identity = $1 AND minted_points + $2 <= total_points
	`, identity, amount)
	if err != nil {
		return nil, fmt.Errorf("minting points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE identity = $1)`, identity).Scan(&exists); err != nil {
			return nil, fmt.Errorf("checking player existence: %w", err)
		}
		if !exists {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, domain.ErrMintConflict
	}
	return getPlayer(ctx, r.pool, identity)
}

// PlayerGameStats reduces a player's ledger per game type
func (r *Repository) PlayerGameStats(ctx context.Context, identity string) (map[string]domain.PlayerGameStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT game_type, COUNT(*), MAX(score), SUM(points)::BIGINT, AVG(score)::FLOAT8
		FROM score_entries
		WHERE identity = $1
		GROUP BY game_type
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("getting player game stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]domain.PlayerGameStats)
	for rows.Next() {
		var gameType string
		var st domain.PlayerGameStats
		if err := rows.Scan(&gameType, &st.TotalGames, &st.HighScore, &st.TotalPoints, &st.AverageScore); err != nil {
			return nil, fmt.Errorf("scanning game stats: %w", err)
		}
		stats[gameType] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading game stats: %w", err)
	}
	return stats, nil
}

// PlayerHistory returns a page of a player's ledger entries, newest first
func (r *Repository) PlayerHistory(ctx context.Context, identity, gameType string, offset, limit int) ([]domain.ScoreEntry, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM score_entries
		WHERE identity = $1 AND ($2 = '' OR game_type = $2)
	`, identity, gameType).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting history: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, identity, game_type, score, points, metadata, played_at
		FROM score_entries
		WHERE identity = $1 AND ($2 = '' OR game_type = $2)
		ORDER BY played_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, identity, gameType, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("getting history: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListIdentities returns a page of player identities in lexical order
func (r *Repository) ListIdentities(ctx context.Context, offset, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT identity FROM players ORDER BY identity LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning identities: %w", err)
	}
	return ids, nil
}

// RebuildPlayer recomputes the aggregate from the ledger under a row lock and rewrites it on drift
func (r *Repository) RebuildPlayer(ctx context.Context, identity string) (*domain.Player, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Submissions upsert the same row first, so holding it serializes against them
	var locked string
	err = tx.QueryRow(ctx, `SELECT identity FROM players WHERE identity = $1 FOR UPDATE`, identity).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrPlayerNotFound
		}
		return nil, false, fmt.Errorf("locking player: %w", err)
	}

	current, err := getPlayer(ctx, tx, identity)
	if err != nil {
		return nil, false, err
	}

	var (
		total      int64
		lastPlayed *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0)::BIGINT, MAX(played_at)
		FROM score_entries WHERE identity = $1
	`, identity).Scan(&total, &lastPlayed)
	if err != nil {
		return nil, false, fmt.Errorf("summing ledger: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT game_type, COUNT(*), MAX(score)
		FROM score_entries WHERE identity = $1
		GROUP BY game_type
	`, identity)
	if err != nil {
		return nil, false, fmt.Errorf("reducing ledger: %w", err)
	}
	played := make(map[string]int64)
	high := make(map[string]int64)
	for rows.Next() {
		var gameType string
		var count, maxScore int64
		if err := rows.Scan(&gameType, &count, &maxScore); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scanning ledger reduction: %w", err)
		}
		played[gameType] = count
		high[gameType] = maxScore
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("reading ledger reduction: %w", err)
	}

	if !drifted(current, total, played, high) {
		return current, false, nil
	}

	last := current.LastPlayed
	if lastPlayed != nil {
		last = lastPlayed.UTC()
	}
	if _, err := tx.Exec(ctx, `UPDATE players SET total_points = $2, last_played = $3 WHERE identity = $1`,
		identity, total, last); err != nil {
		return nil, false, fmt.Errorf("rewriting player totals: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM player_games WHERE identity = $1`, identity); err != nil {
		return nil, false, fmt.Errorf("clearing player game counters: %w", err)
	}
	batch := &pgx.Batch{}
	for gameType, count := range played {
		batch.Queue(`INSERT INTO player_games (identity, game_type, games_played, high_score) VALUES ($1, $2, $3, $4)`,
			identity, gameType, count, high[gameType])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, false, fmt.Errorf("rewriting player game counters: %w", err)
	}

	rebuilt, err := getPlayer(ctx, tx, identity)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing transaction: %w", err)
	}
	return rebuilt, true, nil
}

func drifted(p *domain.Player, total int64, played, high map[string]int64) bool {
	if p.TotalPoints != total || len(nonZero(p.GamesPlayed)) != len(played) {
		return true
	}
	for gameType, count := range played {
		if p.GamesPlayed[gameType] != count || p.HighScores[gameType] != high[gameType] {
			return true
		}
	}
	return false
}

func nonZero(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		if v != 0 {
			out[k] = v
		}
	}
	return out
}

func getPlayer(ctx context.Context, q querier, identity string) (*domain.Player, error) {
	p := domain.Player{
		GamesPlayed: make(map[string]int64),
		HighScores:  make(map[string]int64),
	}
	err := q.QueryRow(ctx, `
		SELECT identity, total_points, minted_points, created_at, last_played
		FROM players WHERE identity = $1
	`, identity).Scan(&p.Identity, &p.TotalPoints, &p.MintedPoints, &p.CreatedAt, &p.LastPlayed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.LastPlayed = p.LastPlayed.UTC()

	rows, err := q.Query(ctx, `SELECT game_type, games_played, high_score FROM player_games WHERE identity = $1`, identity)
	if err != nil {
		return nil, fmt.Errorf("getting player games: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var gameType string
		var count, high int64
		if err := rows.Scan(&gameType, &count, &high); err != nil {
			return nil, fmt.Errorf("scanning player game: %w", err)
		}
		p.GamesPlayed[gameType] = count
		p.HighScores[gameType] = high
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading player games: %w", err)
	}
	return &p, nil
}

func scanEntries(rows pgx.Rows) ([]domain.ScoreEntry, error) {
	defer rows.Close()
	entries := []domain.ScoreEntry{}
	for rows.Next() {
		var (
			e  domain.ScoreEntry
			id int64
		)
		if err := rows.Scan(&id, &e.Identity, &e.GameType, &e.Score, &e.Points, &e.Metadata, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.PlayedAt = e.PlayedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	return entries, nil
}
