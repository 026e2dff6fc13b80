package service

import (
	"context"

	"github.com/points-ledger/internal/domain"
)

// GetOverallLeaderboard returns players ordered by total points, earlier accounts first on ties
func (s *LeaderboardService) GetOverallLeaderboard(ctx context.Context, page, limit int) (*domain.OverallLeaderboard, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetOverallLeaderboard")
	defer span.End()

	pg, err := s.pagination(page, limit)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.store.OverallLeaderboard(ctx, pg.Offset(), pg.Limit)
	if err != nil {
		return nil, storeErr("getting overall leaderboard", err)
	}
	for i := range entries {
		s.normalizeStanding(&entries[i])
	}

	return &domain.OverallLeaderboard{
		Entries:    nonNil(entries),
		Pagination: domain.NewPagination(pg.CurrentPage, pg.Limit, total),
	}, nil
}

// GetGameLeaderboard returns the ledger entries of one game ordered by score
func (s *LeaderboardService) GetGameLeaderboard(ctx context.Context, gameType string, page, limit int) (*domain.GameLeaderboard, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetGameLeaderboard")
	defer span.End()

	if _, err := s.validateGameType(gameType); err != nil {
		return nil, err
	}
	pg, err := s.pagination(page, limit)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.store.GameLeaderboard(ctx, gameType, pg.Offset(), pg.Limit)
	if err != nil {
		return nil, storeErr("getting game leaderboard", err)
	}

	return &domain.GameLeaderboard{
		GameType:   gameType,
		Entries:    nonNil(entries),
		Pagination: domain.NewPagination(pg.CurrentPage, pg.Limit, total),
	}, nil
}

// GetGameBestPerPlayer returns one row per player holding that player's best score in a game
func (s *LeaderboardService) GetGameBestPerPlayer(ctx context.Context, gameType string, page, limit int) (*domain.BestPerPlayerLeaderboard, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetGameBestPerPlayer")
	defer span.End()

	if _, err := s.validateGameType(gameType); err != nil {
		return nil, err
	}
	pg, err := s.pagination(page, limit)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.store.GameBestPerPlayer(ctx, gameType, pg.Offset(), pg.Limit)
	if err != nil {
		return nil, storeErr("getting best scores per player", err)
	}

	return &domain.BestPerPlayerLeaderboard{
		GameType:   gameType,
		Entries:    nonNil(entries),
		Pagination: domain.NewPagination(pg.CurrentPage, pg.Limit, total),
	}, nil
}

// GetGlobalGameStats returns the highest scoring entry of every catalog game
func (s *LeaderboardService) GetGlobalGameStats(ctx context.Context) (map[string]domain.GameTopScore, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.GetGlobalGameStats")
	defer span.End()

	stats := make(map[string]domain.GameTopScore, len(s.catalog.IDs()))
	for _, gameType := range s.catalog.IDs() {
		top, err := s.store.TopEntry(ctx, gameType)
		if err != nil {
			return nil, storeErr("getting top entry", err)
		}
		if top == nil {
			stats[gameType] = domain.GameTopScore{}
			continue
		}
		playedAt := top.PlayedAt
		stats[gameType] = domain.GameTopScore{
			HighestScore: top.Score,
			Points:       top.Points,
			TopPlayer: domain.TopPlayer{
				Identity: top.Identity,
				PlayedAt: &playedAt,
			},
		}
	}
	return stats, nil
}

// GetPlayerStats returns per-game ledger statistics for a player, zeroed for unplayed games
func (s *LeaderboardService) GetPlayerStats(ctx context.Context, identity string) (map[string]domain.PlayerGameStats, error) {
	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}

	byGame, err := s.store.PlayerGameStats(ctx, id)
	if err != nil {
		return nil, storeErr("getting player game stats", err)
	}

	stats := make(map[string]domain.PlayerGameStats, len(s.catalog.IDs()))
	for _, gameType := range s.catalog.IDs() {
		st := byGame[gameType]
		st.AverageScore = domain.RoundAverage(st.AverageScore)
		stats[gameType] = st
	}
	return stats, nil
}

// GetPlayerSummary returns the player aggregate with derived balances
func (s *LeaderboardService) GetPlayerSummary(ctx context.Context, identity string) (*domain.PlayerSummary, error) {
	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, storeErr("loading player", err)
	}
	summary := s.buildSummary(player)
	return &summary, nil
}

// GetPlayerGameHighScore returns a player's high score and play count for one game
func (s *LeaderboardService) GetPlayerGameHighScore(ctx context.Context, identity, gameType string) (*domain.GameHighScore, error) {
	if _, err := s.validateGameType(gameType); err != nil {
		return nil, err
	}
	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, storeErr("loading player", err)
	}
	return &domain.GameHighScore{
		Identity:    player.Identity,
		GameType:    gameType,
		HighScore:   player.HighScores[gameType],
		GamesPlayed: player.GamesPlayed[gameType],
	}, nil
}

// GetScoreHistory returns a player's ledger entries, newest first, optionally for one game
func (s *LeaderboardService) GetScoreHistory(ctx context.Context, identity, gameType string, page, limit int) (*domain.ScoreHistory, error) {
	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}
	if gameType != "" {
		if _, err := s.validateGameType(gameType); err != nil {
			return nil, err
		}
	}
	pg, err := s.pagination(page, limit)
	if err != nil {
		return nil, err
	}

	entries, total, err := s.store.PlayerHistory(ctx, id, gameType, pg.Offset(), pg.Limit)
	if err != nil {
		return nil, storeErr("getting score history", err)
	}

	return &domain.ScoreHistory{
		Entries:    nonNil(entries),
		Pagination: domain.NewPagination(pg.CurrentPage, pg.Limit, total),
	}, nil
}

// buildSummary derives balances and normalizes per-game maps over the catalog
func (s *LeaderboardService) buildSummary(p *domain.Player) domain.PlayerSummary {
	gamesPlayed := s.catalog.NormalizeCounts(p.GamesPlayed)
	var totalGames int64
	for _, n := range gamesPlayed {
		totalGames += n
	}
	return domain.PlayerSummary{
		Identity:        p.Identity,
		TotalPoints:     p.TotalPoints,
		MintedPoints:    p.MintedPoints,
		AvailablePoints: p.AvailablePoints(),
		MintedUnits:     float64(p.MintedPoints) / s.minting.ConversionRate,
		GamesPlayed:     gamesPlayed,
		HighScores:      s.catalog.NormalizeCounts(p.HighScores),
		TotalGames:      totalGames,
		CreatedAt:       p.CreatedAt,
		LastPlayed:      p.LastPlayed,
	}
}

func (s *LeaderboardService) normalizeStanding(e *domain.PlayerStanding) {
	e.GamesPlayed = s.catalog.NormalizeCounts(e.GamesPlayed)
	e.HighScores = s.catalog.NormalizeCounts(e.HighScores)
	e.TotalGames = 0
	for _, n := range e.GamesPlayed {
		e.TotalGames += n
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
