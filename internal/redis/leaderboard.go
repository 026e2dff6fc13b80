package redis

import (
	"context"
	"fmt"

	"github.com/points-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Sorted sets hold negated metrics so an ascending ZRANGE yields descending order with
// ties resolved by the lexical order of the member.

// OverallLeaderboard returns players by total points, earlier accounts first on ties
func (s *Store) OverallLeaderboard(ctx context.Context, offset, limit int) ([]domain.PlayerStanding, int64, error) {
	key := s.overallKey()
	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting count: %w", err)
	}

	members, err := s.client.ZRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting range: %w", err)
	}
	if len(members) == 0 {
		return []domain.PlayerStanding{}, total, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.HGetAll(ctx, s.playerKey(memberSuffix(m)))
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("loading players: %w", err)
	}

	entries := make([]domain.PlayerStanding, len(members))
	for i, m := range members {
		p := parsePlayer(memberSuffix(m), cmds[i].Val())
		entries[i] = domain.PlayerStanding{
			Rank:        int64(offset + i + 1),
			Identity:    p.Identity,
			TotalPoints: p.TotalPoints,
			HighScores:  p.HighScores,
			GamesPlayed: p.GamesPlayed,
			TotalGames:  p.TotalGames(),
			CreatedAt:   p.CreatedAt,
		}
	}
	return entries, total, nil
}

// GameLeaderboard returns ledger entries of a game by score, earlier plays first on ties
func (s *Store) GameLeaderboard(ctx context.Context, gameType string, offset, limit int) ([]domain.GameScoreRow, int64, error) {
	key := s.gameEntriesKey(gameType)
	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting count: %w", err)
	}

	members, err := s.client.ZRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting range: %w", err)
	}
	entries, err := s.loadEntries(ctx, s.client, entryIDs(members))
	if err != nil {
		return nil, 0, err
	}

	rows := make([]domain.GameScoreRow, len(entries))
	for i, e := range entries {
		rows[i] = domain.GameScoreRow{
			Rank:     int64(offset + i + 1),
			Identity: e.Identity,
			Score:    e.Score,
			Points:   e.Points,
			PlayedAt: e.PlayedAt,
		}
	}
	return rows, total, nil
}

// GameBestPerPlayer returns one row per player by best score in a game
func (s *Store) GameBestPerPlayer(ctx context.Context, gameType string, offset, limit int) ([]domain.PlayerBest, int64, error) {
	key := s.gameBestKey(gameType)
	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting count: %w", err)
	}

	identities, err := s.client.ZRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("getting range: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(identities))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range identities {
			cmds[i] = pipe.HMGet(ctx, s.playerKey(id),
				"high:"+gameType, "points:"+gameType, "played:"+gameType, "last:"+gameType)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("loading player bests: %w", err)
	}

	rows := make([]domain.PlayerBest, len(identities))
	for i, id := range identities {
		vals := cmds[i].Val()
		rows[i] = domain.PlayerBest{
			Rank:         int64(offset + i + 1),
			Identity:     id,
			MaxScore:     parseInt(sliceString(vals, 0)),
			SumPoints:    parseInt(sliceString(vals, 1)),
			Count:        parseInt(sliceString(vals, 2)),
			LastPlayedAt: parseMillis(sliceString(vals, 3)),
		}
	}
	return rows, total, nil
}

// TopEntry returns the best entry of a game, or nil when there is none
func (s *Store) TopEntry(ctx context.Context, gameType string) (*domain.ScoreEntry, error) {
	members, err := s.client.ZRange(ctx, s.gameEntriesKey(gameType), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top entry: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	entries, err := s.loadEntries(ctx, s.client, entryIDs(members))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func entryIDs(members []string) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		id := memberSuffix(m)
		for len(id) > 1 && id[0] == '0' {
			id = id[1:]
		}
		ids[i] = id
	}
	return ids
}

func sliceString(vals []any, i int) string {
	if i >= len(vals) {
		return ""
	}
	v, _ := vals[i].(string)
	return v
}
