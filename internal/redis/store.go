package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

// recordScript appends a ledger entry and folds it into the player aggregate in one step.
//
// KEYS: player hash, overall zset, identity index, entry hash, game entries zset,
// game best zset, player entries list, player game entries list.
// ARGV: identity, game type, entry id, score, points, metadata, played at (ms),
// negated score, game entries member, rank member for a new player.
// Returns the new total, or -1 without writing anything when a counter would overflow.
var recordScript = redis.NewScript(`
local function fits(field, add)
  local current = tonumber(redis.call('HGET', KEYS[1], field) or '0')
  return current + tonumber(add) < 9.2e18
end
if not (fits('total_points', ARGV[5]) and fits('points:' .. ARGV[2], ARGV[5])
    and fits('scoresum:' .. ARGV[2], ARGV[4])) then
  return -1
end

local member
if redis.call('EXISTS', KEYS[1]) == 0 then
  member = ARGV[10]
  redis.call('HSET', KEYS[1], 'identity', ARGV[1], 'total_points', '0', 'minted_points', '0',
    'created_at', ARGV[7], 'rank_member', member)
  redis.call('ZADD', KEYS[3], '0', ARGV[1])
else
  member = redis.call('HGET', KEYS[1], 'rank_member')
end

redis.call('HSET', KEYS[4], 'id', ARGV[3], 'identity', ARGV[1], 'game_type', ARGV[2],
  'score', ARGV[4], 'points', ARGV[5], 'metadata', ARGV[6], 'played_at', ARGV[7])
redis.call('ZADD', KEYS[5], ARGV[8], ARGV[9])
redis.call('RPUSH', KEYS[7], ARGV[3])
redis.call('RPUSH', KEYS[8], ARGV[3])

local total = redis.call('HINCRBY', KEYS[1], 'total_points', ARGV[5])
redis.call('HINCRBY', KEYS[1], 'played:' .. ARGV[2], '1')
redis.call('HINCRBY', KEYS[1], 'points:' .. ARGV[2], ARGV[5])
redis.call('HINCRBY', KEYS[1], 'scoresum:' .. ARGV[2], ARGV[4])
local high = tonumber(redis.call('HGET', KEYS[1], 'high:' .. ARGV[2]) or '-1')
if tonumber(ARGV[4]) > high then
  redis.call('HSET', KEYS[1], 'high:' .. ARGV[2], ARGV[4])
  redis.call('ZADD', KEYS[6], ARGV[8], ARGV[1])
end
redis.call('HSET', KEYS[1], 'last_played', ARGV[7], 'last:' .. ARGV[2], ARGV[7])
redis.call('ZADD', KEYS[2], string.format('%.0f', 0 - total), member)
return total
`)

// mintScript increments minted points only while the result stays within total points.
// Returns -1 when the player is unknown and -2 when the ceiling would be exceeded.
var mintScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local total = tonumber(redis.call('HGET', KEYS[1], 'total_points') or '0')
local minted = tonumber(redis.call('HGET', KEYS[1], 'minted_points') or '0')
if minted + tonumber(ARGV[1]) > total then
  return -2
end
return redis.call('HINCRBY', KEYS[1], 'minted_points', ARGV[1])
`)

// Store keeps the ledger and player aggregates in Redis hashes, lists and sorted sets.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewStore connects to Redis and returns a store
func NewStore(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStoreWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewStoreWithClient wraps an existing client
func NewStoreWithClient(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) seqKey() string { return s.prefix + ":seq" }

func (s *Store) playerKey(identity string) string {
	return fmt.Sprintf("%s:player:%s", s.prefix, identity)
}

func (s *Store) overallKey() string { return s.prefix + ":overall" }

func (s *Store) indexKey() string { return s.prefix + ":players" }

func (s *Store) entryKey(id string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, id)
}

func (s *Store) gameEntriesKey(gameType string) string {
	return fmt.Sprintf("%s:game:%s:entries", s.prefix, gameType)
}

func (s *Store) gameBestKey(gameType string) string {
	return fmt.Sprintf("%s:game:%s:best", s.prefix, gameType)
}

func (s *Store) playerEntriesKey(identity string) string {
	return fmt.Sprintf("%s:history:all:%s", s.prefix, identity)
}

func (s *Store) playerGameEntriesKey(identity, gameType string) string {
	return fmt.Sprintf("%s:history:game:%s:%s", s.prefix, gameType, identity)
}

// rankMember orders equal totals by creation time, then identity.
func rankMember(createdAtMs int64, identity string) string {
	return fmt.Sprintf("%020d|%s", createdAtMs, identity)
}

// entryMember orders equal scores by play time, then entry id.
func entryMember(playedAtMs int64, id string) string {
	n, _ := strconv.ParseInt(id, 10, 64)
	return fmt.Sprintf("%013d|%020d", playedAtMs, n)
}

func memberSuffix(member string) string {
	if i := strings.LastIndexByte(member, '|'); i >= 0 {
		return member[i+1:]
	}
	return member
}

// RecordScore appends a ledger entry and updates the player aggregate atomically
func (s *Store) RecordScore(ctx context.Context, rec domain.ScoreRecord) (*domain.ScoreEntry, *domain.Player, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("allocating entry id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)
	playedAt := rec.PlayedAt.UTC().Truncate(time.Millisecond)
	ms := playedAt.UnixMilli()

	keys := []string{
		s.playerKey(rec.Identity),
		s.overallKey(),
		s.indexKey(),
		s.entryKey(id),
		s.gameEntriesKey(rec.GameType),
		s.gameBestKey(rec.GameType),
		s.playerEntriesKey(rec.Identity),
		s.playerGameEntriesKey(rec.Identity, rec.GameType),
	}
	args := []any{
		rec.Identity,
		rec.GameType,
		id,
		strconv.FormatInt(rec.Score, 10),
		strconv.FormatInt(rec.Points, 10),
		string(rec.Metadata),
		strconv.FormatInt(ms, 10),
		strconv.FormatInt(-rec.Score, 10),
		entryMember(ms, id),
		rankMember(ms, rec.Identity),
	}
	total, err := recordScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return nil, nil, fmt.Errorf("recording score: %w", err)
	}
	if total < 0 {
		return nil, nil, domain.NewValidationError(domain.CodeInvalidPoints, "points", "points would overflow the player totals")
	}

	player, err := s.GetPlayer(ctx, rec.Identity)
	if err != nil {
		return nil, nil, err
	}

	return &domain.ScoreEntry{
		ID:       id,
		Identity: rec.Identity,
		GameType: rec.GameType,
		Score:    rec.Score,
		Points:   rec.Points,
		Metadata: rec.Metadata,
		PlayedAt: playedAt,
	}, player, nil
}

// GetPlayer returns the player aggregate
func (s *Store) GetPlayer(ctx context.Context, identity string) (*domain.Player, error) {
	fields, err := s.client.HGetAll(ctx, s.playerKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrPlayerNotFound
	}
	return parsePlayer(identity, fields), nil
}

// MintPoints increments minted points under the total points ceiling
func (s *Store) MintPoints(ctx context.Context, identity string, amount int64) (*domain.Player, error) {
	res, err := mintScript.Run(ctx, s.client, []string{s.playerKey(identity)}, strconv.FormatInt(amount, 10)).Int64()
	if err != nil {
		return nil, fmt.Errorf("minting points: %w", err)
	}
	switch res {
	case -1:
		return nil, domain.ErrPlayerNotFound
	case -2:
		return nil, domain.ErrMintConflict
	}
	return s.GetPlayer(ctx, identity)
}

// PlayerGameStats reduces the per-game counters of a player; unknown players yield an empty map
func (s *Store) PlayerGameStats(ctx context.Context, identity string) (map[string]domain.PlayerGameStats, error) {
	fields, err := s.client.HGetAll(ctx, s.playerKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player game stats: %w", err)
	}

	stats := make(map[string]domain.PlayerGameStats)
	for field, v := range fields {
		gameType, ok := strings.CutPrefix(field, "played:")
		if !ok {
			continue
		}
		played := parseInt(v)
		st := domain.PlayerGameStats{
			TotalGames:  played,
			HighScore:   parseInt(fields["high:"+gameType]),
			TotalPoints: parseInt(fields["points:"+gameType]),
		}
		if played > 0 {
			st.AverageScore = float64(parseInt(fields["scoresum:"+gameType])) / float64(played)
		}
		stats[gameType] = st
	}
	return stats, nil
}

// PlayerHistory returns a page of a player's entries, newest first
func (s *Store) PlayerHistory(ctx context.Context, identity, gameType string, offset, limit int) ([]domain.ScoreEntry, int64, error) {
	key := s.playerEntriesKey(identity)
	if gameType != "" {
		key = s.playerGameEntriesKey(identity, gameType)
	}

	total, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("counting history: %w", err)
	}
	if int64(offset) >= total {
		return []domain.ScoreEntry{}, total, nil
	}

	// The list is oldest first; read the page from the tail and reverse it.
	stop := total - 1 - int64(offset)
	start := stop - int64(limit) + 1
	if start < 0 {
		start = 0
	}
	ids, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("reading history: %w", err)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	entries, err := s.loadEntries(ctx, s.client, ids)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListIdentities returns a page of known identities in lexical order
func (s *Store) ListIdentities(ctx context.Context, offset, limit int) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	return ids, nil
}

// pipeliner is satisfied by both the client and a WATCH transaction.
type pipeliner interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

func (s *Store) loadEntries(ctx context.Context, c pipeliner, ids []string) ([]domain.ScoreEntry, error) {
	if len(ids) == 0 {
		return []domain.ScoreEntry{}, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.entryKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	entries := make([]domain.ScoreEntry, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			s.logger.Warn("ledger entry missing", "entry_id", ids[i])
			continue
		}
		entries = append(entries, parseEntry(fields))
	}
	return entries, nil
}

func parsePlayer(identity string, fields map[string]string) *domain.Player {
	p := &domain.Player{
		Identity:     identity,
		TotalPoints:  parseInt(fields["total_points"]),
		MintedPoints: parseInt(fields["minted_points"]),
		GamesPlayed:  make(map[string]int64),
		HighScores:   make(map[string]int64),
		CreatedAt:    parseMillis(fields["created_at"]),
		LastPlayed:   parseMillis(fields["last_played"]),
	}
	for field, v := range fields {
		if gt, ok := strings.CutPrefix(field, "played:"); ok {
			p.GamesPlayed[gt] = parseInt(v)
		}
		if gt, ok := strings.CutPrefix(field, "high:"); ok {
			p.HighScores[gt] = parseInt(v)
		}
	}
	return p
}

func parseEntry(fields map[string]string) domain.ScoreEntry {
	e := domain.ScoreEntry{
		ID:       fields["id"],
		Identity: fields["identity"],
		GameType: fields["game_type"],
		Score:    parseInt(fields["score"]),
		Points:   parseInt(fields["points"]),
		PlayedAt: parseMillis(fields["played_at"]),
	}
	if m := fields["metadata"]; m != "" {
		e.Metadata = []byte(m)
	}
	return e
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func parseMillis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	return time.UnixMilli(parseInt(v)).UTC()
}
