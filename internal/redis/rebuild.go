package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/points-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

// rebuildRetries bounds optimistic retries when a submission races a rebuild.
const rebuildRetries = 5

// gameTotals is the ledger reduction for one (player, game type) pair.
type gameTotals struct {
	played   int64
	high     int64
	points   int64
	scoreSum int64
	last     int64
}

// ledgerTotals reduces a player's entries to the fields the aggregate caches.
func ledgerTotals(entries []domain.ScoreEntry) (int64, int64, map[string]*gameTotals) {
	var total, last int64
	games := make(map[string]*gameTotals)
	for _, e := range entries {
		g, ok := games[e.GameType]
		if !ok {
			g = &gameTotals{high: -1}
			games[e.GameType] = g
		}
		ms := e.PlayedAt.UnixMilli()
		g.played++
		g.points += e.Points
		g.scoreSum += e.Score
		if e.Score > g.high {
			g.high = e.Score
		}
		if ms > g.last {
			g.last = ms
		}
		if ms > last {
			last = ms
		}
		total += e.Points
	}
	return total, last, games
}

// RebuildPlayer recomputes a player's aggregate from the ledger and rewrites drifted fields.
// The rewrite runs in a WATCH transaction on the player keys and is retried when a
// submission lands in between.
func (s *Store) RebuildPlayer(ctx context.Context, identity string) (*domain.Player, bool, error) {
	pk := s.playerKey(identity)
	lk := s.playerEntriesKey(identity)

	var changed bool
	txf := func(tx *redis.Tx) error {
		changed = false
		fields, err := tx.HGetAll(ctx, pk).Result()
		if err != nil {
			return fmt.Errorf("getting player: %w", err)
		}
		if len(fields) == 0 {
			return domain.ErrPlayerNotFound
		}

		ids, err := tx.LRange(ctx, lk, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		entries, err := s.loadEntries(ctx, tx, ids)
		if err != nil {
			return err
		}

		total, last, games := ledgerTotals(entries)
		want := map[string]string{"total_points": strconv.FormatInt(total, 10)}
		if last > 0 {
			want["last_played"] = strconv.FormatInt(last, 10)
		}
		for field := range fields {
			for _, p := range []string{"played:", "high:", "points:", "scoresum:"} {
				if gt, ok := strings.CutPrefix(field, p); ok && games[gt] == nil {
					want[field] = "0"
				}
			}
		}
		for gt, g := range games {
			want["played:"+gt] = strconv.FormatInt(g.played, 10)
			want["high:"+gt] = strconv.FormatInt(g.high, 10)
			want["points:"+gt] = strconv.FormatInt(g.points, 10)
			want["scoresum:"+gt] = strconv.FormatInt(g.scoreSum, 10)
			want["last:"+gt] = strconv.FormatInt(g.last, 10)
		}

		values := make([]any, 0, len(want)*2)
		for field, v := range want {
			if fields[field] != v {
				values = append(values, field, v)
			}
		}
		if len(values) == 0 {
			return nil
		}
		changed = true

		member := fields["rank_member"]
		if member == "" {
			member = rankMember(parseInt(fields["created_at"]), identity)
			values = append(values, "rank_member", member)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, pk, values...)
			pipe.ZAdd(ctx, s.overallKey(), redis.Z{Score: float64(-total), Member: member})
			for field := range want {
				gt, ok := strings.CutPrefix(field, "played:")
				if !ok {
					continue
				}
				if g := games[gt]; g != nil {
					pipe.ZAdd(ctx, s.gameBestKey(gt), redis.Z{Score: float64(-g.high), Member: identity})
				} else {
					pipe.ZRem(ctx, s.gameBestKey(gt), identity)
				}
			}
			return nil
		})
		return err
	}

	for i := 0; i < rebuildRetries; i++ {
		err := s.client.Watch(ctx, txf, pk, lk)
		switch {
		case err == nil:
			player, err := s.GetPlayer(ctx, identity)
			if err != nil {
				return nil, false, err
			}
			return player, changed, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrPlayerNotFound):
			return nil, false, err
		default:
			return nil, false, fmt.Errorf("rebuilding player: %w", err)
		}
	}
	return nil, false, fmt.Errorf("rebuilding player %s: too many concurrent updates", identity)
}
