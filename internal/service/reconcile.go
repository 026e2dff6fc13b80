package service

import (
	"context"

	"github.com/points-ledger/internal/domain"
)

// ReconcileResult reports the outcome of replaying one player's ledger.
type ReconcileResult struct {
	Player   domain.PlayerSummary `json:"player"`
	Repaired bool                 `json:"repaired"`
}

// ReconcilePlayer recomputes a player's aggregate from the ledger, overwriting drifted fields.
func (s *LeaderboardService) ReconcilePlayer(ctx context.Context, identity string) (*ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.ReconcilePlayer")
	defer span.End()

	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}
	player, repaired, err := s.store.RebuildPlayer(ctx, id)
	if err != nil {
		return nil, storeErr("rebuilding player", err)
	}
	if repaired {
		s.logger.Warn("player aggregate drifted from ledger, repaired", "identity", id)
	}
	return &ReconcileResult{Player: s.buildSummary(player), Repaired: repaired}, nil
}

// ReconcileBatch replays a page of players. It returns how many players were visited and how
// many needed repair. Individual failures are logged and skipped.
func (s *LeaderboardService) ReconcileBatch(ctx context.Context, offset, limit int) (visited, repaired int, err error) {
	ids, err := s.store.ListIdentities(ctx, offset, limit)
	if err != nil {
		return 0, 0, storeErr("listing players", err)
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return visited, repaired, ctx.Err()
		}
		res, err := s.ReconcilePlayer(ctx, id)
		visited++
		if err != nil {
			s.logger.Error("failed to reconcile player", "identity", id, "error", err)
			continue
		}
		if res.Repaired {
			repaired++
		}
	}
	return visited, repaired, nil
}
