package service

import (
	"context"

	"github.com/points-ledger/internal/domain"
	"golang.org/x/sync/errgroup"
)

// notifyScoreRecorded recomputes the views touched by a new entry and fans them out.
// It runs after the ledger write has committed. A failed recompute is logged and only the
// events that depend on it are skipped.
func (s *LeaderboardService) notifyScoreRecorded(ctx context.Context, entry domain.ScoreEntry, summary domain.PlayerSummary) domain.Snapshot {
	var (
		snap                                  domain.Snapshot
		playerOK, globalOK, overallOK, gameOK bool
	)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error {
		stats, err := s.GetPlayerStats(gctx, entry.Identity)
		if err != nil {
			s.logger.Warn("recompute player game stats failed", "identity", entry.Identity, "error", err)
			return nil
		}
		snap.PlayerGameStats, playerOK = stats, true
		return nil
	})
	g.Go(func() error {
		stats, err := s.GetGlobalGameStats(gctx)
		if err != nil {
			s.logger.Warn("recompute global game stats failed", "error", err)
			return nil
		}
		snap.GlobalGameStats, globalOK = stats, true
		return nil
	})
	g.Go(func() error {
		board, err := s.GetOverallLeaderboard(gctx, 1, s.config.SnapshotSize)
		if err != nil {
			s.logger.Warn("recompute overall leaderboard failed", "error", err)
			return nil
		}
		snap.Overall, overallOK = board.Entries, true
		return nil
	})
	g.Go(func() error {
		board, err := s.GetGameLeaderboard(gctx, entry.GameType, 1, s.config.SnapshotSize)
		if err != nil {
			s.logger.Warn("recompute game leaderboard failed", "game_type", entry.GameType, "error", err)
			return nil
		}
		snap.Game, gameOK = board.Entries, true
		return nil
	})
	_ = g.Wait()

	if s.publisher == nil {
		return snap
	}

	private := domain.PlayerTopic(entry.Identity)
	update := domain.PlayerUpdate{Player: summary}
	if playerOK {
		update.GameStats = snap.PlayerGameStats
	}
	s.publish(ctx, private, domain.EventPlayerUpdate, "", update)
	s.publish(ctx, private, domain.EventScoresRefresh, entry.GameType, domain.ScoresRefresh{GameType: entry.GameType})

	s.publish(ctx, domain.TopicGlobal, domain.EventScoreNew, entry.GameType, domain.ScoreNew{GameType: entry.GameType, Score: entry})
	if overallOK {
		s.publish(ctx, domain.TopicGlobal, domain.EventLeaderboardUpdate, domain.ScopeOverall,
			domain.LeaderboardUpdate{Scope: domain.ScopeOverall, Entries: snap.Overall})
	}
	if gameOK {
		s.publish(ctx, domain.TopicGlobal, domain.EventLeaderboardUpdate, entry.GameType,
			domain.LeaderboardUpdate{Scope: entry.GameType, Entries: snap.Game})
	}
	if globalOK {
		s.publish(ctx, domain.TopicGlobal, domain.EventGameStatsUpdate, "", snap.GlobalGameStats)
	}

	return snap
}

// notifyPointsMinted delivers the refreshed summary to the player only.
func (s *LeaderboardService) notifyPointsMinted(ctx context.Context, summary domain.PlayerSummary) {
	if s.publisher == nil {
		return
	}
	s.publish(ctx, domain.PlayerTopic(summary.Identity), domain.EventPlayerUpdate, "", domain.PlayerUpdate{Player: summary})
}

func (s *LeaderboardService) publish(ctx context.Context, topic, eventType, scope string, data any) {
	s.publisher.Publish(ctx, topic, domain.Event{
		Type:      eventType,
		Scope:     scope,
		Data:      data,
		Timestamp: s.now().UTC(),
	})
}
