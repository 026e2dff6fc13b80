package service

import (
	"context"
	"encoding/json"

	"github.com/points-ledger/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SubmitScore validates a submission, appends it to the ledger together with the aggregate
// update, then recomputes the affected views and fans them out.
func (s *LeaderboardService) SubmitScore(ctx context.Context, identity string, submission domain.ScoreSubmission) (*domain.SubmissionResult, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.SubmitScore")
	defer span.End()

	rec, err := s.validateSubmission(identity, submission)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ledger.identity", rec.Identity),
		attribute.String("ledger.game_type", rec.GameType),
	)

	entry, player, err := s.store.RecordScore(ctx, rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record score")
		return nil, storeErr("recording score", err)
	}

	s.logger.Debug("score recorded",
		"identity", entry.Identity,
		"game_type", entry.GameType,
		"entry_id", entry.ID,
		"score", entry.Score,
		"points", entry.Points,
	)

	summary := s.buildSummary(player)
	snapshot := s.notifyScoreRecorded(ctx, *entry, summary)

	return &domain.SubmissionResult{
		Entry:    *entry,
		Player:   summary,
		Snapshot: snapshot,
	}, nil
}

// SubmitScoreBatch submits multiple scores, continuing past individual failures
func (s *LeaderboardService) SubmitScoreBatch(ctx context.Context, batch []domain.IdentifiedSubmission) (int, error) {
	accepted := 0
	for _, sub := range batch {
		if _, err := s.SubmitScore(ctx, sub.Identity, sub.ScoreSubmission); err != nil {
			s.logger.Error("failed to submit score in batch",
				"identity", sub.Identity,
				"game_type", sub.GameType,
				"error", err,
			)
			continue
		}
		accepted++
	}
	return accepted, nil
}

func (s *LeaderboardService) validateSubmission(identity string, sub domain.ScoreSubmission) (domain.ScoreRecord, error) {
	id, err := validateIdentity(identity)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if sub.GameType == "" {
		return domain.ScoreRecord{}, domain.NewValidationError(domain.CodeInvalidGameType, "game_type", "game type is required")
	}
	game, err := s.validateGameType(sub.GameType)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	if !game.Playable() {
		return domain.ScoreRecord{}, domain.NewValidationError(domain.CodeGameUnavailable, "game_type",
			"this game is coming soon and is not yet available for play")
	}
	score, err := wholeNumber(sub.Score, domain.CodeInvalidScore, "score")
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	points, err := wholeNumber(sub.Points, domain.CodeInvalidPoints, "points")
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	metadata := sub.Metadata
	if len(metadata) == 0 || string(metadata) == "null" {
		metadata = json.RawMessage(`{}`)
	}

	return domain.ScoreRecord{
		Identity: id,
		GameType: game.ID,
		Score:    score,
		Points:   points,
		Metadata: metadata,
		PlayedAt: s.now().UTC(),
	}, nil
}
