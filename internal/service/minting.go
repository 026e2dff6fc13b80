package service

import (
	"context"
	"math"

	"github.com/points-ledger/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MintPoints converts unminted points into units at the configured conversion rate.
//
// The balance checks below only classify obviously invalid requests. The store performs the
// authoritative check-and-increment as one conditional update; losing a race against another
// mint surfaces as a conflict so the caller can refresh and retry.
func (s *LeaderboardService) MintPoints(ctx context.Context, identity string, requested float64) (*domain.MintResult, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.MintPoints")
	defer span.End()

	id, err := validateIdentity(identity)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(requested) || math.IsInf(requested, 0) || requested <= 0 {
		return nil, domain.NewValidationError(domain.CodeInvalidAmount, "points", "mint amount must be a positive number")
	}
	amount := math.Floor(requested)
	if amount <= 0 {
		return nil, domain.NewValidationError(domain.CodeAmountTooSmall, "points", "mint amount is too small")
	}
	span.SetAttributes(attribute.String("ledger.identity", id), attribute.Float64("ledger.mint_amount", amount))

	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, storeErr("loading player", err)
	}

	available := player.TotalPoints - player.MintedPoints
	if available <= 0 {
		return nil, domain.NewValidationError(domain.CodeNothingToMint, "points", "no points available to mint")
	}
	// Compared as floats first: requests beyond the int64 range cannot be converted.
	if amount > float64(available) || int64(amount) > available {
		return nil, domain.NewValidationError(domain.CodeExceedsAvailable, "points", "mint amount exceeds available points")
	}
	toMint := int64(amount)

	player, err = s.store.MintPoints(ctx, id, toMint)
	if err != nil {
		if domain.IsConflictError(err) {
			s.logger.Info("mint rejected by conditional update", "identity", id, "amount", toMint)
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mint points")
		}
		return nil, storeErr("minting points", err)
	}

	summary := s.buildSummary(player)
	s.notifyPointsMinted(ctx, summary)

	return &domain.MintResult{
		MintedAmount:   toMint,
		ConvertedUnits: float64(toMint) / s.minting.ConversionRate,
		Player:         summary,
	}, nil
}
