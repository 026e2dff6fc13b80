package service

import (
	"fmt"
	"math"

	"github.com/points-ledger/internal/domain"
)

func validateIdentity(identity string) (string, error) {
	id := domain.NormalizeIdentity(identity)
	if id == "" {
		return "", domain.NewValidationError(domain.CodeInvalidIdentity, "identity", "identity is required")
	}
	return id, nil
}

// validateGameType accepts any catalog game; submissions additionally require it to be playable.
func (s *LeaderboardService) validateGameType(gameType string) (domain.Game, error) {
	g, ok := s.catalog.Lookup(gameType)
	if !ok {
		return domain.Game{}, domain.NewValidationError(domain.CodeInvalidGameType, "game_type", "invalid game type")
	}
	return g, nil
}

// wholeNumber checks that v is a finite whole number in [0, MaxValue].
func wholeNumber(v float64, code domain.Code, field string) (int64, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, domain.NewValidationError(code, field, fmt.Sprintf("%s must be a finite number", field))
	case v < 0:
		return 0, domain.NewValidationError(code, field, fmt.Sprintf("%s must not be negative", field))
	case v != math.Trunc(v):
		return 0, domain.NewValidationError(code, field, fmt.Sprintf("%s must be a whole number", field))
	case v > domain.MaxValue:
		return 0, domain.NewValidationError(code, field, fmt.Sprintf("%s is too large", field))
	}
	return int64(v), nil
}

// maxOffset bounds the row offset a page may address so offset arithmetic cannot wrap.
const maxOffset = math.MaxInt32

// pagination resolves page/limit defaults and bounds.
func (s *LeaderboardService) pagination(page, limit int) (domain.Pagination, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return domain.Pagination{}, domain.NewValidationError(domain.CodeInvalidPage, "page", "page must be a positive integer")
	}
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit < 0 {
		return domain.Pagination{}, domain.NewValidationError(domain.CodeInvalidLimit, "limit", "limit must be a positive integer")
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	if page-1 > maxOffset/limit {
		return domain.Pagination{}, domain.NewValidationError(domain.CodeInvalidPage, "page", "page is out of range")
	}
	return domain.Pagination{CurrentPage: page, Limit: limit}, nil
}
