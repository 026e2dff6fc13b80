package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/points-ledger/internal/config"
	"github.com/points-ledger/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store is the durable ledger and player aggregate store. Implementations must apply the
// ledger append and the aggregate update of RecordScore as one atomic unit, and MintPoints as a
// single conditional increment.
type Store interface {
	// RecordScore appends the entry and applies it to the player aggregate, creating the player
	// with zeroed counters if absent.
	RecordScore(ctx context.Context, rec domain.ScoreRecord) (*domain.ScoreEntry, *domain.Player, error)
	GetPlayer(ctx context.Context, identity string) (*domain.Player, error)
	// MintPoints increments minted points by amount only while minted+amount <= total.
	// It returns domain.ErrMintConflict when the condition fails.
	MintPoints(ctx context.Context, identity string, amount int64) (*domain.Player, error)

	OverallLeaderboard(ctx context.Context, offset, limit int) ([]domain.PlayerStanding, int64, error)
	GameLeaderboard(ctx context.Context, gameType string, offset, limit int) ([]domain.GameScoreRow, int64, error)
	GameBestPerPlayer(ctx context.Context, gameType string, offset, limit int) ([]domain.PlayerBest, int64, error)
	// TopEntry returns the best entry of a game, or nil when the game has none.
	TopEntry(ctx context.Context, gameType string) (*domain.ScoreEntry, error)
	PlayerGameStats(ctx context.Context, identity string) (map[string]domain.PlayerGameStats, error)
	PlayerHistory(ctx context.Context, identity, gameType string, offset, limit int) ([]domain.ScoreEntry, int64, error)

	// RebuildPlayer recomputes the aggregate from the ledger and reports whether it drifted.
	RebuildPlayer(ctx context.Context, identity string) (*domain.Player, bool, error)
	ListIdentities(ctx context.Context, offset, limit int) ([]string, error)
}

// Publisher delivers events to a topic. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, event domain.Event)
}

// LeaderboardService provides business logic for score submission, minting and ranked views
type LeaderboardService struct {
	store     Store
	publisher Publisher
	catalog   *domain.Catalog
	config    *config.LeaderboardConfig
	minting   config.MintingConfig
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option customizes a LeaderboardService
type Option func(*LeaderboardService)

// WithClock overrides the time source used for played-at timestamps
func WithClock(now func() time.Time) Option {
	return func(s *LeaderboardService) {
		s.now = now
	}
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	store Store,
	publisher Publisher,
	catalog *domain.Catalog,
	cfg *config.LeaderboardConfig,
	minting config.MintingConfig,
	logger *slog.Logger,
	opts ...Option,
) *LeaderboardService {
	s := &LeaderboardService{
		store:     store,
		publisher: publisher,
		catalog:   catalog,
		config:    cfg,
		minting:   minting,
		logger:    logger,
		tracer:    otel.Tracer("github.com/points-ledger/internal/service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the configured game catalog
func (s *LeaderboardService) Catalog() *domain.Catalog {
	return s.catalog
}

// GetGame returns a catalog entry
func (s *LeaderboardService) GetGame(gameID string) (domain.Game, error) {
	g, ok := s.catalog.Lookup(gameID)
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return g, nil
}

// storeErr keeps domain errors intact and classifies everything else as a store failure.
func storeErr(message string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewStoreError(message, err)
}
