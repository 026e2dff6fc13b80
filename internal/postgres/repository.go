package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/points-ledger/internal/config"
)

// Repository provides PostgreSQL-based ledger and player storage
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	return open(context.Background(), poolConfig, logger)
}

// Open connects using a connection URL
func Open(ctx context.Context, connString string, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	return open(ctx, poolConfig, logger)
}

func open(ctx context.Context, poolConfig *pgxpool.Config, logger *slog.Logger) (*Repository, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			identity VARCHAR(128) PRIMARY KEY,
			total_points BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			minted_points BIGINT NOT NULL DEFAULT 0 CHECK (minted_points >= 0),
			created_at TIMESTAMPTZ NOT NULL,
			last_played TIMESTAMPTZ NOT NULL,
			CONSTRAINT minted_within_total CHECK (minted_points <= total_points)
		)`,
		`CREATE TABLE IF NOT EXISTS player_games (
			identity VARCHAR(128) NOT NULL REFERENCES players(identity),
			game_type VARCHAR(64) NOT NULL,
			games_played BIGINT NOT NULL DEFAULT 0,
			high_score BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (identity, game_type)
		)`,
		`CREATE TABLE IF NOT EXISTS score_entries (
			id BIGSERIAL PRIMARY KEY,
			identity VARCHAR(128) NOT NULL REFERENCES players(identity),
			game_type VARCHAR(64) NOT NULL,
			score BIGINT NOT NULL CHECK (score >= 0),
			points BIGINT NOT NULL CHECK (points >= 0),
			metadata JSONB NOT NULL DEFAULT '{}',
			played_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_ranking ON players(total_points DESC, created_at ASC, identity ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_game ON score_entries(game_type, score DESC, played_at ASC, id ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_player ON score_entries(identity, played_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_entries_player_game ON score_entries(identity, game_type, played_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}
