package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/points-ledger/internal/domain"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

// Realtime relays
const (
	RelayLocal = "local"
	RelayRedis = "redis"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Minting     MintingConfig     `yaml:"minting"`
	Games       []GameConfig      `yaml:"games"`
	Auth        AuthConfig        `yaml:"auth"`
	Realtime    RealtimeConfig    `yaml:"realtime"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" env:"LEDGER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// StoreConfig selects the backend holding the ledger and player aggregates
type StoreConfig struct {
	Driver string `yaml:"driver" env:"LEDGER_STORE_DRIVER"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"LEDGER_REDIS_ADDR"`
	Password     string        `yaml:"password" env:"LEDGER_REDIS_PASSWORD"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"LEDGER_POSTGRES_HOST"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user" env:"LEDGER_POSTGRES_USER"`
	Password        string        `yaml:"password" env:"LEDGER_POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" env:"LEDGER_POSTGRES_DB"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"LEDGER_KAFKA_BROKERS" envSeparator:","`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	Enabled      bool          `yaml:"enabled" env:"LEDGER_KAFKA_ENABLED"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// ReconcileConfig holds the ledger replay worker configuration
type ReconcileConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
	Enabled   bool          `yaml:"enabled" env:"LEDGER_RECONCILE_ENABLED"`
}

// LeaderboardConfig holds leaderboard-specific configuration
type LeaderboardConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	SnapshotSize int `yaml:"snapshot_size"`
}

// MintingConfig holds the points-to-units conversion
type MintingConfig struct {
	ConversionRate float64 `yaml:"conversion_rate" env:"LEDGER_CONVERSION_RATE"`
}

// GameConfig is one catalog entry
type GameConfig struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	PointsPerItem int      `yaml:"points_per_item"`
	Status        string   `yaml:"status"`
	Rules         []string `yaml:"rules"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"LEDGER_JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"LEDGER_JWT_ISSUER"`
}

// RealtimeConfig selects how events reach websocket subscribers
type RealtimeConfig struct {
	Relay   string `yaml:"relay" env:"LEDGER_REALTIME_RELAY"`
	Channel string `yaml:"channel"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"LEDGER_OTLP_ENDPOINT"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// orDefault sets *field to def when it holds the zero value.
func orDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// applyDefaults fills every unset field. Values read from the file or env always win.
func (c *Config) applyDefaults() {
	orDefault(&c.Server.Port, 8080)
	orDefault(&c.Server.ReadTimeout, 5*time.Second)
	orDefault(&c.Server.WriteTimeout, 10*time.Second)
	orDefault(&c.Server.IdleTimeout, 2*time.Minute)

	orDefault(&c.Store.Driver, StoreDriverPostgres)

	redis := &c.Redis
	orDefault(&redis.Addr, "localhost:6379")
	orDefault(&redis.PoolSize, 100)
	orDefault(&redis.MinIdleConns, 10)
	orDefault(&redis.DialTimeout, 5*time.Second)
	orDefault(&redis.ReadTimeout, 3*time.Second)
	orDefault(&redis.WriteTimeout, 3*time.Second)
	orDefault(&redis.KeyPrefix, "ledger")

	pg := &c.Postgres
	orDefault(&pg.Host, "localhost")
	orDefault(&pg.Port, 5432)
	orDefault(&pg.MaxConnections, 50)
	orDefault(&pg.MinConnections, 5)
	orDefault(&pg.MaxConnLifetime, time.Hour)
	orDefault(&pg.MaxConnIdleTime, 30*time.Minute)

	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	orDefault(&c.Kafka.Topic, "score-submissions")
	orDefault(&c.Kafka.GroupID, "points-ledger")
	orDefault(&c.Kafka.BatchSize, 100)
	orDefault(&c.Kafka.BatchTimeout, time.Second)

	orDefault(&c.Reconcile.Interval, 30*time.Minute)
	orDefault(&c.Reconcile.BatchSize, 500)

	orDefault(&c.Leaderboard.DefaultLimit, 50)
	orDefault(&c.Leaderboard.MaxLimit, 500)
	orDefault(&c.Leaderboard.SnapshotSize, 10)

	orDefault(&c.Minting.ConversionRate, 100)

	if len(c.Games) == 0 {
		c.Games = defaultGames()
	}
	for i := range c.Games {
		orDefault(&c.Games[i].Status, string(domain.GameStatusActive))
	}

	orDefault(&c.Auth.Issuer, "points-ledger")
	orDefault(&c.Realtime.Relay, RelayLocal)
	orDefault(&c.Realtime.Channel, "ledger:events")
	orDefault(&c.Telemetry.ServiceName, "points-ledger")
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	if c.Minting.ConversionRate <= 0 {
		return errors.New("minting.conversion_rate must be positive")
	}
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Realtime.Relay {
	case RelayLocal, RelayRedis:
	default:
		return fmt.Errorf("unknown realtime relay %q", c.Realtime.Relay)
	}
	seen := make(map[string]bool, len(c.Games))
	for _, g := range c.Games {
		if g.ID == "" {
			return errors.New("game id must not be empty")
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate game id %q", g.ID)
		}
		seen[g.ID] = true
		switch domain.GameStatus(g.Status) {
		case domain.GameStatusActive, domain.GameStatusComingSoon:
		default:
			return fmt.Errorf("game %q has unknown status %q", g.ID, g.Status)
		}
	}
	return nil
}

// Catalog builds the game catalog from the configured games
func (c *Config) Catalog() *domain.Catalog {
	games := make([]domain.Game, len(c.Games))
	for i, g := range c.Games {
		games[i] = domain.Game{
			ID:            g.ID,
			Name:          g.Name,
			Description:   g.Description,
			PointsPerItem: g.PointsPerItem,
			Status:        domain.GameStatus(g.Status),
			Rules:         g.Rules,
		}
	}
	return domain.NewCatalog(games)
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func defaultGames() []GameConfig {
	return []GameConfig{
		{
			ID:            "snake",
			Name:          "Snake Game",
			Description:   "Control the snake to eat coins and grow longer. Avoid hitting the walls!",
			PointsPerItem: 10,
			Status:        string(domain.GameStatusActive),
		},
		{
			ID:            "fallingFruit",
			Name:          "Falling Fruit",
			Description:   "Catch good fruits and avoid bad ones.",
			PointsPerItem: 10,
			Status:        string(domain.GameStatusActive),
		},
		{
			ID:            "breakBricks",
			Name:          "Break Bricks",
			Description:   "Use the paddle to bounce the ball and break all the bricks!",
			PointsPerItem: 10,
			Status:        string(domain.GameStatusComingSoon),
		},
		{
			ID:            "carRacing",
			Name:          "Car Racing",
			Description:   "Control your car to avoid oncoming traffic and earn points!",
			PointsPerItem: 10,
			Status:        string(domain.GameStatusComingSoon),
		},
	}
}
