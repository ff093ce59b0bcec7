package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"smart-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Storage     Storage
	Postgres    Postgres
	Redis       Redis
	MySQL       MySQL
	Trivia      Trivia
	Quiz        Quiz
	Leaderboard Leaderboard
}

// Storage selects the durable key-value backend.
type Storage struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"sqlite"`
	KeyPrefix  string `env:"STORE_KEY_PREFIX" envDefault:"quiz."`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/smart-quiz.db"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER"`
	Password string `env:"PG_PASSWORD"`
	Database string `env:"PG_DATABASE"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// ConnString renders the libpq-style connection string.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// DSN is ConnString plus the pgxpool sizing.
func (p Postgres) DSN() string {
	return p.ConnString() + " pool_max_conns=10"
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

// MySQL holds the DSN for the mysql driver.
type MySQL struct {
	DSN string `env:"MYSQL_DSN"`
}

// Trivia configures the remote question provider.
type Trivia struct {
	BaseURL             string        `env:"OPENTDB_BASE_URL" envDefault:"https://opentdb.com"`
	FetchTimeout        time.Duration `env:"QUESTION_FETCH_TIMEOUT_SECONDS" envDefault:"8s"`
	CustomQuestionsFile string        `env:"CUSTOM_QUESTIONS_FILE"`
}

// Quiz groups gameplay defaults.
type Quiz struct {
	DefaultQuestionCount   int `env:"DEFAULT_QUESTION_COUNT" envDefault:"10"`
	DefaultQuestionSeconds int `env:"DEFAULT_PER_QUESTION_SECONDS" envDefault:"15"`
}

// Leaderboard governs ranking capacity.
type Leaderboard struct {
	Capacity int `env:"LEADERBOARD_CAPACITY" envDefault:"100"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverSQLite:
	case DriverPostgres:
		if c.Postgres.User == "" || c.Postgres.Database == "" {
			return fmt.Errorf("PG_USER and PG_DATABASE must be set for the postgres store")
		}
	case DriverMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("MYSQL_DSN must be set for the mysql store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Storage.Driver)
	}
	if c.Quiz.DefaultQuestionCount < 1 {
		return fmt.Errorf("DEFAULT_QUESTION_COUNT must be at least 1")
	}
	if c.Leaderboard.Capacity < 1 {
		return fmt.Errorf("LEADERBOARD_CAPACITY must be at least 1")
	}
	return nil
}
