package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-engine"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Selection Selection
	Stats     Stats
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + session store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Selection groups question-selection defaults.
type Selection struct {
	// RandomQuizSizes is the pool of sizes the free-random mode draws from.
	RandomQuizSizes []int `env:"RANDOM_QUIZ_SIZES" envSeparator:"," envDefault:"20,50,100"`
	// BiochemTopicCap excludes topics at/above this ID for biochemistry users.
	BiochemTopicCap int64         `env:"BIOCHEM_TOPIC_CAP" envDefault:"1762"`
	CatalogCacheTTL time.Duration `env:"TOPIC_CATALOG_CACHE_TTL" envDefault:"30m"`
}

// Stats governs the finished-quiz aggregation worker.
type Stats struct {
	QueueSize      int           `env:"STATS_QUEUE_SIZE" envDefault:"64"`
	ProcessTimeout time.Duration `env:"STATS_PROCESS_TIMEOUT" envDefault:"30s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
