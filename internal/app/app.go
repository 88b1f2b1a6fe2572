package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/config"
	"github.com/medprep/quiz-engine/internal/db/repository"
	"github.com/medprep/quiz-engine/internal/logging"
	"github.com/medprep/quiz-engine/internal/quiz"
	"github.com/medprep/quiz-engine/internal/selection"
	"github.com/medprep/quiz-engine/internal/server"
	"github.com/medprep/quiz-engine/internal/session"
	"github.com/medprep/quiz-engine/internal/stats"
	"github.com/medprep/quiz-engine/internal/topic"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	statsQueue  chan stats.FinishedQuiz
	statsWorker *stats.Worker
}

// New bootstraps configs, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	topicRepo := repository.NewTopicRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	catalogCache := topic.NewCatalogCache(redisClient, cfg.Selection.CatalogCacheTTL)

	qualifier := selection.NewQualifier(questionRepo)
	selector := selection.NewSelector(questionRepo, qualifier, topicRepo, selection.SelectorOptions{
		RandomSizes:     cfg.Selection.RandomQuizSizes,
		BiochemTopicCap: cfg.Selection.BiochemTopicCap,
	}, logger)

	statsQueue := make(chan stats.FinishedQuiz, cfg.Stats.QueueSize)
	aggregator := stats.NewAggregator(statsRepo, logger)
	statsWorker := stats.NewWorker(aggregator, statsQueue, logger, cfg.Stats.ProcessTimeout)

	sessionStore := session.NewStore(redisClient, logger)

	quizSvc := quiz.NewService(
		selector,
		topicRepo,
		catalogCache,
		questionRepo,
		examRepo,
		statsRepo,
		sessionStore,
		statsQueue,
		quiz.ServiceOptions{BiochemTopicCap: cfg.Selection.BiochemTopicCap},
		logger,
	)

	handlers := server.NewHTTPHandlers(quizSvc, logger)
	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, handlers)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		statsQueue:  statsQueue,
		statsWorker: statsWorker,
	}, nil
}

// Run starts the HTTP server and stats worker, then waits for termination.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.statsWorker.Run()

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.statsWorker.Stop()

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
