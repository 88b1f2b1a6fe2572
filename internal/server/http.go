package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/config"
)

// NewHTTPServer wires base routes (health, metrics) plus the quiz API.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, handlers *HTTPHandlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	mux.HandleFunc("GET /v1/topics", handlers.ListTopics)
	mux.HandleFunc("GET /v1/topics/tree", handlers.TopicTree)
	mux.HandleFunc("GET /v1/exams", handlers.ListExams)
	mux.HandleFunc("POST /v1/quizzes", handlers.StartQuiz)
	mux.HandleFunc("POST /v1/quizzes/{id}/answers", handlers.RecordAnswer)
	mux.HandleFunc("POST /v1/quizzes/{id}/finish", handlers.FinishQuiz)
	mux.HandleFunc("GET /v1/scenarios/{id}", handlers.ScenarioText)
	mux.HandleFunc("GET /v1/questions/{id}/explanation", handlers.Explanation)
	mux.HandleFunc("GET /v1/users/{id}/answer-count", handlers.AnswerCount)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	if err := redis.Ping(ctx).Err(); err != nil {
		return err
	}
	return nil
}
