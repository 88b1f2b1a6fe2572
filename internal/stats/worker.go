package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FinishedQuiz is one quiz submission waiting for aggregation.
type FinishedQuiz struct {
	UserID int64
	Events []AnswerEvent
}

// Worker drains finished quizzes on a background goroutine so the
// interactive flow never blocks on aggregation.
type Worker struct {
	aggregator *Aggregator
	queue      <-chan FinishedQuiz
	logger     zerolog.Logger
	timeout    time.Duration
	shutdownC  chan struct{}
}

func NewWorker(aggregator *Aggregator, queue <-chan FinishedQuiz, logger zerolog.Logger, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Worker{
		aggregator: aggregator,
		queue:      queue,
		logger:     logger,
		timeout:    timeout,
		shutdownC:  make(chan struct{}),
	}
}

func (w *Worker) Run() {
	for {
		select {
		case <-w.shutdownC:
			w.logger.Info().Msg("stats worker stopping")
			return
		case quiz := <-w.queue:
			w.handle(quiz)
		}
	}
}

func (w *Worker) handle(quiz FinishedQuiz) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// Failures were already rolled back and logged by the aggregator; the
	// submission is not retried here, the caller owns retry policy.
	if err := w.aggregator.ProcessFinishedQuiz(ctx, quiz.UserID, quiz.Events); err != nil {
		w.logger.Error().Err(err).Int64("user_id", quiz.UserID).Msg("finished quiz aggregation failed")
	}
}

func (w *Worker) Stop() {
	close(w.shutdownC)
}
