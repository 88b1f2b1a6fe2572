package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// QuestionDetail is the slice of a question row the aggregator needs.
type QuestionDetail struct {
	ID            int64
	CorrectAnswer string
}

// AnswerRow is the append-only raw answer record.
type AnswerRow struct {
	UserID         int64
	QuestionID     int64
	SelectedOption string
	Correct        bool
	ResponseTimeMS int64
	AnsweredAt     time.Time
}

// QuestionStatsDelta increments the per-question aggregate.
type QuestionStatsDelta struct {
	QuestionID int64
	Correct    bool
	TimeSumMS  int64
	TimedCount int64
}

// UserTopicDelta increments one (user, topic) aggregate and touches last_used.
type UserTopicDelta struct {
	UserID     int64
	TopicID    int64
	Correct    bool
	TimeSumMS  int64
	TimedCount int64
}

// UserGlobalDelta increments the per-user aggregate; the store recomputes
// percentages from the post-increment counters inside the same upsert.
type UserGlobalDelta struct {
	UserID  int64
	Correct bool
}

// PeriodDelta increments one time-bucket aggregate. PriorPctCorrect feeds the
// period-over-period variance column.
type PeriodDelta struct {
	UserID          int64
	Period          Period
	PeriodStart     time.Time
	Correct         bool
	PriorPctCorrect float64
}

// Tx is the set of writes available inside one aggregation transaction.
// Every upsert is additive: insert with count 1, on conflict increment.
type Tx interface {
	QuestionDetail(ctx context.Context, questionID int64) (*QuestionDetail, error)
	QuestionTopics(ctx context.Context, questionID int64) ([]int64, error)
	InsertAnswer(ctx context.Context, row AnswerRow) (int64, error)
	InsertAnswerTopicDetail(ctx context.Context, answerID, topicID int64, correct bool) error
	UpsertQuestionStats(ctx context.Context, d QuestionStatsDelta) error
	UpsertUserTopicStats(ctx context.Context, d UserTopicDelta) error
	UpsertUserGlobalStats(ctx context.Context, d UserGlobalDelta) error
	PriorPeriodPctCorrect(ctx context.Context, userID int64, p Period, periodStart time.Time) (float64, error)
	UpsertPeriodStats(ctx context.Context, d PeriodDelta) error
}

// Store opens aggregation transactions. The callback's error triggers a full
// rollback; nil commits.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Aggregator folds a finished quiz's answer events into the aggregate tables.
type Aggregator struct {
	store  Store
	logger zerolog.Logger
}

func NewAggregator(store Store, logger zerolog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// ProcessFinishedQuiz records every answer of one finished quiz inside a
// single transaction. Malformed events are skipped individually; any storage
// failure on a write rolls back the whole batch.
func (a *Aggregator) ProcessFinishedQuiz(ctx context.Context, userID int64, events []AnswerEvent) error {
	if len(events) == 0 {
		a.logger.Info().Int64("user_id", userID).Msg("no answers to process")
		return nil
	}

	err := a.store.WithTx(ctx, func(tx Tx) error {
		for _, event := range events {
			if event.QuestionID == 0 || event.AnsweredAt.IsZero() {
				a.logger.Warn().Int64("question_id", event.QuestionID).Msg("skipping malformed answer event")
				continue
			}
			if err := a.processEvent(ctx, tx, userID, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		a.logger.Error().Err(err).Int64("user_id", userID).Int("events", len(events)).
			Msg("quiz stats batch rolled back")
		return fmt.Errorf("process finished quiz: %w", err)
	}

	a.logger.Info().Int64("user_id", userID).Int("events", len(events)).Msg("quiz stats committed")
	return nil
}

func (a *Aggregator) processEvent(ctx context.Context, tx Tx, userID int64, event AnswerEvent) error {
	detail, err := tx.QuestionDetail(ctx, event.QuestionID)
	if err != nil || detail == nil || detail.CorrectAnswer == "" {
		a.logger.Warn().Err(err).Int64("question_id", event.QuestionID).
			Msg("question detail unavailable, skipping event")
		return nil
	}

	normalized, correct := classify(event.SelectedOption, detail.CorrectAnswer)
	timeSum, timedCount := effectiveTime(normalized, event.ResponseTimeMS)

	answerID, err := tx.InsertAnswer(ctx, AnswerRow{
		UserID:         userID,
		QuestionID:     event.QuestionID,
		SelectedOption: normalized,
		Correct:        correct,
		ResponseTimeMS: event.ResponseTimeMS,
		AnsweredAt:     event.AnsweredAt,
	})
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	if err := tx.UpsertQuestionStats(ctx, QuestionStatsDelta{
		QuestionID: event.QuestionID,
		Correct:    correct,
		TimeSumMS:  timeSum,
		TimedCount: timedCount,
	}); err != nil {
		return fmt.Errorf("question stats: %w", err)
	}

	topics, err := tx.QuestionTopics(ctx, event.QuestionID)
	if err != nil {
		a.logger.Warn().Err(err).Int64("question_id", event.QuestionID).Msg("topic lookup failed")
		topics = nil
	}
	for _, topicID := range topics {
		// Detail rows are best-effort; the aggregate rows are not.
		if err := tx.InsertAnswerTopicDetail(ctx, answerID, topicID, correct); err != nil {
			a.logger.Warn().Err(err).Int64("topic_id", topicID).Msg("answer topic detail insert failed")
		}
		if err := tx.UpsertUserTopicStats(ctx, UserTopicDelta{
			UserID:     userID,
			TopicID:    topicID,
			Correct:    correct,
			TimeSumMS:  timeSum,
			TimedCount: timedCount,
		}); err != nil {
			return fmt.Errorf("user topic stats: %w", err)
		}
	}

	if err := tx.UpsertUserGlobalStats(ctx, UserGlobalDelta{UserID: userID, Correct: correct}); err != nil {
		return fmt.Errorf("user global stats: %w", err)
	}

	for _, period := range allPeriods {
		start := PeriodStart(period, event.AnsweredAt)
		prior, err := tx.PriorPeriodPctCorrect(ctx, userID, period, PrevPeriodStart(period, start))
		if err != nil {
			a.logger.Warn().Err(err).Str("period", string(period)).Msg("prior period read failed, defaulting to 0")
			prior = 0
		}
		if err := tx.UpsertPeriodStats(ctx, PeriodDelta{
			UserID:          userID,
			Period:          period,
			PeriodStart:     start,
			Correct:         correct,
			PriorPctCorrect: prior,
		}); err != nil {
			return fmt.Errorf("%s period stats: %w", period, err)
		}
	}
	return nil
}
