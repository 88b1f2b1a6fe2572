package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medprep/quiz-engine/internal/stats"
)

var periodTables = map[stats.Period]string{
	stats.PeriodDaily:   "user_daily_stats",
	stats.PeriodWeekly:  "user_weekly_stats",
	stats.PeriodMonthly: "user_monthly_stats",
}

// StatsRepository implements the aggregation store on Postgres. All aggregate
// writes are additive upserts so concurrent submissions from different users
// serialize on row-level locks instead of racing.
type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// WithTx runs fn inside one transaction; fn's error rolls everything back.
func (r *StatsRepository) WithTx(ctx context.Context, fn func(tx stats.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin stats tx: %w", err)
	}
	if err := fn(&statsTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stats tx: %w", err)
	}
	return nil
}

// TotalPriorAnswers returns how many answers the user has recorded overall,
// 0 when the user has no global row yet.
func (r *StatsRepository) TotalPriorAnswers(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT total_answered FROM user_global_stats WHERE user_id = $1`, userID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("total prior answers: %w", err)
	}
	return total, nil
}

type statsTx struct {
	tx pgx.Tx
}

func (t *statsTx) QuestionDetail(ctx context.Context, questionID int64) (*stats.QuestionDetail, error) {
	var (
		d       stats.QuestionDetail
		correct *string
	)
	err := t.tx.QueryRow(ctx,
		`SELECT id, correct_answer FROM questions WHERE id = $1`, questionID).Scan(&d.ID, &correct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("question detail: %w", err)
	}
	if correct != nil {
		d.CorrectAnswer = *correct
	}
	return &d, nil
}

func (t *statsTx) QuestionTopics(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT topic_id FROM question_topics WHERE question_id = $1`, questionID)
	if err != nil {
		return nil, fmt.Errorf("question topics: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (t *statsTx) InsertAnswer(ctx context.Context, row stats.AnswerRow) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO answer_log
			(user_id, question_id, selected_option, is_correct, response_time_ms, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		row.UserID, row.QuestionID, row.SelectedOption, row.Correct, row.ResponseTimeMS, row.AnsweredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	return id, nil
}

func (t *statsTx) InsertAnswerTopicDetail(ctx context.Context, answerID, topicID int64, correct bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO answer_topic_details (answer_id, topic_id, is_correct)
		VALUES ($1, $2, $3)
		ON CONFLICT (answer_id, topic_id) DO NOTHING`,
		answerID, topicID, correct)
	return err
}

func (t *statsTx) UpsertQuestionStats(ctx context.Context, d stats.QuestionStatsDelta) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO question_stats
			(question_id, total_answered, total_correct, total_incorrect, time_sum_ms, timed_count)
		VALUES ($1, 1, $2, $3, $4, $5)
		ON CONFLICT (question_id) DO UPDATE SET
			total_answered = question_stats.total_answered + 1,
			total_correct = question_stats.total_correct + EXCLUDED.total_correct,
			total_incorrect = question_stats.total_incorrect + EXCLUDED.total_incorrect,
			time_sum_ms = question_stats.time_sum_ms + EXCLUDED.time_sum_ms,
			timed_count = question_stats.timed_count + EXCLUDED.timed_count`,
		d.QuestionID, boolToCount(d.Correct), boolToCount(!d.Correct), d.TimeSumMS, d.TimedCount)
	return err
}

func (t *statsTx) UpsertUserTopicStats(ctx context.Context, d stats.UserTopicDelta) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_topic_stats
			(user_id, topic_id, total_answered, total_correct, total_incorrect,
			 time_sum_ms, timed_count, last_used)
		VALUES ($1, $2, 1, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, topic_id) DO UPDATE SET
			total_answered = user_topic_stats.total_answered + 1,
			total_correct = user_topic_stats.total_correct + EXCLUDED.total_correct,
			total_incorrect = user_topic_stats.total_incorrect + EXCLUDED.total_incorrect,
			time_sum_ms = user_topic_stats.time_sum_ms + EXCLUDED.time_sum_ms,
			timed_count = user_topic_stats.timed_count + EXCLUDED.timed_count,
			last_used = CURRENT_TIMESTAMP`,
		d.UserID, d.TopicID, boolToCount(d.Correct), boolToCount(!d.Correct), d.TimeSumMS, d.TimedCount)
	return err
}

func (t *statsTx) UpsertUserGlobalStats(ctx context.Context, d stats.UserGlobalDelta) error {
	// Percentages use the post-increment denominator inside the same upsert.
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_global_stats
			(user_id, total_answered, total_correct, total_incorrect,
			 pct_correct, pct_incorrect, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			total_answered = user_global_stats.total_answered + 1,
			total_correct = user_global_stats.total_correct + EXCLUDED.total_correct,
			total_incorrect = user_global_stats.total_incorrect + EXCLUDED.total_incorrect,
			pct_correct = ROUND(((user_global_stats.total_correct + EXCLUDED.total_correct) * 100.0)
				/ NULLIF(user_global_stats.total_answered + 1, 0), 2),
			pct_incorrect = ROUND(((user_global_stats.total_incorrect + EXCLUDED.total_incorrect) * 100.0)
				/ NULLIF(user_global_stats.total_answered + 1, 0), 2),
			updated_at = CURRENT_TIMESTAMP`,
		d.UserID, boolToCount(d.Correct), boolToCount(!d.Correct),
		initialPct(d.Correct), initialPct(!d.Correct))
	return err
}

// PriorPeriodPctCorrect is a best-effort read; a missing row is 0, not an
// error, so a failed lookup never aborts the batch.
func (t *statsTx) PriorPeriodPctCorrect(ctx context.Context, userID int64, p stats.Period, periodStart time.Time) (float64, error) {
	table, ok := periodTables[p]
	if !ok {
		return 0, fmt.Errorf("unknown period %q", p)
	}
	var pct float64
	err := t.tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(pct_correct, 0) FROM %s WHERE user_id = $1 AND period_start = $2`, table),
		userID, periodStart).Scan(&pct)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("prior %s stats: %w", p, err)
	}
	return pct, nil
}

func (t *statsTx) UpsertPeriodStats(ctx context.Context, d stats.PeriodDelta) error {
	table, ok := periodTables[d.Period]
	if !ok {
		return fmt.Errorf("unknown period %q", d.Period)
	}
	initial := initialPct(d.Correct)
	query := fmt.Sprintf(`
		INSERT INTO %[1]s
			(user_id, period_start, total_answered, total_correct, total_incorrect,
			 pct_correct, pct_incorrect, pct_correct_delta)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, period_start) DO UPDATE SET
			total_answered = %[1]s.total_answered + 1,
			total_correct = %[1]s.total_correct + EXCLUDED.total_correct,
			total_incorrect = %[1]s.total_incorrect + EXCLUDED.total_incorrect,
			pct_correct = ROUND(((%[1]s.total_correct + EXCLUDED.total_correct) * 100.0)
				/ (%[1]s.total_answered + 1), 2),
			pct_incorrect = ROUND(((%[1]s.total_incorrect + EXCLUDED.total_incorrect) * 100.0)
				/ (%[1]s.total_answered + 1), 2),
			pct_correct_delta = ROUND(((%[1]s.total_correct + EXCLUDED.total_correct) * 100.0)
				/ (%[1]s.total_answered + 1), 2) - $8`, table)
	_, err := t.tx.Exec(ctx, query,
		d.UserID, d.PeriodStart, boolToCount(d.Correct), boolToCount(!d.Correct),
		initial, initialPct(!d.Correct), initial-d.PriorPctCorrect, d.PriorPctCorrect)
	return err
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}

func initialPct(b bool) float64 {
	if b {
		return 100
	}
	return 0
}
