package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medprep/quiz-engine/internal/selection"
)

// Question is a fully hydrated question row.
type Question struct {
	ID            int64   `json:"id"`
	Statement     string  `json:"statement"`
	OptionA       string  `json:"option_a"`
	OptionB       string  `json:"option_b"`
	OptionC       string  `json:"option_c"`
	OptionD       string  `json:"option_d"`
	CorrectAnswer string  `json:"correct_answer"`
	ScenarioID    *int64  `json:"scenario_id,omitempty"`
	ImageName     *string `json:"image_name,omitempty"`
}

// QuestionRepository reads question candidates and content.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// TheoreticalIDs samples scenario-free questions in server-side random order.
func (r *QuestionRepository) TheoreticalIDs(ctx context.Context, f selection.TheoreticalFilter) ([]int64, error) {
	query := `SELECT DISTINCT q.id FROM questions q`
	var (
		args  []any
		where = ` WHERE q.scenario_id IS NULL`
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.TopicCap > 0 {
		query += ` JOIN question_topics qtc ON qtc.question_id = q.id`
		where += ` AND qtc.topic_id < ` + arg(f.TopicCap)
	}
	if len(f.TopicIDs) > 0 {
		query += ` JOIN question_topics qt ON qt.question_id = q.id`
		where += ` AND qt.topic_id = ANY(` + arg(f.TopicIDs) + `)`
	}
	if len(f.ExcludeIDs) > 0 {
		where += ` AND q.id <> ALL(` + arg(f.ExcludeIDs) + `)`
	}

	final := `SELECT id FROM (` + query + where + `) candidates ORDER BY RANDOM()`
	if f.Limit > 0 {
		final += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, final, args...)
	if err != nil {
		return nil, fmt.Errorf("theoretical ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ScenarioTopicRows loads (question, scenario, topic) triples for every
// scenario-bearing question, one row per topic association.
func (r *QuestionRepository) ScenarioTopicRows(ctx context.Context) ([]selection.ScenarioTopicRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.scenario_id, qt.topic_id
		FROM questions q
		JOIN question_topics qt ON qt.question_id = q.id
		WHERE q.scenario_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("scenario topic rows: %w", err)
	}
	defer rows.Close()

	var out []selection.ScenarioTopicRow
	for rows.Next() {
		var row selection.ScenarioTopicRow
		if err := rows.Scan(&row.QuestionID, &row.ScenarioID, &row.TopicID); err != nil {
			return nil, fmt.Errorf("scan scenario topic row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ScenarioBlocks groups every scenario-bearing question by scenario, members
// sorted ascending.
func (r *QuestionRepository) ScenarioBlocks(ctx context.Context) (map[int64][]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, scenario_id FROM questions WHERE scenario_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("scenario blocks: %w", err)
	}
	defer rows.Close()

	blocks := make(map[int64][]int64)
	for rows.Next() {
		var questionID, scenarioID int64
		if err := rows.Scan(&questionID, &scenarioID); err != nil {
			return nil, fmt.Errorf("scan scenario block: %w", err)
		}
		blocks[scenarioID] = append(blocks[scenarioID], questionID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for id := range blocks {
		sort.Slice(blocks[id], func(i, j int) bool { return blocks[id][i] < blocks[id][j] })
	}
	return blocks, nil
}

// OfficialQuestionIDs returns the stored exam's questions in published order.
func (r *QuestionRepository) OfficialQuestionIDs(ctx context.Context, year int, region, specialty string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id
		FROM questions q
		JOIN exam_questions eq ON eq.question_id = q.id
		JOIN official_exams oe ON oe.id = eq.exam_id
		WHERE oe.year = $1 AND oe.region = $2 AND oe.specialty = $3
		ORDER BY eq.question_number ASC`, year, region, specialty)
	if err != nil {
		return nil, fmt.Errorf("official question ids: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// GetByIDs hydrates full question rows. Database order is arbitrary; callers
// reorder against their selection sequence.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []int64) ([]Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, statement, option_a, option_b, option_c, option_d,
			correct_answer, scenario_id, image_name
		FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("questions by ids: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Statement, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectAnswer, &q.ScenarioID, &q.ImageName); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ScenarioText returns the clinical case body, or "" when the scenario is
// unknown.
func (r *QuestionRepository) ScenarioText(ctx context.Context, scenarioID int64) (string, error) {
	var body string
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM scenarios WHERE id = $1`, scenarioID).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scenario text: %w", err)
	}
	return body, nil
}

// Explanation returns the pre-generated explanation payload, or nil when the
// question has none.
func (r *QuestionRepository) Explanation(ctx context.Context, questionID int64) (json.RawMessage, error) {
	var payload json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT explanation FROM question_explanations WHERE question_id = $1`, questionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("question explanation: %w", err)
	}
	return payload, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
