package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medprep/quiz-engine/internal/topic"
)

// TopicRepository reads the syllabus reference data.
type TopicRepository struct {
	pool *pgxpool.Pool
}

func NewTopicRepository(pool *pgxpool.Pool) *TopicRepository {
	return &TopicRepository{pool: pool}
}

// ListTopics returns the topic catalog ordered by code. A positive topicCap
// excludes topics at or above that ID (biochemistry specialty bound).
func (r *TopicRepository) ListTopics(ctx context.Context, topicCap int64) ([]topic.Topic, error) {
	query := `SELECT id, code, name, legacy_id FROM topics
		WHERE code IS NOT NULL AND name IS NOT NULL AND name <> ''`
	args := []any{}
	if topicCap > 0 {
		query += ` AND id < $1`
		args = append(args, topicCap)
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var catalog []topic.Topic
	for rows.Next() {
		var t topic.Topic
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.LegacyID); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		catalog = append(catalog, t)
	}
	return catalog, rows.Err()
}

// GroupsForTopics returns the distinct group IDs containing any of the topics.
func (r *TopicRepository) GroupsForTopics(ctx context.Context, topicIDs []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT group_id FROM topic_group_members WHERE topic_id = ANY($1)`, topicIDs)
	if err != nil {
		return nil, fmt.Errorf("groups for topics: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// TopicsInGroups returns the distinct topic IDs belonging to any of the groups.
func (r *TopicRepository) TopicsInGroups(ctx context.Context, groupIDs []int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT topic_id FROM topic_group_members WHERE group_id = ANY($1)`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("topics in groups: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}
