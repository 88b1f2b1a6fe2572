package selection

import (
	"context"
	"sort"

	"github.com/medprep/quiz-engine/internal/topic"
)

// ScenarioTopicRow links one scenario-bearing question to one of its topics.
// A question emits one row per associated topic.
type ScenarioTopicRow struct {
	QuestionID int64
	ScenarioID int64
	TopicID    int64
}

type scenarioStore interface {
	ScenarioTopicRows(ctx context.Context) ([]ScenarioTopicRow, error)
}

// Qualifier decides which scenario blocks may enter a topic-filtered quiz.
type Qualifier struct {
	store scenarioStore
}

func NewQualifier(store scenarioStore) *Qualifier {
	return &Qualifier{store: store}
}

// QualifyBlocks returns the scenario blocks where at least half of the member
// questions' topic associations fall inside the closure. Members are sorted
// ascending so a later truncation is deterministic.
func (q *Qualifier) QualifyBlocks(ctx context.Context, closure topic.Closure) (map[int64][]int64, error) {
	rows, err := q.store.ScenarioTopicRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[int64][]int64{}, nil
	}

	type blockData struct {
		members map[int64]struct{}
		topics  []int64
	}
	blocks := make(map[int64]*blockData)
	for _, row := range rows {
		b, ok := blocks[row.ScenarioID]
		if !ok {
			b = &blockData{members: make(map[int64]struct{})}
			blocks[row.ScenarioID] = b
		}
		b.members[row.QuestionID] = struct{}{}
		b.topics = append(b.topics, row.TopicID)
	}

	qualified := make(map[int64][]int64)
	for scenarioID, b := range blocks {
		if len(b.members) == 0 {
			continue
		}
		matches := 0
		for _, topicID := range b.topics {
			if closure.Contains(topicID) {
				matches++
			}
		}
		if float64(matches)/float64(len(b.members)) >= 0.5 {
			members := make([]int64, 0, len(b.members))
			for id := range b.members {
				members = append(members, id)
			}
			sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
			qualified[scenarioID] = members
		}
	}
	return qualified, nil
}
