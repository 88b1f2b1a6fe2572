package selection

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/medprep/quiz-engine/internal/topic"
)

type stubCandidateStore struct {
	theoretical func(ctx context.Context, f TheoreticalFilter) ([]int64, error)
	blocks      map[int64][]int64
	official    []int64
	officialErr error
}

func (s *stubCandidateStore) TheoreticalIDs(ctx context.Context, f TheoreticalFilter) ([]int64, error) {
	if s.theoretical == nil {
		return nil, nil
	}
	return s.theoretical(ctx, f)
}

func (s *stubCandidateStore) ScenarioBlocks(ctx context.Context) (map[int64][]int64, error) {
	if s.blocks == nil {
		return map[int64][]int64{}, nil
	}
	return s.blocks, nil
}

func (s *stubCandidateStore) OfficialQuestionIDs(ctx context.Context, year int, region, specialty string) ([]int64, error) {
	return s.official, s.officialErr
}

func newTestSelector(store *stubCandidateStore, scenarios *stubScenarioStore, opts SelectorOptions) *Selector {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return NewSelector(store, NewQualifier(scenarios), nil, opts, zerolog.Nop())
}

func catalogWithTopic7() []topic.Topic {
	return []topic.Topic{{ID: 7, Code: "7", Name: "Pharmacology"}}
}

func assertNoDuplicates(t *testing.T, ids []int64) {
	t.Helper()
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "question %d selected twice", id)
		seen[id] = struct{}{}
	}
}

func TestSelectOfficialMissingFields(t *testing.T) {
	s := newTestSelector(&stubCandidateStore{}, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(), Official{Year: 2023}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, StatusBadConfig, result.Status)
}

func TestSelectOfficialPreservesPublishedOrder(t *testing.T) {
	store := &stubCandidateStore{official: []int64{30, 10, 20}}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(), Official{Year: 2023, Region: "north", Specialty: "medicine"}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, []int64{30, 10, 20}, result.QuestionIDs)
	assert.Equal(t, 3, result.TargetSize)
}

func TestSelectOfficialUnknownExam(t *testing.T) {
	s := newTestSelector(&stubCandidateStore{}, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(), Official{Year: 1999, Region: "north", Specialty: "medicine"}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, StatusEmpty, result.Status)
}

func TestSelectOfficialStoreErrorPropagates(t *testing.T) {
	store := &stubCandidateStore{officialErr: errors.New("connection reset")}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{})

	_, err := s.Select(context.Background(), Official{Year: 2023, Region: "north", Specialty: "medicine"}, nil, false)

	assert.Error(t, err)
}

func TestSelectFreeRandomFillsExactTarget(t *testing.T) {
	// Total candidates sum exactly to the target, so every shuffle order fills.
	store := &stubCandidateStore{
		blocks: map[int64][]int64{100: {1, 2}},
		theoretical: func(_ context.Context, f TheoreticalFilter) ([]int64, error) {
			assert.ElementsMatch(t, []int64{1, 2}, f.ExcludeIDs)
			return []int64{3, 4, 5}, nil
		},
	}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{RandomSizes: []int{5}})

	result, err := s.Select(context.Background(), FreeRandom{}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, 5, result.TargetSize)
	assert.Len(t, result.QuestionIDs, 5)
	assertNoDuplicates(t, result.QuestionIDs)
}

func TestSelectFreeRandomUnderfillsWhenNoCombinationFits(t *testing.T) {
	// Two blocks of two and an odd target: the second block never fits and the
	// fill stops short rather than splitting it.
	store := &stubCandidateStore{
		blocks: map[int64][]int64{100: {1, 2}, 200: {3, 4}},
	}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{RandomSizes: []int{3}})

	result, err := s.Select(context.Background(), FreeRandom{}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.TargetSize)
	assert.Len(t, result.QuestionIDs, 2)
}

func TestSelectTheoreticalPassesClosureAndLimit(t *testing.T) {
	store := &stubCandidateStore{
		theoretical: func(_ context.Context, f TheoreticalFilter) ([]int64, error) {
			assert.Equal(t, []int64{7}, f.TopicIDs)
			assert.Equal(t, 2, f.Limit)
			return []int64{11, 12}, nil
		},
	}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 2, Type: TypeTheoretical, TopicIDs: []int64{7}}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, []int64{11, 12}, result.QuestionIDs)
}

func TestSelectTheoreticalCountAllHasNoLimit(t *testing.T) {
	store := &stubCandidateStore{
		theoretical: func(_ context.Context, f TheoreticalFilter) ([]int64, error) {
			assert.Equal(t, 0, f.Limit)
			return []int64{11, 12, 13}, nil
		},
	}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: CountAll, Type: TypeTheoretical, TopicIDs: []int64{7}}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.Len(t, result.QuestionIDs, 3)
}

func TestSelectPracticalTruncatesMidBlock(t *testing.T) {
	scenarios := &stubScenarioStore{rows: []ScenarioTopicRow{
		{QuestionID: 1, ScenarioID: 100, TopicID: 7},
		{QuestionID: 2, ScenarioID: 100, TopicID: 7},
		{QuestionID: 3, ScenarioID: 100, TopicID: 7},
		{QuestionID: 4, ScenarioID: 200, TopicID: 7},
		{QuestionID: 5, ScenarioID: 200, TopicID: 7},
		{QuestionID: 6, ScenarioID: 200, TopicID: 7},
	}}
	s := newTestSelector(&stubCandidateStore{}, scenarios, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 4, Type: TypePractical, TopicIDs: []int64{7}}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Len(t, result.QuestionIDs, 4, "the cut may land inside a block")
	assertNoDuplicates(t, result.QuestionIDs)

	// The first block survives intact; only the trailing one is cut.
	first := result.QuestionIDs[:3]
	assert.Condition(t, func() bool {
		return assert.ObjectsAreEqual([]int64{1, 2, 3}, first) || assert.ObjectsAreEqual([]int64{4, 5, 6}, first)
	}, "leading block must be whole, got %v", first)
}

func TestSelectPracticalWithoutTopics(t *testing.T) {
	s := newTestSelector(&stubCandidateStore{}, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 10, Type: TypePractical}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.Equal(t, StatusEmpty, result.Status)
}

func TestSelectMixedKeepsBlocksWhole(t *testing.T) {
	scenarios := &stubScenarioStore{rows: []ScenarioTopicRow{
		{QuestionID: 1, ScenarioID: 100, TopicID: 7},
		{QuestionID: 2, ScenarioID: 100, TopicID: 7},
	}}
	store := &stubCandidateStore{
		theoretical: func(_ context.Context, f TheoreticalFilter) ([]int64, error) {
			assert.ElementsMatch(t, []int64{1, 2}, f.ExcludeIDs, "block members must not reappear as theoreticals")
			return []int64{10, 11}, nil
		},
	}
	s := newTestSelector(store, scenarios, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 3, Type: TypeBoth, TopicIDs: []int64{7}}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.LessOrEqual(t, len(result.QuestionIDs), 3)
	assertNoDuplicates(t, result.QuestionIDs)

	// Whole-unit fill: the block is either fully present or fully absent.
	has1, has2 := false, false
	for _, id := range result.QuestionIDs {
		if id == 1 {
			has1 = true
		}
		if id == 2 {
			has2 = true
		}
	}
	assert.Equal(t, has1, has2, "scenario block must never be split")
}

func TestSelectFreeCustomUnknownType(t *testing.T) {
	s := newTestSelector(&stubCandidateStore{}, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 5, Type: QuestionType("essay")}, nil, false)

	assert.NoError(t, err)
	assert.Equal(t, StatusBadConfig, result.Status)
}

func TestSelectFreeCustomNoCandidates(t *testing.T) {
	s := newTestSelector(&stubCandidateStore{}, &stubScenarioStore{}, SelectorOptions{})

	result, err := s.Select(context.Background(),
		FreeCustom{Count: 5, Type: TypeTheoretical, TopicIDs: []int64{7}}, catalogWithTopic7(), false)

	assert.NoError(t, err)
	assert.Equal(t, StatusEmpty, result.Status)
}

func TestSelectBiochemCapForwarded(t *testing.T) {
	store := &stubCandidateStore{
		theoretical: func(_ context.Context, f TheoreticalFilter) ([]int64, error) {
			assert.Equal(t, int64(1762), f.TopicCap)
			return []int64{11}, nil
		},
	}
	s := newTestSelector(store, &stubScenarioStore{}, SelectorOptions{BiochemTopicCap: 1762})

	_, err := s.Select(context.Background(),
		FreeCustom{Count: 1, Type: TypeTheoretical, TopicIDs: []int64{7}}, catalogWithTopic7(), true)

	assert.NoError(t, err)
}
