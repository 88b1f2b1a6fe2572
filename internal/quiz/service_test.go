package quiz

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/medprep/quiz-engine/internal/db/repository"
	"github.com/medprep/quiz-engine/internal/selection"
	"github.com/medprep/quiz-engine/internal/session"
	"github.com/medprep/quiz-engine/internal/stats"
	"github.com/medprep/quiz-engine/internal/topic"
)

type stubCatalogStore struct {
	catalog []topic.Topic
	calls   int
}

func (s *stubCatalogStore) ListTopics(_ context.Context, _ int64) ([]topic.Topic, error) {
	s.calls++
	return s.catalog, nil
}

type stubQuestionStore struct {
	rows map[int64]repository.Question
}

func (s *stubQuestionStore) GetByIDs(_ context.Context, ids []int64) ([]repository.Question, error) {
	var out []repository.Question
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *stubQuestionStore) ScenarioText(_ context.Context, _ int64) (string, error) {
	return "", nil
}

func (s *stubQuestionStore) Explanation(_ context.Context, _ int64) (json.RawMessage, error) {
	return nil, nil
}

type stubExamStore struct{}

func (stubExamStore) ListOfficialExams(_ context.Context) ([]repository.OfficialExam, error) {
	return nil, nil
}

type stubAnswerCounter struct{ total int64 }

func (s stubAnswerCounter) TotalPriorAnswers(_ context.Context, _ int64) (int64, error) {
	return s.total, nil
}

type memorySessionStore struct {
	sessions map[uuid.UUID]*session.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: map[uuid.UUID]*session.Session{}}
}

func (s *memorySessionStore) Lock(_ context.Context, _ uuid.UUID) (func() error, error) {
	return func() error { return nil }, nil
}

func (s *memorySessionStore) Save(_ context.Context, sess *session.Session) error {
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s *memorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.sessions, id)
	return nil
}

type nopCatalogCache struct{}

func (nopCatalogCache) Get(_ context.Context, _ int64) ([]topic.Topic, error) { return nil, nil }
func (nopCatalogCache) Set(_ context.Context, _ int64, _ []topic.Topic) error { return nil }

type memoryCatalogCache struct {
	store map[int64][]topic.Topic
}

func (c *memoryCatalogCache) Get(_ context.Context, topicCap int64) ([]topic.Topic, error) {
	return c.store[topicCap], nil
}

func (c *memoryCatalogCache) Set(_ context.Context, topicCap int64, catalog []topic.Topic) error {
	c.store[topicCap] = catalog
	return nil
}

type officialStubStore struct {
	official []int64
}

func (s *officialStubStore) TheoreticalIDs(_ context.Context, _ selection.TheoreticalFilter) ([]int64, error) {
	return nil, nil
}

func (s *officialStubStore) ScenarioBlocks(_ context.Context) (map[int64][]int64, error) {
	return map[int64][]int64{}, nil
}

func (s *officialStubStore) OfficialQuestionIDs(_ context.Context, _ int, _, _ string) ([]int64, error) {
	return s.official, nil
}

type emptyScenarioStore struct{}

func (emptyScenarioStore) ScenarioTopicRows(_ context.Context) ([]selection.ScenarioTopicRow, error) {
	return nil, nil
}

func question(id int64) repository.Question {
	return repository.Question{ID: id, Statement: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectAnswer: "A"}
}

func newTestService(official []int64, queue chan stats.FinishedQuiz) (*Service, *memorySessionStore) {
	selector := selection.NewSelector(
		&officialStubStore{official: official},
		selection.NewQualifier(emptyScenarioStore{}),
		nil,
		selection.SelectorOptions{},
		zerolog.Nop(),
	)
	questions := &stubQuestionStore{rows: map[int64]repository.Question{}}
	for _, id := range official {
		questions.rows[id] = question(id)
	}
	sessions := newMemorySessionStore()
	svc := NewService(
		selector,
		&stubCatalogStore{},
		nopCatalogCache{},
		questions,
		stubExamStore{},
		stubAnswerCounter{total: 12},
		sessions,
		queue,
		ServiceOptions{BiochemTopicCap: 1762},
		zerolog.Nop(),
	)
	return svc, sessions
}

func TestStartQuizHydratesInSelectionOrder(t *testing.T) {
	svc, sessions := newTestService([]int64{30, 10, 20}, make(chan stats.FinishedQuiz, 1))

	started, err := svc.StartQuiz(context.Background(), 42,
		selection.Official{Year: 2023, Region: "north", Specialty: "medicine"}, false)

	assert.NoError(t, err)
	assert.Equal(t, selection.StatusOK, started.Status)
	assert.Equal(t, []int64{30, 10, 20}, []int64{started.Questions[0].ID, started.Questions[1].ID, started.Questions[2].ID})
	assert.Contains(t, sessions.sessions, started.Session.ID)
	assert.Equal(t, "official", started.Session.Mode)
}

func TestStartQuizEmptySelectionOpensNoSession(t *testing.T) {
	svc, sessions := newTestService(nil, make(chan stats.FinishedQuiz, 1))

	started, err := svc.StartQuiz(context.Background(), 42,
		selection.Official{Year: 2023, Region: "north", Specialty: "medicine"}, false)

	assert.NoError(t, err)
	assert.Equal(t, selection.StatusEmpty, started.Status)
	assert.Nil(t, started.Session)
	assert.Empty(t, sessions.sessions)
}

func TestRecordAnswerAppendsEvent(t *testing.T) {
	svc, sessions := newTestService([]int64{1}, make(chan stats.FinishedQuiz, 1))
	started, err := svc.StartQuiz(context.Background(), 42,
		selection.Official{Year: 2023, Region: "north", Specialty: "medicine"}, false)
	assert.NoError(t, err)

	event := stats.AnswerEvent{QuestionID: 1, SelectedOption: "A", ResponseTimeMS: 900, AnsweredAt: time.Now()}
	err = svc.RecordAnswer(context.Background(), started.Session.ID, event)

	assert.NoError(t, err)
	assert.Len(t, sessions.sessions[started.Session.ID].Events, 1)
}

func TestRecordAnswerUnknownSession(t *testing.T) {
	svc, _ := newTestService([]int64{1}, make(chan stats.FinishedQuiz, 1))

	err := svc.RecordAnswer(context.Background(), uuid.New(), stats.AnswerEvent{QuestionID: 1, AnsweredAt: time.Now()})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFinishQuizQueuesAndDeletes(t *testing.T) {
	queue := make(chan stats.FinishedQuiz, 1)
	svc, sessions := newTestService([]int64{1}, queue)
	started, err := svc.StartQuiz(context.Background(), 42,
		selection.Official{Year: 2023, Region: "north", Specialty: "medicine"}, false)
	assert.NoError(t, err)

	event := stats.AnswerEvent{QuestionID: 1, SelectedOption: "A", ResponseTimeMS: 900, AnsweredAt: time.Now()}
	assert.NoError(t, svc.RecordAnswer(context.Background(), started.Session.ID, event))

	err = svc.FinishQuiz(context.Background(), started.Session.ID)

	assert.NoError(t, err)
	assert.Empty(t, sessions.sessions, "finished session is discarded")

	queued := <-queue
	assert.Equal(t, int64(42), queued.UserID)
	assert.Len(t, queued.Events, 1)
}

func TestFinishQuizQueueFull(t *testing.T) {
	queue := make(chan stats.FinishedQuiz) // unbuffered, nobody draining
	svc, sessions := newTestService([]int64{1}, queue)
	started, err := svc.StartQuiz(context.Background(), 42,
		selection.Official{Year: 2023, Region: "north", Specialty: "medicine"}, false)
	assert.NoError(t, err)

	err = svc.FinishQuiz(context.Background(), started.Session.ID)

	assert.Error(t, err)
	assert.Contains(t, sessions.sessions, started.Session.ID, "session survives so the user can retry")
}

func TestCatalogServedFromCache(t *testing.T) {
	topics := &stubCatalogStore{catalog: []topic.Topic{{ID: 1, Code: "1", Name: "Cardiology"}}}
	cache := &memoryCatalogCache{store: map[int64][]topic.Topic{}}
	svc := NewService(nil, topics, cache, nil, stubExamStore{}, stubAnswerCounter{}, newMemorySessionStore(), nil,
		ServiceOptions{BiochemTopicCap: 1762}, zerolog.Nop())

	first, err := svc.Catalog(context.Background(), false)
	assert.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := svc.Catalog(context.Background(), false)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, topics.calls, "second read comes from the cache")
}

func TestPriorAnswerCount(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	total, err := svc.PriorAnswerCount(context.Background(), 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(12), total)
}
