package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/db/repository"
	"github.com/medprep/quiz-engine/internal/selection"
	"github.com/medprep/quiz-engine/internal/session"
	"github.com/medprep/quiz-engine/internal/stats"
	"github.com/medprep/quiz-engine/internal/topic"
)

// ErrSessionNotFound is returned for unknown or expired quiz sessions.
var ErrSessionNotFound = errors.New("quiz session not found")

type catalogStore interface {
	ListTopics(ctx context.Context, topicCap int64) ([]topic.Topic, error)
}

type questionStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]repository.Question, error)
	ScenarioText(ctx context.Context, scenarioID int64) (string, error)
	Explanation(ctx context.Context, questionID int64) (json.RawMessage, error)
}

type examStore interface {
	ListOfficialExams(ctx context.Context) ([]repository.OfficialExam, error)
}

type answerCounter interface {
	TotalPriorAnswers(ctx context.Context, userID int64) (int64, error)
}

type sessionStore interface {
	Lock(ctx context.Context, id uuid.UUID) (func() error, error)
	Save(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type catalogCache interface {
	Get(ctx context.Context, topicCap int64) ([]topic.Topic, error)
	Set(ctx context.Context, topicCap int64, catalog []topic.Topic) error
}

// ServiceOptions configures the quiz service.
type ServiceOptions struct {
	BiochemTopicCap int64
}

// Service orchestrates selection, session state, and aggregation hand-off.
type Service struct {
	selector   *selection.Selector
	topics     catalogStore
	cache      catalogCache
	questions  questionStore
	exams      examStore
	answers    answerCounter
	sessions   sessionStore
	statsQueue chan<- stats.FinishedQuiz
	topicCap   int64
	logger     zerolog.Logger
}

func NewService(
	selector *selection.Selector,
	topics catalogStore,
	cache catalogCache,
	questions questionStore,
	exams examStore,
	answers answerCounter,
	sessions sessionStore,
	statsQueue chan<- stats.FinishedQuiz,
	opts ServiceOptions,
	logger zerolog.Logger,
) *Service {
	return &Service{
		selector:   selector,
		topics:     topics,
		cache:      cache,
		questions:  questions,
		exams:      exams,
		answers:    answers,
		sessions:   sessions,
		statsQueue: statsQueue,
		topicCap:   opts.BiochemTopicCap,
		logger:     logger,
	}
}

// StartedQuiz is the hydrated outcome of one quiz start request.
type StartedQuiz struct {
	Session   *session.Session
	Questions []repository.Question
	Status    selection.Status
}

// Catalog returns the topic catalog for the user's specialty, served from
// the Redis cache when warm.
func (s *Service) Catalog(ctx context.Context, biochem bool) ([]topic.Topic, error) {
	topicCap := s.capFor(biochem)

	if cached, err := s.cache.Get(ctx, topicCap); err != nil {
		s.logger.Warn().Err(err).Msg("topic catalog cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	catalog, err := s.topics.ListTopics(ctx, topicCap)
	if err != nil {
		return nil, fmt.Errorf("load topic catalog: %w", err)
	}
	if err := s.cache.Set(ctx, topicCap, catalog); err != nil {
		s.logger.Warn().Err(err).Msg("topic catalog cache write failed")
	}
	return catalog, nil
}

// TopicTree returns the catalog arranged for a selection tree widget.
func (s *Service) TopicTree(ctx context.Context, biochem bool) ([]topic.Node, error) {
	catalog, err := s.Catalog(ctx, biochem)
	if err != nil {
		return nil, err
	}
	return topic.BuildTree(catalog), nil
}

// OfficialExams lists the replayable exam papers.
func (s *Service) OfficialExams(ctx context.Context) ([]repository.OfficialExam, error) {
	return s.exams.ListOfficialExams(ctx)
}

// StartQuiz selects questions for the config, hydrates them in selection
// order, and opens a session accumulating the user's answers.
func (s *Service) StartQuiz(ctx context.Context, userID int64, cfg selection.Config, biochem bool) (*StartedQuiz, error) {
	catalog, err := s.Catalog(ctx, biochem)
	if err != nil {
		return nil, err
	}

	result, err := s.selector.Select(ctx, cfg, catalog, biochem)
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}
	if result.Status != selection.StatusOK || len(result.QuestionIDs) == 0 {
		return &StartedQuiz{Status: result.Status}, nil
	}

	rows, err := s.questions.GetByIDs(ctx, result.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate questions: %w", err)
	}
	ordered := reorder(rows, result.QuestionIDs)

	sess := &session.Session{
		ID:             uuid.New(),
		UserID:         userID,
		Mode:           cfg.Mode(),
		TargetSize:     result.TargetSize,
		ClosurePartial: result.ClosurePartial,
		QuestionIDs:    result.QuestionIDs,
		StartedAt:      time.Now(),
		Events:         []stats.AnswerEvent{},
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("mode", sess.Mode).
		Int("questions", len(ordered)).
		Bool("closure_partial", result.ClosurePartial).
		Msg("quiz started")

	return &StartedQuiz{Session: sess, Questions: ordered, Status: selection.StatusOK}, nil
}

// RecordAnswer appends one answer event to the session.
func (s *Service) RecordAnswer(ctx context.Context, sessionID uuid.UUID, event stats.AnswerEvent) error {
	unlock, err := s.sessions.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("session unlock failed")
		}
	}()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	sess.Events = append(sess.Events, event)
	return s.sessions.Save(ctx, sess)
}

// FinishQuiz hands the accumulated events to the stats worker and discards
// the session. The caller does not wait for aggregation.
func (s *Service) FinishQuiz(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	select {
	case s.statsQueue <- stats.FinishedQuiz{UserID: sess.UserID, Events: sess.Events}:
	default:
		return fmt.Errorf("stats queue full, quiz %s not submitted", sessionID)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("session delete failed")
	}

	s.logger.Info().
		Str("session_id", sessionID.String()).
		Int("events", len(sess.Events)).
		Msg("quiz finished, stats queued")
	return nil
}

// ScenarioText returns the clinical case body for a scenario block.
func (s *Service) ScenarioText(ctx context.Context, scenarioID int64) (string, error) {
	return s.questions.ScenarioText(ctx, scenarioID)
}

// Explanation returns the pre-generated explanation for a question, nil when
// none is stored.
func (s *Service) Explanation(ctx context.Context, questionID int64) (json.RawMessage, error) {
	return s.questions.Explanation(ctx, questionID)
}

// PriorAnswerCount exposes the user's lifetime answer total so the caller
// can number questions across quizzes.
func (s *Service) PriorAnswerCount(ctx context.Context, userID int64) (int64, error) {
	return s.answers.TotalPriorAnswers(ctx, userID)
}

func (s *Service) capFor(biochem bool) int64 {
	if biochem {
		return s.topicCap
	}
	return 0
}

// reorder arranges hydrated rows back into selection order; IDs the store no
// longer knows are dropped.
func reorder(rows []repository.Question, order []int64) []repository.Question {
	byID := make(map[int64]repository.Question, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]repository.Question, 0, len(order))
	for _, id := range order {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out
}
