package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/stats"
)

// Session is the explicit per-quiz state handle passed through the
// selection -> presentation -> aggregation pipeline.
type Session struct {
	ID             uuid.UUID           `json:"id"`
	UserID         int64               `json:"user_id"`
	Mode           string              `json:"mode"`
	TargetSize     int                 `json:"target_size"`
	ClosurePartial bool                `json:"closure_partial,omitempty"`
	QuestionIDs    []int64             `json:"question_ids"`
	StartedAt      time.Time           `json:"started_at"`
	Events         []stats.AnswerEvent `json:"events"`
}

// Store keeps quiz sessions in Redis while the quiz is in progress.
type Store struct {
	redis  *redis.Client
	logger zerolog.Logger
	ttl    time.Duration
}

func NewStore(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		redis:  client,
		logger: logger,
		ttl:    6 * time.Hour, // generous for a long exam sitting
	}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("quiz:session:%s", id.String())
}

// Lock acquires a short distributed lock so answer appends do not interleave.
// Returns the unlock function.
func (s *Store) Lock(ctx context.Context, id uuid.UUID) (func() error, error) {
	key := fmt.Sprintf("quiz:session:lock:%s", id.String())
	lockValue := uuid.New().String()

	acquired, err := s.redis.SetNX(ctx, key, lockValue, 30*time.Second).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("lock already held")
	}

	unlock := func() error {
		// Lua script ensures we only delete our own lock
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		return s.redis.Eval(ctx, script, []string{key}, lockValue).Err()
	}
	return unlock, nil
}

// Save writes the session snapshot.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.redis.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err()
}

// Get retrieves a session, nil when it does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a finished or abandoned session.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.redis.Del(ctx, sessionKey(id)).Err()
}
