package stats

import (
	"strings"
	"time"
)

// SelectionTimeout is the sentinel stored when the user let the question
// clock run out. It counts as incorrect and is excluded from time averages.
const SelectionTimeout = "TIMEOUT"

// AnswerEvent is one answered (or timed-out) question from a finished quiz.
type AnswerEvent struct {
	QuestionID     int64     `json:"question_id"`
	SelectedOption string    `json:"selected_option"` // empty means timeout
	ResponseTimeMS int64     `json:"response_time_ms"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// classify normalizes the selected option and decides correctness against
// the stored answer. Anything outside A-D (including the timeout sentinel)
// is incorrect.
func classify(selected, correctAnswer string) (normalized string, correct bool) {
	normalized = SelectionTimeout
	trimmed := strings.TrimSpace(selected)
	if trimmed == "" {
		return normalized, false
	}
	normalized = strings.ToUpper(trimmed)
	switch normalized {
	case "A", "B", "C", "D":
		correct = normalized == strings.ToUpper(strings.TrimSpace(correctAnswer))
	}
	return normalized, correct
}

// effectiveTime returns the milliseconds that feed the time-sum columns and
// whether the event counts toward the timed denominator.
func effectiveTime(normalized string, responseTimeMS int64) (int64, int64) {
	if normalized == SelectionTimeout || responseTimeMS <= 0 {
		return 0, 0
	}
	return responseTimeMS, 1
}
