package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/quiz"
	"github.com/medprep/quiz-engine/internal/selection"
	"github.com/medprep/quiz-engine/internal/stats"
	httperrors "github.com/medprep/quiz-engine/pkg/http/errors"
)

// HTTPHandlers exposes the quiz engine over a thin JSON API.
type HTTPHandlers struct {
	svc    *quiz.Service
	logger zerolog.Logger
}

func NewHTTPHandlers(svc *quiz.Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, logger: logger}
}

func (h *HTTPHandlers) ListTopics(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.svc.Catalog(r.Context(), boolQuery(r, "biochem"))
	if err != nil {
		h.logger.Error().Err(err).Msg("topic catalog fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeCatalogFetchFailed, "could not load topics")
		return
	}
	respondJSON(w, catalog)
}

func (h *HTTPHandlers) TopicTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.TopicTree(r.Context(), boolQuery(r, "biochem"))
	if err != nil {
		h.logger.Error().Err(err).Msg("topic tree fetch failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeCatalogFetchFailed, "could not load topics")
		return
	}
	respondJSON(w, tree)
}

func (h *HTTPHandlers) ListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.OfficialExams(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("official exam list failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeExamFetchFailed, "could not load exams")
		return
	}
	respondJSON(w, exams)
}

type startQuizRequest struct {
	UserID       int64   `json:"user_id"`
	Biochem      bool    `json:"biochem"`
	Mode         string  `json:"mode"`
	Count        *int    `json:"count,omitempty"`
	QuestionType string  `json:"question_type,omitempty"`
	TopicIDs     []int64 `json:"topic_ids,omitempty"`
	Year         int     `json:"year,omitempty"`
	Region       string  `json:"region,omitempty"`
	Specialty    string  `json:"specialty,omitempty"`
}

func (h *HTTPHandlers) StartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.UserID == 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "user_id is required", "user_id")
		return
	}

	cfg, ok := buildConfig(req)
	if !ok {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "unknown quiz mode or question type")
		return
	}

	started, err := h.svc.StartQuiz(r.Context(), req.UserID, cfg, req.Biochem)
	if err != nil {
		h.logger.Error().Err(err).Str("mode", cfg.Mode()).Msg("quiz start failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeQuizStartFailed, "could not start quiz")
		return
	}
	switch started.Status {
	case selection.StatusBadConfig:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeBadQuizConfig, "quiz configuration is incomplete")
		return
	case selection.StatusEmpty:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNoQuestions, "no questions match the requested criteria")
		return
	}

	quizzesStarted.WithLabelValues(cfg.Mode()).Inc()
	respondJSON(w, map[string]any{
		"session":   started.Session,
		"questions": started.Questions,
	})
}

func buildConfig(req startQuizRequest) (selection.Config, bool) {
	switch req.Mode {
	case "official":
		return selection.Official{Year: req.Year, Region: req.Region, Specialty: req.Specialty}, true
	case "free_random":
		return selection.FreeRandom{}, true
	case "free_custom":
		count := selection.CountAll
		if req.Count != nil && *req.Count > 0 {
			count = *req.Count
		}
		qt := selection.QuestionType(req.QuestionType)
		switch qt {
		case selection.TypeTheoretical, selection.TypePractical, selection.TypeBoth:
		default:
			return nil, false
		}
		return selection.FreeCustom{Count: count, Type: qt, TopicIDs: req.TopicIDs}, true
	default:
		return nil, false
	}
}

type answerRequest struct {
	QuestionID     int64     `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	AnsweredAt     time.Time `json:"answered_at"`
}

func (h *HTTPHandlers) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.AnsweredAt.IsZero() {
		req.AnsweredAt = time.Now()
	}

	err := h.svc.RecordAnswer(r.Context(), sessionID, stats.AnswerEvent{
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		ResponseTimeMS: req.ResponseTimeMS,
		AnsweredAt:     req.AnsweredAt,
	})
	if errors.Is(err, quiz.ErrSessionNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "quiz session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("answer record failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeSubmitFailed, "could not record answer")
		return
	}

	answersRecorded.Inc()
	respondJSON(w, map[string]bool{"recorded": true})
}

func (h *HTTPHandlers) FinishQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r)
	if !ok {
		return
	}

	err := h.svc.FinishQuiz(r.Context(), sessionID)
	if errors.Is(err, quiz.ErrSessionNotFound) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "quiz session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID.String()).Msg("quiz finish failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeFinishFailed, "could not finish quiz")
		return
	}

	quizzesFinished.Inc()
	respondJSON(w, map[string]bool{"finished": true})
}

func (h *HTTPHandlers) ScenarioText(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	body, err := h.svc.ScenarioText(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("scenario_id", id).Msg("scenario fetch failed")
		httperrors.RespondInternalError(w, "could not load scenario")
		return
	}
	if body == "" {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "scenario not found")
		return
	}
	respondJSON(w, map[string]string{"body": body})
}

func (h *HTTPHandlers) Explanation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	payload, err := h.svc.Explanation(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("question_id", id).Msg("explanation fetch failed")
		httperrors.RespondInternalError(w, "could not load explanation")
		return
	}
	if payload == nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "no explanation for this question")
		return
	}
	respondJSON(w, json.RawMessage(payload))
}

func (h *HTTPHandlers) AnswerCount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r)
	if !ok {
		return
	}
	total, err := h.svc.PriorAnswerCount(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", id).Msg("answer count fetch failed")
		httperrors.RespondInternalError(w, "could not load answer count")
		return
	}
	respondJSON(w, map[string]int64{"total_answered": total})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func boolQuery(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true"
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func pathInt64(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid id")
		return 0, false
	}
	return id, true
}
