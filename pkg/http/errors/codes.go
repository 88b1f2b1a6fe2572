package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Quiz errors
	ErrCodeNoQuestions       = "no_questions"
	ErrCodeBadQuizConfig     = "bad_quiz_config"
	ErrCodeQuizStartFailed   = "quiz_start_failed"
	ErrCodeSessionNotFound   = "session_not_found"
	ErrCodeSubmitFailed      = "submit_failed"
	ErrCodeFinishFailed      = "finish_failed"
	ErrCodeCatalogFetchFailed = "catalog_fetch_failed"
	ErrCodeExamFetchFailed   = "exam_fetch_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
