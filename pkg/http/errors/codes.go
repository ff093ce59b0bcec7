package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Profile errors
	ErrCodeUserRequired = "user_required"

	// Session errors
	ErrCodeStartInProgress  = "start_in_progress"
	ErrCodeNoActiveSession  = "no_active_session"
	ErrCodeNotAnswered      = "not_answered"
	ErrCodeUnknownOption    = "unknown_option"
	ErrCodeNothingToResume  = "nothing_to_resume"
	ErrCodeNoResult         = "no_result"
	ErrCodeNoQuestions      = "no_questions"
	ErrCodeQuestionNotFound = "custom_question_not_found"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"
)
