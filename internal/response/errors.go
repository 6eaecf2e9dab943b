package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrConfirmation   ErrCode = "CONFIRMATION_REQUIRED"

	// ─── Credentials ───────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Session ───────────────────────────────────────────────────────
	ErrExamNotLoaded     ErrCode = "EXAM_NOT_LOADED"
	ErrExamNotRunning    ErrCode = "EXAM_NOT_RUNNING"
	ErrQuestionNotFound  ErrCode = "QUESTION_NOT_FOUND"
	ErrOptionNotFound    ErrCode = "OPTION_NOT_FOUND"
	ErrIndexOutOfRange   ErrCode = "INDEX_OUT_OF_RANGE"
	ErrTimeUp            ErrCode = "TIME_UP"
	ErrIncomplete        ErrCode = "EXAM_INCOMPLETE"
	ErrSubmitInProgress  ErrCode = "SUBMIT_IN_PROGRESS"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionFailed  ErrCode = "SUBMISSION_FAILED"
	ErrLeaveNotAllowed   ErrCode = "LEAVE_NOT_ALLOWED"
	ErrCameraUnavailable ErrCode = "CAMERA_UNAVAILABLE"
	ErrCameraBusy        ErrCode = "CAMERA_BUSY"

	// ─── Access ────────────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrConfirmation:
		return "Please confirm before submitting the exam."

	// ─── Credentials ───────────────────────────────────────────────────
	case ErrTokenRequired:
		return "You are not signed in. Please log in again."
	case ErrTokenExpired:
		return "Your session has expired. Please log in again."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrExamNotLoaded:
		return "Failed to load exam questions."
	case ErrExamNotRunning:
		return "The exam is not in progress."
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrOptionNotFound:
		return "The selected option does not belong to this question."
	case ErrIndexOutOfRange:
		return "Question number out of range."
	case ErrTimeUp:
		return "Time is up. Your answers are being submitted."
	case ErrIncomplete:
		return "Please answer all questions before submitting."
	case ErrSubmitInProgress:
		return "Your exam is already being submitted."
	case ErrAlreadySubmitted:
		return "Your exam has already been submitted."
	case ErrSubmissionFailed:
		return "Failed to submit exam. Please try again."
	case ErrLeaveNotAllowed:
		return "You cannot leave the exam before submitting it."
	case ErrCameraUnavailable:
		return "The camera is unavailable."
	case ErrCameraBusy:
		return "The camera is busy with a scheduled capture. Please try again."

	// ─── Access ────────────────────────────────────────────────────────
	case ErrForbidden:
		return "This API only accepts local connections."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again shortly."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal error occurred."
	default:
		return "An unexpected error occurred."
	}
}
