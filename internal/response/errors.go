package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Form token ────────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrFormExpired   ErrCode = "FORM_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrUnknownField   ErrCode = "UNKNOWN_FIELD"
	ErrUnknownOption  ErrCode = "UNKNOWN_OPTION"
	ErrFieldKind      ErrCode = "FIELD_KIND_MISMATCH"
	ErrIncompleteForm ErrCode = "INCOMPLETE_FORM"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmitInProgress   ErrCode = "SUBMIT_IN_PROGRESS"
	ErrSubmissionRejected ErrCode = "SUBMISSION_REJECTED"
	ErrSubmissionFailed   ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Form token ────────────────────────────────────────────────────
	case ErrTokenRequired:
		return "A form token is required."
	case ErrTokenInvalid:
		return "The form token is invalid."
	case ErrFormExpired:
		return "This form has expired. Please reload the page."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrUnknownField:
		return "This form has no such field."
	case ErrUnknownOption:
		return "The selected value is not one of the available options."
	case ErrFieldKind:
		return "This field does not accept that kind of value."
	case ErrIncompleteForm:
		return "Please complete every field before submitting."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmitInProgress:
		return "A submission for this form is already in progress."
	case ErrSubmissionRejected:
		return "Submission failed. Please try again."
	case ErrSubmissionFailed:
		return "An error occurred. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
