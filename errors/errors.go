package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified mlkit error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable description of the condition.
	Message string `json:"message"`
	// Stage is the name of the stage that raised the error, if any.
	Stage string `json:"stage,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	prefix := string(e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s: stage %q", e.Code, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError for the given stage.
func New(code ErrorCode, stage, message string) *AppError {
	return &AppError{Code: code, Stage: stage, Message: message}
}

// --- Taxonomy constructors ---

// NotImplemented creates an error for a stage that does not override op.
func NotImplemented(stage, op string) *AppError {
	return &AppError{
		Code: ErrCodeNotImplemented, Stage: stage,
		Message: fmt.Sprintf("%s is not implemented", op),
		Details: map[string]any{"operation": op},
	}
}

// NotFitted creates an error for an operation attempted before Fit.
func NotFitted(stage, op string) *AppError {
	return &AppError{
		Code: ErrCodeNotFitted, Stage: stage,
		Message: fmt.Sprintf("%s called before fit", op),
		Details: map[string]any{"operation": op},
	}
}

// InvalidConfiguration creates an error for a malformed stage setup.
func InvalidConfiguration(stage, reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidConfiguration, Stage: stage, Message: reason}
}

// InsufficientData creates an error for an empty partition.
func InsufficientData(stage, reason string) *AppError {
	return &AppError{Code: ErrCodeInsufficientData, Stage: stage, Message: reason}
}

// ShapeMismatch creates an error for disagreeing sizes. what names the
// compared quantity, e.g. "target rows".
func ShapeMismatch(stage, what string, want, got int) *AppError {
	return &AppError{
		Code: ErrCodeShapeMismatch, Stage: stage,
		Message: fmt.Sprintf("%s mismatch: want %d, got %d", what, want, got),
		Details: map[string]any{"what": what, "want": want, "got": got},
	}
}

// InvalidInput creates an error for malformed input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates an INVALID_INPUT error with a preformatted message.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// NotFound creates an error for a missing named resource.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: details,
	}
}

// Internal creates an error for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "unexpected failure", Cause: cause}
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
