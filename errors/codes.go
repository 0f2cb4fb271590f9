package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Contract errors
const (
	// ErrCodeNotImplemented indicates a stage variant left a required operation unoverridden.
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
	// ErrCodeNotFitted indicates Transform was called before a successful Fit.
	ErrCodeNotFitted ErrorCode = "NOT_FITTED"
)

// Setup errors
const (
	// ErrCodeInvalidConfiguration indicates a malformed ensemble, selection or fold setup.
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	// ErrCodeInvalidInput indicates malformed user input (expressions, data, config values).
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates a named component or column does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Data errors
const (
	// ErrCodeInsufficientData indicates a fold or split produced an empty partition.
	ErrCodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"
	// ErrCodeShapeMismatch indicates row or column counts that disagree.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"
)

// ErrCodeInternal indicates an unexpected failure.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var fatalCodes = map[ErrorCode]bool{
	ErrCodeNotImplemented:       true,
	ErrCodeInvalidConfiguration: true,
	ErrCodeInsufficientData:     true,
	ErrCodeShapeMismatch:        true,
}

// IsFatalCode reports whether the code belongs to the core taxonomy that aborts
// a fit or transform call outright. None of the codes is ever retried.
func IsFatalCode(code ErrorCode) bool {
	return fatalCodes[code]
}
