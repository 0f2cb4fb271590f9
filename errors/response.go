package errors

// ErrorResponse is the JSON structure printed by the CLI for failures.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Stage   string         `json:"stage,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    e.Code,
			Message: e.Message,
			Stage:   e.Stage,
			Details: e.Details,
		},
	}
}

// ResponseFor converts any error into an ErrorResponse. Non-AppErrors are
// reported as INTERNAL_ERROR.
func ResponseFor(err error) ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return appErr.ToResponse()
	}
	return Internal(err).ToResponse()
}
