package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeInvalidConfiguration, "vote", "bad setup")
	if err.Code != ErrCodeInvalidConfiguration {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidConfiguration, err.Code)
	}
	if err.Stage != "vote" {
		t.Errorf("expected stage 'vote', got %q", err.Stage)
	}
	if err.Message != "bad setup" {
		t.Errorf("expected message 'bad setup', got %q", err.Message)
	}
}

func TestAppError_ShapeMismatch_Details(t *testing.T) {
	err := ShapeMismatch("union", "child rows", 10, 9)
	if err.Code != ErrCodeShapeMismatch {
		t.Errorf("expected SHAPE_MISMATCH, got %s", err.Code)
	}
	if err.Details["want"] != 10 || err.Details["got"] != 9 {
		t.Errorf("expected want=10 got=9, got %v", err.Details)
	}
	if !strings.Contains(err.Error(), `stage "union"`) {
		t.Errorf("expected stage name in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "child rows mismatch") {
		t.Errorf("expected condition in message, got %q", err.Error())
	}
}

func TestAppError_NotImplemented_Success(t *testing.T) {
	err := NotImplemented("leaf", "transform")
	if err.Code != ErrCodeNotImplemented {
		t.Errorf("expected NOT_IMPLEMENTED, got %s", err.Code)
	}
	if err.Details["operation"] != "transform" {
		t.Errorf("expected operation=transform, got %v", err.Details["operation"])
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("component", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_InvalidInput_Field(t *testing.T) {
	err := InvalidInput("expression", "unexpected token")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", err.Code)
	}
	if err.Details["field"] != "expression" {
		t.Errorf("expected field=expression, got %v", err.Details["field"])
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Internal(nil).WithCause(cause)
	if err.Cause != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should see the cause through Unwrap")
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := InsufficientData("best", "fold 2 is empty").WithDetails(map[string]any{"fold": 2})
	err.WithDetails(map[string]any{"rows": 0})
	if err.Details["fold"] != 2 || err.Details["rows"] != 0 {
		t.Errorf("expected merged details, got %v", err.Details)
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFitted("knn", "transform"))
	if !HasCode(wrapped, ErrCodeNotFitted) {
		t.Error("expected HasCode to see through wrapping")
	}
	if HasCode(wrapped, ErrCodeShapeMismatch) {
		t.Error("expected HasCode to reject a different code")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("expected HasCode false for non-AppError")
	}
}

func TestIsFatalCode(t *testing.T) {
	tests := []struct {
		code  ErrorCode
		fatal bool
	}{
		{ErrCodeNotImplemented, true},
		{ErrCodeInvalidConfiguration, true},
		{ErrCodeInsufficientData, true},
		{ErrCodeShapeMismatch, true},
		{ErrCodeInvalidInput, false},
		{ErrCodeNotFound, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			if got := IsFatalCode(tc.code); got != tc.fatal {
				t.Errorf("IsFatalCode(%s) = %v, want %v", tc.code, got, tc.fatal)
			}
		})
	}
}

func TestResponseFor(t *testing.T) {
	resp := ResponseFor(ShapeMismatch("chain", "rows", 3, 2))
	if resp.Error.Code != ErrCodeShapeMismatch || resp.Error.Stage != "chain" {
		t.Errorf("unexpected response %+v", resp)
	}

	resp = ResponseFor(fmt.Errorf("boom"))
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR for plain errors, got %s", resp.Error.Code)
	}
}
