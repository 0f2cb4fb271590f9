package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/mlkit/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by the key users write in config files and registry params.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"mapstructure", "yaml", "json"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return toSnakeCase(fld.Name)
		})
	})
	return validate
}

// Validate validates a struct using struct tags such as
// `validate:"required,gte=1"`. Failures are INVALID_INPUT errors whose
// details list every offending field.
func Validate(s any) error {
	fields, msg := check(s)
	if fields == nil {
		return nil
	}
	appErr := errors.Validation(msg)
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}

// StageConfig validates the configuration of a stage. Failures are
// INVALID_CONFIGURATION errors attributed to the stage.
func StageConfig(stage string, s any) error {
	fields, msg := check(s)
	if fields == nil {
		return nil
	}
	return errors.InvalidConfiguration(stage, msg).WithDetail("fields", fields)
}

func check(s any) ([]FieldError, string) {
	err := getValidator().Struct(s)
	if err == nil {
		return nil, ""
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{}, "validation failed: " + err.Error()
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		message := formatValidationError(e)
		fieldErrors = append(fieldErrors, FieldError{Field: e.Field(), Message: message})
		messages = append(messages, e.Field()+": "+message)
	}
	return fieldErrors, strings.Join(messages, "; ")
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	numeric := false
	switch e.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}

	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "min", "gte":
		if numeric {
			return "must be at least " + e.Param()
		}
		return "must have at least " + e.Param() + " elements"
	case "max", "lte":
		if numeric {
			return "must be at most " + e.Param()
		}
		return "must have at most " + e.Param() + " elements"
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be a host:port address"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}

// toSnakeCase converts a field name to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r + 32) // lowercase
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
