package utils

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate

	namePattern     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_. ]{0,127}$`)
	toolNamePattern = regexp.MustCompile(`^(\*|[a-zA-Z][a-zA-Z0-9_]{0,63})$`)
)

// MaxTokenLimit bounds configurable token limits (100M tokens)
const MaxTokenLimit int64 = 100_000_000

func init() {
	validate = validator.New()
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		fields[err.Field()] = fmt.Sprintf("failed validation: %s", err.Tag())
	}
	return &ValidationError{
		Message: "request validation failed",
		Fields:  fields,
	}
}

// ValidateName checks a human-readable name (org name, agent name):
// 1-128 chars, starts alphanumeric, limited punctuation.
func ValidateName(name, field string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s must be 1-128 chars, start with an alphanumeric, and contain only alphanumerics, hyphens, underscores, dots, or spaces", field)
	}
	return nil
}

// ValidateToolName checks a tool name: alphanumerics and underscores
// starting with a letter, or the wildcard "*".
func ValidateToolName(name, field string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("%s must be 1-64 chars, start with a letter, and contain only alphanumerics or underscores (or '*' for wildcard)", field)
	}
	return nil
}

// ValidateTokenLimit checks a token limit is positive and within bounds
func ValidateTokenLimit(limit int64, field string) error {
	if limit <= 0 {
		return fmt.Errorf("%s must be a positive integer", field)
	}
	if limit > MaxTokenLimit {
		return fmt.Errorf("%s cannot exceed %d", field, MaxTokenLimit)
	}
	return nil
}
