package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypePolicyDenied  ErrorType = "policy_denied"
	ErrorTypeBudget        ErrorType = "budget_exceeded"
	ErrorTypeToolNotFound  ErrorType = "tool_not_found"
	ErrorTypeToolExecution ErrorType = "tool_execution"
	ErrorTypeCapacity      ErrorType = "capacity_exceeded"
	ErrorTypeInternal      ErrorType = "internal"
	ErrorTypeExternal      ErrorType = "external"
)

// DomainError represents a structured error with additional context.
// Policy and budget denials carried as DomainError are successful
// evaluations whose answer is "no"; callers must distinguish them from
// operational failures via the Type.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrOrganizationNotFound = NewDomainError(ErrorTypeNotFound, "organization not found", nil)
	ErrAgentNotFound        = NewDomainError(ErrorTypeNotFound, "agent not found or inactive", nil)
	ErrPolicyNotFound       = NewDomainError(ErrorTypeNotFound, "no policy configured", nil)
	ErrBudgetNotFound       = NewDomainError(ErrorTypeNotFound, "budget not found", nil)
	ErrTokenNotFound        = NewDomainError(ErrorTypeNotFound, "token not found, expired, or revoked", nil)

	// Validation Errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrNegativeTokens    = NewDomainError(ErrorTypeValidation, "tokens used must not be negative", nil)
	ErrInvalidToolName   = NewDomainError(ErrorTypeValidation, "invalid tool name", nil)
	ErrInvalidName       = NewDomainError(ErrorTypeValidation, "invalid name", nil)
	ErrInvalidTokenLimit = NewDomainError(ErrorTypeValidation, "invalid token limit", nil)
	ErrInvalidParameters = NewDomainError(ErrorTypeValidation, "tool call parameters failed validation", nil)

	// Authorization Errors
	ErrUnauthorized  = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidAPIKey = NewDomainError(ErrorTypeUnauthorized, "invalid API key", nil)

	// Governance denials (correct "no" answers, not failures)
	ErrPolicyDenied   = NewDomainError(ErrorTypePolicyDenied, "action denied by policy", nil)
	ErrBudgetExceeded = NewDomainError(ErrorTypeBudget, "token budget exceeded", nil)

	// Tool Errors
	ErrToolNotFound        = NewDomainError(ErrorTypeToolNotFound, "tool not registered", nil)
	ErrToolExecutionFailed = NewDomainError(ErrorTypeToolExecution, "tool execution failed", nil)
	ErrAddressBlocked      = NewDomainError(ErrorTypeToolExecution, "outbound address blocked", nil)

	// Capacity Errors
	ErrTokenCapacity = NewDomainError(ErrorTypeCapacity, "token store at capacity", nil)

	// Internal Errors
	ErrInternal   = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrStoreError = NewDomainError(ErrorTypeInternal, "store operation failed", nil)

	// External Collaborator Errors
	ErrLLMUnavailable       = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)
	ErrEvaluatorUnavailable = NewDomainError(ErrorTypeExternal, "external policy evaluator unavailable", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsPolicyDeniedError checks if an error is a policy denial
func IsPolicyDeniedError(err error) bool {
	return GetErrorType(err) == ErrorTypePolicyDenied
}

// IsBudgetError checks if an error is a budget denial
func IsBudgetError(err error) bool {
	return GetErrorType(err) == ErrorTypeBudget
}

// IsToolNotFoundError checks if an error is a missing-tool error
func IsToolNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeToolNotFound
}

// IsToolExecutionError checks if an error is a contained tool failure
func IsToolExecutionError(err error) bool {
	return GetErrorType(err) == ErrorTypeToolExecution
}

// IsCapacityError checks if an error is a capacity error
func IsCapacityError(err error) bool {
	return GetErrorType(err) == ErrorTypeCapacity
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// IsExternalError checks if an error is an external collaborator error
func IsExternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeExternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external collaborator error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return NewDomainError(ErrorTypeValidation, message, err)
}
