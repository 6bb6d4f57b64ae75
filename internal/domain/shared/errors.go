// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrInternal           = errors.New("internal error")
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
	ErrQuotaExhausted     = errors.New("quota exhausted")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "quest", "profile", "checkin"
	Op      string // Operation that failed, e.g., "Complete", "Update"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Quest domain errors
var (
	ErrQuestNotFound       = NewDomainError("quest", "Find", ErrNotFound, "quest not found in catalog")
	ErrQuestRecordNotFound = NewDomainError("quest", "FindRecord", ErrNotFound, "quest record not found")
	ErrQuestLocked         = NewDomainError("quest", "Begin", ErrInvalidState, "quest phase not yet reached")
	ErrQuestAlreadyBegun   = NewDomainError("quest", "Begin", ErrAlreadyExists, "quest already in progress")
	ErrQuestCompleted      = NewDomainError("quest", "Begin", ErrStateTransition, "quest already completed")
	ErrInvalidQuestKey     = NewDomainError("quest", "Validate", ErrInvalidID, "invalid quest key")
	ErrInvalidQuestStatus  = NewDomainError("quest", "Validate", ErrInvalidInput, "invalid quest status")
	ErrInvalidPhase        = NewDomainError("quest", "Validate", ErrValueOutOfRange, "phase must be between 1 and 4")
)

// Profile domain errors
var (
	ErrProfileNotFound      = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrProfileAlreadyExists = NewDomainError("profile", "Create", ErrAlreadyExists, "profile already exists")
	ErrEmailTaken           = NewDomainError("profile", "Create", ErrAlreadyExists, "email already registered")
	ErrInvalidEmail         = NewDomainError("profile", "Validate", ErrInvalidFormat, "invalid email address")
	ErrInvalidCredentials   = NewDomainError("profile", "Authenticate", ErrUnauthorized, "invalid email or password")
	ErrSessionExpired       = NewDomainError("profile", "Authenticate", ErrExpired, "session expired")
	ErrInvalidFlame         = NewDomainError("profile", "Validate", ErrValueOutOfRange, "flame strength must be between 0 and 100")
	ErrPhaseRegression      = NewDomainError("profile", "Advance", ErrStateTransition, "phoenix phase cannot decrease")
)

// Check-in domain errors
var (
	ErrCheckInNotFound = NewDomainError("checkin", "Find", ErrNotFound, "check-in not found")
	ErrInvalidMood     = NewDomainError("checkin", "Validate", ErrValueOutOfRange, "mood must be between 1 and 5")
	ErrInvalidEnergy   = NewDomainError("checkin", "Validate", ErrValueOutOfRange, "energy must be between 1 and 5")
	ErrInvalidPain     = NewDomainError("checkin", "Validate", ErrValueOutOfRange, "pain level must be between 0 and 10")
)

// Recommendation domain errors
var (
	ErrRecommendationNotFound = NewDomainError("recommendation", "Find", ErrNotFound, "recommendation not found")
	ErrInvalidModule          = NewDomainError("recommendation", "Validate", ErrInvalidInput, "invalid recovery module")
)

// External service errors
var (
	ErrGeminiUnavailable     = NewDomainError("gemini", "Request", ErrServiceUnavailable, "Gemini API is unavailable")
	ErrGeminiRateLimited     = NewDomainError("gemini", "Request", ErrRateLimited, "Gemini API rate limit exceeded")
	ErrGeminiQuotaExhausted  = NewDomainError("gemini", "Request", ErrQuotaExhausted, "Gemini API quota exhausted")
	ErrGeminiTimeout         = NewDomainError("gemini", "Request", ErrTimeout, "Gemini API request timeout")
	ErrGeminiInvalidResponse = NewDomainError("gemini", "Parse", ErrInvalidFormat, "invalid response from Gemini API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsUnauthorized checks if the error is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrExpired)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrQuotaExhausted)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
