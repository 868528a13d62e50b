// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrAnalystNotConfigured = errors.New("analyst credential not configured")
	ErrAnalystUnavailable   = errors.New("analyst unavailable")
	ErrEmptyResponse        = errors.New("empty analyst response")
	ErrNoImages             = errors.New("no chart images provided")
	ErrTooManyImages        = errors.New("too many chart images")
	ErrJournalDisabled      = errors.New("signal journal disabled")
	ErrSignalNotFound       = errors.New("signal not found")
	ErrSessionBlocked       = errors.New("session blocked: daily loss limit reached")
	ErrDriverStopped        = errors.New("driver stopped")
)

// AnalystError represents a failed call to the AI analyst.
type AnalystError struct {
	Kind      string // insight, charts
	Operation string
	Err       error
}

func (e *AnalystError) Error() string {
	return fmt.Sprintf("analyst error [%s] %s: %v", e.Kind, e.Operation, e.Err)
}

func (e *AnalystError) Unwrap() error {
	return e.Err
}

// NewAnalystError creates a new AnalystError.
func NewAnalystError(kind, operation string, err error) *AnalystError {
	return &AnalystError{
		Kind:      kind,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// RiskError represents a risk management violation. It matches
// ErrSessionBlocked.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

func (e *RiskError) Unwrap() error {
	return ErrSessionBlocked
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// StoreError represents a journal persistence error.
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s]: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
