// Package errors provides custom error types for the stationsync system.
// These errors enable programmatic error checking across the acquisition
// pipeline: callers can distinguish "providers answered but nothing
// qualified" from "no provider answered" and react accordingly.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the stationsync system
var (
	// ErrAllProvidersUnreachable indicates that every provider in the fetch
	// cycle failed to respond. The caller must rely on the local store or abort.
	ErrAllProvidersUnreachable = errors.New("all providers unreachable")

	// ErrNoData indicates that neither the network path nor the local store
	// could satisfy the request.
	ErrNoData = errors.New("no data available")

	// ErrNoMatchingChannels indicates that providers answered but the
	// configured filters left zero channels.
	ErrNoMatchingChannels = errors.New("no channel matches the configured filters")

	// ErrProviderUnreachable indicates a single provider failed to respond
	ErrProviderUnreachable = errors.New("provider unreachable")

	// ErrMalformedResponse indicates a provider response that could not be decoded
	ErrMalformedResponse = errors.New("malformed response")

	// ErrPersistence indicates a relational-store failure
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// ProviderError represents a failed request against a single provider.
type ProviderError struct {
	Provider   string // Provider ID as string
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s at %s returned status %d: %s", e.Provider, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s at %s unreachable: %s", e.Provider, e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnreachable
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, endpoint string, statusCode int, err error) *ProviderError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ProviderError{
		Provider:   provider,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// MalformedResponseError represents provider response text that does not
// follow the pipe-delimited protocol. The provider's data is discarded for
// the current fetch cycle, not retried.
type MalformedResponseError struct {
	Provider string
	Line     int
	Message  string
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed response from %s at line %d: %s", e.Provider, e.Line, e.Message)
	}
	return fmt.Sprintf("malformed response from %s: %s", e.Provider, e.Message)
}

// Is implements errors.Is support
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// PersistenceError represents a relational-store failure (constraint
// violation, connection loss, ...). Callers may choose to treat it as fatal.
type PersistenceError struct {
	Operation string // "upsert", "query", "migrate"
	Table     string
	Err       error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("persistence error during %s of %s: %v", e.Operation, e.Table, e.Err)
	}
	return fmt.Sprintf("persistence error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// WrapPersistence wraps an error as a PersistenceError
func WrapPersistence(operation, table string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Operation: operation, Table: table, Err: err}
}

// ParseError represents an error when parsing configuration or data files
type ParseError struct {
	Format  string // "yaml", "text"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}

// Helper functions for error checking

// IsNoData checks if an error means neither network nor store had data
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsNoMatchingChannels checks if an error means filters were too strict
func IsNoMatchingChannels(err error) bool {
	return errors.Is(err, ErrNoMatchingChannels)
}

// IsAllProvidersUnreachable checks if an error means every provider failed
func IsAllProvidersUnreachable(err error) bool {
	return errors.Is(err, ErrAllProvidersUnreachable)
}

// IsMalformedResponse checks if an error is a protocol decoding failure
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// IsPersistence checks if an error originates in the relational store
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
