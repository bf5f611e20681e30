// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrInvalidRange     = errors.New("start date is after end date")
	ErrNotConnected     = errors.New("ticker not connected")
	ErrConnectTimeout   = errors.New("timed out waiting for connect acknowledgement")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDataNotFound     = errors.New("data not found")
	ErrDatabaseError    = errors.New("database error")
)

// InvalidDateError reports calendar input that could not be parsed or is
// outside the sanity window. It is fatal to the single computation only;
// callers zero-fill and log rather than abort a batch.
type InvalidDateError struct {
	Input  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// NewInvalidDateError creates a new InvalidDateError.
func NewInvalidDateError(input, reason string) *InvalidDateError {
	return &InvalidDateError{Input: input, Reason: reason}
}

// ConnectivityError reports an unreachable or timed-out endpoint. The
// subscription-initiation path retries these with backoff; they are
// surfaced to the user as retryable failures, never as a crash.
type ConnectivityError struct {
	Endpoint string
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connectivity error [%s]: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("connectivity error [%s]", e.Endpoint)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// NewConnectivityError creates a new ConnectivityError.
func NewConnectivityError(endpoint string, err error) *ConnectivityError {
	return &ConnectivityError{Endpoint: endpoint, Err: err}
}

// BrokerError represents an error response from the Shoonya API
// (stat: Not_Ok with an emsg).
type BrokerError struct {
	Endpoint string
	Message  string
	Err      error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s]: %s: %v", e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %s", e.Endpoint, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(endpoint, message string, err error) *BrokerError {
	return &BrokerError{Endpoint: endpoint, Message: message, Err: err}
}

// DataError represents a data-related error during seeding or lookup.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{DataType: dataType, Symbol: symbol, Message: message, Err: err}
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
