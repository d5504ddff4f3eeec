// Package errors provides standardized error handling for devicelink components.
// It includes error classification, the domain error taxonomy, standard error
// variables, and helper functions for consistent error wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Category is the domain taxonomy of the telemetry client. Every category is
// handled inside the client and only surfaces as state transitions, logs and
// metrics.
type Category int

const (
	// CategoryNone is used for nil and unrelated errors
	CategoryNone Category = iota
	// CategoryCredential covers malformed, undecodable, expired or missing credentials
	CategoryCredential
	// CategoryTransport covers open failures, timeouts and mid-stream errors
	CategoryTransport
	// CategoryParse covers frames that cannot be classified
	CategoryParse
	// CategoryReconciliationSkip covers valid events that cannot be applied
	CategoryReconciliationSkip
)

// String returns the metric/log label for the category
func (c Category) String() string {
	switch c {
	case CategoryCredential:
		return "credential"
	case CategoryTransport:
		return "transport"
	case CategoryParse:
		return "parse"
	case CategoryReconciliationSkip:
		return "reconciliation_skip"
	default:
		return "none"
	}
}

// Standard error variables
var (
	// Credential errors
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenDecode    = errors.New("token claims not decodable")
	ErrTokenExpired   = errors.New("token expired")
	ErrNoIdentity     = errors.New("no session identity")

	// Connection and transport errors
	ErrNotConnected      = errors.New("connection not open")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrDialFailed        = errors.New("dial failed")

	// Data processing errors
	ErrParsingFailed = errors.New("parsing failed")
	ErrInvalidData   = errors.New("invalid data format")

	// Reconciliation errors
	ErrUnknownDevice = errors.New("unknown device")
	ErrFieldRejected = errors.New("field not valid for device type")
	ErrUnknownStatus = errors.New("unknown device status")

	// Command errors
	ErrNotPermitted = errors.New("operation not permitted")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrDialFailed) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrParsingFailed) ||
		IsCredential(err) ||
		errors.Is(err, ErrUnknownDevice) ||
		errors.Is(err, ErrFieldRejected) ||
		errors.Is(err, ErrUnknownStatus)
}

// IsCredential reports whether err blocks a connection attempt because of the
// bearer credential or the identity that carries it.
func IsCredential(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrTokenDecode) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNoIdentity)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Unknown errors default to transient so the reconnect path can recover
	return ErrorTransient
}

// CategoryOf maps an error onto the domain taxonomy
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case IsCredential(err):
		return CategoryCredential
	case errors.Is(err, ErrParsingFailed), errors.Is(err, ErrInvalidData):
		return CategoryParse
	case errors.Is(err, ErrUnknownDevice), errors.Is(err, ErrFieldRejected), errors.Is(err, ErrUnknownStatus):
		return CategoryReconciliationSkip
	case errors.Is(err, ErrConnectionTimeout), errors.Is(err, ErrConnectionLost),
		errors.Is(err, ErrDialFailed), errors.Is(err, ErrNotConnected):
		return CategoryTransport
	default:
		return CategoryNone
	}
}

// newClassified creates a new classified error.
// Use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
