// Package errors provides standardized error handling patterns for devicelink components.
//
// # Overview
//
// Two orthogonal views are offered over the same error values.
//
// The three-class ErrorClass (Transient, Invalid, Fatal) drives handling
// decisions: transient errors are recovered by the reconnection path, invalid
// errors are dropped or rejected, fatal errors stop the process (configuration
// only).
//
// The domain Category (credential, transport, parse, reconciliation_skip) labels
// where the failure happened. It is used for metrics and logs:
//
//	switch errors.CategoryOf(err) {
//	case errors.CategoryCredential:
//	    // stay disconnected until a new token appears
//	case errors.CategoryTransport:
//	    // schedule a reconnect
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Manager", "Connect", "dial stream")
//	errors.WrapInvalid(err, "Guard", "Validate", "decode claims")
//	errors.WrapFatal(err, "Loader", "Load", "read config")
//
// Sentinels survive wrapping, so errors.Is(err, errors.ErrTokenExpired) keeps
// working on the wrapped value.
package errors
