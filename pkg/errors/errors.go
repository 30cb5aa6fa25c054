// Package errors provides the structured error types used throughout the
// SAML bridge. It defines machine-readable error codes, constructors for
// creating and wrapping errors, and predicates for inspecting them.
//
// # Error Categories
//
// Codes are grouped into categories that map to the bridge's failure modes:
//
//   - Validation errors: invalid configuration or malformed input
//   - Authentication errors: a login resolution was rejected
//   - Authorization errors: the required-role check failed
//   - Internal errors: unexpected failures inside the bridge
//   - Unavailable errors: the permission authority cannot be reached
//   - Timeout errors: an operation exceeded its time limit
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeValidationRequired, "role delimiter must not be empty")
//
// Wrap an authority failure:
//
//	err := errors.Wrap(err, errors.CodeUnavailableAuthority, "permsync: authority login failed")
//
// Decide whether to retry:
//
//	if errors.IsRetryable(err) {
//	    // back off and try again
//	}
//
// Extract structured fields for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Warn("login rejected", "code", e.Code, "message", e.Message)
//	}
package errors
