package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL) and XXX is a three-digit numeric code.
//
// Codes are stable once assigned and suitable for alerting rules and
// client-side error handling.
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when configuration or input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationRange indicates a value is outside its acceptable range.
	CodeValidationRange Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when a login resolution fails. The protocol layer surfaces
	// these as a generic authentication failure; the specific reason
	// stays in logs and error details.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeAuthenticationRejected indicates the presented credentials were
	// evaluated and rejected (e.g., the subject lacks every required role).
	CodeAuthenticationRejected Code = "AUTH_002"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when an authenticated subject lacks required roles.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationMissingRole indicates the subject holds none of the
	// configured required roles.
	CodeAuthorizationMissingRole Code = "AUTHZ_002"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected failures inside the bridge.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_002"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when an external dependency cannot be reached.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableAuthority indicates the permission authority could not
	// be reached after exhausting the retry policy.
	CodeUnavailableAuthority Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutAuthority indicates a call to the permission authority
	// timed out.
	CodeTimeoutAuthority Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
