// Package authz decides whether a resolved role set satisfies the bridge's
// required-role configuration.
//
// The decision is an explicit value rather than an error: denial is a
// normal, expected outcome of the login pipeline, and the caller chooses
// how to surface it. Use [Decision.Err] to convert a denial into the typed
// rejection the protocol layer expects.
package authz

import (
	"github.com/StricklySoft/saml-bridge/pkg/roles"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// Decision is the outcome of a required-role check.
type Decision struct {
	// Admitted reports whether the subject may proceed.
	Admitted bool

	// Subject is the external identifier the decision was made for.
	// Carried for diagnostic surfacing; never exposed to end users.
	Subject string

	// Required is the configured required-role list the subject was
	// checked against. Empty when no roles are required.
	Required []string
}

// Authorize checks a candidate role set against the required-role
// configuration.
//
// An empty required list always admits. Otherwise the subject is admitted
// iff it holds at least one of the required roles (ANY semantics, not
// ALL). Required-role names are case-normalized before comparison, so
// configuration may use any casing.
func Authorize(subject string, candidate roles.Set, required []string) Decision {
	d := Decision{Subject: subject, Required: required}
	if len(required) == 0 {
		d.Admitted = true
		return d
	}
	d.Admitted = candidate.ContainsAny(required)
	return d
}

// Err converts a denial into a typed authentication rejection, or nil for
// an admission.
//
// The returned error carries a deliberately generic message; the subject
// and required-role list travel in the error details for logging only, so
// valid-role lists never leak to the party that failed the check.
func (d Decision) Err() error {
	if d.Admitted {
		return nil
	}
	return sberr.New(sberr.CodeAuthenticationRejected, "authentication failed").
		WithDetail("subject", d.Subject).
		WithDetail("required_roles", d.Required)
}
