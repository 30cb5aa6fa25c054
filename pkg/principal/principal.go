// Package principal defines the bridge's internal representation of an
// authenticated user and assembles it from extracted assertion
// attributes, a normalized role set, and the allowed-resource scope.
package principal

import (
	"context"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
)

// Principal is the resolved internal identity of an authenticated user:
// a stable subject identifier, the internal username, optional display
// names, the canonical role set, and the accounts the role set entitles
// the user to access.
//
// A Principal is constructed once per successful login resolution and is
// immutable afterwards; every accessor that exposes a collection returns
// a defensive copy. The bridge does not persist principals: the session
// layer owns them from here.
type Principal struct {
	subjectID        string
	username         string
	firstName        string
	lastName         string
	roleSet          roles.Set
	allowedResources []string
}

// New creates an immutable Principal. The subject identifier and
// username are required; first and last name may be empty. The role set
// and resource list are defensively copied.
func New(subjectID, username, firstName, lastName string, roleSet roles.Set, allowedResources []string) (*Principal, error) {
	if subjectID == "" {
		return nil, sberr.New(sberr.CodeValidationRequired,
			"principal: subject identifier must not be empty")
	}
	if username == "" {
		return nil, sberr.New(sberr.CodeValidationRequired,
			"principal: username must not be empty")
	}

	copiedRoles := make(roles.Set, len(roleSet))
	for id := range roleSet {
		copiedRoles.Add(id)
	}
	copiedResources := make([]string, len(allowedResources))
	copy(copiedResources, allowedResources)

	return &Principal{
		subjectID:        subjectID,
		username:         username,
		firstName:        firstName,
		lastName:         lastName,
		roleSet:          copiedRoles,
		allowedResources: copiedResources,
	}, nil
}

// SubjectID returns the stable external identifier of the user
// (typically an email address).
func (p *Principal) SubjectID() string { return p.subjectID }

// Username returns the internal username.
func (p *Principal) Username() string { return p.username }

// FirstName returns the user's given name, or "" if the assertion did
// not carry one.
func (p *Principal) FirstName() string { return p.firstName }

// LastName returns the user's family name, or "" if the assertion did
// not carry one.
func (p *Principal) LastName() string { return p.lastName }

// HasRole reports whether the principal holds the given canonical role
// identifier.
func (p *Principal) HasRole(id string) bool {
	return p.roleSet.Has(id)
}

// Roles returns a copy of the principal's role set.
func (p *Principal) Roles() roles.Set {
	copied := make(roles.Set, len(p.roleSet))
	for id := range p.roleSet {
		copied.Add(id)
	}
	return copied
}

// AllowedResources returns a copy of the resources the principal may
// access.
func (p *Principal) AllowedResources() []string {
	copied := make([]string, len(p.allowedResources))
	copy(copied, p.allowedResources)
	return copied
}

// CanAccess reports whether the named resource is within the
// principal's allowed scope.
func (p *Principal) CanAccess(resource string) bool {
	for _, r := range p.allowedResources {
		if r == resource {
			return true
		}
	}
	return false
}

// ResourceResolver is the external collaborator that computes the subset
// of protected resources a user's role set entitles them to access.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ResourceResolver interface {
	// FilterAllowedAccounts returns the accounts visible to the user,
	// given their username and canonical role identifiers.
	FilterAllowedAccounts(ctx context.Context, username string, roleIDs []string) ([]string, error)
}
