package principal

import (
	"context"

	"github.com/StricklySoft/saml-bridge/pkg/assertion"
	"github.com/StricklySoft/saml-bridge/pkg/config"
	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
)

// Build assembles the final Principal from extracted attributes, the
// normalized role set, and the allowed-resource scope.
//
// The username is the first value of the mapped username attribute when
// present, otherwise the subject identifier. First and last name come
// from their mapped attributes or stay empty. Build itself is pure
// assembly; the only failure it can surface is the resource resolver's.
func Build(ctx context.Context, subjectID string, attrs assertion.Attributes, mapping config.Mapping, roleSet roles.Set, resolver ResourceResolver) (*Principal, error) {
	username := attrs.First(mapping.Username)
	if username == "" {
		username = subjectID
	}

	allowed, err := resolveAllowed(ctx, resolver, username, roleSet)
	if err != nil {
		return nil, err
	}

	return New(
		subjectID,
		username,
		attrs.First(mapping.FirstName),
		attrs.First(mapping.LastName),
		roleSet,
		allowed,
	)
}

// resolveAllowed queries the resource resolver, tolerating a nil
// resolver (no resource scoping configured) by returning an empty scope.
func resolveAllowed(ctx context.Context, resolver ResourceResolver, username string, roleSet roles.Set) ([]string, error) {
	if resolver == nil {
		return nil, nil
	}
	allowed, err := resolver.FilterAllowedAccounts(ctx, username, roleSet.Values())
	if err != nil {
		return nil, sberr.Wrap(err, sberr.CodeInternal,
			"principal: allowed-resources lookup failed")
	}
	return allowed, nil
}
