package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
)

func TestAuthorize_NoRequiredRolesAlwaysAdmits(t *testing.T) {
	t.Parallel()
	d := Authorize("alice@example.com", roles.NewSet(), nil)

	assert.True(t, d.Admitted)
	assert.NoError(t, d.Err())
}

func TestAuthorize_AnyRequiredRoleSuffices(t *testing.T) {
	t.Parallel()
	d := Authorize("alice@example.com", roles.NewSet("b"), []string{"a", "b"})

	assert.True(t, d.Admitted, "holding one of several required roles admits")
}

func TestAuthorize_NoOverlapDenies(t *testing.T) {
	t.Parallel()
	d := Authorize("alice@example.com", roles.NewSet("c"), []string{"a", "b"})

	assert.False(t, d.Admitted)
	require.Error(t, d.Err())
}

func TestAuthorize_RequiredRolesCaseNormalized(t *testing.T) {
	t.Parallel()
	d := Authorize("alice@example.com", roles.NewSet("engineers"), []string{"Engineers"})

	assert.True(t, d.Admitted)
}

func TestDecision_Err_CarriesDiagnosticsNotMessage(t *testing.T) {
	t.Parallel()
	required := []string{"admins", "operators"}
	d := Authorize("alice@example.com", roles.NewSet("viewer"), required)

	err := d.Err()
	require.Error(t, err)

	e, ok := sberr.AsError(err)
	require.True(t, ok)
	assert.Equal(t, sberr.CodeAuthenticationRejected, e.Code)
	assert.Equal(t, "authentication failed", e.Message,
		"external message must not reveal why the login was rejected")
	assert.Equal(t, "alice@example.com", e.Details["subject"])
	assert.Equal(t, required, e.Details["required_roles"])
}
