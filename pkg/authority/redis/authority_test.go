package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/saml-bridge/internal/testutil"
	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// mockCmdable records calls and returns scripted results.
type mockCmdable struct {
	delErr    error
	saddErr   error
	expireErr error
	pingErr   error

	smembers    []string
	smembersErr error

	delKeys     []string
	saddKey     string
	saddMembers []interface{}
	expireKey   string
	expireTTL   time.Duration
	closed      bool
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.delKeys = keys
	return redis.NewIntResult(int64(len(keys)), m.delErr)
}

func (m *mockCmdable) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	m.saddKey = key
	m.saddMembers = members
	return redis.NewIntResult(int64(len(members)), m.saddErr)
}

func (m *mockCmdable) SMembers(_ context.Context, _ string) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(m.smembers, m.smembersErr)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireKey = key
	m.expireTTL = expiration
	return redis.NewBoolResult(m.expireErr == nil, m.expireErr)
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", m.pingErr)
}

func (m *mockCmdable) Close() error {
	m.closed = true
	return nil
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Host = ""
	testutil.AssertErrorCode(t, cfg.Validate(), sberr.CodeValidationRequired)

	cfg = DefaultConfig()
	cfg.Port = 70000
	testutil.AssertErrorCode(t, cfg.Validate(), sberr.CodeValidationRange)

	cfg = DefaultConfig()
	cfg.KeyPrefix = ""
	testutil.AssertErrorCode(t, cfg.Validate(), sberr.CodeValidationRequired)

	cfg = DefaultConfig()
	cfg.RoleTTL = -time.Second
	testutil.AssertErrorCode(t, cfg.Validate(), sberr.CodeValidationRange)

	cfg = &Config{URI: "redis://localhost:6379/0", KeyPrefix: "x:"}
	assert.NoError(t, cfg.Validate(), "URI replaces host and port")
}

// ---------------------------------------------------------------------------
// LoginWithRoles
// ---------------------------------------------------------------------------

func TestLoginWithRoles(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{}
	authority := NewFromClient(mock, nil)

	err := authority.LoginWithRoles(context.Background(), "asmith", []string{"admins", "operators"})
	require.NoError(t, err)

	assert.Equal(t, []string{"saml-bridge:roles:asmith"}, mock.delKeys,
		"the stored set is replaced, not merged")
	assert.Equal(t, "saml-bridge:roles:asmith", mock.saddKey)
	assert.Equal(t, []interface{}{"admins", "operators"}, mock.saddMembers)
	assert.Equal(t, DefaultRoleTTL, mock.expireTTL)
}

func TestLoginWithRoles_EmptyRoleSetClearsKey(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{}
	authority := NewFromClient(mock, nil)

	err := authority.LoginWithRoles(context.Background(), "asmith", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"saml-bridge:roles:asmith"}, mock.delKeys)
	assert.Empty(t, mock.saddKey, "no SADD for an empty role set")
}

func TestLoginWithRoles_ZeroTTLSkipsExpire(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{}
	cfg := DefaultConfig()
	cfg.RoleTTL = 0
	authority := NewFromClient(mock, cfg)

	err := authority.LoginWithRoles(context.Background(), "asmith", []string{"admins"})
	require.NoError(t, err)
	assert.Empty(t, mock.expireKey)
}

func TestLoginWithRoles_ErrorsClassified(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{saddErr: errors.New("LOADING Redis is loading the dataset")}
	authority := NewFromClient(mock, nil)
	err := authority.LoginWithRoles(context.Background(), "asmith", []string{"admins"})
	testutil.RequireErrorCode(t, err, sberr.CodeUnavailableAuthority)
	assert.True(t, sberr.IsRetryable(err))

	mock = &mockCmdable{delErr: context.DeadlineExceeded}
	authority = NewFromClient(mock, nil)
	err = authority.LoginWithRoles(context.Background(), "asmith", []string{"admins"})
	testutil.RequireErrorCode(t, err, sberr.CodeTimeoutAuthority)
}

// ---------------------------------------------------------------------------
// RolesFor / Health / Close
// ---------------------------------------------------------------------------

func TestRolesFor(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{smembers: []string{"admins", "operators"}}
	authority := NewFromClient(mock, nil)

	roleIDs, err := authority.RolesFor(context.Background(), "asmith")
	require.NoError(t, err)
	assert.Equal(t, []string{"admins", "operators"}, roleIDs)
}

func TestRolesFor_Error(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{smembersErr: errors.New("connection refused")}
	authority := NewFromClient(mock, nil)
	_, err := authority.RolesFor(context.Background(), "asmith")
	testutil.RequireErrorCode(t, err, sberr.CodeUnavailableAuthority)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	authority := NewFromClient(&mockCmdable{}, nil)
	assert.NoError(t, authority.Health(context.Background()))

	authority = NewFromClient(&mockCmdable{pingErr: errors.New("down")}, nil)
	testutil.AssertErrorCode(t, authority.Health(context.Background()),
		sberr.CodeUnavailableAuthority)
}

func TestClose(t *testing.T) {
	t.Parallel()

	mock := &mockCmdable{}
	authority := NewFromClient(mock, nil)
	require.NoError(t, authority.Close())
	assert.True(t, mock.closed)
}
