package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/saml-bridge/internal/testutil"
	"github.com/StricklySoft/saml-bridge/pkg/assertion"
	"github.com/StricklySoft/saml-bridge/pkg/config"
	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/permsync"
	"github.com/StricklySoft/saml-bridge/pkg/telemetry"
)

// scriptedAuthority fails its first `fails` calls, then succeeds.
type scriptedAuthority struct {
	mu    sync.Mutex
	fails int

	calls       int
	gotUsername string
	gotRoleIDs  []string
}

func (a *scriptedAuthority) LoginWithRoles(_ context.Context, username string, roleIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.gotUsername = username
	a.gotRoleIDs = roleIDs
	if a.calls <= a.fails {
		return errors.New("authority down")
	}
	return nil
}

// fixedResources returns the same account list for every lookup.
type fixedResources struct {
	accounts []string
	err      error
}

func (r fixedResources) FilterAllowedAccounts(context.Context, string, []string) ([]string, error) {
	return r.accounts, r.err
}

// testConfig returns a configuration with a fast retry policy suitable
// for unit tests.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Retry = permsync.Policy{MaxAttempts: 2, Backoff: time.Millisecond}
	return cfg
}

// newTestRecorder wires a Recorder to a manual reader so tests can
// assert on the exact data points emitted.
func newTestRecorder(t *testing.T) (*telemetry.Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder, err := telemetry.NewRecorder(telemetry.WithMeterProvider(provider))
	require.NoError(t, err)
	return recorder, reader
}

// loginPoints collects the data points of the login-attempts counter.
func loginPoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "saml_bridge.login.attempts" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected Sum[int64], got %T", m.Data)
			return sum.DataPoints
		}
	}
	return nil
}

// requireOnePoint asserts exactly one data point with value 1 and the
// given success/fallback tags was recorded.
func requireOnePoint(t *testing.T, reader *sdkmetric.ManualReader, success, fallback bool) {
	t.Helper()
	points := loginPoints(t, reader)
	require.Len(t, points, 1, "expected exactly one outcome series")
	assert.Equal(t, int64(1), points[0].Value)

	wantSuccess, ok := points[0].Attributes.Value(attribute.Key("success"))
	require.True(t, ok)
	assert.Equal(t, success, wantSuccess.AsBool())
	wantFallback, ok := points[0].Attributes.Value(attribute.Key("fallback"))
	require.True(t, ok)
	assert.Equal(t, fallback, wantFallback.AsBool())
}

func validAssertion() *assertion.Assertion {
	return &assertion.Assertion{
		Subject: "alice@example.com",
		Statements: []assertion.Statement{
			{Name: "firstName", Values: []assertion.Value{assertion.String("Alice")}},
			{Name: "lastName", Values: []assertion.Value{assertion.String("Smith")}},
			{Name: "username", Values: []assertion.Value{assertion.String("asmith")}},
			{Name: "roles", Values: []assertion.Value{
				assertion.String("CN=Admins,OU=Groups,DC=example,DC=com;Operators"),
			}},
		},
	}
}

// ---------------------------------------------------------------------------
// NewResolver
// ---------------------------------------------------------------------------

func TestNewResolver_InvalidConfigRejected(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Mapping.RoleDelimiter = ""
	_, err := NewResolver(cfg, &scriptedAuthority{})
	testutil.RequireErrorCode(t, err, sberr.CodeValidationRequired)
}

func TestNewResolver_NilAuthorityRejected(t *testing.T) {
	t.Parallel()
	_, err := NewResolver(testConfig(), nil)
	testutil.RequireErrorCode(t, err, sberr.CodeValidationRequired)
}

// ---------------------------------------------------------------------------
// Resolve: admitted paths
// ---------------------------------------------------------------------------

func TestResolve(t *testing.T) {
	t.Parallel()

	authority := &scriptedAuthority{}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), authority,
		WithRecorder(recorder),
		WithResourceResolver(fixedResources{accounts: []string{"acct-1", "acct-2"}}),
	)
	require.NoError(t, err)

	p, err := resolver.Resolve(context.Background(), validAssertion())
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", p.SubjectID())
	assert.Equal(t, "asmith", p.Username())
	assert.Equal(t, "Alice", p.FirstName())
	assert.Equal(t, "Smith", p.LastName())
	assert.True(t, p.HasRole("admins"), "DN token normalized to its CN")
	assert.True(t, p.HasRole("operators"))
	assert.Equal(t, []string{"acct-1", "acct-2"}, p.AllowedResources())

	assert.Equal(t, "asmith", authority.gotUsername)
	assert.Equal(t, []string{"admins", "operators"}, authority.gotRoleIDs)
	requireOnePoint(t, reader, true, false)
}

func TestResolve_RequiredRoleAdmits(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RequiredRoles = []string{"Admins"}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(cfg, &scriptedAuthority{}, WithRecorder(recorder))
	require.NoError(t, err)

	p, err := resolver.Resolve(context.Background(), validAssertion())
	require.NoError(t, err)
	assert.True(t, p.HasRole("admins"))
	requireOnePoint(t, reader, true, false)
}

func TestResolve_SyncRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	authority := &scriptedAuthority{fails: 1}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), authority, WithRecorder(recorder))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), validAssertion())
	require.NoError(t, err)
	assert.Equal(t, 2, authority.calls)
	requireOnePoint(t, reader, true, false)
}

func TestResolve_FallbackAdmitsDegraded(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LegacyFallback = true
	authority := &scriptedAuthority{fails: 10}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(cfg, authority, WithRecorder(recorder))
	require.NoError(t, err)

	p, err := resolver.Resolve(context.Background(), validAssertion())
	require.NoError(t, err, "fallback turns exhaustion into an admitted login")
	assert.Equal(t, "asmith", p.Username())
	assert.Equal(t, 2, authority.calls, "policy bounds the attempts")
	requireOnePoint(t, reader, false, true)
}

// ---------------------------------------------------------------------------
// Resolve: rejected and failed paths
// ---------------------------------------------------------------------------

func TestResolve_MissingRequiredRoleRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RequiredRoles = []string{"auditors"}
	authority := &scriptedAuthority{}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(cfg, authority, WithRecorder(recorder))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), validAssertion())
	testutil.RequireErrorCode(t, err, sberr.CodeAuthenticationRejected)
	assert.NotContains(t, err.Error(), "auditors",
		"rejection message must not leak the required-role list")
	assert.Zero(t, authority.calls, "denied logins never reach the authority")
	requireOnePoint(t, reader, false, false)
}

func TestResolve_AuthorityExhaustionFatal(t *testing.T) {
	t.Parallel()

	authority := &scriptedAuthority{fails: 10}
	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), authority, WithRecorder(recorder))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), validAssertion())
	testutil.RequireErrorCode(t, err, sberr.CodeUnavailableAuthority)
	requireOnePoint(t, reader, false, false)
}

func TestResolve_ResourceLookupFailureFatal(t *testing.T) {
	t.Parallel()

	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), &scriptedAuthority{},
		WithRecorder(recorder),
		WithResourceResolver(fixedResources{err: errors.New("pool exhausted")}),
	)
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), validAssertion())
	testutil.RequireErrorCode(t, err, sberr.CodeInternal)
	requireOnePoint(t, reader, false, false)
}

func TestResolve_StructurallyIncompleteAssertion(t *testing.T) {
	t.Parallel()

	recorder, reader := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), &scriptedAuthority{}, WithRecorder(recorder))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), nil)
	testutil.RequireErrorCode(t, err, sberr.CodeValidationRequired)

	_, err = resolver.Resolve(context.Background(), &assertion.Assertion{})
	testutil.RequireErrorCode(t, err, sberr.CodeValidationRequired)

	assert.Empty(t, loginPoints(t, reader),
		"no outcome recorded before the pipeline starts")
}

func TestResolve_UsernameFallsBackToSubject(t *testing.T) {
	t.Parallel()

	a := &assertion.Assertion{
		Subject: "alice@example.com",
		Statements: []assertion.Statement{
			{Name: "roles", Values: []assertion.Value{assertion.String("Operators")}},
		},
	}

	authority := &scriptedAuthority{}
	recorder, _ := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), authority, WithRecorder(recorder))
	require.NoError(t, err)

	p, err := resolver.Resolve(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Username())
	assert.Equal(t, "alice@example.com", authority.gotUsername,
		"the authority sees the same fallback username")
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func TestResolve_EmitsSpans(t *testing.T) {
	// Swaps the global tracer provider; must not run in parallel.
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	recorder, _ := newTestRecorder(t)
	resolver, err := NewResolver(testConfig(), &scriptedAuthority{}, WithRecorder(recorder))
	require.NoError(t, err)

	_, err = resolver.Resolve(context.Background(), validAssertion())
	require.NoError(t, err)

	names := make([]string, 0, 2)
	for _, span := range spans.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "bridge.Resolve")
	assert.Contains(t, names, "permsync.Sync")
}
