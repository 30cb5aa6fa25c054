// Package telemetry records structured outcomes for login resolution
// attempts: an OpenTelemetry counter tagged with the authentication
// method and outcome, plus a debug-level trace line.
//
// Recording is side-effect only and must never interfere with the login
// path: the recorder swallows its own failures, costs no more than a
// local counter increment plus a log call, and is safe for concurrent
// use from many simultaneous logins.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/permsync"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
)

// meterName is the OpenTelemetry instrumentation scope name for this package.
const meterName = "github.com/StricklySoft/saml-bridge/pkg/telemetry"

// loginAttemptsCounter is the name of the counter incremented once per
// login resolution attempt.
const loginAttemptsCounter = "saml_bridge.login.attempts"

// authMethod tags every data point with the authentication method this
// bridge serves.
const authMethod = "saml"

// Recorder emits one structured outcome per login resolution attempt.
// Create it once at process start and share it across requests.
type Recorder struct {
	attempts metric.Int64Counter
	logger   *slog.Logger
}

// Option customizes a Recorder at construction time.
type Option func(*recorderConfig)

type recorderConfig struct {
	provider metric.MeterProvider
	logger   *slog.Logger
}

// WithMeterProvider sets the OpenTelemetry meter provider used to create
// the login-attempts counter. Defaults to the global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *recorderConfig) {
		if provider != nil {
			c.provider = provider
		}
	}
}

// WithLogger sets a custom [*slog.Logger] for the debug trace line.
// Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *recorderConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRecorder creates a Recorder, registering the login-attempts counter
// with the configured meter provider.
func NewRecorder(opts ...Option) (*Recorder, error) {
	cfg := recorderConfig{
		provider: otel.GetMeterProvider(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	attempts, err := cfg.provider.Meter(meterName).Int64Counter(
		loginAttemptsCounter,
		metric.WithDescription("Login resolution attempts processed by the bridge."),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, sberr.Wrap(err, sberr.CodeInternal,
			"telemetry: failed to create login attempts counter")
	}

	return &Recorder{
		attempts: attempts,
		logger:   cfg.logger,
	}, nil
}

// Record emits the outcome of one login resolution attempt: a counter
// increment tagged {method, success, fallback} and a debug line carrying
// the username, role count, and role list.
//
// Record never fails and never panics; telemetry faults must not abort a
// login that has otherwise been decided.
func (r *Recorder) Record(ctx context.Context, username string, outcome permsync.Outcome, candidate roles.Set) {
	defer func() {
		_ = recover()
	}()

	r.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", authMethod),
		attribute.Bool("success", outcome.Succeeded),
		attribute.Bool("fallback", outcome.FallbackApplied),
	))

	r.logger.DebugContext(ctx, "telemetry: login outcome recorded",
		"username", username,
		"success", outcome.Succeeded,
		"fallback", outcome.FallbackApplied,
		"attempts", outcome.Attempts,
		"role_count", outcome.RoleCount,
		"roles", candidate.Values(),
	)
}
