// Package bridge orchestrates the full login resolution pipeline: from a
// validated identity assertion to an authorized, fully populated
// Principal.
//
// The pipeline stages, in order:
//
//  1. Extract attributes from the assertion statements.
//  2. Normalize raw role claims into a canonical role set.
//  3. Enforce the required-role authorization gate.
//  4. Synchronize the role set with the permission authority (with
//     retries and optional legacy fallback).
//  5. Resolve the allowed-resource scope and build the Principal.
//
// One telemetry outcome is recorded per resolution that reaches the
// pipeline, whatever branch it takes. Signature and condition validation
// of the assertion itself happens upstream; the bridge trusts its input
// to be authentic and only checks structural completeness.
package bridge

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/saml-bridge/pkg/assertion"
	"github.com/StricklySoft/saml-bridge/pkg/authz"
	"github.com/StricklySoft/saml-bridge/pkg/config"
	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/permsync"
	"github.com/StricklySoft/saml-bridge/pkg/principal"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
	"github.com/StricklySoft/saml-bridge/pkg/telemetry"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/saml-bridge/pkg/bridge"

// Resolver runs the login resolution pipeline. All collaborators are
// injected at construction; a Resolver holds no per-request state and is
// safe for concurrent use.
type Resolver struct {
	cfg       config.Config
	sync      *permsync.Synchronizer
	resources principal.ResourceResolver
	recorder  *telemetry.Recorder
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option customizes a Resolver at construction time.
type Option func(*Resolver)

// WithLogger sets a custom [*slog.Logger]. If not provided,
// [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResourceResolver sets the collaborator that computes the
// allowed-resource scope for admitted principals. Without one, every
// principal resolves with an empty scope.
func WithResourceResolver(resources principal.ResourceResolver) Option {
	return func(r *Resolver) {
		r.resources = resources
	}
}

// WithRecorder sets the telemetry recorder. If not provided, a recorder
// bound to the global meter provider is created.
func WithRecorder(recorder *telemetry.Recorder) Option {
	return func(r *Resolver) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// NewResolver creates a Resolver over the given configuration and
// permission authority. The configuration must already be validated;
// NewResolver validates it again defensively and wires the retry policy
// and legacy-fallback flag into the synchronizer.
func NewResolver(cfg config.Config, authority permsync.Authority, opts ...Option) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}

	sync, err := permsync.NewSynchronizer(authority, cfg.Retry,
		func() bool { return cfg.LegacyFallback },
		permsync.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	r.sync = sync

	if r.recorder == nil {
		recorder, err := telemetry.NewRecorder(telemetry.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		r.recorder = recorder
	}
	return r, nil
}

// Resolve runs the pipeline for one validated assertion and returns the
// resulting Principal.
//
// Error codes a caller can act on:
//
//   - [sberr.CodeValidationRequired]: the assertion is structurally
//     incomplete (nil, or no subject). No outcome is recorded.
//   - [sberr.CodeAuthenticationRejected]: the subject does not hold any
//     required role. The message is deliberately generic.
//   - [sberr.CodeUnavailableAuthority], [sberr.CodeTimeoutAuthority]:
//     permission synchronization failed and fallback was not allowed.
//
// Every resolution that passes structural validation records exactly one
// telemetry outcome, on every branch including denial and failure.
func (r *Resolver) Resolve(ctx context.Context, a *assertion.Assertion) (*principal.Principal, error) {
	if a == nil || a.Subject == "" {
		return nil, sberr.New(sberr.CodeValidationRequired,
			"bridge: assertion must carry a subject")
	}

	resolutionID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "bridge.Resolve")
	span.SetAttributes(attribute.String("bridge.resolution_id", resolutionID))
	defer span.End()

	attrs := assertion.Extract(a)
	candidate := roles.Normalize(attrs.Get(r.cfg.Mapping.Roles), r.cfg.Mapping.RoleDelimiter)

	username := attrs.First(r.cfg.Mapping.Username)
	if username == "" {
		username = a.Subject
	}

	outcome := permsync.Outcome{RoleCount: candidate.Len()}
	defer func() {
		r.recorder.Record(ctx, username, outcome, candidate)
	}()

	span.SetAttributes(attribute.Int("bridge.role_count", candidate.Len()))

	decision := authz.Authorize(a.Subject, candidate, r.cfg.RequiredRoles)
	if err := decision.Err(); err != nil {
		r.logger.WarnContext(ctx, "bridge: subject denied by required-role gate",
			"resolution_id", resolutionID,
			"subject", a.Subject,
			"role_count", candidate.Len(),
		)
		span.SetStatus(codes.Error, "required-role gate denied")
		return nil, err
	}

	var err error
	outcome, err = r.sync.Sync(ctx, username, candidate)
	if err != nil {
		span.SetStatus(codes.Error, "permission synchronization failed")
		return nil, err
	}

	p, err := principal.Build(ctx, a.Subject, attrs, r.cfg.Mapping, candidate, r.resources)
	if err != nil {
		// The login was admitted and synchronized; only the resource
		// scope failed. Still fatal: an unscoped principal must not
		// reach the session layer.
		outcome.Succeeded = false
		span.RecordError(err)
		span.SetStatus(codes.Error, "principal assembly failed")
		return nil, err
	}

	r.logger.InfoContext(ctx, "bridge: login resolved",
		"resolution_id", resolutionID,
		"subject", a.Subject,
		"username", p.Username(),
		"role_count", candidate.Len(),
		"fallback", outcome.FallbackApplied,
		"allowed_resources", len(p.AllowedResources()),
	)
	span.SetStatus(codes.Ok, "")
	return p, nil
}
