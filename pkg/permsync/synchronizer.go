// Package permsync synchronizes a resolved user's role set with the
// external permission authority, the system of record for authorization
// state downstream of the bridge.
//
// The authority's availability is outside the bridge's control, so every
// synchronization runs under an at-most-N-attempts retry policy with
// configurable backoff. When all attempts fail, a process-wide legacy
// fallback flag decides whether the login proceeds in degraded-trust mode
// or aborts with a hard failure.
package permsync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/roles"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/saml-bridge/pkg/permsync"

// Authority is the external permission system the bridge synchronizes
// role state into. Any returned error is treated as transient and
// retried; the authority's own concurrency control is out of scope here.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Authority interface {
	// LoginWithRoles establishes the user's authorization state in the
	// permission system with the given canonical role identifiers.
	LoginWithRoles(ctx context.Context, username string, roleIDs []string) error
}

// FallbackFlag reports whether degraded-trust logins are currently
// allowed. It is read once per synchronization, at exhaustion time, so an
// operator can flip the flag without restarting the process.
type FallbackFlag func() bool

// Outcome describes one synchronization attempt from the caller's point
// of view. Exactly one Outcome is produced per [Synchronizer.Sync] call
// regardless of how many retries ran underneath it.
type Outcome struct {
	// Succeeded reports whether the authority accepted the login.
	Succeeded bool

	// FallbackApplied reports whether the login proceeded in
	// degraded-trust mode after the retry policy was exhausted.
	FallbackApplied bool

	// RoleCount is the size of the role set that was pushed.
	RoleCount int

	// Attempts is the number of authority calls actually made.
	Attempts int
}

// Synchronizer pushes resolved (username, role set) pairs to the
// permission authority under a retry policy. All collaborators are
// injected at construction; the synchronizer itself holds no mutable
// state and is safe for concurrent use.
type Synchronizer struct {
	authority Authority
	policy    Policy
	fallback  FallbackFlag
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option customizes a Synchronizer at construction time.
type Option func(*Synchronizer)

// WithLogger sets a custom [*slog.Logger]. If not provided,
// [slog.Default] is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer creates a Synchronizer for the given authority and
// retry policy. The fallback flag may be nil, in which case degraded-trust
// logins are never allowed and retry exhaustion is always fatal.
func NewSynchronizer(authority Authority, policy Policy, fallback FallbackFlag, opts ...Option) (*Synchronizer, error) {
	if authority == nil {
		return nil, sberr.New(sberr.CodeValidationRequired,
			"permsync: authority must not be nil")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	s := &Synchronizer{
		authority: authority,
		policy:    policy,
		fallback:  fallback,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sync pushes the user's role set to the permission authority, retrying
// transient failures per the policy. The waits between attempts honor ctx,
// so callers can bound the worst-case latency (MaxAttempts × Backoff) with
// a deadline.
//
// The returned Outcome is always meaningful, including on error. Three
// terminal states exist:
//
//   - Succeeded: the authority accepted the login on some attempt.
//   - Fallback: every attempt failed and the fallback flag allows
//     degraded-trust mode; Sync returns a nil error with
//     Outcome.FallbackApplied set, and the caller proceeds without a
//     synchronized permission state.
//   - Fatal: every attempt failed and fallback is not allowed, or the
//     context ended mid-retry. Sync returns an error with code
//     [sberr.CodeUnavailableAuthority] (or [sberr.CodeTimeoutAuthority]
//     when the deadline expired) and the caller must abort the login.
func (s *Synchronizer) Sync(ctx context.Context, username string, candidate roles.Set) (Outcome, error) {
	outcome := Outcome{RoleCount: candidate.Len()}
	roleIDs := candidate.Values()

	ctx, span := s.tracer.Start(ctx, "permsync.Sync",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.Int("permsync.role_count", outcome.RoleCount),
		attribute.Int("permsync.max_attempts", s.policy.MaxAttempts),
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		outcome.Attempts = attempt

		lastErr = s.authority.LoginWithRoles(ctx, username, roleIDs)
		if lastErr == nil {
			outcome.Succeeded = true
			span.SetAttributes(attribute.Int("permsync.attempts", attempt))
			span.SetStatus(codes.Ok, "")
			return outcome, nil
		}

		s.logger.WarnContext(ctx, "permsync: authority login attempt failed",
			"username", username,
			"attempt", attempt,
			"max_attempts", s.policy.MaxAttempts,
			"error", lastErr,
		)

		if attempt == s.policy.MaxAttempts {
			break
		}
		if err := wait(ctx, backoffFor(s.policy, attempt)); err != nil {
			// The caller's deadline or cancellation ends the retry loop
			// early; fallback does not apply to an abandoned login.
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return outcome, s.contextErr(err, outcome.Attempts)
		}
	}

	if s.fallback != nil && s.fallback() {
		outcome.FallbackApplied = true
		s.logger.WarnContext(ctx, "permsync: authority unreachable, proceeding in legacy fallback mode",
			"username", username,
			"attempts", outcome.Attempts,
		)
		span.AddEvent("permsync.fallback_applied")
		span.SetStatus(codes.Ok, "")
		return outcome, nil
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return outcome, sberr.Wrap(lastErr, sberr.CodeUnavailableAuthority,
		"permsync: permission authority unreachable").
		WithDetail("attempts", outcome.Attempts)
}

// contextErr classifies a context failure that interrupted the retry
// loop. Deadline expiry maps to a timeout code so callers can tell a slow
// authority from an abandoned request.
func (s *Synchronizer) contextErr(err error, attempts int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return sberr.Wrap(err, sberr.CodeTimeoutAuthority,
			"permsync: deadline expired while retrying authority login").
			WithDetail("attempts", attempts)
	}
	return sberr.Wrap(err, sberr.CodeInternal,
		"permsync: synchronization canceled").
		WithDetail("attempts", attempts)
}

// WorstCaseWait returns the total time [Synchronizer.Sync] can spend
// waiting between attempts under p. The final attempt is not followed by
// a wait. Callers sizing deadlines should add their authority call
// latency budget on top.
func WorstCaseWait(p Policy) time.Duration {
	var total time.Duration
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		total += backoffFor(p, attempt)
	}
	return total
}
