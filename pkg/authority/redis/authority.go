package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/permsync"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/saml-bridge/pkg/authority/redis"

// Cmdable defines the Redis command surface the authority uses. It is
// satisfied by [*redis.Client] and by mock implementations for unit
// testing via [NewFromClient].
//
// The interface is intentionally narrow, exposing only the operations
// the [Authority] wraps with tracing and error handling.
type Cmdable interface {
	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// SAdd adds one or more members to a set.
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd

	// SMembers returns all members of a set.
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd

	// Expire sets an expiration on a key.
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd

	// Ping pings the Redis server.
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection.
	Close() error
}

// Compile-time interface compliance checks.
var (
	_ Cmdable            = (*redis.Client)(nil)
	_ permsync.Authority = (*Authority)(nil)
)

// Authority stores each user's canonical role set in Redis, satisfying
// [permsync.Authority]. It wraps a [Cmdable] (typically [*redis.Client])
// and adds tracing and error classification to every operation.
//
// An Authority is safe for concurrent use by multiple goroutines. Create
// one per Redis instance and share it across the application.
//
// Create an Authority with [NewAuthority] for production use, or
// [NewFromClient] for testing with mock implementations.
type Authority struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
}

// NewAuthority connects to Redis and verifies connectivity with a ping.
//
// The caller must call [Authority.Close] when the authority is no longer
// needed to release connection resources.
//
// Error codes returned:
//   - [sberr.CodeValidation]: invalid configuration
//   - [sberr.CodeUnavailableAuthority]: cannot connect to Redis
func NewAuthority(ctx context.Context, cfg Config) (*Authority, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sberr.Wrap(err, sberr.CodeValidation,
			"redis: invalid configuration")
	}

	var opts *redis.Options
	if cfg.URI != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, sberr.Wrap(err, sberr.CodeValidation,
				"redis: failed to parse connection URI")
		}
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
	}

	rdb := redis.NewClient(opts)

	// Verify connectivity before returning the authority.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sberr.Wrap(err, sberr.CodeUnavailableAuthority,
			"redis: failed to connect to server")
	}

	return &Authority{
		cmdable: rdb,
		config:  &cfg,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// NewFromClient creates an Authority with a pre-existing [Cmdable]. This
// constructor is intended for testing with mock implementations.
//
// The cfg parameter is stored but not validated; pass nil for a
// zero-value config with default key prefix and TTL in tests.
func NewFromClient(cmdable Cmdable, cfg *Config) *Authority {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Authority{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
	}
}

// LoginWithRoles replaces the stored role set for username with roleIDs
// and refreshes its TTL.
//
// The replacement runs as DEL then SADD, not as a transaction; a failure
// between the two leaves the user with an empty role set, which the next
// retry repairs. Callers retry any returned error.
//
// Error codes returned:
//   - [sberr.CodeTimeoutAuthority] if the context deadline expired
//   - [sberr.CodeUnavailableAuthority] for all other Redis errors
func (a *Authority) LoginWithRoles(ctx context.Context, username string, roleIDs []string) error {
	key := a.key(username)
	ctx, span := a.startSpan(ctx, "LoginWithRoles", key)
	span.SetAttributes(attribute.Int("authority.role_count", len(roleIDs)))

	err := a.replaceRoles(ctx, key, roleIDs)
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: role-set login failed")
	}
	return nil
}

// replaceRoles rewrites the role set at key.
func (a *Authority) replaceRoles(ctx context.Context, key string, roleIDs []string) error {
	if err := a.cmdable.Del(ctx, key).Err(); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}

	members := make([]interface{}, len(roleIDs))
	for i, id := range roleIDs {
		members[i] = id
	}
	if err := a.cmdable.SAdd(ctx, key, members...).Err(); err != nil {
		return err
	}

	if a.config.RoleTTL > 0 {
		return a.cmdable.Expire(ctx, key, a.config.RoleTTL).Err()
	}
	return nil
}

// RolesFor returns the role set currently stored for username. A user
// with no stored roles yields an empty slice, not an error.
func (a *Authority) RolesFor(ctx context.Context, username string) ([]string, error) {
	key := a.key(username)
	ctx, span := a.startSpan(ctx, "RolesFor", key)
	roleIDs, err := a.cmdable.SMembers(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "redis: role-set lookup failed")
	}
	return roleIDs, nil
}

// Health verifies that the Redis connection is alive by executing a
// ping. It applies [DefaultHealthTimeout] if the provided context has no
// deadline. Designed for readiness probes.
func (a *Authority) Health(ctx context.Context) error {
	ctx, span := a.startSpan(ctx, "Health", "")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := a.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return sberr.Wrap(err, sberr.CodeUnavailableAuthority,
			"redis: health check failed")
	}
	return nil
}

// Close releases all connection resources. After Close is called, the
// authority must not be used. Close is safe to call multiple times.
func (a *Authority) Close() error {
	return a.cmdable.Close()
}

// key builds the role-set key for a username.
func (a *Authority) key(username string) string {
	return a.config.KeyPrefix + username
}

// startSpan creates a span with database semantic attributes.
func (a *Authority) startSpan(ctx context.Context, operationName, key string) (context.Context, trace.Span) {
	ctx, span := a.tracer.Start(ctx, "authority.redis."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
	)
	if key != "" {
		span.SetAttributes(attribute.String("db.redis.key", key))
	}
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it. If err
// is nil, the span status is set to OK.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError converts a Redis error to a typed [*sberr.Error]. Deadline
// expiry maps to [sberr.CodeTimeoutAuthority]; everything else maps to
// [sberr.CodeUnavailableAuthority] so the synchronizer treats it as a
// retryable authority failure.
func wrapError(err error, message string) *sberr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sberr.Wrap(err, sberr.CodeTimeoutAuthority, message)
	}
	return sberr.Wrap(err, sberr.CodeUnavailableAuthority, message)
}
