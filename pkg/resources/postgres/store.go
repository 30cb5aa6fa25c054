// Package postgres implements the allowed-resources lookup over the
// account-visibility database: given a username and role set, it returns
// the accounts the user may access.
//
// Visibility is the union of two sources: accounts visible to any of the
// user's roles (account_role_visibility) and accounts granted to the
// user directly (account_user_grants). The store only reads; ownership
// of the schema lies with the account-management service.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/principal"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/saml-bridge/pkg/resources/postgres"

// allowedAccountsSQL computes the visible-account union. Role-based
// visibility and per-user grants are deduplicated and returned in a
// stable order.
const allowedAccountsSQL = `
SELECT account_id FROM account_role_visibility WHERE role_id = ANY($1)
UNION
SELECT account_id FROM account_user_grants WHERE username = $2
ORDER BY account_id`

// Pool defines the connection-pool surface the store uses. It is
// satisfied by [*pgxpool.Pool] and by pgxmock for unit testing via
// [NewFromPool].
type Pool interface {
	// Query executes a SQL query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// Ping verifies the connection to the database is alive.
	Ping(ctx context.Context) error

	// Close releases all pool resources.
	Close()
}

// Compile-time interface compliance checks.
var (
	_ Pool                       = (*pgxpool.Pool)(nil)
	_ principal.ResourceResolver = (*Store)(nil)
)

// Store resolves allowed accounts from PostgreSQL, satisfying
// [principal.ResourceResolver]. It wraps a [Pool] (typically
// [*pgxpool.Pool]) and adds tracing and error classification.
//
// A Store is safe for concurrent use by multiple goroutines. Create one
// per database and share it across the application.
//
// Create a Store with [NewStore] for production use, or [NewFromPool]
// for testing with mock pools.
type Store struct {
	pool   Pool
	config *Config
	tracer trace.Tracer
}

// NewStore creates a Store with connection pooling. It validates the
// configuration, establishes the pool, and verifies connectivity with a
// ping.
//
// The caller must call [Store.Close] when the store is no longer needed
// to release pool resources.
//
// Error codes returned:
//   - [sberr.CodeValidation]: invalid configuration
//   - [sberr.CodeUnavailable]: cannot connect to the database
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sberr.Wrap(err, sberr.CodeValidation,
			"postgres: invalid configuration")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sberr.Wrap(err, sberr.CodeValidation,
			"postgres: failed to parse connection string")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sberr.Wrap(err, sberr.CodeUnavailable,
			"postgres: failed to create connection pool")
	}

	// Verify connectivity before returning the store.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sberr.Wrap(err, sberr.CodeUnavailable,
			"postgres: failed to connect to database")
	}

	return &Store{
		pool:   pool,
		config: &cfg,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// NewFromPool creates a Store with a pre-existing [Pool]. This
// constructor is intended for testing with mock pools (e.g., pgxmock).
//
// The cfg parameter is stored but not validated; pass nil for a
// zero-value config in tests.
//
// Example (testing):
//
//	mock, _ := pgxmock.NewPool()
//	store := postgres.NewFromPool(mock, nil)
func NewFromPool(pool Pool, cfg *Config) *Store {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Store{
		pool:   pool,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// FilterAllowedAccounts returns the accounts visible to the user: those
// visible to any of the given roles plus those granted to the username
// directly, deduplicated and sorted. A user with no visibility yields an
// empty slice, not an error.
//
// Error codes returned:
//   - [sberr.CodeTimeout] if the context deadline expired
//   - [sberr.CodeInternalDatabase] for all other database errors
func (s *Store) FilterAllowedAccounts(ctx context.Context, username string, roleIDs []string) ([]string, error) {
	ctx, span := s.startSpan(ctx, "FilterAllowedAccounts", allowedAccountsSQL)
	span.SetAttributes(attribute.Int("resources.role_count", len(roleIDs)))

	if roleIDs == nil {
		roleIDs = []string{}
	}

	rows, err := s.pool.Query(ctx, allowedAccountsSQL, roleIDs, username)
	if err != nil {
		finishSpan(span, err)
		return nil, wrapError(err, "postgres: allowed-accounts query failed")
	}
	defer rows.Close()

	accounts := make([]string, 0)
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			finishSpan(span, err)
			return nil, wrapError(err, "postgres: allowed-accounts scan failed")
		}
		accounts = append(accounts, accountID)
	}
	if err := rows.Err(); err != nil {
		finishSpan(span, err)
		return nil, wrapError(err, "postgres: allowed-accounts iteration failed")
	}

	span.SetAttributes(attribute.Int("resources.account_count", len(accounts)))
	finishSpan(span, nil)
	return accounts, nil
}

// Health verifies that the database connection is alive by executing a
// ping. It applies [DefaultHealthTimeout] if the provided context has no
// deadline. Designed for readiness probes.
func (s *Store) Health(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Health", "SELECT 1")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := s.pool.Ping(ctx)
	finishSpan(span, err)
	if err != nil {
		return sberr.Wrap(err, sberr.CodeUnavailable,
			"postgres: health check failed")
	}
	return nil
}

// Close releases all connection pool resources. After Close is called,
// the store must not be used.
func (s *Store) Close() {
	s.pool.Close()
}

// startSpan creates a span with database semantic attributes.
func (s *Store) startSpan(ctx context.Context, operationName, sql string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "resources.postgres."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", s.config.Database),
		attribute.String("db.statement", sql),
	)
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

// wrapError converts a database error to a typed [*sberr.Error].
// Deadline expiry maps to [sberr.CodeTimeout] so callers can distinguish
// a slow database from a broken one.
func wrapError(err error, message string) *sberr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sberr.Wrap(err, sberr.CodeTimeout, message)
	}
	return sberr.Wrap(err, sberr.CodeInternalDatabase, message)
}
