package postgres

import (
	"fmt"
	"net/url"
	"time"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// Default configuration values.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5432
	DefaultDatabase = "saml_bridge"
	DefaultSSLMode  = "prefer"
	DefaultMaxConns = 10

	// DefaultHealthTimeout bounds Health when the caller's context has no
	// deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Config holds the connection settings for the account-visibility
// database.
type Config struct {
	// URI is a full PostgreSQL connection URI (postgres://...). When set
	// it takes precedence over the discrete connection fields.
	URI string `yaml:"uri"`

	// Host is the database server hostname.
	Host string `yaml:"host"`

	// Port is the database server port.
	Port int `yaml:"port"`

	// User authenticates against the server.
	User string `yaml:"user"`

	// Password authenticates against the server.
	Password string `yaml:"password"`

	// Database is the database name.
	Database string `yaml:"database"`

	// SSLMode is the libpq sslmode setting (disable, prefer, require,
	// verify-ca, verify-full).
	SSLMode string `yaml:"ssl_mode"`

	// MaxConns caps the connection pool size.
	MaxConns int32 `yaml:"max_conns"`
}

// DefaultConfig returns a Config with production defaults. The user and
// password must still be provided.
func DefaultConfig() *Config {
	return &Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
		SSLMode:  DefaultSSLMode,
		MaxConns: DefaultMaxConns,
	}
}

// Validate checks the configuration for values the store cannot run
// with.
func (c Config) Validate() error {
	if c.URI != "" {
		return nil
	}
	if c.Host == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"postgres: host must not be empty when no URI is set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return sberr.Newf(sberr.CodeValidationRange,
			"postgres: port %d out of range [1, 65535]", c.Port)
	}
	if c.Database == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"postgres: database must not be empty")
	}
	if c.User == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"postgres: user must not be empty")
	}
	if c.MaxConns < 1 {
		return sberr.Newf(sberr.CodeValidationRange,
			"postgres: max conns must be at least 1, got %d", c.MaxConns)
	}
	return nil
}

// ConnectionString returns the URI if set, otherwise builds one from the
// discrete connection fields. The password is URL-escaped.
func (c Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database, c.SSLMode,
	)
}
