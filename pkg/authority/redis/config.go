// Package redis implements the permission authority over a Redis-backed
// permission store. Each user's canonical role set lives in a Redis set
// keyed by username; logging in replaces the stored set wholesale.
package redis

import (
	"time"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// Default configuration values.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 6379
	DefaultKeyPrefix = "saml-bridge:roles:"
	DefaultRoleTTL   = 24 * time.Hour

	// DefaultHealthTimeout bounds Health when the caller's context has no
	// deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Config holds the connection settings for the Redis permission store.
type Config struct {
	// URI is a full Redis connection URI (redis://...). When set it takes
	// precedence over Host, Port, Password, and DB.
	URI string `yaml:"uri"`

	// Host is the Redis server hostname.
	Host string `yaml:"host"`

	// Port is the Redis server port.
	Port int `yaml:"port"`

	// Password authenticates against the server. Empty means no auth.
	Password string `yaml:"password"`

	// DB selects the logical database index.
	DB int `yaml:"db"`

	// KeyPrefix is prepended to every role-set key.
	KeyPrefix string `yaml:"key_prefix"`

	// RoleTTL bounds how long a stored role set survives without a fresh
	// login. Zero disables expiry.
	RoleTTL time.Duration `yaml:"role_ttl"`

	// TLSEnabled turns on TLS for the connection.
	TLSEnabled bool `yaml:"tls_enabled"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		KeyPrefix: DefaultKeyPrefix,
		RoleTTL:   DefaultRoleTTL,
	}
}

// Validate checks the configuration for values the authority cannot run
// with.
func (c Config) Validate() error {
	if c.URI == "" {
		if c.Host == "" {
			return sberr.New(sberr.CodeValidationRequired,
				"redis: host must not be empty when no URI is set")
		}
		if c.Port < 1 || c.Port > 65535 {
			return sberr.Newf(sberr.CodeValidationRange,
				"redis: port %d out of range [1, 65535]", c.Port)
		}
	}
	if c.KeyPrefix == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"redis: key prefix must not be empty")
	}
	if c.RoleTTL < 0 {
		return sberr.Newf(sberr.CodeValidationRange,
			"redis: role TTL must not be negative, got %v", c.RoleTTL)
	}
	return nil
}
