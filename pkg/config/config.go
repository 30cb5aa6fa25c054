// Package config defines the bridge's process-wide configuration: the
// attribute-name mapping, the required-role list, the retry policy for
// permission synchronization, and the legacy fallback flag.
//
// Configuration resolves in layers, highest priority last:
//
//	built-in defaults
//	YAML config file (optional)
//	SAML_BRIDGE_* environment variables
//
// This mirrors how the bridge deploys: sensible defaults baked into the
// binary, a mounted config file per environment, and env vars from the
// orchestrator taking final precedence. Configuration is read once at
// process start and immutable thereafter.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
	"github.com/StricklySoft/saml-bridge/pkg/permsync"
)

// envPrefix is prepended to every environment variable the loader reads.
const envPrefix = "SAML_BRIDGE_"

// Default attribute-slot bindings used when the mapping leaves a slot
// unset.
const (
	DefaultFirstNameAttribute = "firstName"
	DefaultLastNameAttribute  = "lastName"
	DefaultRolesAttribute     = "roles"
	DefaultUsernameAttribute  = "username"
	DefaultRoleDelimiter      = ";"
)

// Mapping binds the bridge's attribute slots to assertion attribute
// names. An empty slot falls back to its default binding.
type Mapping struct {
	// FirstName is the attribute carrying the subject's given name.
	FirstName string `yaml:"first_name"`

	// LastName is the attribute carrying the subject's family name.
	LastName string `yaml:"last_name"`

	// Roles is the attribute carrying raw role claims.
	Roles string `yaml:"roles"`

	// RoleDelimiter splits a single role-attribute value into candidate
	// tokens.
	RoleDelimiter string `yaml:"role_delimiter"`

	// Username is the attribute carrying the internal username. When the
	// assertion lacks it, the principal falls back to the subject
	// identifier.
	Username string `yaml:"username"`
}

// DefaultMapping returns the mapping with every slot bound to its
// default attribute name.
func DefaultMapping() Mapping {
	return Mapping{
		FirstName:     DefaultFirstNameAttribute,
		LastName:      DefaultLastNameAttribute,
		Roles:         DefaultRolesAttribute,
		RoleDelimiter: DefaultRoleDelimiter,
		Username:      DefaultUsernameAttribute,
	}
}

// withDefaults fills unset slots with their default bindings.
func (m Mapping) withDefaults() Mapping {
	if m.FirstName == "" {
		m.FirstName = DefaultFirstNameAttribute
	}
	if m.LastName == "" {
		m.LastName = DefaultLastNameAttribute
	}
	if m.Roles == "" {
		m.Roles = DefaultRolesAttribute
	}
	if m.RoleDelimiter == "" {
		m.RoleDelimiter = DefaultRoleDelimiter
	}
	if m.Username == "" {
		m.Username = DefaultUsernameAttribute
	}
	return m
}

// Config is the bridge's complete configuration surface.
type Config struct {
	// Mapping binds attribute slots to assertion attribute names.
	Mapping Mapping `yaml:"attribute_mapping"`

	// RequiredRoles lists roles of which the subject must hold at least
	// one to be admitted. Empty means every authenticated subject is
	// admitted.
	RequiredRoles []string `yaml:"required_roles"`

	// Retry is the permission-synchronization retry policy.
	Retry permsync.Policy `yaml:"retry"`

	// LegacyFallback allows logins to proceed in degraded-trust mode
	// when the permission authority is unreachable after all retries.
	LegacyFallback bool `yaml:"legacy_fallback"`
}

// Default returns the production default configuration: default attribute
// mapping, no required roles, five attempts two seconds apart, fallback
// disabled.
func Default() Config {
	return Config{
		Mapping: DefaultMapping(),
		Retry:   permsync.DefaultPolicy(),
	}
}

// Validate checks the configuration for values the bridge cannot run
// with. Load calls this automatically; call it directly when building a
// Config in code.
func (c Config) Validate() error {
	if c.Mapping.Roles == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"config: roles attribute name must not be empty")
	}
	if c.Mapping.RoleDelimiter == "" {
		return sberr.New(sberr.CodeValidationRequired,
			"config: role delimiter must not be empty")
	}
	return c.Retry.Validate()
}

// Load resolves the configuration from defaults, the optional YAML file
// at path, and SAML_BRIDGE_* environment variables, then validates it.
// An empty path skips the file layer; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Mapping = cfg.Mapping.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays YAML file values onto cfg. Missing files are
// silently ignored (file-based configuration is optional).
func loadFile(path string, cfg *Config) error {
	if strings.Contains(path, "..") {
		return sberr.New(sberr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sberr.Wrapf(err, sberr.CodeInternalConfiguration,
			"config: failed to read file %q", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return sberr.Wrapf(err, sberr.CodeInternalConfiguration,
			"config: failed to parse YAML file %q", path)
	}
	return nil
}

// applyEnv overlays SAML_BRIDGE_* environment variables onto cfg.
// Variables:
//
//	SAML_BRIDGE_ATTR_FIRST_NAME     attribute name for the given name
//	SAML_BRIDGE_ATTR_LAST_NAME      attribute name for the family name
//	SAML_BRIDGE_ATTR_ROLES          attribute name for role claims
//	SAML_BRIDGE_ATTR_USERNAME       attribute name for the username
//	SAML_BRIDGE_ROLE_DELIMITER      role token delimiter
//	SAML_BRIDGE_REQUIRED_ROLES      comma-separated required-role list
//	SAML_BRIDGE_RETRY_MAX_ATTEMPTS  integer, at least 1
//	SAML_BRIDGE_RETRY_BACKOFF       Go duration (e.g. "2s")
//	SAML_BRIDGE_RETRY_EXPONENTIAL   bool
//	SAML_BRIDGE_LEGACY_FALLBACK     bool
func applyEnv(cfg *Config) error {
	setString(&cfg.Mapping.FirstName, "ATTR_FIRST_NAME")
	setString(&cfg.Mapping.LastName, "ATTR_LAST_NAME")
	setString(&cfg.Mapping.Roles, "ATTR_ROLES")
	setString(&cfg.Mapping.Username, "ATTR_USERNAME")
	setString(&cfg.Mapping.RoleDelimiter, "ROLE_DELIMITER")

	if v, ok := lookup("REQUIRED_ROLES"); ok {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		cfg.RequiredRoles = cleaned
	}

	if err := setInt(&cfg.Retry.MaxAttempts, "RETRY_MAX_ATTEMPTS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Retry.Backoff, "RETRY_BACKOFF"); err != nil {
		return err
	}
	if err := setBool(&cfg.Retry.Exponential, "RETRY_EXPONENTIAL"); err != nil {
		return err
	}
	return setBool(&cfg.LegacyFallback, "LEGACY_FALLBACK")
}

func lookup(key string) (string, bool) {
	return os.LookupEnv(envPrefix + key)
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return sberr.Wrapf(err, sberr.CodeInternalConfiguration,
			"config: %s%s is not an integer", envPrefix, key)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return sberr.Wrapf(err, sberr.CodeInternalConfiguration,
			"config: %s%s is not a boolean", envPrefix, key)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return sberr.Wrapf(err, sberr.CodeInternalConfiguration,
			"config: %s%s is not a duration", envPrefix, key)
	}
	*dst = d
	return nil
}
