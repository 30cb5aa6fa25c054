// Package testutil provides shared test helpers for the SAML bridge.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks, and call t.Helper() so failures report the caller's file
// and line number rather than this package's.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not an *sberr.Error,
// or does not carry the expected error code. This is the primary helper
// for validating bridge error responses.
//
// Example:
//
//	_, err := config.Load(path)
//	testutil.RequireErrorCode(t, err, sberr.CodeInternalConfiguration)
func RequireErrorCode(t testing.TB, err error, code sberr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	sbErr, ok := sberr.AsError(err)
	require.True(t, ok, "expected *sberr.Error, got %T: %v", err, err)
	require.Equal(t, code, sbErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		sbErr.Code, code, sbErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err is nil,
// is not an *sberr.Error, or does not carry the expected error code.
// Use this in table-driven tests where you want to check all rows.
func AssertErrorCode(t testing.TB, err error, code sberr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	sbErr, ok := sberr.AsError(err)
	if !assert.True(t, ok, "expected *sberr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, sbErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		sbErr.Code, code, sbErr.Message)
}

// TempConfigFile creates a temporary file with the given content and
// extension (e.g., ".yaml") inside t.TempDir(). The file is cleaned up
// when the test finishes.
func TempConfigFile(t testing.TB, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config"+ext)
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write temp config file %s", path)
	return path
}

// SetEnv sets an environment variable and registers a cleanup function
// that restores the original value (or unsets it if it was not set)
// when the test completes.
//
// Tests using SetEnv must not call t.Parallel() for shared variables.
func SetEnv(t testing.TB, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	err := os.Setenv(key, value)
	require.NoError(t, err, "failed to set env var %s", key)
	t.Cleanup(func() {
		if existed {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

// UnsetEnv unsets an environment variable and registers a cleanup
// function that restores the original value when the test completes.
func UnsetEnv(t testing.TB, key string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	err := os.Unsetenv(key)
	require.NoError(t, err, "failed to unset env var %s", key)
	t.Cleanup(func() {
		if existed {
			_ = os.Setenv(key, prev)
		}
	})
}
