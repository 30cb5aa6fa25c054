package permsync

import (
	"context"
	"time"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// Default retry policy values, matching the bridge's observed production
// configuration.
const (
	// DefaultMaxAttempts is the default number of authority login
	// attempts per synchronization.
	DefaultMaxAttempts = 5

	// DefaultBackoff is the default wait between attempts.
	DefaultBackoff = 2 * time.Second

	// maxExponentialBackoff caps the wait between attempts when the
	// policy grows the backoff exponentially.
	maxExponentialBackoff = time.Minute
)

// Policy configures the retry behavior of a [Synchronizer]. Policies are
// read-only after process initialization and safe to copy.
type Policy struct {
	// MaxAttempts is the total number of authority login attempts,
	// including the first. Must be at least 1.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// Backoff is the wait between consecutive attempts. A zero Backoff
	// retries immediately.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`

	// Exponential doubles the wait after each failed attempt when true.
	// The wait never exceeds one minute.
	Exponential bool `yaml:"exponential" json:"exponential"`
}

// DefaultPolicy returns the production default retry policy: five
// attempts, two seconds apart, non-exponential.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
	}
}

// Validate checks the policy for values the synchronizer cannot run with.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return sberr.Newf(sberr.CodeValidationRange,
			"permsync: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Backoff < 0 {
		return sberr.Newf(sberr.CodeValidationRange,
			"permsync: backoff must not be negative, got %v", p.Backoff)
	}
	return nil
}

// backoffFor returns the wait after the given 1-based failed attempt. It
// is a pure function of the policy: the synchronizer keeps no retry state
// between calls.
func backoffFor(p Policy, attempt int) time.Duration {
	if !p.Exponential {
		return p.Backoff
	}
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxExponentialBackoff {
			return maxExponentialBackoff
		}
	}
	return d
}

// wait blocks for d or until the context is done, whichever comes first.
// Returns the context's error when the wait was interrupted.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
