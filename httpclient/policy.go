package httpclient

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retry behavior for one request: how many attempts are
// made in total and how long to wait between them. Delays start at BaseDelay,
// double each attempt, and are capped at MaxDelay. Jitter is the
// randomization factor applied to each delay (0 disables jitter and makes
// the schedule deterministic).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultPolicy returns the retry policy used against the provider: five
// attempts, delays 500ms doubling up to 30s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// NewBackOff builds the delay schedule for a single request's retry loop.
// The returned BackOff yields MaxAttempts-1 delays and then backoff.Stop.
func (p Policy) NewBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = p.Jitter
	bo.MaxElapsedTime = 0
	bo.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(bo, uint64(retries))
}
