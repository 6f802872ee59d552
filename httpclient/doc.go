// Package httpclient wraps outbound provider calls with rate-limit detection
// and bounded exponential backoff.
//
// The provider throttles aggressively; every data-plane request in the
// pipeline goes through Client.Do, which classifies responses into the
// shared error taxonomy and retries the transient classes (rate limited,
// server error, network error) according to a Policy. Unauthorized responses
// are never retried here: the caller owns the token lifecycle and decides
// whether to acquire a fresh token.
//
// Policy is a plain value describing the delay schedule. With Jitter set to
// zero the schedule is fully deterministic, which is how the tests verify
// the delay sequence without waiting on real clocks.
package httpclient
