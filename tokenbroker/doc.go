// Package tokenbroker exchanges a signed client assertion for a short-lived
// bearer token.
//
// The provider uses the JWT-bearer variant of the client-credentials grant:
// the client proves possession of its registered private key by POSTing a
// freshly signed assertion (iss = sub = API key, aud = token endpoint,
// unique jti, expiry a few minutes out) and receives an access token valid
// for at most five minutes.
//
// A Broker caches the token it obtained and keeps returning it until the
// local expiry estimate (the provider's expires_in minus a safety margin)
// elapses. The cache is in-memory only and scoped to one process invocation;
// tokens are never persisted or shared.
package tokenbroker
