package tokenbroker

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func fastClient() *httpclient.Client {
	return httpclient.New(httpclient.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, testLogger())
}

// tokenEndpoint records exchanges and the assertions it saw.
type tokenEndpoint struct {
	t          *testing.T
	key        *rsa.PrivateKey
	exchanges  int
	assertions []jwt.Token
	respond    func(w http.ResponseWriter, exchange int)
}

func (e *tokenEndpoint) handler(tokenURL *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.exchanges++

		require.NoError(e.t, r.ParseForm())
		assert.Equal(e.t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(e.t, clientAssertionType, r.PostForm.Get("client_assertion_type"))
		assert.NotEmpty(e.t, r.Header.Get("apikey"))

		assertion := r.PostForm.Get("client_assertion")
		parsed, err := jwt.Parse([]byte(assertion),
			jwt.WithKey(jwa.RS512, &e.key.PublicKey),
			jwt.WithAudience(*tokenURL),
			jwt.WithValidate(true))
		require.NoError(e.t, err, "assertion must verify against the key pair")
		e.assertions = append(e.assertions, parsed)

		if e.respond != nil {
			e.respond(w, e.exchanges)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":"599"}`))
	}
}

func newTestBroker(t *testing.T, endpoint *tokenEndpoint) (*Broker, func()) {
	t.Helper()

	var tokenURL string
	srv := httptest.NewServer(endpoint.handler(&tokenURL))
	tokenURL = srv.URL

	broker, err := New(Config{
		TokenURL:   srv.URL,
		APIKey:     "client-id-1234",
		KeyID:      "archive-int",
		PrivateKey: endpoint.key,
	}, fastClient(), testLogger())
	require.NoError(t, err)

	return broker, srv.Close
}

func TestTokenExchangeAndClaims(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	token, err := broker.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", token.Value)
	assert.True(t, token.Valid(time.Now()))
	assert.True(t, token.ExpiresAt.Before(time.Now().Add(599*time.Second)),
		"expiry estimate must include the safety margin")

	require.Len(t, endpoint.assertions, 1)
	claims := endpoint.assertions[0]
	assert.Equal(t, "client-id-1234", claims.Issuer())
	assert.Equal(t, "client-id-1234", claims.Subject())
	assert.NotEmpty(t, claims.JwtID())
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.Expiration(), 10*time.Second)
}

func TestTokenCachedWithinValidity(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	first, err := broker.Token(context.Background())
	require.NoError(t, err)
	second, err := broker.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, endpoint.exchanges, "second call must reuse the cached token")
}

func TestTokenExpiryTriggersFreshExchange(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	_, err := broker.Token(context.Background())
	require.NoError(t, err)

	// Jump past the cached token's expiry estimate.
	broker.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	_, err = broker.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, endpoint.exchanges)
}

func TestFreshJTIPerAssertion(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	_, err := broker.Token(context.Background())
	require.NoError(t, err)
	broker.Invalidate()
	_, err = broker.Token(context.Background())
	require.NoError(t, err)

	require.Len(t, endpoint.assertions, 2)
	assert.NotEqual(t, endpoint.assertions[0].JwtID(), endpoint.assertions[1].JwtID())
}

func TestRejectedExchangeIsAuthError(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	endpoint.respond = func(w http.ResponseWriter, _ int) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	_, err := broker.Token(context.Background())
	require.ErrorIs(t, err, interfaces.ErrAuthRejected)
	assert.Equal(t, 1, endpoint.exchanges, "credential rejections must not be retried")
}

func TestRateLimitedExchangeRetried(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	endpoint.respond = func(w http.ResponseWriter, exchange int) {
		if exchange <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"access_token":"tok-1","expires_in":599}`))
	}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	token, err := broker.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.Value)
	assert.Equal(t, 3, endpoint.exchanges, "two backoff waits then success")
}

func TestMissingAccessTokenIsAuthError(t *testing.T) {
	endpoint := &tokenEndpoint{t: t, key: testKey(t)}
	endpoint.respond = func(w http.ResponseWriter, _ int) {
		w.Write([]byte(`{"expires_in":599}`))
	}
	broker, done := newTestBroker(t, endpoint)
	defer done()

	_, err := broker.Token(context.Background())
	require.ErrorIs(t, err, interfaces.ErrAuthRejected)
}

func TestNewValidatesConfig(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing token URL", cfg: Config{APIKey: "k", KeyID: "id", PrivateKey: key}},
		{name: "missing API key", cfg: Config{TokenURL: "https://x/token", KeyID: "id", PrivateKey: key}},
		{name: "missing key ID", cfg: Config{TokenURL: "https://x/token", APIKey: "k", PrivateKey: key}},
		{name: "missing private key", cfg: Config{TokenURL: "https://x/token", APIKey: "k", KeyID: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, fastClient(), testLogger())
			require.ErrorIs(t, err, interfaces.ErrAuthRejected)
		})
	}
}

func TestParseAPIKeySecret(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected string
	}{
		{name: "wrapped JSON", value: `{"API_KEY":"abc123"}`, expected: "abc123"},
		{name: "plain string", value: "abc123", expected: "abc123"},
		{name: "JSON without key falls back to raw", value: `{"other":"x"}`, expected: `{"other":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAPIKeySecret(tt.value))
		})
	}
}
