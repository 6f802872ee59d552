package tokenbroker

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/metrics"
)

const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Config holds the credentials and endpoint for the token exchange.
type Config struct {
	// TokenURL is the provider's token endpoint; it is also the assertion's
	// audience claim.
	TokenURL string

	// APIKey is the client identifier issued by the provider. It is used as
	// both issuer and subject of the assertion and sent as the apikey header
	// on the exchange.
	APIKey string

	// KeyID is carried in the assertion's protected header so the provider
	// can resolve the matching public key from the published JWKS.
	KeyID string

	// PrivateKey signs the assertion.
	PrivateKey *rsa.PrivateKey

	// AssertionTTL is the assertion's validity window. The provider rejects
	// anything over five minutes, which is also the default.
	AssertionTTL time.Duration

	// ExpiryMargin is subtracted from the provider's expires_in when
	// computing the local expiry estimate, to avoid racing the provider's
	// own clock. Defaults to 10 seconds.
	ExpiryMargin time.Duration
}

// Broker obtains and caches bearer tokens for one invocation.
type Broker struct {
	cfg    Config
	client *httpclient.Client
	log    *slog.Logger

	// now is replaced in tests.
	now func() time.Time

	cached interfaces.BearerToken
}

// New validates the configuration and creates a broker. The broker is not
// safe for concurrent use; the pipeline is single-threaded by design.
func New(cfg Config, client *httpclient.Client, log *slog.Logger) (*Broker, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("%w: token URL not configured", interfaces.ErrAuthRejected)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not configured", interfaces.ErrAuthRejected)
	}
	if cfg.KeyID == "" {
		return nil, fmt.Errorf("%w: key ID not configured", interfaces.ErrAuthRejected)
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("%w: private key not configured", interfaces.ErrAuthRejected)
	}
	if cfg.AssertionTTL <= 0 || cfg.AssertionTTL > 5*time.Minute {
		cfg.AssertionTTL = 5 * time.Minute
	}
	if cfg.ExpiryMargin <= 0 {
		cfg.ExpiryMargin = 10 * time.Second
	}

	return &Broker{
		cfg:    cfg,
		client: client,
		log:    log,
		now:    time.Now,
	}, nil
}

// Token returns a bearer token that is valid at the time of the call,
// reusing the cached one while it remains inside its validity window.
// Returns an error wrapping interfaces.ErrAuthRejected when the provider
// rejects the credentials; transient exchange failures surface with their
// own classification after the shared retry policy is exhausted.
func (b *Broker) Token(ctx context.Context) (interfaces.BearerToken, error) {
	if b.cached.Valid(b.now()) {
		return b.cached, nil
	}

	assertion, err := b.signAssertion()
	if err != nil {
		return interfaces.BearerToken{}, fmt.Errorf("%w: signing assertion: %v", interfaces.ErrAuthRejected, err)
	}

	token, err := b.exchange(ctx, assertion)
	if err != nil {
		return interfaces.BearerToken{}, err
	}

	b.cached = token
	return token, nil
}

// Invalidate drops the cached token so the next Token call performs a fresh
// exchange. Called when a data request comes back unauthorized despite the
// local expiry estimate.
func (b *Broker) Invalidate() {
	b.cached = interfaces.BearerToken{}
}

// signAssertion builds and signs the client assertion. Each assertion gets a
// fresh jti so the provider can reject replays.
func (b *Broker) signAssertion() ([]byte, error) {
	now := b.now()

	tok, err := jwt.NewBuilder().
		Issuer(b.cfg.APIKey).
		Subject(b.cfg.APIKey).
		Audience([]string{b.cfg.TokenURL}).
		IssuedAt(now).
		Expiration(now.Add(b.cfg.AssertionTTL)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building assertion claims: %w", err)
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, b.cfg.KeyID); err != nil {
		return nil, err
	}
	if err := hdrs.Set(jws.TypeKey, "JWT"); err != nil {
		return nil, err
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS512, b.cfg.PrivateKey, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return nil, fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}

// exchange POSTs the assertion to the token endpoint and parses the grant.
func (b *Broker) exchange(ctx context.Context, assertion []byte) (interfaces.BearerToken, error) {
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {string(assertion)},
	}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("apikey", b.cfg.APIKey)

	requestedAt := b.now()
	resp, err := b.client.Do(ctx, http.MethodPost, b.cfg.TokenURL, header, []byte(form.Encode()))
	if err != nil {
		if errors.Is(err, interfaces.ErrRateLimited) || errors.Is(err, interfaces.ErrServer) || errors.Is(err, interfaces.ErrNetwork) {
			return interfaces.BearerToken{}, fmt.Errorf("token exchange: %w", err)
		}
		// Any non-transient rejection of the exchange means the credentials
		// or the assertion signature are bad.
		return interfaces.BearerToken{}, fmt.Errorf("%w: %v", interfaces.ErrAuthRejected, err)
	}
	metrics.TokenExchanges.Inc()

	var grant struct {
		AccessToken string         `json:"access_token"`
		ExpiresIn   flexibleNumber `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &grant); err != nil {
		return interfaces.BearerToken{}, fmt.Errorf("%w: parsing token response: %v", interfaces.ErrAuthRejected, err)
	}
	if grant.AccessToken == "" {
		return interfaces.BearerToken{}, fmt.Errorf("%w: token response missing access_token", interfaces.ErrAuthRejected)
	}

	lifetime := time.Duration(grant.ExpiresIn) * time.Second
	if lifetime <= 0 {
		// The provider caps tokens at five minutes; assume the worst when it
		// does not say.
		lifetime = time.Minute
	}

	token := interfaces.BearerToken{
		Value:     grant.AccessToken,
		ExpiresAt: requestedAt.Add(lifetime - b.cfg.ExpiryMargin),
	}

	b.log.Debug("Obtained bearer token",
		slog.Time("expires_at", token.ExpiresAt),
		slog.Duration("lifetime", lifetime))

	return token, nil
}

// flexibleNumber parses expires_in whether the provider sends it as a JSON
// number or as a quoted string of digits.
type flexibleNumber int64

func (n *flexibleNumber) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %q", string(data))
	}
	*n = flexibleNumber(v)
	return nil
}
