package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastClient() *httpclient.Client {
	return httpclient.New(httpclient.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, testLogger())
}

// stubTokens hands out a fixed bearer token and counts invalidations.
type stubTokens struct {
	token         string
	err           error
	invalidations int
}

func (s *stubTokens) Token(context.Context) (interfaces.BearerToken, error) {
	if s.err != nil {
		return interfaces.BearerToken{}, s.err
	}
	return interfaces.BearerToken{
		Value:     s.token,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (s *stubTokens) Invalidate() { s.invalidations++ }

func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name     string
		page     indexPage
		expected bool
	}{
		{
			name:     "next page advertised",
			page:     indexPage{RelatedLink: []link{{Name: "Next Page", URL: "https://x?page=2"}}},
			expected: true,
		},
		{
			name:     "only other navigation",
			page:     indexPage{RelatedLink: []link{{Name: "Previous Page", URL: "https://x?page=1"}}},
			expected: false,
		},
		{
			name:     "no navigation",
			page:     indexPage{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.page.hasNextPage())
		})
	}
}

func TestFetcherRetriesOnceAfterUnauthorized(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "tok"}
	f := &fetcher{tokens: tokens, client: fastClient(), apiKey: "key123"}

	body, err := f.get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, tokens.invalidations, "stale token must be dropped before the second attempt")
}

func TestFetcherSurfacesPersistentUnauthorized(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "tok"}
	f := &fetcher{tokens: tokens, client: fastClient(), apiKey: "key123"}

	_, err := f.get(context.Background(), srv.URL)
	require.ErrorIs(t, err, interfaces.ErrUnauthorized)
	assert.Equal(t, 2, hits, "exactly one refresh attempt, never a loop")
	assert.Equal(t, 1, tokens.invalidations)
}

func TestFetcherSendsAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "key123", r.Header.Get("apikey"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := &fetcher{tokens: &stubTokens{token: "tok"}, client: fastClient(), apiKey: "key123"}

	_, err := f.get(context.Background(), srv.URL)
	require.NoError(t, err)
}
