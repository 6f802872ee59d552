package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIndexServer serves a paginated catalog index with the given items per
// page, advertising a Next Page link on every page but the last.
func newIndexServer(t *testing.T, pages [][]link) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		require.LessOrEqual(t, page, len(pages), "pages past the last advertised one must not be fetched")

		doc := indexPage{SignificantLink: pages[page-1]}
		if page < len(pages) {
			doc.RelatedLink = []link{{Name: "Next Page", URL: fmt.Sprintf("%s?page=%d", r.Host, page+1)}}
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
}

func TestListerWritesEveryPage(t *testing.T) {
	srv := newIndexServer(t, [][]link{
		{
			{Name: "Aspirin", URL: "https://provider/medicines/aspirin"},
			{Name: "Ibuprofen", URL: "https://provider/medicines/ibuprofen"},
		},
		{
			{Name: "Paracetamol", URL: "https://provider/medicines/paracetamol"},
		},
	})
	defer srv.Close()

	store := storage.NewMemoryCatalogStore()
	lister, err := NewLister(ListerConfig{IndexURL: srv.URL, APIKey: "key123"},
		store, &stubTokens{token: "tok"}, fastClient(), testLogger())
	require.NoError(t, err)

	count, err := lister.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, store.Len())

	entry, err := store.Get(context.Background(), interfaces.EntryKey{
		URL:  "https://provider/medicines/aspirin",
		Name: "Aspirin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", entry.Name)
}

func TestListerIsIdempotent(t *testing.T) {
	pages := [][]link{{
		{Name: "Aspirin", URL: "https://provider/medicines/aspirin"},
	}}

	srv := newIndexServer(t, pages)
	defer srv.Close()

	store := storage.NewMemoryCatalogStore()
	key := interfaces.EntryKey{URL: "https://provider/medicines/aspirin", Name: "Aspirin"}

	// Pre-enrich the record; a second listing run must not wipe the field.
	require.NoError(t, store.Upsert(context.Background(), interfaces.CatalogEntry{
		URL: key.URL, Name: key.Name,
		Fields: map[string]string{"description": "pain relief"},
	}))

	lister, err := NewLister(ListerConfig{IndexURL: srv.URL, APIKey: "key123"},
		store, &stubTokens{token: "tok"}, fastClient(), testLogger())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		count, err := lister.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}

	assert.Equal(t, 1, store.Len())
	entry, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "pain relief", entry.Fields["description"])
}

func TestListerSkipsMalformedItems(t *testing.T) {
	srv := newIndexServer(t, [][]link{{
		{Name: "Aspirin", URL: "https://provider/medicines/aspirin"},
		{Name: "", URL: "https://provider/medicines/unnamed"},
		{Name: "No URL", URL: ""},
	}})
	defer srv.Close()

	store := storage.NewMemoryCatalogStore()
	lister, err := NewLister(ListerConfig{IndexURL: srv.URL, APIKey: "key123"},
		store, &stubTokens{token: "tok"}, fastClient(), testLogger())
	require.NoError(t, err)

	count, err := lister.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, store.Len())
}

func TestListerStopsOnEmptyPage(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		// Claims a next page but lists nothing; the run must still terminate.
		w.Write([]byte(`{"significantLink":[],"relatedLink":[{"name":"Next Page","url":"https://x?page=2"}]}`))
	}))
	defer srv.Close()

	lister, err := NewLister(ListerConfig{IndexURL: srv.URL, APIKey: "key123"},
		storage.NewMemoryCatalogStore(), &stubTokens{token: "tok"}, fastClient(), testLogger())
	require.NoError(t, err)

	count, err := lister.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, hits)
}

func TestListerRequiresIndexURL(t *testing.T) {
	_, err := NewLister(ListerConfig{}, storage.NewMemoryCatalogStore(),
		&stubTokens{token: "tok"}, fastClient(), testLogger())
	require.Error(t, err)
}
