package interfaces

import (
	"errors"
	"strings"
	"time"
)

// EntryKey is the composite key of a catalog record. URL is globally unique
// and stable across catalog refreshes; Name is the human-readable label the
// provider reported alongside it.
type EntryKey struct {
	URL  string
	Name string
}

// NewEntryKey validates and builds a composite key.
func NewEntryKey(url, name string) (EntryKey, error) {
	if strings.TrimSpace(url) == "" {
		return EntryKey{}, errors.New("entry key requires a non-empty URL")
	}
	if strings.TrimSpace(name) == "" {
		return EntryKey{}, errors.New("entry key requires a non-empty name")
	}
	return EntryKey{URL: url, Name: name}, nil
}

// String returns a log-friendly representation of the key.
func (k EntryKey) String() string {
	return k.Name + " (" + k.URL + ")"
}

// CatalogEntry is one archived record. Fields holds the additional fields
// fetched by enrichment passes; it is sparse, most entries carry none until
// an enricher has visited them.
type CatalogEntry struct {
	URL    string
	Name   string
	Fields map[string]string
}

// Key returns the entry's composite store key.
func (e CatalogEntry) Key() EntryKey {
	return EntryKey{URL: e.URL, Name: e.Name}
}

// HasField reports whether the entry already carries the named field.
func (e CatalogEntry) HasField(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// BearerToken is a short-lived credential for authenticated provider calls.
// It lives only in memory for the duration of one invocation and must never
// be presented after ExpiresAt.
type BearerToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be presented at the given time.
// A zero token is never valid.
func (t BearerToken) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// ScanPage is one page of a filtered catalog scan. NextToken is the store's
// opaque continuation token; empty means the scan reached the end of the
// table. The token is only meaningful within the invocation that obtained it.
type ScanPage struct {
	Entries   []CatalogEntry
	NextToken string
}
