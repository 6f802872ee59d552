package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/medarchive/content-pipeline/interfaces"
)

// MemoryCatalogStore is an in-memory catalog store for tests and local runs.
// It honors the same contract as the DynamoDB store: idempotent upserts,
// field-level updates, and a resumable missing-field scan with opaque
// continuation tokens. Iteration order is deterministic (sorted by key).
type MemoryCatalogStore struct {
	mu      sync.Mutex
	entries map[interfaces.EntryKey]interfaces.CatalogEntry
}

// NewMemoryCatalogStore creates an empty in-memory catalog store.
func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		entries: map[interfaces.EntryKey]interfaces.CatalogEntry{},
	}
}

// Len returns the number of stored entries.
func (s *MemoryCatalogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Upsert creates the record if absent and merges carried fields if present.
func (s *MemoryCatalogStore) Upsert(_ context.Context, entry interfaces.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	existing, ok := s.entries[key]
	if !ok {
		existing = interfaces.CatalogEntry{URL: entry.URL, Name: entry.Name}
	}
	for field, value := range entry.Fields {
		if existing.Fields == nil {
			existing.Fields = map[string]string{}
		}
		existing.Fields[field] = value
	}
	s.entries[key] = existing
	return nil
}

// Get fetches one record by its composite key.
func (s *MemoryCatalogStore) Get(_ context.Context, key interfaces.EntryKey) (interfaces.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return interfaces.CatalogEntry{}, interfaces.ErrEntryNotFound
	}
	return copyEntry(entry), nil
}

// SetField updates exactly one field of an existing record.
func (s *MemoryCatalogStore) SetField(_ context.Context, key interfaces.EntryKey, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrEntryNotFound, key)
	}
	if entry.Fields == nil {
		entry.Fields = map[string]string{}
	}
	entry.Fields[field] = value
	s.entries[key] = entry
	return nil
}

// ScanMissingField returns up to limit entries lacking the named field,
// resuming after the entry identified by startToken.
func (s *MemoryCatalogStore) ScanMissingField(_ context.Context, field, startToken string, limit int) (interfaces.ScanPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var after interfaces.EntryKey
	resuming := startToken != ""
	if resuming {
		key, err := decodeMemoryToken(startToken)
		if err != nil {
			return interfaces.ScanPage{}, fmt.Errorf("%w: %v", interfaces.ErrStore, err)
		}
		after = key
	}

	keys := make([]interfaces.EntryKey, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].URL != keys[j].URL {
			return keys[i].URL < keys[j].URL
		}
		return keys[i].Name < keys[j].Name
	})

	page := interfaces.ScanPage{}
	for i, key := range keys {
		if resuming {
			if key == after {
				resuming = false
			}
			continue
		}

		entry := s.entries[key]
		if entry.HasField(field) {
			continue
		}

		page.Entries = append(page.Entries, copyEntry(entry))
		if len(page.Entries) == limit {
			if i < len(keys)-1 {
				page.NextToken = encodeMemoryToken(key)
			}
			break
		}
	}

	return page, nil
}

func copyEntry(entry interfaces.CatalogEntry) interfaces.CatalogEntry {
	out := interfaces.CatalogEntry{URL: entry.URL, Name: entry.Name}
	if entry.Fields != nil {
		out.Fields = make(map[string]string, len(entry.Fields))
		for k, v := range entry.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

func encodeMemoryToken(key interfaces.EntryKey) string {
	raw, _ := json.Marshal([2]string{key.URL, key.Name})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeMemoryToken(token string) (interfaces.EntryKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return interfaces.EntryKey{}, fmt.Errorf("decoding continuation token: %v", err)
	}
	var parts [2]string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return interfaces.EntryKey{}, fmt.Errorf("decoding continuation token: %v", err)
	}
	return interfaces.EntryKey{URL: parts[0], Name: parts[1]}, nil
}

// MemorySecretStore is an in-memory secret store for tests and local runs.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: map[string]string{}}
}

func (s *MemorySecretStore) PutSecret(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
	return nil
}

func (s *MemorySecretStore) GetSecret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("%w: secret %q not found", interfaces.ErrStore, name)
	}
	return value, nil
}

// MemoryParameterStore is an in-memory parameter store for tests and local
// runs.
type MemoryParameterStore struct {
	mu     sync.RWMutex
	params map[string]string
}

// NewMemoryParameterStore creates an empty in-memory parameter store.
func NewMemoryParameterStore() *MemoryParameterStore {
	return &MemoryParameterStore{params: map[string]string{}}
}

func (s *MemoryParameterStore) PutParameter(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[name] = value
	return nil
}

func (s *MemoryParameterStore) GetParameter(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.params[name]
	if !ok {
		return "", fmt.Errorf("%w: parameter %q not found", interfaces.ErrStore, name)
	}
	return value, nil
}
