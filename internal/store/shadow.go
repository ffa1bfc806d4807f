// Package store holds the durable local documents maintained alongside the
// vector index: the chunk shadow store and the aggregate index statistics.
// Each document is a JSON file with a single writer; all read-modify-write
// cycles are serialised behind the store's mutex so concurrent ingestions
// cannot lose updates.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"pdfsearch/internal/domain"
)

// ShadowStore is the durable map from derived chunk ID to the full chunk
// record. It exists because vector-index metadata is not treated as
// authoritative: search hits carry only id+score and are hydrated here.
type ShadowStore struct {
	mu   sync.RWMutex
	path string
}

// NewShadowStore creates a shadow store persisted at dir/chunk_store.json.
func NewShadowStore(dir string) *ShadowStore {
	return &ShadowStore{path: filepath.Join(dir, "chunk_store.json")}
}

// PutBatch appends or overwrites the entries for one committed ingestion
// batch in a single read-modify-write cycle.
func (s *ShadowStore) PutBatch(chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	for _, c := range chunks {
		entries[c.DerivedID()] = domain.ShadowEntry{
			Text:     c.Text,
			FileName: c.SourceFile,
			Page:     c.Page,
			Sequence: c.Sequence,
		}
	}
	return s.save(entries)
}

// Get returns the entry for a derived ID. The second result reports whether
// the ID was present; absence is not an error.
func (s *ShadowStore) Get(id string) (domain.ShadowEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := s.load()
	if err != nil {
		return domain.ShadowEntry{}, false, err
	}
	entry, ok := entries[id]
	return entry, ok, nil
}

// ForFile returns all entries belonging to one source document, ordered by
// chunk sequence.
func (s *ShadowStore) ForFile(fileName string) ([]domain.ShadowEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []domain.ShadowEntry
	for _, e := range entries {
		if e.FileName == fileName {
			out = append(out, e)
		}
	}
	// insertion sort by sequence; batches are small
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Sequence < out[j-1].Sequence; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *ShadowStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Reset removes the persisted document.
func (s *ShadowStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ShadowStore) load() (map[string]domain.ShadowEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.ShadowEntry{}, nil
		}
		return nil, err
	}
	entries := map[string]domain.ShadowEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *ShadowStore) save(entries map[string]domain.ShadowEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
