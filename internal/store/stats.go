package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pdfsearch/internal/domain"
)

// FileStats aggregates chunk and page counts for one ingested document.
type FileStats struct {
	Chunks int   `json:"chunks"`
	Pages  []int `json:"pages"`
}

// IndexStats is the aggregate index-statistics document. total_chunks always
// equals the sum of chunk counts over files; the pages list per file is
// sorted and duplicate-free.
type IndexStats struct {
	TotalChunks        int                  `json:"total_chunks"`
	Files              map[string]FileStats `json:"files"`
	EmbeddingModel     string               `json:"embedding_model"`
	EmbeddingDimension int                  `json:"embedding_dimension"`
}

// StatsStore persists the index statistics at dir/document_index.json,
// mutated incrementally as ingestion batches commit.
type StatsStore struct {
	mu   sync.RWMutex
	path string
}

// NewStatsStore creates a stats store persisted under dir.
func NewStatsStore(dir string) *StatsStore {
	return &StatsStore{path: filepath.Join(dir, "document_index.json")}
}

// ApplyBatch merges one committed ingestion batch into the statistics.
// Counts are incremented, never recomputed; re-ingesting a document without
// a prior Reset therefore over-counts aggregates while the shadow store
// stays correct (documented limitation).
func (s *StatsStore) ApplyBatch(chunks []domain.Chunk, model string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, err := s.load()
	if err != nil {
		return err
	}
	if stats == nil {
		stats = &IndexStats{Files: map[string]FileStats{}}
	}
	stats.EmbeddingModel = model
	stats.EmbeddingDimension = dimension
	stats.TotalChunks += len(chunks)
	for _, c := range chunks {
		fs := stats.Files[c.SourceFile]
		fs.Chunks++
		if !containsInt(fs.Pages, c.Page) {
			fs.Pages = append(fs.Pages, c.Page)
			sort.Ints(fs.Pages)
		}
		stats.Files[c.SourceFile] = fs
	}
	return s.save(stats)
}

// Get returns the current statistics, or nil if nothing was ever ingested.
func (s *StatsStore) Get() (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// HasFile reports whether the document already appears in the statistics.
func (s *StatsStore) HasFile(fileName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, err := s.load()
	if err != nil || stats == nil {
		return false, err
	}
	_, ok := stats.Files[fileName]
	return ok, nil
}

// Reset removes the persisted document.
func (s *StatsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *StatsStore) load() (*IndexStats, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var stats IndexStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	if stats.Files == nil {
		stats.Files = map[string]FileStats{}
	}
	return &stats, nil
}

func (s *StatsStore) save(stats *IndexStats) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func containsInt(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
