// Package status tracks per-document ingestion progress in a process-wide
// map shared by the ingestion orchestrator (writer) and status pollers
// (readers).
package status

import (
	"sync"
	"time"
)

// State is the lifecycle state of one document's ingestion.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Record is the progress of one document. Terminal at completed/failed.
type Record struct {
	State     State     `json:"status"`
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker is a concurrency-safe map from document name to its ingestion
// record.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewTracker creates an empty status tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]Record)}
}

// Update merges the provided fields into the document's record. Message is
// only overwritten when non-empty, progress and total only when positive,
// so a later partial update cannot regress them to zero.
func (t *Tracker) Update(document string, state State, message string, progress, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.records[document]
	rec.State = state
	rec.UpdatedAt = time.Now()
	if message != "" {
		rec.Message = message
	}
	if progress > 0 {
		rec.Progress = progress
	}
	if total > 0 {
		rec.Total = total
	}
	t.records[document] = rec
}

// Get returns the record for one document.
func (t *Tracker) Get(document string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[document]
	return rec, ok
}

// All returns a snapshot of every record.
func (t *Tracker) All() map[string]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Record, len(t.records))
	for k, v := range t.records {
		out[k] = v
	}
	return out
}

// ClearFinished removes completed and failed records.
func (t *Tracker) ClearFinished() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.records {
		if v.State == StateCompleted || v.State == StateFailed {
			delete(t.records, k)
		}
	}
}
