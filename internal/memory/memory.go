// Package memory persists the interaction log: every answered question,
// its topics and confidence, used to condition later query analysis.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an interaction ID does not exist.
var ErrNotFound = errors.New("interaction not found")

// Interaction is one answered question.
type Interaction struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Topics     []string  `json:"topics"`
	Sources    []string  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type logDocument struct {
	Interactions   []Interaction `json:"interactions"`
	TopicsExplored []string      `json:"topics_explored"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// Log is the durable interaction log, a JSON document with a single writer.
// Entries written by older versions may lack IDs or titles; they are
// backfilled on first load and the document rewritten once.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates a log persisted at dir/memory.json.
func NewLog(dir string) *Log {
	return &Log{path: filepath.Join(dir, "memory.json")}
}

// Add appends an interaction and merges its topics into the explored set.
// An empty title defaults to the question. Returns the assigned ID.
func (l *Log) Add(question, answer string, topics, sources []string, confidence float64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return "", err
	}
	entry := Interaction{
		ID:         uuid.NewString(),
		Title:      question,
		Question:   question,
		Answer:     answer,
		Topics:     topics,
		Sources:    sources,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
	doc.Interactions = append(doc.Interactions, entry)
	for _, topic := range topics {
		if topic != "" && !containsFold(doc.TopicsExplored, topic) {
			doc.TopicsExplored = append(doc.TopicsExplored, topic)
		}
	}
	doc.LastUpdated = entry.Timestamp
	if err := l.save(doc); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// All returns the interactions in insertion order.
func (l *Log) All() ([]Interaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return doc.Interactions, nil
}

// Delete removes the interaction with the given ID.
func (l *Log) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return err
	}
	for i, entry := range doc.Interactions {
		if entry.ID == id {
			doc.Interactions = append(doc.Interactions[:i], doc.Interactions[i+1:]...)
			doc.LastUpdated = time.Now().UTC()
			return l.save(doc)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Rename sets a new title on the interaction with the given ID.
func (l *Log) Rename(id, title string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return err
	}
	for i := range doc.Interactions {
		if doc.Interactions[i].ID == id {
			doc.Interactions[i].Title = title
			doc.LastUpdated = time.Now().UTC()
			return l.save(doc)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Clear removes the persisted log entirely.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Context renders a short conditioning block from the most recent
// interactions: up to ten explored topics plus the last limit questions
// with their topics. Returns "" when the log is empty.
func (l *Log) Context(limit int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return "", err
	}
	if len(doc.Interactions) == 0 {
		return "", nil
	}
	if limit <= 0 {
		limit = 3
	}

	var b strings.Builder
	topics := doc.TopicsExplored
	if len(topics) > 10 {
		topics = topics[len(topics)-10:]
	}
	if len(topics) > 0 {
		b.WriteString("Topics explored: ")
		b.WriteString(strings.Join(topics, ", "))
		b.WriteString("\n")
	}
	recent := doc.Interactions
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	b.WriteString("Recent questions:\n")
	for _, entry := range recent {
		b.WriteString("- ")
		b.WriteString(entry.Question)
		if len(entry.Topics) > 0 {
			b.WriteString(" (topics: ")
			b.WriteString(strings.Join(entry.Topics, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (l *Log) load() (*logDocument, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &logDocument{}, nil
		}
		return nil, err
	}
	var doc logDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	// backfill entries persisted before ids and titles existed
	migrated := false
	for i := range doc.Interactions {
		if doc.Interactions[i].ID == "" {
			doc.Interactions[i].ID = uuid.NewString()
			migrated = true
		}
		if doc.Interactions[i].Title == "" {
			doc.Interactions[i].Title = doc.Interactions[i].Question
			migrated = true
		}
	}
	if migrated {
		if err := l.save(&doc); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func (l *Log) save(doc *logDocument) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

func containsFold(values []string, v string) bool {
	for _, x := range values {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
