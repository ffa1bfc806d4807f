package domain

import "strconv"

// Chunk is a bounded text window extracted from one document page,
// the unit of embedding and retrieval.
type Chunk struct {
	Text       string
	Page       int
	Sequence   int
	SourceFile string
}

// DerivedID is the globally unique chunk identifier used as the join key
// between the vector index and the shadow store. Re-deriving it for the same
// source and configuration yields the same ID, making inserts idempotent.
func (c Chunk) DerivedID() string {
	return c.SourceFile + "_" + strconv.Itoa(c.Sequence)
}

// ShadowEntry is the full chunk record kept in the local shadow store,
// keyed by derived ID.
type ShadowEntry struct {
	Text     string `json:"text"`
	FileName string `json:"file_name"`
	Page     int    `json:"page"`
	Sequence int    `json:"chunk_id"`
}

// ScoredChunk is a vector-search hit hydrated from the shadow store.
type ScoredChunk struct {
	ID       string
	Score    float64
	Text     string
	FileName string
	Page     int
}

// VectorPoint is one vector with its identifier and payload, as inserted
// into the vector index.
type VectorPoint struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// VectorHit is a raw similarity-search result. Only the ID and score are
// trusted; metadata is always re-hydrated from the shadow store.
type VectorHit struct {
	ID    string
	Score float64
}

// CollectionInfo describes an existing vector index collection.
type CollectionInfo struct {
	Name      string
	Dimension int
	Points    int
}

// Page is raw per-page text produced by a page extractor.
type Page struct {
	Number int
	Text   string
}
