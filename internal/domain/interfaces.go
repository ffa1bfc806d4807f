package domain

// Embedder converts free text into a fixed-dimension vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(text string) ([]float64, error)
	// EmbedBatch embeds several texts in one call. The returned slice is
	// order-preserving with respect to the input.
	EmbedBatch(texts []string) ([][]float64, error)
}

// VectorIndex persists vectors under opaque IDs and supports similarity
// search. Backends may be a remote service or a local in-process engine.
type VectorIndex interface {
	// CreateCollection is idempotent: an already-existing collection with
	// the same dimension is treated as success.
	CreateCollection(dimension int) error
	Insert(points []VectorPoint) error
	// Search returns hits ordered by descending similarity. filter, when
	// non-empty, restricts results by payload field equality.
	Search(vector []float64, topK int, filter map[string]string) ([]VectorHit, error)
	DeleteCollection() error
	// Info returns collection details, or nil if the collection is absent.
	Info() (*CollectionInfo, error)
}

// Chunker splits one page of text into overlapping chunks. Implementations
// are stateless across pages.
type Chunker interface {
	ChunkPage(text string) []string
}

// PageExtractor produces raw per-page text from a document on disk.
// Extraction internals are opaque to the rest of the system.
type PageExtractor interface {
	// ExtractPages returns the non-empty pages of the document in order.
	ExtractPages(path string) ([]Page, error)
	// Supports reports whether the extractor can handle the file.
	Supports(path string) bool
}

// LLMClient is the language-model capability consumed by the reasoning
// stages. Either call may fail or return malformed output; callers supply
// their own fallbacks.
type LLMClient interface {
	Complete(prompt string) (string, error)
	// CompleteJSON asks for a structured response and decodes it into out.
	CompleteJSON(prompt string, out any) error
}
