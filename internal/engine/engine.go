// Package engine drives the two halves of the search core: the ingestion
// pipeline (page extraction -> chunking -> batched embedding -> dual-store
// commit) and the retriever (query embedding -> vector search -> local
// hydration).
package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"pdfsearch/internal/domain"
	"pdfsearch/internal/status"
	"pdfsearch/internal/store"
	"pdfsearch/internal/summarizer"
)

// Engine owns the vector index and the local shadow documents and keeps the
// two tiers consistent batch by batch.
type Engine struct {
	extractor domain.PageExtractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	index     domain.VectorIndex
	shadow    *store.ShadowStore
	stats     *store.StatsStore
	tracker   *status.Tracker
	summary   *summarizer.FrequencySummarizer
	batchSize int
}

// DocumentInfo is one ingested document's aggregate view.
type DocumentInfo struct {
	FileName string
	Chunks   int
	Pages    int
}

// New creates an engine. batchSize bounds how many chunks are embedded and
// inserted per pipeline step; non-positive values select the default of 50.
func New(
	extractor domain.PageExtractor,
	chunker domain.Chunker,
	embedder domain.Embedder,
	index domain.VectorIndex,
	shadow *store.ShadowStore,
	stats *store.StatsStore,
	tracker *status.Tracker,
	batchSize int,
) *Engine {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Engine{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		shadow:    shadow,
		stats:     stats,
		tracker:   tracker,
		summary:   summarizer.NewFrequencySummarizer(),
		batchSize: batchSize,
	}
}

// Ingest processes a single document or every supported document in a
// directory. Documents are processed sequentially; a failure aborts the run
// but everything committed before it stays committed.
func (e *Engine) Ingest(source string) (string, error) {
	paths, err := e.resolveSources(source)
	if err != nil {
		return "", err
	}

	totalChunks := 0
	for _, path := range paths {
		n, err := e.ingestFile(path)
		totalChunks += n
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("ingested %d chunks from %d document(s)", totalChunks, len(paths)), nil
}

// QueueDocument registers a source's documents as queued before background
// ingestion begins, so pollers see them immediately. Directories are
// expanded to their supported files; only per-file records are created,
// since the later ingestion drives each of them to a terminal state.
// Unresolvable sources are skipped here and fail in Ingest instead.
func (e *Engine) QueueDocument(source string) {
	paths, err := e.resolveSources(source)
	if err != nil {
		return
	}
	for _, path := range paths {
		e.tracker.Update(filepath.Base(path), status.StateQueued, "queued for ingestion", 0, 0)
	}
}

// resolveSources expands a file or directory argument into the list of
// supported document paths.
func (e *Engine) resolveSources(source string) ([]string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", source, err)
	}
	if !info.IsDir() {
		if !e.extractor.Supports(source) {
			return nil, fmt.Errorf("unsupported document type: %s", filepath.Base(source))
		}
		return []string{source}, nil
	}
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", source, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		p := filepath.Join(source, entry.Name())
		if e.extractor.Supports(p) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported documents found in %s", source)
	}
	return paths, nil
}

// ingestFile streams one document through the pipeline in bounded batches.
// Each committed batch updates the vector index, the shadow store and the
// statistics together; a failing batch aborts the document while prior
// batches stay committed.
func (e *Engine) ingestFile(path string) (int, error) {
	name := filepath.Base(path)
	e.tracker.Update(name, status.StateProcessing, "extracting text", 0, 0)

	fail := func(n int, err error) (int, error) {
		e.tracker.Update(name, status.StateFailed, err.Error(), 0, 0)
		return n, err
	}

	dimension := e.embedder.Dimension()
	if dimension <= 0 {
		return fail(0, fmt.Errorf("embedder %s does not declare a dimension", e.embedder.Name()))
	}
	if err := e.index.CreateCollection(dimension); err != nil {
		return fail(0, fmt.Errorf("create collection: %w", err))
	}

	pages, err := e.extractor.ExtractPages(path)
	if err != nil {
		return fail(0, err)
	}

	if known, err := e.stats.HasFile(name); err == nil && known {
		log.Printf("warning: %s was already ingested; aggregate statistics will over-count (reset the index first for exact counts)", name)
	}

	committed := 0
	sequence := 0
	batch := make([]domain.Chunk, 0, e.batchSize)

	commit := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := e.embedder.EmbedBatch(texts)
		if err != nil {
			return fmt.Errorf("embedding failed after %d committed chunks: %w", committed, err)
		}
		points := make([]domain.VectorPoint, len(batch))
		for i, c := range batch {
			points[i] = domain.VectorPoint{
				ID:     c.DerivedID(),
				Vector: vectors[i],
				Payload: map[string]any{
					"file_name": c.SourceFile,
					"page":      c.Page,
					"chunk_id":  c.Sequence,
					"text":      c.Text,
				},
			}
		}
		if err := e.index.Insert(points); err != nil {
			return fmt.Errorf("vector insert failed after %d committed chunks: %w", committed, err)
		}
		if err := e.shadow.PutBatch(batch); err != nil {
			return fmt.Errorf("shadow store write failed after %d committed chunks: %w", committed, err)
		}
		if err := e.stats.ApplyBatch(batch, e.embedder.Name(), dimension); err != nil {
			return fmt.Errorf("statistics write failed after %d committed chunks: %w", committed, err)
		}
		committed += len(batch)
		batch = batch[:0]
		e.tracker.Update(name, status.StateProcessing, "indexing", committed, 0)
		return nil
	}

	for _, page := range pages {
		for _, text := range e.chunker.ChunkPage(page.Text) {
			batch = append(batch, domain.Chunk{
				Text:       text,
				Page:       page.Number,
				Sequence:   sequence,
				SourceFile: name,
			})
			sequence++
			if len(batch) >= e.batchSize {
				if err := commit(); err != nil {
					return fail(committed, err)
				}
			}
		}
	}
	if err := commit(); err != nil {
		return fail(committed, err)
	}

	if committed == 0 {
		return fail(0, fmt.Errorf("no chunks extracted from %s: file may be empty or unreadable", name))
	}
	e.tracker.Update(name, status.StateCompleted, fmt.Sprintf("ingested %d chunks", committed), committed, committed)
	return committed, nil
}

// Search embeds the query, runs a similarity search (optionally filtered to
// one source document) and hydrates the hits from the shadow store. Hits
// without a shadow entry are dropped and counted, never raised. The index's
// ranking order is preserved.
func (e *Engine) Search(query string, topK int, fileFilter string) ([]domain.ScoredChunk, error) {
	vector, err := e.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var filter map[string]string
	if fileFilter != "" {
		filter = map[string]string{"file_name": fileFilter}
	}
	hits, err := e.index.Search(vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	results := make([]domain.ScoredChunk, 0, len(hits))
	misses := 0
	for _, hit := range hits {
		entry, ok, err := e.shadow.Get(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("shadow store read: %w", err)
		}
		if !ok {
			misses++
			continue
		}
		results = append(results, domain.ScoredChunk{
			ID:       hit.ID,
			Score:    hit.Score,
			Text:     entry.Text,
			FileName: entry.FileName,
			Page:     entry.Page,
		})
	}
	if misses > 0 {
		log.Printf("warning: %d search hit(s) had no shadow store entry and were dropped", misses)
	}
	return results, nil
}

// Info returns the aggregate index statistics, or nil when nothing was
// ever ingested.
func (e *Engine) Info() (*store.IndexStats, error) {
	return e.stats.Get()
}

// Documents lists the ingested documents with their chunk and page counts,
// sorted by file name.
func (e *Engine) Documents() ([]DocumentInfo, error) {
	stats, err := e.stats.Get()
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, nil
	}
	docs := make([]DocumentInfo, 0, len(stats.Files))
	for name, fs := range stats.Files {
		docs = append(docs, DocumentInfo{FileName: name, Chunks: fs.Chunks, Pages: len(fs.Pages)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].FileName < docs[j].FileName })
	return docs, nil
}

// Summarize produces an extractive summary of one ingested document from
// its shadow-store chunks.
func (e *Engine) Summarize(fileName string, maxSentences int) (string, error) {
	entries, err := e.shadow.ForFile(fileName)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("document %s is not in the index", fileName)
	}
	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}
	return e.summary.Summarize(texts, maxSentences), nil
}

// Reset deletes the vector collection and both local documents. Required
// before re-ingestion when exact aggregate counts matter.
func (e *Engine) Reset() error {
	if err := e.index.DeleteCollection(); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := e.shadow.Reset(); err != nil {
		return err
	}
	return e.stats.Reset()
}

// Status exposes the ingestion tracker for pollers.
func (e *Engine) Status() *status.Tracker { return e.tracker }
