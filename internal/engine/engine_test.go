package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfsearch/internal/chunker"
	"pdfsearch/internal/domain"
	"pdfsearch/internal/embedding/hashing"
	"pdfsearch/internal/extract"
	"pdfsearch/internal/status"
	"pdfsearch/internal/store"
	"pdfsearch/internal/vectorindex/memory"
)

func newTestEngine(t *testing.T, batchSize int) (*Engine, *memory.Index, *store.ShadowStore, *store.StatsStore) {
	t.Helper()
	dir := t.TempDir()
	ch, err := chunker.NewWindowChunker(20, 0)
	require.NoError(t, err)
	index := memory.NewIndex()
	shadow := store.NewShadowStore(dir)
	stats := store.NewStatsStore(dir)
	eng := New(extract.NewTextExtractor(), ch, hashing.NewEmbedder(64), index, shadow, stats, status.NewTracker(), batchSize)
	return eng, index, shadow, stats
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Two pages separated by a form feed: page one yields two chunks of the
// 20-rune window, page two yields one.
const twoPageDoc = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\fbbbbbbbbbb"

func TestIngestTwoPageDocument(t *testing.T) {
	eng, index, shadow, stats := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "doc.txt", twoPageDoc)

	msg, err := eng.Ingest(path)
	require.NoError(t, err)
	assert.Contains(t, msg, "3 chunks")

	st, err := stats.Get()
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 3, st.TotalChunks)
	assert.Equal(t, 3, st.Files["doc.txt"].Chunks)
	assert.Equal(t, []int{1, 2}, st.Files["doc.txt"].Pages)
	assert.Equal(t, "hashing-64", st.EmbeddingModel)
	assert.Equal(t, 64, st.EmbeddingDimension)

	n, err := shadow.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	info, err := index.Info()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 3, info.Points)

	rec, ok := eng.Status().Get("doc.txt")
	require.True(t, ok)
	assert.Equal(t, status.StateCompleted, rec.State)
	assert.Equal(t, 3, rec.Progress)
	assert.Equal(t, 3, rec.Total)
}

func TestSearchHydratesFromShadowStore(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "doc.txt", twoPageDoc)
	_, err := eng.Ingest(path)
	require.NoError(t, err)

	results, err := eng.Search("bbbbbbbbbb", 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// best hit is the page-two chunk, fully hydrated
	assert.Equal(t, "bbbbbbbbbb", results[0].Text)
	assert.Equal(t, "doc.txt", results[0].FileName)
	assert.Equal(t, 2, results[0].Page)
	assert.Equal(t, "doc.txt_2", results[0].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchFileFilter(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	dir := t.TempDir()
	_, err := eng.Ingest(writeDoc(t, dir, "one.txt", "cccccccccc"))
	require.NoError(t, err)
	_, err = eng.Ingest(writeDoc(t, dir, "two.txt", "cccccccccc"))
	require.NoError(t, err)

	results, err := eng.Search("cccccccccc", 5, "two.txt")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "two.txt", r.FileName)
	}
}

func TestSearchDropsHitsWithoutShadowEntry(t *testing.T) {
	eng, index, _, _ := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "doc.txt", "dddddddddd")
	_, err := eng.Ingest(path)
	require.NoError(t, err)

	// a point the shadow store has never seen
	vec, err := hashing.NewEmbedder(64).Embed("dddddddddd")
	require.NoError(t, err)
	require.NoError(t, index.Insert([]domain.VectorPoint{{ID: "orphan", Vector: vec}}))

	results, err := eng.Search("dddddddddd", 5, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc.txt_0", results[0].ID)
}

func TestIngestEmptyFileFails(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "empty.txt", "   \n  ")

	_, err := eng.Ingest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chunks")

	rec, ok := eng.Status().Get("empty.txt")
	require.True(t, ok)
	assert.Equal(t, status.StateFailed, rec.State)
}

func TestIngestUnsupportedFileFails(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "image.png", "not text")

	_, err := eng.Ingest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestIngestDirectory(t *testing.T) {
	eng, _, _, stats := newTestEngine(t, 50)
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "eeeeeeeeee")
	writeDoc(t, dir, "b.txt", "ffffffffff")
	writeDoc(t, dir, "skip.bin", "binary")

	msg, err := eng.Ingest(dir)
	require.NoError(t, err)
	assert.Contains(t, msg, "2 document(s)")

	st, err := stats.Get()
	require.NoError(t, err)
	assert.Len(t, st.Files, 2)
}

func TestQueueDocumentExpandsDirectories(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "eeeeeeeeee")
	writeDoc(t, dir, "b.txt", "ffffffffff")
	writeDoc(t, dir, "skip.bin", "binary")

	eng.QueueDocument(dir)

	// No record keyed by the directory itself: ingestion never drives
	// one to a terminal state, so it must not exist.
	_, ok := eng.Status().Get(filepath.Base(dir))
	assert.False(t, ok)
	for _, name := range []string{"a.txt", "b.txt"} {
		rec, ok := eng.Status().Get(name)
		require.True(t, ok)
		assert.Equal(t, status.StateQueued, rec.State)
	}
	_, ok = eng.Status().Get("skip.bin")
	assert.False(t, ok)

	_, err := eng.Ingest(dir)
	require.NoError(t, err)
	for _, name := range []string{"a.txt", "b.txt"} {
		rec, ok := eng.Status().Get(name)
		require.True(t, ok)
		assert.Equal(t, status.StateCompleted, rec.State)
	}
}

func TestQueueDocumentSkipsUnresolvableSource(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	eng.QueueDocument(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Empty(t, eng.Status().All())
}

// failAfter embeds successfully for n batches, then fails.
type failAfter struct {
	inner   domain.Embedder
	n       int
	batches int
}

func (f *failAfter) Name() string   { return f.inner.Name() }
func (f *failAfter) Dimension() int { return f.inner.Dimension() }
func (f *failAfter) Embed(text string) ([]float64, error) {
	return f.inner.Embed(text)
}
func (f *failAfter) EmbedBatch(texts []string) ([][]float64, error) {
	if f.batches >= f.n {
		return nil, errors.New("embedding service unavailable")
	}
	f.batches++
	return f.inner.EmbedBatch(texts)
}

func TestBatchFailureKeepsCommittedBatches(t *testing.T) {
	dir := t.TempDir()
	ch, err := chunker.NewWindowChunker(20, 0)
	require.NoError(t, err)
	shadow := store.NewShadowStore(dir)
	stats := store.NewStatsStore(dir)
	emb := &failAfter{inner: hashing.NewEmbedder(64), n: 1}
	eng := New(extract.NewTextExtractor(), ch, emb, memory.NewIndex(), shadow, stats, status.NewTracker(), 1)

	path := writeDoc(t, t.TempDir(), "doc.txt", twoPageDoc)
	_, err = eng.Ingest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 committed chunks")

	// the first batch survived in both stores
	n, err := shadow.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st, err := stats.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalChunks)

	rec, ok := eng.Status().Get("doc.txt")
	require.True(t, ok)
	assert.Equal(t, status.StateFailed, rec.State)
}

func TestResetThenReingestIsIdempotent(t *testing.T) {
	eng, index, shadow, stats := newTestEngine(t, 50)
	path := writeDoc(t, t.TempDir(), "doc.txt", twoPageDoc)

	_, err := eng.Ingest(path)
	require.NoError(t, err)
	first, err := stats.Get()
	require.NoError(t, err)

	require.NoError(t, eng.Reset())
	info, err := index.Info()
	require.NoError(t, err)
	assert.Nil(t, info)
	n, err := shadow.Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = eng.Ingest(path)
	require.NoError(t, err)
	second, err := stats.Get()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDocumentsListing(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	dir := t.TempDir()
	_, err := eng.Ingest(writeDoc(t, dir, "b.txt", "gggggggggg"))
	require.NoError(t, err)
	_, err = eng.Ingest(writeDoc(t, dir, "a.txt", "hhhhhhhhhh"))
	require.NoError(t, err)

	docs, err := eng.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].FileName)
	assert.Equal(t, "b.txt", docs[1].FileName)
	assert.Equal(t, 1, docs[0].Chunks)
	assert.Equal(t, 1, docs[0].Pages)
}

func TestSummarizeIngestedDocument(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, 50)
	content := "Vector search. Fast."
	path := writeDoc(t, t.TempDir(), "doc.txt", content)
	_, err := eng.Ingest(path)
	require.NoError(t, err)

	sum, err := eng.Summarize("doc.txt", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, sum)
	assert.Contains(t, content, strings.TrimSpace(sum))

	_, err = eng.Summarize("missing.txt", 1)
	require.Error(t, err)
}
