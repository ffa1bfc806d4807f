package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeSelectsFrequentSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	texts := []string{
		"Vector indexes accelerate similarity search. Similarity search powers retrieval.",
		"Weather was nice today. Vector indexes store embeddings for similarity search.",
	}
	out := s.Summarize(texts, 2)
	assert.Contains(t, out, "similarity search")
	assert.NotContains(t, out, "Weather was nice")
}

func TestSummarizePreservesOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	texts := []string{"Alpha beta gamma. Filler sentence here. Alpha beta delta."}
	out := s.Summarize(texts, 2)
	first := strings.Index(out, "Alpha beta gamma.")
	second := strings.Index(out, "Alpha beta delta.")
	assert.GreaterOrEqual(t, first, 0)
	assert.Greater(t, second, first)
}

func TestSummarizeDeduplicatesOverlappingChunks(t *testing.T) {
	s := NewFrequencySummarizer()
	// chunk overlap repeats the same sentence in adjacent chunks
	texts := []string{
		"Repeated sentence about indexing.",
		"Repeated sentence about indexing. Fresh closing thought.",
	}
	out := s.Summarize(texts, 5)
	assert.Equal(t, 1, strings.Count(out, "Repeated sentence about indexing."))
	assert.Contains(t, out, "Fresh closing thought.")
}

func TestSummarizeEmptyInput(t *testing.T) {
	s := NewFrequencySummarizer()
	assert.Empty(t, s.Summarize(nil, 3))
	assert.Empty(t, s.Summarize([]string{"   ", ""}, 3))
}

func TestSummarizeCapsAtAvailableSentences(t *testing.T) {
	s := NewFrequencySummarizer()
	out := s.Summarize([]string{"Only one sentence."}, 10)
	assert.Equal(t, "Only one sentence.", out)
}
