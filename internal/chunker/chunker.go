package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentence-ending delimiters searched for when truncating a window so that
// chunks avoid splitting mid-sentence.
var sentenceDelimiters = []string{". ", ".\n", "! ", "?\n", "? "}

// WindowChunker splits page text into overlapping character windows,
// preferring to cut at a sentence boundary past the midpoint of the window.
type WindowChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewWindowChunker creates a window chunker. chunkOverlap must be strictly
// smaller than chunkSize.
func NewWindowChunker(chunkSize, chunkOverlap int) (*WindowChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", chunkOverlap, chunkSize)
	}
	return &WindowChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// ChunkPage splits one page of text into chunks. Empty or whitespace-only
// windows are dropped. The chunker holds no per-page state.
func (c *WindowChunker) ChunkPage(text string) []string {
	if text == "" {
		return nil
	}
	// Size, overlap and the midpoint threshold are measured in characters,
	// so all windowing happens in rune space.
	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])

		// Before cutting mid-sentence, look backward for a sentence end.
		// Only take it if it lies past the 50% mark of the window. The
		// delimiters are ASCII, so cutting at idx+1 stays on a rune
		// boundary even when the window holds multi-byte text.
		if end < len(runes) {
			for _, delim := range sentenceDelimiters {
				if idx := strings.LastIndex(window, delim); idx >= 0 &&
					utf8.RuneCountInString(window[:idx]) > c.chunkSize/2 {
					window = window[:idx+1]
					break
				}
			}
		}

		if trimmed := strings.TrimSpace(window); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		start += c.chunkSize - c.chunkOverlap
	}
	return chunks
}
