package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindowChunker(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		c, err := NewWindowChunker(500, 50)
		require.NoError(t, err)
		require.NotNil(t, c)
	})

	t.Run("overlap equal to size rejected", func(t *testing.T) {
		_, err := NewWindowChunker(100, 100)
		require.Error(t, err)
	})

	t.Run("overlap larger than size rejected", func(t *testing.T) {
		_, err := NewWindowChunker(100, 150)
		require.Error(t, err)
	})

	t.Run("non-positive size rejected", func(t *testing.T) {
		_, err := NewWindowChunker(0, 0)
		require.Error(t, err)
	})

	t.Run("negative overlap rejected", func(t *testing.T) {
		_, err := NewWindowChunker(100, -1)
		require.Error(t, err)
	})
}

func TestChunkPage(t *testing.T) {
	t.Run("empty page yields no chunks", func(t *testing.T) {
		c, err := NewWindowChunker(100, 10)
		require.NoError(t, err)
		assert.Nil(t, c.ChunkPage(""))
		assert.Nil(t, c.ChunkPage("   \n  \t "))
	})

	t.Run("short page yields single chunk", func(t *testing.T) {
		c, err := NewWindowChunker(500, 50)
		require.NoError(t, err)
		chunks := c.ChunkPage("A short page.")
		require.Len(t, chunks, 1)
		assert.Equal(t, "A short page.", chunks[0])
	})

	t.Run("windows overlap by the configured amount", func(t *testing.T) {
		// No sentence delimiters, so no truncation interferes.
		text := strings.Repeat("a", 25)
		c, err := NewWindowChunker(10, 4)
		require.NoError(t, err)
		chunks := c.ChunkPage(text)
		require.Len(t, chunks, 5)
		assert.Equal(t, strings.Repeat("a", 10), chunks[0])
		assert.Equal(t, strings.Repeat("a", 10), chunks[1])
		// Step is size-overlap=6: starts at 0,6,12,18,24.
		assert.Equal(t, strings.Repeat("a", 1), chunks[4])
	})

	t.Run("no chunk is empty after trimming", func(t *testing.T) {
		text := "One. Two. Three. " + strings.Repeat(" ", 40) + "Four."
		c, err := NewWindowChunker(20, 5)
		require.NoError(t, err)
		for _, chunk := range c.ChunkPage(text) {
			assert.NotEmpty(t, strings.TrimSpace(chunk))
		}
	})

	t.Run("truncates at sentence boundary past midpoint", func(t *testing.T) {
		// The ". " after "sentence" falls past the 50% mark of the first
		// 40-char window, so the window is cut there.
		text := "This is a full sentence. And here is trailing text that continues well beyond."
		c, err := NewWindowChunker(40, 0)
		require.NoError(t, err)
		chunks := c.ChunkPage(text)
		require.NotEmpty(t, chunks)
		assert.Equal(t, "This is a full sentence.", chunks[0])
	})

	t.Run("ignores sentence boundary before midpoint", func(t *testing.T) {
		text := "Hi. " + strings.Repeat("x", 60)
		c, err := NewWindowChunker(40, 0)
		require.NoError(t, err)
		chunks := c.ChunkPage(text)
		require.NotEmpty(t, chunks)
		// The only delimiter sits at index 2, well before the midpoint,
		// so the full window is kept.
		assert.Len(t, chunks[0], 40)
	})

	t.Run("multi-byte text never splits mid-rune", func(t *testing.T) {
		text := strings.Repeat("aé", 30)
		c, err := NewWindowChunker(20, 0)
		require.NoError(t, err)
		chunks := c.ChunkPage(text)
		require.Len(t, chunks, 3)
		for i, chunk := range chunks {
			assert.True(t, utf8.ValidString(chunk), "chunk %d is invalid UTF-8", i)
			assert.Equal(t, strings.Repeat("aé", 10), chunk)
		}
	})

	t.Run("overlap counts characters, not bytes", func(t *testing.T) {
		// 25 distinct two-byte runes; step is size-overlap=6.
		runes := []rune("αβγδεζηθικλμνξοπρστυφχψωϊ")
		c, err := NewWindowChunker(10, 4)
		require.NoError(t, err)
		chunks := c.ChunkPage(string(runes))
		require.Len(t, chunks, 5)
		assert.Equal(t, string(runes[0:10]), chunks[0])
		assert.Equal(t, string(runes[6:16]), chunks[1])
		first := []rune(chunks[0])
		second := []rune(chunks[1])
		assert.Equal(t, first[len(first)-4:], second[:4])
	})

	t.Run("midpoint threshold measured in characters", func(t *testing.T) {
		// In bytes the ". " sits past half the 40-char window, but at rune
		// index 14 it is before the midpoint, so the window is kept whole.
		text := strings.Repeat("é", 13) + ". " + strings.Repeat("é", 50)
		c, err := NewWindowChunker(40, 0)
		require.NoError(t, err)
		chunks := c.ChunkPage(text)
		require.NotEmpty(t, chunks)
		assert.Equal(t, 40, utf8.RuneCountInString(chunks[0]))
	})

	t.Run("stateless across pages", func(t *testing.T) {
		c, err := NewWindowChunker(30, 5)
		require.NoError(t, err)
		first := c.ChunkPage("Some page content that repeats. More of it here.")
		second := c.ChunkPage("Some page content that repeats. More of it here.")
		assert.Equal(t, first, second)
	})
}
