package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llm "github.com/pachverse/sitechat/plugin/ai"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunk(t *testing.T) {
	t.Run("EmptyDocument", func(t *testing.T) {
		c := NewChunker(100)
		assert.Empty(t, c.Chunk(""))
		assert.Empty(t, c.Chunk("  \n\n  \t"))
	})

	t.Run("TwoSmallParagraphsOneChunk", func(t *testing.T) {
		c := NewChunker(100)
		chunks := c.Chunk("first paragraph here\n\nsecond paragraph here")
		require.Len(t, chunks, 1)
		assert.Equal(t, "first paragraph here\n\nsecond paragraph here", chunks[0])
	})

	t.Run("ParagraphsFlushAtBudget", func(t *testing.T) {
		c := NewChunker(30)
		// Each paragraph is ~20 words = 26 estimated tokens; two don't fit.
		doc := words(20) + "\n\n" + words(20) + "\n\n" + words(20)
		chunks := c.Chunk(doc)
		assert.Len(t, chunks, 3)
	})

	t.Run("OversizedParagraphSplitsOnSentences", func(t *testing.T) {
		c := NewChunker(30)
		var b strings.Builder
		for i := 0; i < 4; i++ {
			b.WriteString(words(15))
			b.WriteString(". ")
		}
		chunks := c.Chunk(b.String())
		assert.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			// Each chunk holds at most one full 15-word sentence at this budget.
			assert.LessOrEqual(t, llm.EstimateTokens(chunk), 30)
		}
	})

	t.Run("OversizedSentenceEmittedWhole", func(t *testing.T) {
		c := NewChunker(10)
		sentence := words(50) + "."
		chunks := c.Chunk(sentence)
		require.Len(t, chunks, 1)
		assert.Equal(t, sentence, chunks[0])
	})

	t.Run("CJKSentenceBoundaries", func(t *testing.T) {
		c := NewChunker(6)
		chunks := c.Chunk("你好世界。再见世界！")
		assert.Len(t, chunks, 2)
	})

	t.Run("Deterministic", func(t *testing.T) {
		c := NewChunker(25)
		doc := words(20) + "\n\n" + words(20) + "\n\nshort tail"
		first := c.Chunk(doc)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, c.Chunk(doc))
		}
	})
}

func TestChunkID(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		assert.Equal(t, ChunkID("about", 0, "hello"), ChunkID("about", 0, "hello"))
	})

	t.Run("Format", func(t *testing.T) {
		id := ChunkID("projects", 3, "content")
		assert.True(t, strings.HasPrefix(id, "projects_3_"))
		assert.Len(t, strings.Split(id, "_"), 3)
	})

	t.Run("DistinctTriplesDistinctIDs", func(t *testing.T) {
		seen := map[string]bool{}
		for _, id := range []string{
			ChunkID("a", 0, "x"),
			ChunkID("a", 1, "x"),
			ChunkID("b", 0, "x"),
			ChunkID("a", 0, "y"),
		} {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	})
}

func TestCleanContent(t *testing.T) {
	assert.Equal(t, "a\n\nb", CleanContent("a\r\n\r\n\r\n\r\nb"))
	assert.Equal(t, "line", CleanContent("  line  \n"))
}
