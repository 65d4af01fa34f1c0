package ai

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	llm "github.com/pachverse/sitechat/plugin/ai"
)

// DefaultChunkTokenBudget is the default per-chunk token budget.
const DefaultChunkTokenBudget = 1500

var (
	multiBlankLine = regexp.MustCompile(`\n\s*\n\s*\n+`)
	trailingSpace  = regexp.MustCompile(` +\n`)
)

// Chunker splits documents into bounded-size chunks for embedding. Chunking
// is pure: the same input always yields the same chunk boundaries.
type Chunker struct {
	budget int
}

// NewChunker creates a chunker with the given token budget per chunk.
func NewChunker(budgetTokens int) *Chunker {
	if budgetTokens <= 0 {
		budgetTokens = DefaultChunkTokenBudget
	}
	return &Chunker{budget: budgetTokens}
}

// Chunk splits content on paragraph boundaries, accumulating paragraphs into
// a chunk until the next one would exceed the token budget. Chunks still over
// budget after the paragraph pass are re-split on sentence boundaries. A
// single paragraph or sentence that alone exceeds the budget is emitted
// as-is rather than dropped. Empty content yields no chunks.
func (c *Chunker) Chunk(content string) []string {
	content = CleanContent(content)
	if content == "" {
		return nil
	}

	chunks := accumulate(strings.Split(content, "\n\n"), "\n\n", c.budget)

	var final []string
	for _, chunk := range chunks {
		if llm.EstimateTokens(chunk) > c.budget {
			final = append(final, accumulate(splitSentences(chunk), " ", c.budget)...)
		} else {
			final = append(final, chunk)
		}
	}
	return final
}

// accumulate packs parts into chunks under the token budget, flushing the
// running chunk whenever the next part would overflow it.
func accumulate(parts []string, sep string, budget int) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tokens := llm.EstimateTokens(part)
		if currentTokens+tokens > budget && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}

		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
		currentTokens += tokens
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences splits text after terminal punctuation, Latin or CJK.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// CleanContent normalizes line endings, collapses runs of blank lines, and
// strips trailing whitespace.
func CleanContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = multiBlankLine.ReplaceAllString(content, "\n\n")
	content = trailingSpace.ReplaceAllString(content, "\n")
	return strings.TrimSpace(content)
}

// ChunkID derives the deterministic identifier for a chunk from the source
// document's stem, the chunk position, and a prefix of the content hash.
// Identical input always maps to the identical ID, making re-indexing
// idempotent.
func ChunkID(sourceStem string, index int, content string) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%d_%s", sourceStem, index, hex.EncodeToString(sum[:])[:8])
}
