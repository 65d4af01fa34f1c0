package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llm "github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/plugin/ai/vector"
)

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, LanguageEN, NormalizeLanguage("en"))
	assert.Equal(t, LanguageEN, NormalizeLanguage("EN"))
	assert.Equal(t, LanguageZH, NormalizeLanguage("zh"))
	assert.Equal(t, LanguageZH, NormalizeLanguage(""))
	assert.Equal(t, LanguageZH, NormalizeLanguage("fr"))
}

func TestBuildPrompt(t *testing.T) {
	b := NewPromptBuilder(DefaultHistoryWindow)

	t.Run("NoResultsPlainTemplate", func(t *testing.T) {
		prompt := b.BuildPrompt("what do you build?", nil, LanguageEN)
		assert.Contains(t, prompt, "User Question: what do you build?")
		assert.NotContains(t, prompt, "## Relevant Information:")

		prompt = b.BuildPrompt("你做什么？", nil, LanguageZH)
		assert.Contains(t, prompt, "用户问题：你做什么？")
		assert.NotContains(t, prompt, "## 相关信息：")
	})

	t.Run("ResultsAppearVerbatim", func(t *testing.T) {
		results := []vector.RetrievalResult{
			{Content: "Built a search engine in Go.", Source: "projects.md", Similarity: 0.91},
			{Content: "Ten years of backend work.", Source: "experience.md", Similarity: 0.84},
		}
		prompt := b.BuildPrompt("tell me about the projects", results, LanguageEN)

		assert.Contains(t, prompt, "## Relevant Information:")
		assert.Contains(t, prompt, "### 1. [Source: projects.md]")
		assert.Contains(t, prompt, "### 2. [Source: experience.md]")
		assert.Contains(t, prompt, "Built a search engine in Go.")
		assert.Contains(t, prompt, "Ten years of backend work.")
		assert.Contains(t, prompt, "## User Question:\ntell me about the projects")
	})

	t.Run("ChineseTemplate", func(t *testing.T) {
		results := []vector.RetrievalResult{
			{Content: "后端开发十年经验。", Source: "experience.md", Similarity: 0.8},
		}
		prompt := b.BuildPrompt("有哪些经验？", results, LanguageZH)

		assert.Contains(t, prompt, "## 相关信息：")
		assert.Contains(t, prompt, "### 1. [来源: experience.md]")
		assert.Contains(t, prompt, "后端开发十年经验。")
		assert.Contains(t, prompt, "## 用户问题：\n有哪些经验？")
	})

	t.Run("Deterministic", func(t *testing.T) {
		results := []vector.RetrievalResult{
			{Content: "alpha", Source: "a.md", Similarity: 0.9},
			{Content: "beta", Source: "b.md", Similarity: 0.8},
		}
		first := b.BuildPrompt("q", results, LanguageEN)
		assert.Equal(t, first, b.BuildPrompt("q", results, LanguageEN))
	})
}

func TestSystemPrompt(t *testing.T) {
	assert.Contains(t, SystemPrompt(LanguageEN), "Respond in English")
	assert.Contains(t, SystemPrompt(LanguageZH), "优先使用中文回复")
}

func TestPrepareMessages(t *testing.T) {
	b := NewPromptBuilder(4)

	t.Run("ShortHistoryKeptWhole", func(t *testing.T) {
		history := []llm.Message{
			llm.UserMessage("hi"),
			llm.AssistantMessage("hello"),
		}
		messages := b.PrepareMessages("augmented", history)
		require.Len(t, messages, 3)
		assert.Equal(t, "hi", messages[0].Content)
		assert.Equal(t, "augmented", messages[2].Content)
		assert.Equal(t, llm.RoleUser, messages[2].Role)
	})

	t.Run("LongHistoryWindowed", func(t *testing.T) {
		var history []llm.Message
		for i := 0; i < 10; i++ {
			history = append(history, llm.UserMessage(fmt.Sprintf("turn %d", i)))
		}
		messages := b.PrepareMessages("augmented", history)
		require.Len(t, messages, 5)
		assert.Equal(t, "turn 6", messages[0].Content)
		assert.Equal(t, "turn 9", messages[3].Content)
		assert.Equal(t, "augmented", messages[4].Content)
	})

	t.Run("HistoryUntouched", func(t *testing.T) {
		history := []llm.Message{llm.UserMessage("only")}
		_ = b.PrepareMessages("augmented", history)
		require.Len(t, history, 1)
		assert.Equal(t, "only", history[0].Content)
	})
}

func TestPromptAndChunkerShareTokenEstimate(t *testing.T) {
	// The chunk budget and the prompt context budget use the same estimator,
	// so a chunk that fits the chunker's budget also fits the same budget when
	// re-measured at prompt time.
	c := NewChunker(40)
	doc := strings.Repeat("some words here form a paragraph. ", 6)
	for _, chunk := range c.Chunk(doc) {
		assert.LessOrEqual(t, llm.EstimateTokens(chunk), 40)
	}
}
