package ai

import (
	"fmt"
	"strings"

	llm "github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/plugin/ai/vector"
)

// Language selects the prompt template set.
type Language string

const (
	// LanguageZH is Chinese, the default.
	LanguageZH Language = "zh"
	// LanguageEN is English.
	LanguageEN Language = "en"
)

// NormalizeLanguage maps an arbitrary tag onto a supported language,
// defaulting to Chinese.
func NormalizeLanguage(tag string) Language {
	if Language(strings.ToLower(tag)) == LanguageEN {
		return LanguageEN
	}
	return LanguageZH
}

// DefaultHistoryWindow is the number of prior messages included at
// prompt-build time. Intentionally much smaller than the session history
// cap: the store keeps context for the user, the prompt keeps tokens cheap.
const DefaultHistoryWindow = 4

const systemPromptEN = `You are an AI assistant for a personal website, helping visitors learn about the website owner.

Key guidelines:
- Respond in English unless asked otherwise
- Be friendly, professional, and helpful
- Use the provided context to answer questions accurately
- If you don't know something, say so honestly
- Keep responses concise but informative
- Focus on the person's skills, projects, and experiences
- Maintain a conversational tone

The context provided contains information about the website owner's background, skills, and projects. Use this information to provide helpful and accurate responses.`

const systemPromptZH = `你是个人网站的AI助手，帮助访客了解网站主人的信息。

核心原则：
- 优先使用中文回复，除非用户要求其他语言
- 保持友好、专业和乐于助人的态度
- 基于提供的上下文准确回答问题
- 如果不了解某些信息，请诚实说明
- 回复要简洁但信息丰富
- 重点介绍个人技能、项目和经历
- 保持对话式的语气

提供的上下文包含网站主人的背景、技能和项目信息。请使用这些信息提供有帮助且准确的回复。`

// SystemPrompt returns the persona text for the language.
func SystemPrompt(lang Language) string {
	if lang == LanguageEN {
		return systemPromptEN
	}
	return systemPromptZH
}

// PromptBuilder assembles augmented prompts from retrieval results and
// conversation history.
type PromptBuilder struct {
	historyWindow int
}

// NewPromptBuilder creates a prompt builder. historyWindow bounds how many
// prior messages are carried into the final message list.
func NewPromptBuilder(historyWindow int) *PromptBuilder {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &PromptBuilder{historyWindow: historyWindow}
}

// BuildPrompt combines the retrieval results and the user's question into a
// single augmented prompt. With no results it falls back to a plain question
// template.
func (b *PromptBuilder) BuildPrompt(userMessage string, results []vector.RetrievalResult, lang Language) string {
	if len(results) == 0 {
		if lang == LanguageEN {
			return fmt.Sprintf("User Question: %s\n\nPlease provide a helpful response. If you need specific information that isn't available, please let the user know.", userMessage)
		}
		return fmt.Sprintf("用户问题：%s\n\n请提供有帮助的回答。如果需要特定信息但无法获取，请告知用户。", userMessage)
	}

	var context strings.Builder
	if lang == LanguageEN {
		context.WriteString("## Relevant Information:\n")
	} else {
		context.WriteString("## 相关信息：\n")
	}
	for i, result := range results {
		if lang == LanguageEN {
			context.WriteString(fmt.Sprintf("### %d. [Source: %s]\n", i+1, result.Source))
		} else {
			context.WriteString(fmt.Sprintf("### %d. [来源: %s]\n", i+1, result.Source))
		}
		context.WriteString(result.Content)
		context.WriteString("\n\n")
	}

	if lang == LanguageEN {
		return fmt.Sprintf(`Based on the following relevant information, please answer the user's question:

%s## User Question:
%s

Please provide a helpful and accurate response based on the information above. If the provided information doesn't contain relevant details for the question, please say so honestly.`, context.String(), userMessage)
	}

	return fmt.Sprintf(`基于以下相关信息，请回答用户的问题：

%s## 用户问题：
%s

请基于上述信息提供有帮助且准确的回答。如果提供的信息中没有相关内容，请诚实说明。`, context.String(), userMessage)
}

// PrepareMessages builds the final message list: the most recent history up
// to the window, then the augmented prompt as the newest user message. This
// truncation is independent of the session store's own history cap.
func (b *PromptBuilder) PrepareMessages(prompt string, history []llm.Message) []llm.Message {
	recent := history
	if len(recent) > b.historyWindow {
		recent = recent[len(recent)-b.historyWindow:]
	}

	messages := make([]llm.Message, 0, len(recent)+1)
	messages = append(messages, recent...)
	messages = append(messages, llm.UserMessage(prompt))
	return messages
}
