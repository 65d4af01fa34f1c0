package ai

import (
	"math"
	"unicode"
)

// tokensPerWord is the approximation factor between whitespace-delimited
// words and model tokens. Good enough for budget checks; exact counts are
// the provider's business.
const tokensPerWord = 1.3

// EstimateTokens approximates the token count of a text as word count times
// 1.3. CJK text carries no word-delimiting whitespace, so every CJK rune is
// counted as its own word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	words := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			words++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		default:
			if !inWord {
				words++
				inWord = true
			}
		}
	}

	return int(math.Ceil(float64(words) * tokensPerWord))
}

// EstimateMessageTokens sums the token estimates of all message contents.
func EstimateMessageTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// TruncateMessages drops the oldest non-system messages until the estimated
// token count fits within maxTokens. System messages are always kept, as is
// the newest message.
func TruncateMessages(messages []Message, maxTokens int) []Message {
	if EstimateMessageTokens(messages) <= maxTokens {
		return messages
	}

	var system, other []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			other = append(other, msg)
		}
	}

	budget := maxTokens - EstimateMessageTokens(system)

	// Walk newest to oldest, keeping what fits.
	var kept []Message
	used := 0
	for i := len(other) - 1; i >= 0; i-- {
		tokens := EstimateTokens(other[i].Content)
		if used+tokens > budget && len(kept) > 0 {
			break
		}
		kept = append([]Message{other[i]}, kept...)
		used += tokens
	}

	return append(system, kept...)
}
