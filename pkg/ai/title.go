package ai

import (
	"context"
	"strings"
)

const defaultConversationTitle = "New Conversation"

// DeriveTitle builds a conversation title from the first user message:
// the first five whitespace-separated words, truncated to 47 characters plus
// "..." when the result exceeds 50. Blank input yields a fixed placeholder.
func DeriveTitle(userMessage string) string {
	words := strings.Fields(userMessage)
	if len(words) > 5 {
		words = words[:5]
	}
	title := truncateTitle(strings.Join(words, " "))
	if title == "" {
		return defaultConversationTitle
	}
	return title
}

// truncateTitle caps a title at 50 characters, counting runes so a cut never
// splits a multibyte character.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) > 50 {
		return string(runes[:47]) + "..."
	}
	return title
}

// LLMTitler asks the generation backend for a short title.
type LLMTitler struct {
	generator Generator
}

// NewLLMTitler wraps a Generator as a TitleSuggester.
func NewLLMTitler(generator Generator) *LLMTitler {
	return &LLMTitler{generator: generator}
}

// SuggestTitle asks the model for a title of at most five words. Callers fall
// back to DeriveTitle on error.
func (t *LLMTitler) SuggestTitle(ctx context.Context, userMessage string) (string, error) {
	title, err := t.generator.Generate(ctx, []Message{
		{Role: "system", Content: "Summarize the user's message as a conversation title of at most five words. Reply with the title only."},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return "", err
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" {
		return DeriveTitle(userMessage), nil
	}
	return truncateTitle(title), nil
}
