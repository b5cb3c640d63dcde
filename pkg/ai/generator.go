package ai

import "context"

// Message is one role/content pair sent to the generation backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces assistant text from an ordered conversation.
// Implementations are network-bound and fallible; GenerateStream may fail
// after having emitted some chunks.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	// GenerateStream calls emit once per text fragment, in order. A non-nil
	// error from emit aborts the stream and is returned unchanged.
	GenerateStream(ctx context.Context, messages []Message, emit func(chunk string) error) error
}

// TitleSuggester proposes a conversation title from the first user message.
// Failures must be handled by falling back to DeriveTitle; they never fail
// the chat request.
type TitleSuggester interface {
	SuggestTitle(ctx context.Context, userMessage string) (string, error)
}
