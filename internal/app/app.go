// Package app implements the application core: account lifecycle,
// conversation management, and the chat orchestration flow that ties quota
// admission, persistence, and text generation together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"convoai/internal/quota"
	"convoai/pkg/ai"
	"convoai/pkg/auth"
	"convoai/pkg/domain"
	"convoai/pkg/mail"
	"convoai/pkg/store"
)

const defaultSystemPrompt = "You are a helpful assistant. Answer questions based on the conversation history and provide accurate information."

// Config wires the application core. Store, Generator, Quota, and Tokens are
// required; Titler and Mail are optional.
type Config struct {
	Store        store.Store
	Generator    ai.Generator
	Titler       ai.TitleSuggester
	Quota        *quota.Limiter
	Tokens       *auth.TokenService
	Mail         mail.Publisher
	SystemPrompt string
}

// App is the application core. All dependencies are explicit; transports
// stay thin.
type App struct {
	store        store.Store
	generator    ai.Generator
	titler       ai.TitleSuggester
	quota        *quota.Limiter
	tokens       *auth.TokenService
	mail         mail.Publisher
	systemPrompt string
}

// New validates the configuration and builds the App.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("app: store required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("app: generator required")
	}
	if cfg.Quota == nil {
		return nil, errors.New("app: quota limiter required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("app: token service required")
	}
	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &App{
		store:        cfg.Store,
		generator:    cfg.Generator,
		titler:       cfg.Titler,
		quota:        cfg.Quota,
		tokens:       cfg.Tokens,
		mail:         cfg.Mail,
		systemPrompt: prompt,
	}, nil
}

// ChatRequest is one user turn. ConversationID zero starts a new
// conversation.
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResult is the outcome of a non-streaming chat request. Response and
// MessageID duplicate the assistant message content and id for clients that
// only need the reply text.
type ChatResult struct {
	Response         string         `json:"response"`
	ConversationID   int64          `json:"conversation_id"`
	MessageID        int64          `json:"message_id"`
	UserMessage      domain.Message `json:"user_message"`
	AssistantMessage domain.Message `json:"assistant_message"`
}

// Chat runs one blocking chat turn. The user message, assistant message, and
// usage row commit together; a generation failure rolls all of them back.
func (a *App) Chat(ctx context.Context, user domain.User, req ChatRequest) (ChatResult, error) {
	dec, err := a.quota.CheckAdmission(user)
	if err != nil {
		return ChatResult{}, err
	}
	if !dec.Allowed {
		return ChatResult{}, &QuotaDeniedError{Decision: dec}
	}

	var result ChatResult
	err = a.store.WithTx(func(tx store.Store) error {
		conv, history, err := a.resolveConversation(ctx, tx, user, req)
		if err != nil {
			return err
		}
		userMsg, err := tx.AppendMessage(conv.ID, domain.SenderUser, req.Message)
		if err != nil {
			return err
		}
		reply, err := a.generator.Generate(ctx, buildPrompt(a.systemPrompt, history, req.Message))
		if err != nil {
			return &GenerationError{Err: err}
		}
		if strings.TrimSpace(reply) == "" {
			return &GenerationError{Err: errors.New("empty response")}
		}
		assistantMsg, err := tx.AppendMessage(conv.ID, domain.SenderAssistant, reply)
		if err != nil {
			return err
		}
		if err := a.quota.RecordUsageTx(tx, user.ID); err != nil {
			return err
		}
		result = ChatResult{
			Response:         assistantMsg.Content,
			ConversationID:   conv.ID,
			MessageID:        assistantMsg.ID,
			UserMessage:      userMsg,
			AssistantMessage: assistantMsg,
		}
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}
	slog.Info("chat completed", "user_id", user.ID, "conversation_id", result.ConversationID)
	return result, nil
}

// ChatStream runs one streaming chat turn. Admission and conversation
// lookups fail synchronously; after that the returned channel carries one
// metadata event, the generated chunks, and exactly one terminal complete or
// error event, then closes. The terminal event is sent only after the
// transaction has committed or rolled back, so a complete event guarantees
// the turn is persisted and an error event guarantees it is not.
func (a *App) ChatStream(ctx context.Context, user domain.User, req ChatRequest) (<-chan StreamEvent, error) {
	dec, err := a.quota.CheckAdmission(user)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, &QuotaDeniedError{Decision: dec}
	}
	if req.ConversationID != 0 {
		if _, ok, err := a.store.GetConversation(req.ConversationID, user.ID); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrConversationNotFound
		}
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		var assistantID int64
		err := a.store.WithTx(func(tx store.Store) error {
			conv, history, err := a.resolveConversation(ctx, tx, user, req)
			if err != nil {
				return err
			}
			userMsg, err := tx.AppendMessage(conv.ID, domain.SenderUser, req.Message)
			if err != nil {
				return err
			}
			if !sendEvent(ctx, events, metadataEvent(conv.ID, userMsg.ID)) {
				return ctx.Err()
			}
			var reply strings.Builder
			err = a.generator.GenerateStream(ctx, buildPrompt(a.systemPrompt, history, req.Message), func(chunk string) error {
				reply.WriteString(chunk)
				if !sendEvent(ctx, events, chunkEvent(chunk)) {
					return ctx.Err()
				}
				return nil
			})
			if err != nil {
				return &GenerationError{Err: err}
			}
			if strings.TrimSpace(reply.String()) == "" {
				return &GenerationError{Err: errors.New("empty response")}
			}
			assistantMsg, err := tx.AppendMessage(conv.ID, domain.SenderAssistant, reply.String())
			if err != nil {
				return err
			}
			assistantID = assistantMsg.ID
			return a.quota.RecordUsageTx(tx, user.ID)
		})
		if err != nil {
			slog.Error("chat stream failed", "user_id", user.ID, "error", err)
			sendEvent(ctx, events, errorEvent(streamErrorMessage(err)))
			return
		}
		sendEvent(ctx, events, completeEvent(assistantID))
	}()
	return events, nil
}

func sendEvent(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func streamErrorMessage(err error) string {
	var genErr *GenerationError
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return ErrConversationNotFound.Error()
	// Cancellation beats the generation wrapper: an aborted emit surfaces
	// as a GenerationError wrapping ctx.Err().
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	case errors.As(err, &genErr):
		return genErr.Error()
	default:
		return "internal error"
	}
}

// resolveConversation loads the target conversation with its history, or
// creates a new one titled after the first message.
func (a *App) resolveConversation(ctx context.Context, tx store.Store, user domain.User, req ChatRequest) (domain.Conversation, []domain.Message, error) {
	if req.ConversationID != 0 {
		conv, ok, err := tx.GetConversation(req.ConversationID, user.ID)
		if err != nil {
			return domain.Conversation{}, nil, fmt.Errorf("load conversation: %w", err)
		}
		if !ok {
			return domain.Conversation{}, nil, ErrConversationNotFound
		}
		return conv, conv.Messages, nil
	}
	conv, err := tx.CreateConversation(domain.Conversation{
		UserID: user.ID,
		Title:  a.conversationTitle(ctx, req.Message),
	})
	if err != nil {
		return domain.Conversation{}, nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil, nil
}

func (a *App) conversationTitle(ctx context.Context, firstMessage string) string {
	if a.titler == nil {
		return ai.DeriveTitle(firstMessage)
	}
	title, err := a.titler.SuggestTitle(ctx, firstMessage)
	if err != nil || strings.TrimSpace(title) == "" {
		slog.Warn("title suggestion failed, deriving from message", "error", err)
		return ai.DeriveTitle(firstMessage)
	}
	return title
}

// buildPrompt assembles the generation input: the configured system prompt,
// the stored history with any leading stored system message replaced by the
// configured one, then the new user message.
func buildPrompt(systemPrompt string, history []domain.Message, userMessage string) []ai.Message {
	prompt := make([]ai.Message, 0, len(history)+2)
	prompt = append(prompt, ai.Message{Role: string(domain.SenderSystem), Content: systemPrompt})
	for i, m := range history {
		if i == 0 && m.Sender == domain.SenderSystem {
			continue
		}
		prompt = append(prompt, ai.Message{Role: string(m.Sender), Content: m.Content})
	}
	return append(prompt, ai.Message{Role: string(domain.SenderUser), Content: userMessage})
}
