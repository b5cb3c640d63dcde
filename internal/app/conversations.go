package app

import (
	"context"
	"errors"
	"strings"

	"convoai/pkg/ai"
	"convoai/pkg/domain"
	"convoai/pkg/store"
)

// ListConversations returns the user's conversations, newest first, with
// messages loaded.
func (a *App) ListConversations(ctx context.Context, user domain.User) ([]domain.Conversation, error) {
	return a.store.ListConversations(user.ID)
}

// GetConversation returns one conversation owned by the user with its
// messages in order.
func (a *App) GetConversation(ctx context.Context, user domain.User, id int64) (domain.Conversation, error) {
	conv, ok, err := a.store.GetConversation(id, user.ID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// CreateConversation starts an empty conversation, optionally with a title.
func (a *App) CreateConversation(ctx context.Context, user domain.User, title string) (domain.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = ai.DeriveTitle("")
	}
	return a.store.CreateConversation(domain.Conversation{UserID: user.ID, Title: title})
}

// RenameConversation updates a conversation's title.
func (a *App) RenameConversation(ctx context.Context, user domain.User, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title must not be empty")
	}
	err := a.store.UpdateConversationTitle(id, user.ID, title)
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// DeleteConversation removes a conversation and its messages.
func (a *App) DeleteConversation(ctx context.Context, user domain.User, id int64) error {
	err := a.store.DeleteConversation(id, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}
