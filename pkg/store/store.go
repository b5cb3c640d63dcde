package store

import (
	"errors"
	"time"

	"convoai/pkg/domain"
)

// ErrNotFound is returned by update/delete operations when the target row
// does not exist (or is not owned by the given user).
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for users, plans, subscriptions,
// the request ledger, conversations, and messages.
//
// WithTx runs fn against a transactional view of the store: every write made
// through the Store passed to fn is committed when fn returns nil and rolled
// back when it returns an error.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	UpdateUser(u domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id int64) (domain.User, bool, error)
	GetUserByVerificationToken(token string) (domain.User, bool, error)

	// plan catalog
	CreatePlan(p domain.SubscriptionPlan) (domain.SubscriptionPlan, error)
	GetPlanByName(name string) (domain.SubscriptionPlan, bool, error)
	ListPlans() ([]domain.SubscriptionPlan, error)

	// subscriptions
	CreateSubscription(s domain.UserSubscription) (domain.UserSubscription, error)
	// ActiveSubscription returns the user's effective subscription: active
	// flag set, start <= now, end unset or after now, newest created first.
	ActiveSubscription(userID int64, now time.Time) (domain.UserSubscription, bool, error)

	// usage ledger
	AddRequestLog(userID int64, at time.Time) error
	CountRequestsSince(userID int64, since time.Time) (int, error)

	// conversations
	CreateConversation(c domain.Conversation) (domain.Conversation, error)
	// GetConversation fetches a conversation scoped to its owner, with
	// messages loaded in creation order.
	GetConversation(id, userID int64) (domain.Conversation, bool, error)
	ListConversations(userID int64) ([]domain.Conversation, error)
	UpdateConversationTitle(id, userID int64, title string) error
	// DeleteConversation removes the conversation and all its messages.
	DeleteConversation(id, userID int64) error

	// messages
	AppendMessage(conversationID int64, sender domain.SenderType, content string) (domain.Message, error)
	ListMessages(conversationID int64) ([]domain.Message, error)

	// transactions
	WithTx(fn func(Store) error) error
}
