package domain

import "time"

// SenderType identifies who produced a message.
type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderAssistant SenderType = "assistant"
	SenderSystem    SenderType = "system"
)

// ValidSender reports whether s is one of the known sender types.
func ValidSender(s SenderType) bool {
	switch s {
	case SenderUser, SenderAssistant, SenderSystem:
		return true
	}
	return false
}

type User struct {
	ID                int64     `json:"id"`
	Email             string    `json:"email"`
	Username          string    `json:"username,omitempty"`
	PasswordHash      string    `json:"-"`
	EmailVerified     bool      `json:"emailVerified"`
	VerificationToken string    `json:"-"`
	Admin             bool      `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// SubscriptionPlan is a named quota tier. Plans are shared reference data;
// exactly one plan exists per name.
type SubscriptionPlan struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	RequestsPerMinute int     `json:"requestsPerMinute"`
	RequestsPerDay    int     `json:"requestsPerDay"`
	Price             float64 `json:"price"`
}

// UserSubscription binds a user to a plan for a time window.
type UserSubscription struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"-"`
	PlanID    int64            `json:"-"`
	Plan      SubscriptionPlan `json:"plan"`
	StartDate time.Time        `json:"startDate"`
	EndDate   *time.Time       `json:"endDate"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"createdAt"`
}

// CurrentlyActive reports whether the subscription window covers now:
// the active flag is set, StartDate <= now, and EndDate is unset or in the
// future.
func (s UserSubscription) CurrentlyActive(now time.Time) bool {
	if !s.Active || s.StartDate.After(now) {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(now)
}

// RequestLog is one accepted chat request. Rows are append-only and serve as
// the counting substrate for quota enforcement.
type RequestLog struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	RequestedAt time.Time `json:"requestedAt"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Message is one turn in a conversation. Messages are never edited or
// reordered after creation; CreatedAt is strictly increasing within a
// conversation and is the sort key for reconstructing order.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"-"`
	Sender         SenderType `json:"senderType"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
}
