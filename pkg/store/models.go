package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	Email             string    `gorm:"uniqueIndex;not null"`
	Username          string
	PasswordHash      string
	EmailVerified     bool      `gorm:"not null;default:false"`
	VerificationToken string    `gorm:"index"`
	Admin             bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type SubscriptionPlanModel struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	Name              string  `gorm:"uniqueIndex;not null"`
	RequestsPerMinute int     `gorm:"not null"`
	RequestsPerDay    int     `gorm:"not null"`
	Price             float64 `gorm:"not null;default:0"`
}

func (SubscriptionPlanModel) TableName() string { return "subscription_plans" }

type UserSubscriptionModel struct {
	ID        int64                 `gorm:"primaryKey;autoIncrement"`
	UserID    int64                 `gorm:"not null;index"`
	PlanID    int64                 `gorm:"not null"`
	Plan      SubscriptionPlanModel `gorm:"foreignKey:PlanID"`
	StartDate time.Time             `gorm:"not null"`
	EndDate   *time.Time
	Active    bool                  `gorm:"not null;default:true"`
	CreatedAt time.Time             `gorm:"not null"`
	UpdatedAt time.Time             `gorm:"not null"`
}

func (UserSubscriptionModel) TableName() string { return "user_subscriptions" }

type RequestLogModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	UserID      int64     `gorm:"not null;index"`
	RequestedAt time.Time `gorm:"not null;index"`
}

func (RequestLogModel) TableName() string { return "request_logs" }

type ConversationModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	Title     string
	CreatedAt time.Time `gorm:"not null"`
}

func (ConversationModel) TableName() string { return "conversations" }

type MessageModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	ConversationID int64     `gorm:"not null;index"`
	SenderType     string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }
