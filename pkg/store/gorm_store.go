package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"convoai/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&SubscriptionPlanModel{},
		&UserSubscriptionModel{},
		&RequestLogModel{},
		&ConversationModel{},
		&MessageModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// WithTx runs fn inside a database transaction.
func (s *GormStore) WithTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// CreateUser inserts a user and returns it with the assigned ID.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// UpdateUser persists mutable user fields.
func (s *GormStore) UpdateUser(u domain.User) error {
	return s.db.Model(&UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"email":              u.Email,
			"username":           u.Username,
			"password_hash":      u.PasswordHash,
			"email_verified":     u.EmailVerified,
			"verification_token": u.VerificationToken,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByVerificationToken finds the user holding an email verification token.
func (s *GormStore) GetUserByVerificationToken(token string) (domain.User, bool, error) {
	if token == "" {
		return domain.User{}, false, nil
	}
	var model UserModel
	if err := s.db.Where("verification_token = ?", token).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreatePlan inserts a plan row.
func (s *GormStore) CreatePlan(p domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	model := SubscriptionPlanModel{
		Name:              p.Name,
		RequestsPerMinute: p.RequestsPerMinute,
		RequestsPerDay:    p.RequestsPerDay,
		Price:             p.Price,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.SubscriptionPlan{}, err
	}
	return planFromModel(model), nil
}

// GetPlanByName looks up a plan by its unique name.
func (s *GormStore) GetPlanByName(name string) (domain.SubscriptionPlan, bool, error) {
	var model SubscriptionPlanModel
	if err := s.db.Where("name = ?", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SubscriptionPlan{}, false, nil
		}
		return domain.SubscriptionPlan{}, false, err
	}
	return planFromModel(model), true, nil
}

// ListPlans returns all plans ordered by price ascending.
func (s *GormStore) ListPlans() ([]domain.SubscriptionPlan, error) {
	var models []SubscriptionPlanModel
	if err := s.db.Order("price ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SubscriptionPlan, 0, len(models))
	for _, m := range models {
		res = append(res, planFromModel(m))
	}
	return res, nil
}

// CreateSubscription inserts a subscription row.
func (s *GormStore) CreateSubscription(sub domain.UserSubscription) (domain.UserSubscription, error) {
	now := time.Now().UTC()
	model := UserSubscriptionModel{
		UserID:    sub.UserID,
		PlanID:    sub.PlanID,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
		Active:    sub.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if model.StartDate.IsZero() {
		model.StartDate = now
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.UserSubscription{}, err
	}
	return subscriptionFromModel(model), nil
}

// ActiveSubscription returns the newest currently active subscription joined
// with its plan.
func (s *GormStore) ActiveSubscription(userID int64, now time.Time) (domain.UserSubscription, bool, error) {
	var model UserSubscriptionModel
	err := s.db.Preload("Plan").
		Where("user_id = ? AND active = ? AND start_date <= ?", userID, true, now).
		Where("end_date IS NULL OR end_date > ?", now).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserSubscription{}, false, nil
		}
		return domain.UserSubscription{}, false, err
	}
	return subscriptionFromModel(model), true, nil
}

// AddRequestLog appends one usage row.
func (s *GormStore) AddRequestLog(userID int64, at time.Time) error {
	return s.db.Create(&RequestLogModel{UserID: userID, RequestedAt: at.UTC()}).Error
}

// CountRequestsSince counts usage rows at or after since.
func (s *GormStore) CountRequestsSince(userID int64, since time.Time) (int, error) {
	var count int64
	err := s.db.Model(&RequestLogModel{}).
		Where("user_id = ? AND requested_at >= ?", userID, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateConversation inserts a conversation and returns it with the assigned ID.
func (s *GormStore) CreateConversation(c domain.Conversation) (domain.Conversation, error) {
	model := ConversationModel{
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: time.Now().UTC(),
	}
	if !c.CreatedAt.IsZero() {
		model.CreatedAt = c.CreatedAt
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model, nil), nil
}

// GetConversation fetches a conversation owned by userID with its messages
// in creation order.
func (s *GormStore) GetConversation(id, userID int64) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	messages, err := s.ListMessages(model.ID)
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model, messages), true, nil
}

// ListConversations returns the user's conversations, newest first, each with
// its messages loaded.
func (s *GormStore) ListConversations(userID int64) ([]domain.Conversation, error) {
	var models []ConversationModel
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		messages, err := s.ListMessages(m.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, conversationFromModel(m, messages))
	}
	return res, nil
}

// UpdateConversationTitle renames a conversation owned by userID.
func (s *GormStore) UpdateConversationTitle(id, userID int64, title string) error {
	res := s.db.Model(&ConversationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation owned by userID and its messages.
func (s *GormStore) DeleteConversation(id, userID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&ConversationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&MessageModel{}, "conversation_id = ?", id).Error
	})
}

// AppendMessage inserts a message with a server-assigned timestamp that is
// strictly greater than any existing timestamp in the conversation.
func (s *GormStore) AppendMessage(conversationID int64, sender domain.SenderType, content string) (domain.Message, error) {
	at := time.Now().UTC()
	var last MessageModel
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Message{}, err
	}
	if err == nil && !at.After(last.CreatedAt) {
		at = last.CreatedAt.Add(time.Microsecond)
	}
	model := MessageModel{
		ConversationID: conversationID,
		SenderType:     string(sender),
		Content:        content,
		CreatedAt:      at,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// ListMessages returns all messages of a conversation ordered by creation
// time ascending.
func (s *GormStore) ListMessages(conversationID int64) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                u.ID,
		Email:             u.Email,
		Username:          u.Username,
		PasswordHash:      u.PasswordHash,
		EmailVerified:     u.EmailVerified,
		VerificationToken: u.VerificationToken,
		Admin:             u.Admin,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                m.ID,
		Email:             m.Email,
		Username:          m.Username,
		PasswordHash:      m.PasswordHash,
		EmailVerified:     m.EmailVerified,
		VerificationToken: m.VerificationToken,
		Admin:             m.Admin,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func planFromModel(m SubscriptionPlanModel) domain.SubscriptionPlan {
	return domain.SubscriptionPlan{
		ID:                m.ID,
		Name:              m.Name,
		RequestsPerMinute: m.RequestsPerMinute,
		RequestsPerDay:    m.RequestsPerDay,
		Price:             m.Price,
	}
}

func subscriptionFromModel(m UserSubscriptionModel) domain.UserSubscription {
	return domain.UserSubscription{
		ID:        m.ID,
		UserID:    m.UserID,
		PlanID:    m.PlanID,
		Plan:      planFromModel(m.Plan),
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func conversationFromModel(m ConversationModel, messages []domain.Message) domain.Conversation {
	if messages == nil {
		messages = []domain.Message{}
	}
	return domain.Conversation{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
		Messages:  messages,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         domain.SenderType(m.SenderType),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
