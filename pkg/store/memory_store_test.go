package store

import (
	"errors"
	"testing"
	"time"

	"convoai/pkg/domain"
)

func TestAppendMessageMonotonicTimestamps(t *testing.T) {
	m := NewMemoryStore()
	conv, err := m.CreateConversation(domain.Conversation{UserID: 1, Title: "t"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	var prev time.Time
	for i := 0; i < 10; i++ {
		msg, err := m.AppendMessage(conv.ID, domain.SenderUser, "m")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if !msg.CreatedAt.After(prev) {
			t.Fatalf("timestamp %d not strictly increasing: %v <= %v", i, msg.CreatedAt, prev)
		}
		prev = msg.CreatedAt
	}
	msgs, err := m.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(msgs))
	}
}

func TestWithTxRollback(t *testing.T) {
	m := NewMemoryStore()
	user, err := m.CreateUser(domain.User{Email: "u@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	boom := errors.New("boom")
	err = m.WithTx(func(tx Store) error {
		conv, err := tx.CreateConversation(domain.Conversation{UserID: user.ID, Title: "t"})
		if err != nil {
			return err
		}
		if _, err := tx.AppendMessage(conv.ID, domain.SenderUser, "hi"); err != nil {
			return err
		}
		if err := tx.AddRequestLog(user.ID, time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	convs, err := m.ListConversations(user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("conversation survived rollback")
	}
	n, err := m.CountRequestsSince(user.ID, time.Time{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("request log survived rollback")
	}
}

func TestWithTxCommit(t *testing.T) {
	m := NewMemoryStore()
	err := m.WithTx(func(tx Store) error {
		_, err := tx.CreateUser(domain.User{Email: "u@example.com"})
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if ok, _ := m.HasUserEmail("u@example.com"); !ok {
		t.Fatalf("committed user missing")
	}
}

func TestActiveSubscriptionWindow(t *testing.T) {
	m := NewMemoryStore()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	user, _ := m.CreateUser(domain.User{Email: "u@example.com"})
	plan, _ := m.CreatePlan(domain.SubscriptionPlan{Name: "Basic"})

	ended := now.Add(-time.Hour)
	cases := []domain.UserSubscription{
		{UserID: user.ID, PlanID: plan.ID, Active: false, StartDate: now.Add(-time.Hour)},
		{UserID: user.ID, PlanID: plan.ID, Active: true, StartDate: now.Add(time.Hour)},
		{UserID: user.ID, PlanID: plan.ID, Active: true, StartDate: now.Add(-48 * time.Hour), EndDate: &ended},
	}
	for _, sub := range cases {
		if _, err := m.CreateSubscription(sub); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}
	if _, ok, _ := m.ActiveSubscription(user.ID, now); ok {
		t.Fatalf("inactive, future, and ended subscriptions must not match")
	}

	open, err := m.CreateSubscription(domain.UserSubscription{UserID: user.ID, PlanID: plan.ID, Active: true, StartDate: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	got, ok, err := m.ActiveSubscription(user.ID, now)
	if err != nil || !ok {
		t.Fatalf("expected active subscription: ok=%v err=%v", ok, err)
	}
	if got.ID != open.ID {
		t.Fatalf("resolved subscription %d, want %d", got.ID, open.ID)
	}
	if got.Plan.Name != "Basic" {
		t.Fatalf("plan not joined: %+v", got)
	}
}

func TestActiveSubscriptionNewestWins(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now().UTC()
	user, _ := m.CreateUser(domain.User{Email: "u@example.com"})
	basic, _ := m.CreatePlan(domain.SubscriptionPlan{Name: "Basic"})
	pro, _ := m.CreatePlan(domain.SubscriptionPlan{Name: "Pro"})

	if _, err := m.CreateSubscription(domain.UserSubscription{UserID: user.ID, PlanID: basic.ID, Active: true, StartDate: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateSubscription(domain.UserSubscription{UserID: user.ID, PlanID: pro.ID, Active: true, StartDate: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := m.ActiveSubscription(user.ID, now)
	if err != nil || !ok {
		t.Fatalf("expected active subscription: ok=%v err=%v", ok, err)
	}
	if got.Plan.Name != "Pro" {
		t.Fatalf("newest subscription must win, got %q", got.Plan.Name)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	m := NewMemoryStore()
	conv, _ := m.CreateConversation(domain.Conversation{UserID: 1, Title: "t"})
	if _, err := m.AppendMessage(conv.ID, domain.SenderUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.DeleteConversation(conv.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, _ := m.ListMessages(conv.ID)
	if len(msgs) != 0 {
		t.Fatalf("messages survived conversation delete")
	}
	if err := m.DeleteConversation(conv.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConversationOwnerScoping(t *testing.T) {
	m := NewMemoryStore()
	conv, _ := m.CreateConversation(domain.Conversation{UserID: 1, Title: "t"})

	if _, ok, _ := m.GetConversation(conv.ID, 2); ok {
		t.Fatalf("foreign user must not see the conversation")
	}
	if err := m.UpdateConversationTitle(conv.ID, 2, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeleteConversation(conv.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	first, _ := m.CreateConversation(domain.Conversation{UserID: 1, Title: "first"})
	second, _ := m.CreateConversation(domain.Conversation{UserID: 1, Title: "second"})
	if _, err := m.CreateConversation(domain.Conversation{UserID: 2, Title: "other"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	convs, err := m.ListConversations(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != second.ID || convs[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", convs)
	}
}

func TestUpdateUserReindexesEmail(t *testing.T) {
	m := NewMemoryStore()
	user, _ := m.CreateUser(domain.User{Email: "old@example.com"})
	user.Email = "new@example.com"
	if err := m.UpdateUser(user); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok, _ := m.HasUserEmail("old@example.com"); ok {
		t.Fatalf("old email still indexed")
	}
	if _, ok, _ := m.GetUserByEmail("new@example.com"); !ok {
		t.Fatalf("new email not indexed")
	}
}
