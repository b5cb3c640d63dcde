package store

import (
	"sort"
	"sync"
	"time"

	"convoai/pkg/domain"
)

// MemoryStore keeps all state in-process. It backs tests and local
// development; the semantics mirror GormStore.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	users     map[int64]domain.User
	emails    map[string]int64 // email -> user ID
	plans     map[int64]domain.SubscriptionPlan
	planNames map[string]int64 // plan name -> plan ID
	subs      []domain.UserSubscription
	logs      []domain.RequestLog
	convs     map[int64]domain.Conversation
	convOrder []int64
	msgs      map[int64][]domain.Message
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]domain.User),
		emails:    make(map[string]int64),
		plans:     make(map[int64]domain.SubscriptionPlan),
		planNames: make(map[string]int64),
		convs:     make(map[int64]domain.Conversation),
		msgs:      make(map[int64][]domain.Message),
	}
}

// WithTx snapshots the store, runs fn, and restores the snapshot when fn
// fails. Transactions are not isolated from concurrent writers; tests and
// single-request flows drive one transaction at a time.
func (m *MemoryStore) WithTx(fn func(Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	seq       int64
	users     map[int64]domain.User
	emails    map[string]int64
	plans     map[int64]domain.SubscriptionPlan
	planNames map[string]int64
	subs      []domain.UserSubscription
	logs      []domain.RequestLog
	convs     map[int64]domain.Conversation
	convOrder []int64
	msgs      map[int64][]domain.Message
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := memorySnapshot{
		seq:       m.seq,
		users:     make(map[int64]domain.User, len(m.users)),
		emails:    make(map[string]int64, len(m.emails)),
		plans:     make(map[int64]domain.SubscriptionPlan, len(m.plans)),
		planNames: make(map[string]int64, len(m.planNames)),
		subs:      append([]domain.UserSubscription(nil), m.subs...),
		logs:      append([]domain.RequestLog(nil), m.logs...),
		convs:     make(map[int64]domain.Conversation, len(m.convs)),
		convOrder: append([]int64(nil), m.convOrder...),
		msgs:      make(map[int64][]domain.Message, len(m.msgs)),
	}
	for k, v := range m.users {
		snap.users[k] = v
	}
	for k, v := range m.emails {
		snap.emails[k] = v
	}
	for k, v := range m.plans {
		snap.plans[k] = v
	}
	for k, v := range m.planNames {
		snap.planNames[k] = v
	}
	for k, v := range m.convs {
		snap.convs[k] = v
	}
	for k, v := range m.msgs {
		snap.msgs[k] = append([]domain.Message(nil), v...)
	}
	return snap
}

func (m *MemoryStore) restore(snap memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = snap.seq
	m.users = snap.users
	m.emails = snap.emails
	m.plans = snap.plans
	m.planNames = snap.planNames
	m.subs = snap.subs
	m.logs = snap.logs
	m.convs = snap.convs
	m.convOrder = snap.convOrder
	m.msgs = snap.msgs
}

func (m *MemoryStore) nextID() int64 {
	m.seq++
	return m.seq
}

// CreateUser registers a user.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.nextID()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return u, nil
}

// UpdateUser replaces a stored user.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	if prev.Email != u.Email {
		delete(m.emails, prev.Email)
		m.emails[u.Email] = u.ID
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.emails[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByVerificationToken scans for the holder of a verification token.
func (m *MemoryStore) GetUserByVerificationToken(token string) (domain.User, bool, error) {
	if token == "" {
		return domain.User{}, false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.VerificationToken == token {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// CreatePlan stores a plan.
func (m *MemoryStore) CreatePlan(p domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID()
	m.plans[p.ID] = p
	m.planNames[p.Name] = p.ID
	return p, nil
}

// GetPlanByName looks up a plan by name.
func (m *MemoryStore) GetPlanByName(name string) (domain.SubscriptionPlan, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.planNames[name]; ok {
		p, exists := m.plans[id]
		return p, exists, nil
	}
	return domain.SubscriptionPlan{}, false, nil
}

// ListPlans returns all plans ordered by price ascending.
func (m *MemoryStore) ListPlans() ([]domain.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.SubscriptionPlan, 0, len(m.plans))
	for _, p := range m.plans {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Price < res[j].Price })
	return res, nil
}

// CreateSubscription stores a subscription.
func (m *MemoryStore) CreateSubscription(s domain.UserSubscription) (domain.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID()
	now := time.Now().UTC()
	s.CreatedAt = now
	if s.StartDate.IsZero() {
		s.StartDate = now
	}
	if plan, ok := m.plans[s.PlanID]; ok {
		s.Plan = plan
	}
	m.subs = append(m.subs, s)
	return s, nil
}

// ActiveSubscription returns the newest currently active subscription.
func (m *MemoryStore) ActiveSubscription(userID int64, now time.Time) (domain.UserSubscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best domain.UserSubscription
	found := false
	for _, s := range m.subs {
		if s.UserID != userID || !s.CurrentlyActive(now) {
			continue
		}
		if !found || s.CreatedAt.After(best.CreatedAt) || (s.CreatedAt.Equal(best.CreatedAt) && s.ID > best.ID) {
			best = s
			found = true
		}
	}
	if found {
		if plan, ok := m.plans[best.PlanID]; ok {
			best.Plan = plan
		}
	}
	return best, found, nil
}

// AddRequestLog appends one usage row.
func (m *MemoryStore) AddRequestLog(userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, domain.RequestLog{
		ID:          m.nextID(),
		UserID:      userID,
		RequestedAt: at.UTC(),
	})
	return nil
}

// CountRequestsSince counts usage rows at or after since.
func (m *MemoryStore) CountRequestsSince(userID int64, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, l := range m.logs {
		if l.UserID == userID && !l.RequestedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CreateConversation stores a conversation and tracks insertion order.
func (m *MemoryStore) CreateConversation(c domain.Conversation) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Messages = nil
	m.convs[c.ID] = c
	m.convOrder = append(m.convOrder, c.ID)
	c.Messages = []domain.Message{}
	return c, nil
}

// GetConversation fetches a conversation owned by userID with its messages.
func (m *MemoryStore) GetConversation(id, userID int64) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok || c.UserID != userID {
		return domain.Conversation{}, false, nil
	}
	c.Messages = append([]domain.Message{}, m.msgs[id]...)
	return c, true, nil
}

// ListConversations returns the user's conversations, newest first.
func (m *MemoryStore) ListConversations(userID int64) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for i := len(m.convOrder) - 1; i >= 0; i-- {
		id := m.convOrder[i]
		c, ok := m.convs[id]
		if !ok || c.UserID != userID {
			continue
		}
		c.Messages = append([]domain.Message{}, m.msgs[id]...)
		res = append(res, c)
	}
	return res, nil
}

// UpdateConversationTitle renames a conversation owned by userID.
func (m *MemoryStore) UpdateConversationTitle(id, userID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	c.Title = title
	m.convs[id] = c
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (m *MemoryStore) DeleteConversation(id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.convs, id)
	delete(m.msgs, id)
	filtered := m.convOrder[:0]
	for _, item := range m.convOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.convOrder = filtered
	return nil
}

// AppendMessage records a message with a timestamp strictly greater than any
// existing timestamp in the conversation.
func (m *MemoryStore) AppendMessage(conversationID int64, sender domain.SenderType, content string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := time.Now().UTC()
	if existing := m.msgs[conversationID]; len(existing) > 0 {
		last := existing[len(existing)-1].CreatedAt
		if !at.After(last) {
			at = last.Add(time.Microsecond)
		}
	}
	msg := domain.Message{
		ID:             m.nextID(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      at,
	}
	m.msgs[conversationID] = append(m.msgs[conversationID], msg)
	return msg, nil
}

// ListMessages returns a conversation's messages in append order.
func (m *MemoryStore) ListMessages(conversationID int64) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Message{}, m.msgs[conversationID]...), nil
}
