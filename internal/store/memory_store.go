package store

import (
	"context"
	"sort"
	"sync"

	"athena/pkg/domain"
)

// MemoryStore keeps users and chat history in-process. Used in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User          // key: user ID
	email map[string]string               // email -> user ID
	chats map[string][]domain.ChatMessage // key: user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		email: make(map[string]string),
		chats: make(map[string][]domain.ChatMessage),
	}
}

// SaveUser creates or replaces a user record.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// AppendMessage records a chat message for a user.
func (m *MemoryStore) AppendMessage(userID string, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.UserID = userID
	m.chats[userID] = append(m.chats[userID], msg)
	return nil
}

// ListMessages returns a user's messages ordered by creation time.
func (m *MemoryStore) ListMessages(userID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.chats[userID]
	res := make([]domain.ChatMessage, len(msgs))
	copy(res, msgs)
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
