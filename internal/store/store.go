package store

import (
	"context"

	"athena/pkg/domain"
)

// Store defines persistence operations for users and chat messages.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// chat
	AppendMessage(userID string, msg domain.ChatMessage) error
	ListMessages(userID string, limit int) ([]domain.ChatMessage, error)

	// Ping reports whether the underlying connection is healthy.
	Ping(ctx context.Context) error
}

// SessionStore issues and resolves bearer tokens. Tokens are stateless;
// validity is determined by signature and expiry alone.
type SessionStore interface {
	NewSession(subject string) (string, error)
	GetSubjectByToken(token string) (string, bool, error)
}
