package store

import "github.com/google/uuid"

// NewID returns a random identifier for rows and token claims.
func NewID() string {
	return uuid.NewString()
}
