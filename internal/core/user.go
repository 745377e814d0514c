package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User owns categories, transactions, trips and reports. Every read and
// write in storage is scoped to one owner.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// NewUser creates a user with a fresh id. The password must already be
// hashed by the auth layer.
func NewUser(email, displayName, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}
