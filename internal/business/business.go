package business

import (
	"errors"
	"time"
)

var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrNameRequired     = errors.New("business name is required")
	ErrOwnerRequired    = errors.New("business owner is required")
)

// Business is a tenant owned by exactly one user; leads hang off it.
type Business struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerUserID string    `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OwnedBy reports whether userID owns the business.
func (b *Business) OwnedBy(userID string) bool {
	return userID != "" && b.OwnerUserID == userID
}
