package business

import "context"

// Repository defines the interface for business storage
type Repository interface {
	Create(ctx context.Context, b *Business) error
	GetByID(ctx context.Context, id string) (*Business, error)
	// ListByOwner returns the owner's businesses, newest first.
	ListByOwner(ctx context.Context, ownerUserID string) ([]*Business, error)
	Delete(ctx context.Context, id string) error
}
