package postgres

import (
	"context"
	"fmt"

	"github.com/leadboard/leadboard/internal/business"
)

// BusinessRepository implements business.Repository
type BusinessRepository struct {
	db *DB
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(db *DB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// Create inserts a business
func (r *BusinessRepository) Create(ctx context.Context, b *business.Business) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO businesses (id, name, owner_user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, b.ID, b.Name, b.OwnerUserID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert business: %w", err)
	}
	return nil
}

// GetByID retrieves a business by ID
func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*business.Business, error) {
	var b business.Business
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, owner_user_id, created_at
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.OwnerUserID, &b.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, business.ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return &b, nil
}

// ListByOwner returns the owner's businesses, newest first
func (r *BusinessRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]*business.Business, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, owner_user_id, created_at
		FROM businesses
		WHERE owner_user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	defer rows.Close()

	list := make([]*business.Business, 0)
	for rows.Next() {
		var b business.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.OwnerUserID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		list = append(list, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate businesses: %w", err)
	}
	return list, nil
}

// Delete removes a business; its leads go with it through the foreign key
func (r *BusinessRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete business: %w", err)
	}
	if result.RowsAffected() == 0 {
		return business.ErrBusinessNotFound
	}
	return nil
}

var _ business.Repository = (*BusinessRepository)(nil)
