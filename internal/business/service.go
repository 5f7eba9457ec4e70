// Copyright 2026 The Leadboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leadboard/leadboard/internal/audit"
	"github.com/leadboard/leadboard/internal/id"
)

// Service provides ownership-scoped business operations
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new business service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Create creates a business owned by ownerID
func (s *Service) Create(ctx context.Context, ownerID, name string) (*Business, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	b := &Business{
		ID:          id.NewUUIDv7(),
		Name:        name,
		OwnerUserID: ownerID,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create business: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeBusinessCreated,
		BusinessID: b.ID,
		ActorID:    ownerID,
		Resource:   "business",
		Metadata:   map[string]any{"name": b.Name},
	})

	return b, nil
}

// ListForOwner lists the owner's businesses, newest first
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]*Business, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return list, nil
}

// Get returns a business by ID without an ownership check. It backs
// administrative tooling.
func (s *Service) Get(ctx context.Context, businessID string) (*Business, error) {
	if businessID == "" {
		return nil, ErrBusinessNotFound
	}
	b, err := s.repo.GetByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, ErrBusinessNotFound) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return b, nil
}

// GetForOwner returns the business if ownerID owns it. A business owned by
// someone else is reported as not found.
func (s *Service) GetForOwner(ctx context.Context, ownerID, businessID string) (*Business, error) {
	b, err := s.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(ownerID) {
		return nil, ErrBusinessNotFound
	}
	return b, nil
}

// Delete permanently removes a business and, through the storage cascade,
// its leads. It is an administrative operation with no ownership check.
func (s *Service) Delete(ctx context.Context, businessID string) error {
	if err := s.repo.Delete(ctx, businessID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeBusinessDeleted,
		BusinessID: businessID,
		ActorID:    "admin",
		Resource:   "business",
	})
	return nil
}
