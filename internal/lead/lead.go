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

package lead

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrNameRequired     = errors.New("lead name is required")
	ErrPhoneRequired    = errors.New("lead phone is required")
	ErrRevisionConflict = errors.New("lead was modified concurrently")
)

// Lead is a prospective customer tracked by a business.
type Lead struct {
	ID             string     `json:"id"`
	BusinessID     string     `json:"business_id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	Instagram      *string    `json:"instagram"`
	TreatmentType  *string    `json:"treatment_type"`
	Status         Status     `json:"status"`
	Notes          *string    `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	NextFollowupAt *time.Time `json:"next_followup_at"`
	Revision       int64      `json:"revision"`
}

// CreateInput carries the fields accepted when a lead is created.
type CreateInput struct {
	Name          string
	Phone         string
	Instagram     string
	TreatmentType string
	Notes         string
	Status        string
}

// Validate trims the input in place and checks required fields.
// An empty status defaults to NEW.
func (in *CreateInput) Validate() (Status, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" {
		return "", ErrNameRequired
	}
	if in.Phone == "" {
		return "", ErrPhoneRequired
	}
	if strings.TrimSpace(in.Status) == "" {
		return StatusNew, nil
	}
	return ParseStatus(in.Status)
}

// Update describes a single-field mutation. Revision 0 skips the
// optimistic check and the write simply wins.
type Update struct {
	Field          Field
	Status         Status
	Notes          *string
	NextFollowupAt *time.Time
	Revision       int64
}

// Field names the mutable lead column targeted by an Update.
type Field string

const (
	FieldStatus   Field = "status"
	FieldNotes    Field = "notes"
	FieldFollowUp Field = "next_followup_at"
)

// Repository defines the interface for lead storage.
// All lookups are scoped by business ID.
type Repository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, businessID, leadID string) (*Lead, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*Lead, error)
	Update(ctx context.Context, businessID, leadID string, upd Update) (*Lead, error)
	Delete(ctx context.Context, businessID, leadID string) error
}

// NullableText trims s and maps an empty result to nil.
func NullableText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
