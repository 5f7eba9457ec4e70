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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/leadboard/leadboard/internal/lead"
)

// LeadRepository implements lead.Repository
type LeadRepository struct {
	db *DB
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *DB) *LeadRepository {
	return &LeadRepository{db: db}
}

const leadColumns = `id, business_id, name, phone, instagram, treatment_type,
	status::text, notes, created_at, next_followup_at, revision`

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var (
		l      lead.Lead
		status string
	)
	err := row.Scan(
		&l.ID, &l.BusinessID, &l.Name, &l.Phone, &l.Instagram, &l.TreatmentType,
		&status, &l.Notes, &l.CreatedAt, &l.NextFollowupAt, &l.Revision,
	)
	if err != nil {
		return nil, err
	}
	// A status outside the closed set means the row is corrupt.
	if l.Status, err = lead.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("lead %s: %w", l.ID, err)
	}
	return &l, nil
}

// Create inserts a lead
func (r *LeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO leads (
			id, business_id, name, phone, instagram, treatment_type,
			status, notes, created_at, next_followup_at, revision
		) VALUES ($1, $2, $3, $4, $5, $6, $7::text::lead_status, $8, $9, $10, $11)
	`,
		l.ID, l.BusinessID, l.Name, l.Phone, l.Instagram, l.TreatmentType,
		string(l.Status), l.Notes, l.CreatedAt, l.NextFollowupAt, l.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

// GetByID retrieves a lead within a business
func (r *LeadRepository) GetByID(ctx context.Context, businessID, leadID string) (*lead.Lead, error) {
	l, err := scanLead(r.db.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE business_id = $1 AND id = $2
	`, businessID, leadID))
	if err != nil {
		if isNoRows(err) {
			return nil, lead.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// ListByBusiness returns the leads of a business, newest first
func (r *LeadRepository) ListByBusiness(ctx context.Context, businessID string) ([]*lead.Lead, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE business_id = $1
		ORDER BY created_at DESC, id DESC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]*lead.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, nil
}

// Update applies a single-field change. With a non-zero revision the row
// must still carry that revision or lead.ErrRevisionConflict is returned.
func (r *LeadRepository) Update(ctx context.Context, businessID, leadID string, upd lead.Update) (*lead.Lead, error) {
	var (
		set   string
		value any
	)
	switch upd.Field {
	case lead.FieldStatus:
		set, value = "status = $3::text::lead_status", string(upd.Status)
	case lead.FieldNotes:
		set, value = "notes = $3", upd.Notes
	case lead.FieldFollowUp:
		set, value = "next_followup_at = $3", upd.NextFollowupAt
	default:
		return nil, fmt.Errorf("unsupported lead field %q", upd.Field)
	}

	l, err := scanLead(r.db.pool.QueryRow(ctx, `
		UPDATE leads
		SET `+set+`, revision = revision + 1
		WHERE business_id = $1 AND id = $2 AND ($4::bigint = 0 OR revision = $4::bigint)
		RETURNING `+leadColumns,
		businessID, leadID, value, upd.Revision,
	))
	if err == nil {
		return l, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	var exists bool
	if err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM leads WHERE business_id = $1 AND id = $2)
	`, businessID, leadID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check lead: %w", err)
	}
	if !exists {
		return nil, lead.ErrLeadNotFound
	}
	return nil, lead.ErrRevisionConflict
}

// Delete removes a lead
func (r *LeadRepository) Delete(ctx context.Context, businessID, leadID string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM leads WHERE business_id = $1 AND id = $2
	`, businessID, leadID)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return lead.ErrLeadNotFound
	}
	return nil
}

var _ lead.Repository = (*LeadRepository)(nil)
