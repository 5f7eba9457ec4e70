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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/id"
	"github.com/leadboard/leadboard/internal/identity"
	"github.com/leadboard/leadboard/internal/lead"
	"github.com/leadboard/leadboard/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = Config{
			Host: "localhost", Port: "5432", User: "leadboard", Password: "leadboard_dev_password",
			Database: "leadboard", SSLMode: "disable", MaxOpenConns: 5, MaxIdleConns: 1,
		}.ConnString()
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	// Applying the schema twice must be harmless.
	require.NoError(t, db.Migrate(ctx, InitialSchema))
	return db
}

func seedOwner(t *testing.T, db *DB) (*identity.User, *business.Business) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := &identity.User{ID: id.NewUUIDv7(), Email: id.NewUUIDv7() + "@example.com", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, NewUserRepository(db).Create(ctx, u))
	t.Cleanup(func() { _, _ = db.pool.Exec(context.Background(), "DELETE FROM users WHERE id = $1", u.ID) })

	b := &business.Business{ID: id.NewUUIDv7(), Name: "Salon", OwnerUserID: u.ID, CreatedAt: now}
	require.NoError(t, NewBusinessRepository(db).Create(ctx, b))
	return u, b
}

// TestPurpose: Validates that lead reads and writes are confined to the owning business.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: a lead of business A is invisible and immutable through business B.
// Test Case ID: ISO-01
func TestLeadRepository_BusinessIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewLeadRepository(db)

	_, bizA := seedOwner(t, db)
	_, bizB := seedOwner(t, db)

	l := &lead.Lead{
		ID: id.NewUUIDv7(), BusinessID: bizA.ID, Name: "Dana", Phone: "0501234567",
		Status: lead.StatusNew, CreatedAt: time.Now().UTC(), Revision: 1,
	}
	require.NoError(t, repo.Create(ctx, l))

	_, err := repo.GetByID(ctx, bizB.ID, l.ID)
	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
	_, err = repo.Update(ctx, bizB.ID, l.ID, lead.Update{Field: lead.FieldStatus, Status: lead.StatusContacted})
	assert.ErrorIs(t, err, lead.ErrLeadNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, bizB.ID, l.ID), lead.ErrLeadNotFound)

	listB, err := repo.ListByBusiness(ctx, bizB.ID)
	require.NoError(t, err)
	assert.Empty(t, listB)
}

// TestPurpose: Validates optimistic concurrency on lead updates.
// Scope: Database Integration Test
// Expected: matching revision succeeds and bumps it; stale revision conflicts; zero always wins.
// Test Case ID: DB-01
func TestLeadRepository_RevisionCheck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewLeadRepository(db)
	_, biz := seedOwner(t, db)

	l := &lead.Lead{
		ID: id.NewUUIDv7(), BusinessID: biz.ID, Name: "Noa", Phone: "0521111111",
		Status: lead.StatusNew, CreatedAt: time.Now().UTC(), Revision: 1,
	}
	require.NoError(t, repo.Create(ctx, l))

	got, err := repo.Update(ctx, biz.ID, l.ID, lead.Update{Field: lead.FieldStatus, Status: lead.StatusAppointmentScheduled, Revision: 1})
	require.NoError(t, err)
	assert.Equal(t, lead.StatusAppointmentScheduled, got.Status)
	assert.Equal(t, int64(2), got.Revision)

	_, err = repo.Update(ctx, biz.ID, l.ID, lead.Update{Field: lead.FieldStatus, Status: lead.StatusNoResponse, Revision: 1})
	assert.ErrorIs(t, err, lead.ErrRevisionConflict)

	notes := "prefers mornings"
	got, err = repo.Update(ctx, biz.ID, l.ID, lead.Update{Field: lead.FieldNotes, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, *got.Notes)
	assert.Equal(t, lead.StatusAppointmentScheduled, got.Status)

	at := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond)
	got, err = repo.Update(ctx, biz.ID, l.ID, lead.Update{Field: lead.FieldFollowUp, NextFollowupAt: &at})
	require.NoError(t, err)
	require.NotNil(t, got.NextFollowupAt)
	assert.True(t, at.Equal(*got.NextFollowupAt))

	got, err = repo.Update(ctx, biz.ID, l.ID, lead.Update{Field: lead.FieldFollowUp})
	require.NoError(t, err)
	assert.Nil(t, got.NextFollowupAt)
}

// TestPurpose: Validates cascading delete of a business and newest-first ordering.
// Scope: Database Integration Test
// Expected: leads list newest first; deleting the business removes its leads.
// Test Case ID: DB-02
func TestBusinessRepository_CascadeDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	leads := NewLeadRepository(db)
	businesses := NewBusinessRepository(db)
	owner, biz := seedOwner(t, db)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, name := range []string{"old", "new"} {
		require.NoError(t, leads.Create(ctx, &lead.Lead{
			ID: id.NewUUIDv7(), BusinessID: biz.ID, Name: name, Phone: "1",
			Status: lead.StatusNew, CreatedAt: base.Add(time.Duration(i) * time.Hour), Revision: 1,
		}))
	}

	list, err := leads.ListByBusiness(ctx, biz.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Name)

	owned, err := businesses.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	require.NoError(t, businesses.Delete(ctx, biz.ID))
	assert.ErrorIs(t, businesses.Delete(ctx, biz.ID), business.ErrBusinessNotFound)

	list, err = leads.ListByBusiness(ctx, biz.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestPurpose: Validates user uniqueness and session expiry sweeping.
// Scope: Database Integration Test
// Expected: duplicate emails (any case) are rejected; expired sessions are removed.
// Test Case ID: DB-03
func TestUserAndSessionRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	owner, _ := seedOwner(t, db)

	dup := &identity.User{ID: id.NewUUIDv7(), Email: strings.ToUpper(owner.Email), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	assert.ErrorIs(t, users.Create(ctx, dup), identity.ErrUserAlreadyExists)

	found, err := users.GetByEmail(ctx, owner.Email)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, found.ID)

	now := time.Now().UTC()
	expired := &session.Session{ID: id.NewUUIDv7(), UserID: owner.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now, LastSeenAt: now}
	live := &session.Session{ID: id.NewUUIDv7(), UserID: owner.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now, LastSeenAt: now}
	require.NoError(t, sessions.Create(ctx, expired))
	require.NoError(t, sessions.Create(ctx, live))

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	_, err = sessions.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = sessions.Get(ctx, live.ID)
	assert.NoError(t, err)
}
