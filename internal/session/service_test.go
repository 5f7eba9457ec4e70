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

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
	touches  int
}

func newMemRepo() *memRepo {
	return &memRepo{sessions: make(map[string]*Session)}
}

func (m *memRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastSeenAt = at
	m.touches++
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time         { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(repo Repository) (*Service, *clock) {
	c := &clock{t: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	s := NewService(repo, Config{Lifetime: 24 * time.Hour, IdleTimeout: 30 * time.Minute, TouchInterval: time.Minute})
	s.now = c.now
	return s, c
}

// TestPurpose: Validates session creation, idle refresh and logout.
// Scope: Unit Test
// Security: Session management
// Expected: a fresh session validates, activity pushes the idle deadline, Destroy removes it.
// Test Case ID: SES-01
func TestService_Lifecycle(t *testing.T) {
	repo := newMemRepo()
	s, c := newTestService(repo)
	ctx := context.Background()

	sess, err := s.Create(ctx, "user-1", "10.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.Len(t, sess.ID, 43)
	assert.Equal(t, c.t.Add(24*time.Hour), sess.ExpiresAt)

	c.advance(20 * time.Minute)
	got, err := s.Validate(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, c.t, got.LastSeenAt)
	assert.Equal(t, 1, repo.touches)

	// Still inside the idle window thanks to the refresh above.
	c.advance(20 * time.Minute)
	_, err = s.Validate(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, s.Destroy(ctx, sess.ID))
	require.NoError(t, s.Destroy(ctx, sess.ID))
	_, err = s.Validate(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

// TestPurpose: Validates idle and absolute expiry.
// Scope: Unit Test
// Security: Session management
// Expected: idle and expired sessions are rejected with ErrSessionExpired and deleted.
// Test Case ID: SES-02
func TestService_Expiry(t *testing.T) {
	repo := newMemRepo()
	s, c := newTestService(repo)
	ctx := context.Background()

	idle, err := s.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	c.advance(31 * time.Minute)
	_, err = s.Validate(ctx, idle.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 0, repo.len())

	s.cfg.IdleTimeout = 0
	old, err := s.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	c.advance(24 * time.Hour)
	_, err = s.Validate(ctx, old.ID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

// TestPurpose: Validates bulk cleanup and per-user revocation.
// Scope: Unit Test
// Expected: only expired sessions are swept; DestroyAllForUser removes just that user's sessions.
// Test Case ID: SES-03
func TestService_Cleanup(t *testing.T) {
	repo := newMemRepo()
	s, c := newTestService(repo)
	ctx := context.Background()

	_, err := s.Create(ctx, "user-1", "", "")
	require.NoError(t, err)
	c.advance(23 * time.Hour)
	_, err = s.Create(ctx, "user-2", "", "")
	require.NoError(t, err)
	c.advance(2 * time.Hour)

	n, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, repo.len())

	require.NoError(t, s.DestroyAllForUser(ctx, "user-2"))
	assert.Equal(t, 0, repo.len())
}

// TestPurpose: Validates the background sweeper exits with its context.
// Scope: Unit Test
// Expected: no goroutine outlives RunCleanup after cancellation.
// Test Case ID: SES-04
func TestService_RunCleanupStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newTestService(newMemRepo())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	<-done
}
