package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/identity"
	"github.com/leadboard/leadboard/internal/lead"
	"github.com/leadboard/leadboard/internal/session"
)

// memStore backs every repository interface the handlers reach with maps.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*identity.User
	creds      map[string]*identity.Credentials
	sessions   map[string]*session.Session
	businesses map[string]*business.Business
	leads      map[string]*lead.Lead
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]*identity.User),
		creds:      make(map[string]*identity.Credentials),
		sessions:   make(map[string]*session.Session),
		businesses: make(map[string]*business.Business),
		leads:      make(map[string]*lead.Lead),
	}
}

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, u *identity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m memUsers) AddCredentials(_ context.Context, c *identity.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds[c.UserID] = &cp
	return nil
}

func (m memUsers) GetByID(_ context.Context, id string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m memUsers) UpdateLockout(_ context.Context, userID string, attempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = attempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m memUsers) GetCredentials(_ context.Context, userID string) (*identity.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	c.PasswordHash = hash
	return nil
}

type memSessions struct{ *memStore }

func (m memSessions) Create(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m memSessions) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m memSessions) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastSeenAt = at
	}
	return nil
}

func (m memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m memSessions) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
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

type memBusinesses struct{ *memStore }

func (m memBusinesses) Create(_ context.Context, b *business.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.businesses[b.ID] = &cp
	return nil
}

func (m memBusinesses) GetByID(_ context.Context, id string) (*business.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, business.ErrBusinessNotFound
	}
	cp := *b
	return &cp, nil
}

func (m memBusinesses) ListByOwner(_ context.Context, ownerID string) ([]*business.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*business.Business, 0)
	for _, b := range m.businesses {
		if b.OwnerUserID == ownerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memBusinesses) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[id]; !ok {
		return business.ErrBusinessNotFound
	}
	delete(m.businesses, id)
	for lid, l := range m.leads {
		if l.BusinessID == id {
			delete(m.leads, lid)
		}
	}
	return nil
}

type memLeads struct{ *memStore }

func (m memLeads) Create(_ context.Context, l *lead.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m memLeads) find(businessID, leadID string) (*lead.Lead, bool) {
	l, ok := m.leads[leadID]
	if !ok || l.BusinessID != businessID {
		return nil, false
	}
	return l, true
}

func (m memLeads) GetByID(_ context.Context, businessID, leadID string) (*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.find(businessID, leadID)
	if !ok {
		return nil, lead.ErrLeadNotFound
	}
	cp := *l
	return &cp, nil
}

func (m memLeads) ListByBusiness(_ context.Context, businessID string) ([]*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*lead.Lead, 0)
	for _, l := range m.leads {
		if l.BusinessID == businessID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memLeads) Update(_ context.Context, businessID, leadID string, upd lead.Update) (*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.find(businessID, leadID)
	if !ok {
		return nil, lead.ErrLeadNotFound
	}
	if upd.Revision != 0 && upd.Revision != l.Revision {
		return nil, lead.ErrRevisionConflict
	}
	switch upd.Field {
	case lead.FieldStatus:
		l.Status = upd.Status
	case lead.FieldNotes:
		l.Notes = upd.Notes
	case lead.FieldFollowUp:
		l.NextFollowupAt = upd.NextFollowupAt
	}
	l.Revision++
	cp := *l
	return &cp, nil
}

func (m memLeads) Delete(_ context.Context, businessID, leadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.find(businessID, leadID); !ok {
		return lead.ErrLeadNotFound
	}
	delete(m.leads, leadID)
	return nil
}
