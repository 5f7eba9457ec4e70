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
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadboard/leadboard/internal/observability/logger"
)

// Config controls session lifetimes.
type Config struct {
	Lifetime    time.Duration
	IdleTimeout time.Duration
	// TouchInterval limits how often LastSeenAt is written back.
	TouchInterval time.Duration
}

// Service issues and validates sessions.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a session service.
func NewService(repo Repository, cfg Config) *Service {
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = time.Minute
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// Create starts a session for the user.
func (s *Service) Create(ctx context.Context, userID, ipAddress, userAgent string) (*Session, error) {
	sid, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &Session{
		ID:         sid,
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.cfg.Lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Validate returns the live session for sessionID and refreshes its idle
// clock. Expired or idle sessions are deleted and reported as
// ErrSessionExpired.
func (s *Service) Validate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrSessionInvalid
	}
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	now := s.now()
	if sess.IsExpired(now) || sess.IsIdle(now, s.cfg.IdleTimeout) {
		if err := s.repo.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.WarnContext(ctx, "failed to delete stale session", logger.Error(err))
		}
		return nil, ErrSessionExpired
	}

	if now.Sub(sess.LastSeenAt) >= s.cfg.TouchInterval {
		if err := s.repo.Touch(ctx, sess.ID, now); err != nil {
			slog.WarnContext(ctx, "failed to refresh session", logger.Error(err))
		} else {
			sess.LastSeenAt = now
		}
	}
	return sess, nil
}

// Destroy ends a session. Destroying an unknown session is not an error.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DestroyAllForUser ends every session of the user.
func (s *Service) DestroyAllForUser(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// CleanupExpired removes sessions whose lifetime has elapsed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "session cleanup failed", logger.Error(err))
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "expired sessions removed", logger.Component("session"), "count", n)
			}
		}
	}
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
