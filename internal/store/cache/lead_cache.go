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

// Package cache keeps per-business lead lists in Redis in front of the
// primary lead repository. Every business has a generation counter that
// successful writes bump; lists are stored under the generation they were
// read at, so a list loaded before a write is never served after it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/leadboard/leadboard/internal/lead"
	"github.com/leadboard/leadboard/internal/observability/logger"
)

var errInvalidEntry = errors.New("invalid cached lead")

// Client is the subset of the Redis API the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// LeadRepository decorates a lead.Repository with a Redis list cache.
type LeadRepository struct {
	next   lead.Repository
	client Client
	ttl    time.Duration
	prefix string
}

// NewLeadRepository wraps next. Cache failures never fail a request; they
// are logged and the call falls through to next.
func NewLeadRepository(next lead.Repository, client Client, ttl time.Duration) *LeadRepository {
	return &LeadRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "leadboard:leads:",
	}
}

func (r *LeadRepository) genKey(businessID string) string {
	return r.prefix + "gen:" + businessID
}

func (r *LeadRepository) listKey(businessID, gen string) string {
	return r.prefix + businessID + ":" + gen
}

// generation returns the current write generation of a business; "0" until
// the first write.
func (r *LeadRepository) generation(ctx context.Context, businessID string) (string, error) {
	gen, err := r.client.Get(ctx, r.genKey(businessID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (r *LeadRepository) get(ctx context.Context, key string, value interface{}) error {
	str, err := r.client.Get(ctx, key).Result()
	if err != nil {
		// redis.Nil on a miss
		return err
	}
	return json.Unmarshal([]byte(str), value)
}

func (r *LeadRepository) set(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, b, r.ttl).Err()
}

func (r *LeadRepository) invalidate(ctx context.Context, businessID string) {
	if err := r.client.Incr(ctx, r.genKey(businessID)).Err(); err != nil {
		slog.WarnContext(ctx, "lead cache invalidation failed",
			logger.Component("cache"), logger.BusinessID(businessID), logger.Error(err))
	}
}

// checkEntries applies the same integrity rules as rows read from the
// database.
func checkEntries(leads []*lead.Lead) error {
	for i, l := range leads {
		if l == nil {
			return fmt.Errorf("%w: nil entry at %d", errInvalidEntry, i)
		}
		if !l.Status.Valid() {
			return fmt.Errorf("%w: lead %s has status %q", errInvalidEntry, l.ID, l.Status)
		}
	}
	return nil
}

// ListByBusiness serves the list from Redis when present.
func (r *LeadRepository) ListByBusiness(ctx context.Context, businessID string) ([]*lead.Lead, error) {
	gen, err := r.generation(ctx, businessID)
	if err != nil {
		slog.WarnContext(ctx, "lead cache read failed",
			logger.Component("cache"), logger.BusinessID(businessID), logger.Error(err))
		return r.next.ListByBusiness(ctx, businessID)
	}
	key := r.listKey(businessID, gen)

	var cached []*lead.Lead
	err = r.get(ctx, key, &cached)
	if err == nil {
		err = checkEntries(cached)
		if err == nil {
			return cached, nil
		}
	}
	if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "lead cache read failed",
			logger.Component("cache"), logger.BusinessID(businessID), logger.Error(err))
	}

	leads, err := r.next.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	// A write that landed meanwhile has moved the generation past gen, so
	// this entry is never read again.
	if err := r.set(ctx, key, leads); err != nil {
		slog.WarnContext(ctx, "lead cache write failed",
			logger.Component("cache"), logger.BusinessID(businessID), logger.Error(err))
	}
	return leads, nil
}

// GetByID is not cached.
func (r *LeadRepository) GetByID(ctx context.Context, businessID, leadID string) (*lead.Lead, error) {
	return r.next.GetByID(ctx, businessID, leadID)
}

// Create stores the lead and advances the business generation.
func (r *LeadRepository) Create(ctx context.Context, l *lead.Lead) error {
	if err := r.next.Create(ctx, l); err != nil {
		return err
	}
	r.invalidate(ctx, l.BusinessID)
	return nil
}

// Update applies the change and advances the business generation.
func (r *LeadRepository) Update(ctx context.Context, businessID, leadID string, upd lead.Update) (*lead.Lead, error) {
	l, err := r.next.Update(ctx, businessID, leadID, upd)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, businessID)
	return l, nil
}

// Delete removes the lead and advances the business generation.
func (r *LeadRepository) Delete(ctx context.Context, businessID, leadID string) error {
	if err := r.next.Delete(ctx, businessID, leadID); err != nil {
		return err
	}
	r.invalidate(ctx, businessID)
	return nil
}

// InvalidateBusiness retires the cached list of a business, e.g. after the
// business itself was deleted.
func (r *LeadRepository) InvalidateBusiness(ctx context.Context, businessID string) {
	r.invalidate(ctx, businessID)
}

var _ lead.Repository = (*LeadRepository)(nil)
