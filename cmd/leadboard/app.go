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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leadboard/leadboard/internal/audit"
	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/config"
	"github.com/leadboard/leadboard/internal/identity"
	"github.com/leadboard/leadboard/internal/lead"
	"github.com/leadboard/leadboard/internal/observability/logger"
	"github.com/leadboard/leadboard/internal/session"
	"github.com/leadboard/leadboard/internal/store/cache"
	"github.com/leadboard/leadboard/internal/store/postgres"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg       *config.Config
	db        *postgres.DB
	leadCache *cache.LeadRepository
	closers   []func()

	identity *identity.Service
	sessions *session.Service
	business *business.Service
	leads    *lead.Service
	audit    audit.Logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTel:        cfg.Observability.OTELEnabled,
	})
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newApp connects the stores and builds the domain services. A nil recorder
// disables lead metrics.
func newApp(ctx context.Context, cfg *config.Config, recorder lead.Recorder) (*app, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db, closers: []func(){db.Close}}
	slog.InfoContext(ctx, "connected to database", logger.Component("postgres"))

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	var leadRepo lead.Repository = postgres.NewLeadRepository(db)
	if cfg.Cache.Enabled() {
		client, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.leadCache = cache.NewLeadRepository(leadRepo, client, cfg.Cache.TTL)
		leadRepo = a.leadCache
		slog.InfoContext(ctx, "lead cache enabled", logger.Component("cache"))
	}

	loc, err := cfg.Locale.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.audit = audit.NewSlogLogger()
	hasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	a.identity = identity.NewService(
		postgres.NewUserRepository(db),
		hasher,
		a.audit,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	a.sessions = session.NewService(postgres.NewSessionRepository(db), session.Config{
		Lifetime:    cfg.Session.Lifetime,
		IdleTimeout: cfg.Session.IdleTimeout,
	})
	a.business = business.NewService(postgres.NewBusinessRepository(db), a.audit)
	a.leads = lead.NewService(leadRepo, a.business, a.audit, recorder, lead.Config{
		Rule: lead.Rule{
			GraceDays: cfg.FollowUp.GraceDays,
			Limit:     cfg.FollowUp.SurfaceLimit,
		},
		Location: loc,
	})
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
