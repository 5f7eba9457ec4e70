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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadboard/leadboard/internal/observability/logger"
	"github.com/leadboard/leadboard/internal/observability/metrics"
	"github.com/leadboard/leadboard/internal/observability/tracing"
	"github.com/leadboard/leadboard/internal/store/postgres"
	transportHTTP "github.com/leadboard/leadboard/internal/transport/http"
	"github.com/spf13/cobra"
)

const rateLimiterSweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "starting leadboard", "version", version)

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize tracer", logger.Error(err))
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracer.Shutdown(shutdownCtx)
		}()
	}

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize meter", logger.Error(err))
		meter = nil
	}
	var prom *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		prom = metrics.NewRegistry("leadboard")
	}
	recorder, err := metrics.NewLeadRecorder(meter, prom)
	if err != nil {
		return fmt.Errorf("failed to create lead metrics: %w", err)
	}

	a, err := newApp(ctx, cfg, recorder)
	if err != nil {
		return err
	}
	defer a.Close()

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx, rateLimiterSweepInterval)
	go a.sessions.RunCleanup(ctx, cfg.Session.CleanupInterval)

	handler := transportHTTP.NewHandler(transportHTTP.Services{
		Identity:    a.identity,
		Session:     a.sessions,
		Business:    a.business,
		Lead:        a.leads,
		Audit:       a.audit,
		HealthCheck: healthCheck(a.db),
	}, transportHTTP.Options{
		Session: transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: transportHTTP.ParseSameSite(cfg.Session.CookieSameSite),
			MaxAge:         cfg.Session.Lifetime,
		},
		CSRF:     transportHTTP.NewCSRF(cfg.CSRF.Secret, cfg.CSRF.TTL),
		Metrics:  prom,
		Language: cfg.Locale.Language,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      transportHTTP.NewRouter(handler, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "starting http server",
			logger.Component("server"), logger.Operation("listen"), "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func healthCheck(db *postgres.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context(), postgres.InitialSchema); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
