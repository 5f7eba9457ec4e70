// @title Leadboard API
// @version 1.0.0
// @description Lead pipeline tracker for small service businesses

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name leadboard_session

// @securityDefinitions.apikey CSRFToken
// @in header
// @name X-CSRF-Token

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leadboard/leadboard/internal/audit"
	"github.com/leadboard/leadboard/internal/business"
	"github.com/leadboard/leadboard/internal/identity"
	"github.com/leadboard/leadboard/internal/lead"
	"github.com/leadboard/leadboard/internal/observability/logger"
	"github.com/leadboard/leadboard/internal/observability/metrics"
	"github.com/leadboard/leadboard/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 1 << 20

// Services bundles the domain services the handlers call.
type Services struct {
	Identity *identity.Service
	Session  *session.Service
	Business *business.Service
	Lead     *lead.Service
	Audit    audit.Logger
	// HealthCheck probes backing stores; nil reports healthy.
	HealthCheck func(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	businessService *business.Service
	leadService     *lead.Service
	auditLogger     audit.Logger
	healthCheck     func(ctx context.Context) error
	sessionConfig   SessionConfig
	csrf            *CSRF
	metrics         *metrics.Registry
	language        string
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	MaxAge         time.Duration
}

// ParseSameSite maps a config value to http.SameSite, defaulting to Lax.
func ParseSameSite(s string) http.SameSite {
	switch s {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Options carries the presentation settings of the API.
type Options struct {
	Session SessionConfig
	CSRF    *CSRF
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *metrics.Registry
	// Language selects status labels ("en" or "he").
	Language string
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		identityService: svc.Identity,
		sessionService:  svc.Session,
		businessService: svc.Business,
		leadService:     svc.Lead,
		auditLogger:     svc.Audit,
		healthCheck:     svc.HealthCheck,
		sessionConfig:   opts.Session,
		csrf:            opts.CSRF,
		metrics:         opts.Metrics,
		language:        opts.Language,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if h.metrics != nil {
		r.Use(MetricsMiddleware(h.metrics))
	}
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(SecurityHeaders)

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.CSRFMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)
			r.Get("/auth/csrf", h.IssueCSRFToken)
			r.Put("/auth/password", h.ChangePassword)

			r.Route("/businesses", func(r chi.Router) {
				r.Get("/", h.ListBusinesses)
				r.Post("/", h.CreateBusiness)

				r.Route("/{businessID}", func(r chi.Router) {
					r.Get("/", h.GetBusiness)
					r.Get("/board", h.GetBoard)
					r.Get("/followups", h.ListFollowUps)

					r.Route("/leads", func(r chi.Router) {
						r.Get("/", h.ListLeads)
						r.Post("/", h.CreateLead)

						r.Route("/{leadID}", func(r chi.Router) {
							r.Get("/", h.GetLead)
							r.Delete("/", h.DeleteLead)
							r.Put("/status", h.UpdateLeadStatus)
							r.Put("/notes", h.UpdateLeadNotes)
							r.Put("/followup", h.UpdateLeadFollowUp)
						})
					})
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its database are reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.healthCheck(ctx); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "leadboard",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "leadboard",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email       string `json:"email" example:"owner@example.com"`
	Password    string `json:"password" example:"secret123"`
	DisplayName string `json:"display_name" example:"Dana"`
}

// Register handles user registration
// @Summary Register a new user
// @Description Create an account and sign in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		default:
			slog.ErrorContext(r.Context(), "failed to register user", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" example:"owner@example.com"`
	Password string `json:"password" example:"secret123"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate user and create a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrAccountLocked) {
			respondError(w, http.StatusUnauthorized, "account is temporarily locked")
			return
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *identity.User) bool {
	sess, err := h.sessionService.Create(r.Context(), user.ID, getClientIP(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return false
	}
	h.setSessionCookie(w, sess.ID)
	return true
}

// Logout handles user logout
// @Summary Logout
// @Description Destroy the current session
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.getSessionFromCookie(r)
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if sess, err := h.sessionService.Validate(r.Context(), sessionID); err == nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLogout,
			ActorID:   sess.UserID,
			Resource:  "session",
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
		})
	}
	if err := h.sessionService.Destroy(r.Context(), sessionID); err != nil {
		slog.ErrorContext(r.Context(), "failed to destroy session", logger.Error(err))
	}

	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// GetCurrentUser returns the current authenticated user
// @Summary Get Current User
// @Description Retrieve details of the currently logged-in user
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} identity.User
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "user no longer exists")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// IssueCSRFToken mints a token bound to the caller's session
// @Summary Issue CSRF token
// @Description Returns a token to send as X-CSRF-Token on state-changing requests
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /auth/csrf [get]
func (h *Handler) IssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, exp, err := h.csrf.Issue(GetSessionID(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"csrf_token": token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword changes the user password and ends the user's other sessions
// @Summary Change Password
// @Tags Auth
// @Accept json
// @Produce json
// @Security CookieAuth
// @Security CSRFToken
// @Param request body ChangePasswordRequest true "Password Change Data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	err := h.identityService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid old password")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "new password does not meet security requirements")
		default:
			h.respondServiceError(w, r, err)
		}
		return
	}

	if err := h.sessionService.DestroyAllForUser(r.Context(), userID); err != nil {
		slog.ErrorContext(r.Context(), "failed to revoke sessions", logger.UserID(userID), logger.Error(err))
	}
	if !h.startSession(w, r, &identity.User{ID: userID}) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "password changed successfully",
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   int(h.sessionConfig.MaxAge.Seconds()),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// respondServiceError maps domain errors onto HTTP statuses. Unknown errors
// are logged and answered with a generic 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, business.ErrBusinessNotFound):
		respondError(w, http.StatusNotFound, "business not found")
	case errors.Is(err, lead.ErrLeadNotFound):
		respondError(w, http.StatusNotFound, "lead not found")
	case errors.Is(err, lead.ErrRevisionConflict):
		respondError(w, http.StatusConflict, "lead was changed by another request; reload and retry")
	case errors.Is(err, lead.ErrInvalidStatus),
		errors.Is(err, lead.ErrNameRequired),
		errors.Is(err, lead.ErrPhoneRequired),
		errors.Is(err, business.ErrNameRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.Error(err),
			logger.ErrorType(rootErrorType(err)),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rootErrorType names the innermost wrapped error type.
func rootErrorType(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
