package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"lydistories/internal/app"
	"lydistories/internal/ratelimit"
	"lydistories/internal/util"
	"lydistories/pkg/auth"
	"lydistories/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64

	// Optional per-endpoint limiters; nil disables limiting.
	RegisterLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter    *ratelimit.FixedWindowLimiter
	PaymentLimiter  *ratelimit.FixedWindowLimiter

	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64

	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	paymentLimiter  *ratelimit.FixedWindowLimiter
	trusted         *util.TrustedProxies
}

const defaultMaxUploadBytes = 32 << 20

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		maxUploadBytes:  cfg.MaxUploadBytes,
		registerLimiter: cfg.RegisterLimiter,
		loginLimiter:    cfg.LoginLimiter,
		paymentLimiter:  cfg.PaymentLimiter,
		trusted:         cfg.TrustedProxies,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = defaultMaxUploadBytes
	}
	s.routes()
	return s
}

// Router returns the configured handler with the shared middleware
// applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth + profile
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/api/profile/avatar", s.authenticated(s.handleAvatar))

	// catalog
	s.mux.HandleFunc("/api/content", s.handleContent)
	s.mux.HandleFunc("/api/content/", s.handleContentByID)

	// payments
	s.mux.Handle("/api/payments/initiate", s.authenticated(s.handleInitiatePayment))
	s.mux.Handle("/api/payments/confirm", s.authenticated(s.handleConfirmPayment))
	s.mux.Handle("/api/payments/history", s.authenticated(s.handlePaymentHistory))

	// library
	s.mux.Handle("/api/bookmarks", s.authenticated(s.handleBookmarks))
	s.mux.Handle("/api/bookmarks/", s.authenticated(s.handleBookmarkByID))
	s.mux.Handle("/api/reading-progress", s.authenticated(s.handleSaveProgress))
	s.mux.Handle("/api/reading-progress/", s.authenticated(s.handleGetProgress))
	s.mux.Handle("/api/dashboard", s.authenticated(s.handleDashboard))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/stats", s.adminOnly(s.handleAdminStats))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			util.LoggerFromContext(r.Context()).Warn("security_event", "event", "unauthorized", "path", r.URL.Path, "ip", util.ClientIP(r, s.trusted))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			util.LoggerFromContext(r.Context()).Warn("security_event", "event", "forbidden", "path", r.URL.Path, "user_id", user.ID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserFromToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// viewer resolves the optional bearer token on public endpoints. A bad
// token is treated as anonymous rather than rejected.
func (s *Server) viewer(r *http.Request) *domain.User {
	user, ok := s.authorize(r)
	if !ok {
		return nil
	}
	return &user
}

// allow applies a rate limiter keyed by endpoint and client address.
func (s *Server) allow(l *ratelimit.FixedWindowLimiter, r *http.Request) bool {
	if l == nil {
		return true
	}
	if l.Allow(r.URL.Path + "|" + util.ClientIP(r, s.trusted)) {
		return true
	}
	util.LoggerFromContext(r.Context()).Warn("security_event", "event", "rate_limited", "path", r.URL.Path, "ip", util.ClientIP(r, s.trusted))
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

var (
	errInvalidBody       = errors.New("invalid request body")
	errInvalidPriceValue = errors.New("price must be a number")
)

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrCurrentPassword):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrCannotDeleteAdmin),
		errors.Is(err, app.ErrCannotDeleteSelf):
		return http.StatusForbidden
	case errors.Is(err, app.ErrContentNotFound),
		errors.Is(err, app.ErrPaymentNotFound),
		errors.Is(err, app.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrAlreadyGranted),
		errors.Is(err, app.ErrBookmarkExists):
		return http.StatusConflict
	case errors.Is(err, app.ErrRegistrationFields),
		errors.Is(err, app.ErrNameRequired),
		errors.Is(err, app.ErrInvalidRole),
		errors.Is(err, app.ErrTitleRequired),
		errors.Is(err, app.ErrInvalidCategory),
		errors.Is(err, app.ErrInvalidPrice),
		errors.Is(err, app.ErrPaymentFields),
		errors.Is(err, app.ErrInvalidPhone),
		errors.Is(err, app.ErrConfirmFields),
		errors.Is(err, app.ErrInvalidOTP),
		errors.Is(err, app.ErrInvalidProgress),
		errors.Is(err, app.ErrUploadsDisabled),
		errors.Is(err, auth.ErrPasswordTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError maps an application error to a response. Unexpected
// errors are logged and hidden behind a generic message.
func writeAppError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
