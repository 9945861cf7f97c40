// Package httphandler is the HTTP driving adapter exposing the relay's
// login, inbox, and logout operations.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mailrelay/internal/application"
	"mailrelay/internal/domain/port/driven"
	"mailrelay/internal/secrets"
)

// stateCookie carries the OAuth state between the login redirect and the
// provider callback.
const stateCookie = "mailrelay_state"

// Handler serves the relay's HTTP API.
type Handler struct {
	auth   *application.AuthService
	mail   *application.MailService
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(auth *application.AuthService, mail *application.MailService, logger *slog.Logger) *Handler {
	return &Handler{
		auth:   auth,
		mail:   mail,
		logger: logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /mail/inbox", h.Inbox)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Login redirects the browser to the provider's authorization page. The
// state value is pinned in a short-lived cookie for the callback to verify.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, state := h.auth.StartLogin()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the login: it verifies the state echo, exchanges the
// authorization code, and reports the resolved user id.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		writeError(w, http.StatusBadRequest, "provider error: "+errCode)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	// The state is single-use; expire the cookie regardless of outcome.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	userID, err := h.auth.CompleteLogin(r.Context(), code)
	if err != nil {
		h.writeTaxonomyError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Message: "login successful", UserID: userID})
}

// Inbox lists the stored identity's most recent messages.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.mail.FetchInbox(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, r, err)
		return
	}

	resp := InboxResponse{
		Count:    inbox.Count,
		Messages: make([]MessageResponse, 0, len(inbox.Messages)),
	}
	for _, msg := range inbox.Messages {
		resp.Messages = append(resp.Messages, toMessageResponse(msg))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout deletes the stored credential. A logout with nothing stored
// succeeds as a no-op.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		h.writeTaxonomyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LogoutResponse{OK: true})
}

// Health is a liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeTaxonomyError maps domain failures onto HTTP statuses. Consent
// failures get a distinct machine-readable code because they require
// administrator action, not a user retry.
func (h *Handler) writeTaxonomyError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		exchangeErr *driven.TokenExchangeError
		identityErr *driven.IdentityResolutionError
		refreshErr  *driven.RefreshError
		dsErr       *driven.DownstreamError
	)

	switch {
	case errors.Is(err, driven.ErrNoCredential):
		writeError(w, http.StatusUnauthorized, "not logged in: complete login first")
	case errors.Is(err, driven.ErrNoRefreshToken):
		writeError(w, http.StatusUnauthorized, "session expired and cannot be refreshed: login again")
	case errors.Is(err, driven.ErrConsentRequired):
		writeErrorCode(w, http.StatusForbidden, "consent_required",
			"administrator consent required: refreshing cannot succeed until it is granted")
	case errors.As(err, &exchangeErr):
		h.logger.Error("token exchange failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, exchangeErr.Error())
	case errors.As(err, &identityErr):
		h.logger.Error("identity resolution failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, identityErr.Error())
	case errors.As(err, &refreshErr):
		h.logger.Error("token refresh failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, refreshErr.Error())
	case errors.As(err, &dsErr):
		h.logger.Error("downstream call failed", "path", r.URL.Path, "status", dsErr.Status, "error", err)
		writeError(w, http.StatusBadGateway, dsErr.Error())
	case errors.Is(err, secrets.ErrDecrypt):
		h.logger.Error("stored credential unreadable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "stored credential unreadable: login again")
	default:
		h.logger.Error("internal error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
