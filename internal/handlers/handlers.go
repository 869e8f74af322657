package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jinhuaitao/accounting/internal/auth"
	"github.com/jinhuaitao/accounting/internal/ledger"
	"github.com/jinhuaitao/accounting/internal/logging"
	"github.com/jinhuaitao/accounting/internal/models"
	"github.com/jinhuaitao/accounting/internal/report"
	"github.com/sirupsen/logrus"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user id.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "auth_token"

	maxBodyBytes = 1 << 20
)

var views = []string{"login.html", "index.html"}

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Auth         *auth.Authenticator
	Cookies      *auth.CookieSigner
	Ledger       *ledger.Repository
	Reports      *report.Engine
	Templates    fs.FS
	SecureCookie bool
	Log          logrus.FieldLogger
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	auth         *auth.Authenticator
	cookies      *auth.CookieSigner
	ledger       *ledger.Repository
	reports      *report.Engine
	views        map[string]*template.Template
	secureCookie bool
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewHandlers parses the page templates and returns a Handlers instance.
func NewHandlers(d Deps) (*Handlers, error) {
	parsed := make(map[string]*template.Template, len(views))
	for _, view := range views {
		tmpl, err := template.ParseFS(d.Templates, "base.html", view)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", view, err)
		}
		parsed[view] = tmpl
	}
	return &Handlers{
		auth:         d.Auth,
		cookies:      d.Cookies,
		ledger:       d.Ledger,
		reports:      d.Reports,
		views:        parsed,
		secureCookie: d.SecureCookie,
		log:          d.Log,
		now:          time.Now,
	}, nil
}

// UserIDFromContext returns the authenticated user id stored by the auth middleware.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(UserContextKey).(string); ok {
		return id
	}
	return ""
}

// sessionToken extracts the raw session token from the signed cookie or,
// failing that, from an Authorization bearer header.
func (h *Handlers) sessionToken(r *http.Request) (token string, fromCookie bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if token, ok := h.cookies.Verify(cookie.Value); ok {
			return token, true
		}
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer), false
	}
	return "", false
}

// requireSession wraps handlers to require authentication, calling deny when
// there is no live session. It also implements rolling sessions: a session
// past the halfway point of its lifetime is renewed.
func (h *Handlers) requireSession(next http.Handler, deny func(http.ResponseWriter, *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := h.sessionToken(r)
		session, err := h.auth.Session(r.Context(), token)
		if errors.Is(err, auth.ErrNoSession) {
			if fromCookie {
				h.clearSessionCookie(w)
			}
			deny(w, r)
			return
		}
		if err != nil {
			h.internalError(w, err, "Failed to read session")
			return
		}

		ttl := h.auth.SessionTTL()
		if session.ExpiresAt.Sub(h.now()) < ttl/2 {
			if renewed, err := h.auth.Renew(r.Context(), token, session); err == nil {
				session = renewed
				if fromCookie {
					h.setSessionCookie(w, token, ttl)
				}
			} else {
				h.log.WithError(err).Warn("Failed to renew session")
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware protects pages: anonymous visitors are sent to the login page.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// APIAuthMiddleware protects JSON endpoints: anonymous callers get 401.
func (h *Handlers) APIAuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if token, _ := h.sessionToken(r); token != "" {
		if ok, err := h.auth.IsAuthenticated(r.Context(), token); err == nil && ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	h.render(w, "login.html", nil)
}

// Login checks the submitted password and opens a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	clientIP := logging.ClientIP(r)
	token, session, err := h.auth.Login(r.Context(), req.Password, clientIP)
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		h.writeError(w, http.StatusUnauthorized, "invalid password")
		return
	case errors.Is(err, auth.ErrTooManyAttempts):
		h.writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	case err != nil:
		h.internalError(w, err, "Login failed")
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": session.UserID, "client_ip": clientIP}).Info("User logged in")
	h.setSessionCookie(w, token, h.auth.SessionTTL())
	h.writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token})
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token, _ := h.sessionToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.log.WithError(err).Error("Failed to delete session")
		}
	}
	h.clearSessionCookie(w)
	h.writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

// IndexViewModel is the data passed to the main page.
type IndexViewModel struct {
	TZOffset string
	Period   string
	Periods  []string
}

// Index renders the single-page UI.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	_, offset := h.reports.Calendar().Civil(h.now()).Zone()
	h.render(w, "index.html", IndexViewModel{
		TZOffset: (time.Duration(offset) * time.Second).String(),
		Period:   report.Daily.String(),
		Periods: []string{
			report.Daily.String(),
			report.Weekly.String(),
			report.Monthly.String(),
			report.Yearly.String(),
		},
	})
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    h.cookies.Sign(token),
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) render(w http.ResponseWriter, view string, data any) {
	tmpl, ok := h.views[view]
	if !ok {
		h.internalError(w, fmt.Errorf("unknown view %s", view), "Template error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		h.log.WithError(err).WithField("view", view).Error("Template execution error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v before touching the response, so an encoding failure
// becomes a logged 500 instead of a success status with an empty body.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.internalError(w, err, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.log.WithError(err).Debug("Failed to write response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handlers) internalError(w http.ResponseWriter, err error, msg string) {
	h.log.WithError(err).Error(msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"internal server error"}` + "\n"))
}

// userTransactions loads the caller's transactions, writing a 500 on failure.
func (h *Handlers) userTransactions(w http.ResponseWriter, r *http.Request) ([]models.Transaction, bool) {
	txs, err := h.ledger.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.internalError(w, err, "Failed to list transactions")
		return nil, false
	}
	return txs, true
}
