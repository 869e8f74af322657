package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jinhuaitao/accounting/internal/models"
	"github.com/jinhuaitao/accounting/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	// PasswordKey holds the bcrypt hash of the shared password.
	PasswordKey   = "app_password"
	sessionPrefix = "session_"
	limitPrefix   = "limit_"
)

var (
	// ErrInvalidCredential is returned by Login on a password mismatch.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrTooManyAttempts is returned by Login while a client is locked out.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
	// ErrNoSession is returned when a token has no live session.
	ErrNoSession = errors.New("no session")
)

// Options configure an Authenticator.
type Options struct {
	// UserID is the identity every successful login is bound to.
	UserID string
	// Password is the fallback secret used while no hash is stored.
	Password    string
	SessionTTL  time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

// Authenticator checks the shared password and keeps sessions in a record store.
type Authenticator struct {
	store storage.Store
	opts  Options
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewAuthenticator returns an Authenticator over store.
func NewAuthenticator(store storage.Store, opts Options, log logrus.FieldLogger) *Authenticator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Authenticator{store: store, opts: opts, log: log, now: time.Now}
}

// SessionTTL is the lifetime given to new and renewed sessions.
func (a *Authenticator) SessionTTL() time.Duration {
	return a.opts.SessionTTL
}

// Login checks password and opens a session. clientIP keys the failed-attempt counter.
func (a *Authenticator) Login(ctx context.Context, password, clientIP string) (string, models.Session, error) {
	attempts, err := a.failedAttempts(ctx, clientIP)
	if err != nil {
		return "", models.Session{}, err
	}
	if a.opts.MaxAttempts > 0 && attempts >= a.opts.MaxAttempts {
		a.log.WithField("client_ip", clientIP).Warn("Login rejected: client locked out")
		return "", models.Session{}, ErrTooManyAttempts
	}

	ok, err := a.verify(ctx, password)
	if err != nil {
		return "", models.Session{}, err
	}
	if !ok {
		if a.opts.MaxAttempts > 0 {
			key := limitPrefix + clientIP
			if err := a.store.Put(ctx, key, []byte(strconv.Itoa(attempts+1)), a.opts.Lockout); err != nil {
				return "", models.Session{}, fmt.Errorf("record failed attempt: %w", err)
			}
		}
		return "", models.Session{}, ErrInvalidCredential
	}

	if attempts > 0 {
		if err := a.store.Delete(ctx, limitPrefix+clientIP); err != nil {
			return "", models.Session{}, fmt.Errorf("reset failed attempts: %w", err)
		}
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", models.Session{}, fmt.Errorf("generate session token: %w", err)
	}
	session := models.Session{UserID: a.opts.UserID, ExpiresAt: a.now().Add(a.opts.SessionTTL)}
	if err := storage.PutJSON(ctx, a.store, sessionPrefix+token, session, a.opts.SessionTTL); err != nil {
		return "", models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return token, session, nil
}

// Session returns the live session for token, or ErrNoSession.
func (a *Authenticator) Session(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrNoSession
	}
	var s models.Session
	if err := storage.GetJSON(ctx, a.store, sessionPrefix+token, &s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, ErrNoSession
		}
		return models.Session{}, err
	}
	if s.Expired(a.now()) {
		return models.Session{}, ErrNoSession
	}
	return s, nil
}

// IsAuthenticated reports whether token has a live session.
func (a *Authenticator) IsAuthenticated(ctx context.Context, token string) (bool, error) {
	_, err := a.Session(ctx, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoSession):
		return false, nil
	default:
		return false, err
	}
}

// Renew extends the session behind token by another SessionTTL.
func (a *Authenticator) Renew(ctx context.Context, token string, s models.Session) (models.Session, error) {
	s.ExpiresAt = a.now().Add(a.opts.SessionTTL)
	if err := storage.PutJSON(ctx, a.store, sessionPrefix+token, s, a.opts.SessionTTL); err != nil {
		return models.Session{}, fmt.Errorf("renew session: %w", err)
	}
	return s, nil
}

// Logout deletes the session behind token. Unknown tokens are ignored.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return a.store.Delete(ctx, sessionPrefix+token)
}

// SetPassword stores the bcrypt hash of password as the shared secret.
func (a *Authenticator) SetPassword(ctx context.Context, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return a.store.Put(ctx, PasswordKey, []byte(hash), 0)
}

func (a *Authenticator) verify(ctx context.Context, password string) (bool, error) {
	hash, err := a.store.Get(ctx, PasswordKey)
	switch {
	case err == nil:
		return CheckPassword(password, string(hash)), nil
	case errors.Is(err, storage.ErrNotFound):
		if a.opts.Password == "" {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(password), []byte(a.opts.Password)) == 1, nil
	default:
		return false, fmt.Errorf("read password hash: %w", err)
	}
}

func (a *Authenticator) failedAttempts(ctx context.Context, clientIP string) (int, error) {
	if a.opts.MaxAttempts <= 0 {
		return 0, nil
	}
	raw, err := a.store.Get(ctx, limitPrefix+clientIP)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read failed attempts: %w", err)
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return n, nil
}
