package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"oscar-gateway/internal/crypto"
)

const (
	SessionCookie = "oscar_session"
	StateCookie   = "oscar_oidc_state"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidSession = errors.New("invalid session")
)

// Session is the identity stored in the session cookie. The whole record,
// tokens included, is encrypted before it leaves the process.
type Session struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AccessToken string    `json:"access_token"`
	IDToken     string    `json:"id_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionCodec reads and writes the encrypted session cookie.
type SessionCodec struct {
	enc    crypto.Encryptor
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionCodec(enc crypto.Encryptor, ttl time.Duration, secure bool) *SessionCodec {
	return &SessionCodec{enc: enc, ttl: ttl, secure: secure, now: time.Now}
}

// Write stores s in the response. A zero ExpiresAt is set to now + TTL.
func (c *SessionCodec) Write(w http.ResponseWriter, s Session) error {
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = c.now().Add(c.ttl)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	value, err := c.enc.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypt session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *SessionCodec) Read(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	plain, err := c.enc.Decrypt(cookie.Value)
	if err != nil {
		if errors.Is(err, crypto.ErrMissingKey) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	var s Session
	if err := json.Unmarshal([]byte(plain), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !s.ExpiresAt.IsZero() && c.now().After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &s, nil
}

func (c *SessionCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Identity is the caller of the current request. Authorization is the
// header value forwarded to the middleware API.
type Identity struct {
	Username      string
	Email         string
	Role          string
	Authorization string
	FromSession   bool
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity attached by the auth middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
