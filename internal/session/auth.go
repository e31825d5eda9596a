package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Auth is a signed-in user bound to a chat session.
type Auth struct {
	SessionID   string    `json:"session_id,omitempty"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Valid reports whether the auth carries a token that has not expired. A zero
// ExpiresAt never expires.
func (a *Auth) Valid() bool {
	if a == nil || a.UserID == "" {
		return false
	}
	return (&oauth2.Token{AccessToken: a.AccessToken, Expiry: a.ExpiresAt}).Valid()
}

// AuthStore persists Auth records keyed by chat session id. Get returns nil, nil
// when nothing is stored.
type AuthStore interface {
	SaveAuth(ctx context.Context, auth Auth) error
	GetAuth(ctx context.Context, sessionID string) (*Auth, error)
	DeleteAuth(ctx context.Context, sessionID string) error
}

type ctxKey struct{}

// WithID attaches the chat session id to ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the chat session id attached by WithID.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

const idPrefix = "s_"

// NewID returns a fresh chat session id.
func NewID() string {
	return idPrefix + uuid.NewString()
}

// ValidID reports whether id looks like one produced by NewID.
func ValidID(id string) bool {
	if !strings.HasPrefix(id, idPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(id, idPrefix))
	return err == nil
}

func requireID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}
