// Package session carries the identity of the signed-in user through the engine.
package session

import (
	"context"
	"errors"

	"github.com/katatrina/gundam-live/internal/token"
)

var ErrNoSession = errors.New("no session in context")

// Session is immutable once built. Components receive it explicitly or through the context,
// never from a global.
type Session struct {
	UserID      string
	Role        string
	AccessToken string
}

// FromToken builds a session from a verified access token.
func FromToken(accessToken string, payload *token.Payload) Session {
	return Session{
		UserID:      payload.Subject,
		Role:        payload.Role,
		AccessToken: accessToken,
	}
}

func (s Session) IsAdmin() bool {
	return s.Role == token.RoleAdmin || s.Role == token.RoleModerator
}

type contextKey struct{}

// NewContext returns a copy of ctx that carries s.
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(contextKey{}).(Session)
	if !ok || s.UserID == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}
