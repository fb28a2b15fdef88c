package session

import (
	"context"
	"testing"
	"time"

	"github.com/katatrina/gundam-live/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromToken(t *testing.T) {
	payload, err := token.NewPayload("user-1", token.RoleModerator, time.Minute)
	require.NoError(t, err)

	s := FromToken("access-token", &payload)

	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "access-token", s.AccessToken)
	assert.True(t, s.IsAdmin())
	assert.False(t, Session{Role: token.RoleSeller}.IsAdmin())
}

func TestContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	ctx := NewContext(context.Background(), Session{UserID: "user-1", Role: token.RoleMember})
	s, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)

	_, err = FromContext(NewContext(context.Background(), Session{}))
	assert.ErrorIs(t, err, ErrNoSession)
}
