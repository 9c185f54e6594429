package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/chanlink/internal/pkg/errors"
	"github.com/xxxsen/chanlink/internal/pkg/jwt"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, token, err := env.auth.Register(ctx, "", " A@X.com ", "secret1")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", user.Email)
	require.Equal(t, "a", user.Name)
	require.NotEqual(t, "secret1", user.PasswordHash)

	claims, err := jwt.ParseToken(token, []byte("test-secret"))
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)

	logged, _, err := env.auth.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)
}

func TestRegisterRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.auth.Register(ctx, "x", "not-an-email", "secret1")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, _, err = env.auth.Register(ctx, "x", "a@x.com", "123")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	env.register(t, "a@x.com", "secret1")
	_, _, err = env.auth.Register(ctx, "x", "a@x.com", "secret2")
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@x.com", "secret1")

	_, _, err := env.auth.Login(ctx, "a@x.com", "wrong-pass")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
	_, _, err = env.auth.Login(ctx, "nobody@x.com", "secret1")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)
}
