package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	r := newRepos()
	svc := NewUserService(r.users, testSecret, time.Hour)

	registered, err := svc.Register(ctx, RegisterRequest{Name: "Ana", Email: " Ana@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", registered.User.Email)
	assert.Equal(t, "bearer", registered.TokenType)

	parsed, err := jwt.Parse(registered.Token, func(token *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, registered.User.ID.String(), claims["sub"])

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Name: "Other", Email: "ana@example.com", Password: "secret2"})
		assert.ErrorIs(t, err, ErrConflict)
		_, err = svc.Register(ctx, RegisterRequest{Name: "Other", Email: "ANA@example.COM", Password: "secret2"})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("invalid input", func(t *testing.T) {
		var ve *settlement.ValidationError
		_, err := svc.Register(ctx, RegisterRequest{Name: "X", Email: "nope", Password: "secret1"})
		assert.True(t, errors.As(err, &ve))
		_, err = svc.Register(ctx, RegisterRequest{Name: "X", Email: "x@example.com", Password: "123"})
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("login", func(t *testing.T) {
		token, err := svc.Login(ctx, LoginUserRequest{Email: "ana@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.NotEmpty(t, token.Token)

		_, err = svc.Login(ctx, LoginUserRequest{Email: " ANA@Example.com", Password: "secret1"})
		require.NoError(t, err)

		_, err = svc.Login(ctx, LoginUserRequest{Email: "ana@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = svc.Login(ctx, LoginUserRequest{Email: "ghost@example.com", Password: "secret1"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("me", func(t *testing.T) {
		me, err := svc.GetUserByID(ctx, registered.User.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "Ana", me.Name)

		_, err = svc.GetUserByID(ctx, "7d4f0c5e-0000-4f4a-9f0e-3c1b8a9d2e11")
		var nf *settlement.NotFoundError
		assert.True(t, errors.As(err, &nf))
	})
}

type brokenUserRepo struct{ *fakeUserRepo }

func (brokenUserRepo) EmailTaken(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}

func TestRegisterFailsWhenEmailCheckFails(t *testing.T) {
	r := newRepos()
	svc := NewUserService(brokenUserRepo{r.users}, testSecret, time.Hour)

	_, err := svc.Register(context.Background(), RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "failed to check email")
	assert.Empty(t, r.store.users)
}

func TestAuditLogs(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	_, err := w.readingSvc.CreateReading(ctx, testUser, standardMeters(w.m1.ID))
	require.NoError(t, err)
	_, err = NewClientService(w.clients, w.audits, w.tx).CreateClient(ctx, "", CreateClientRequest{
		Name: "Novo", CommissionType: "fixed", CommissionValue: dec("1"),
	})
	require.NoError(t, err)

	svc := NewAuditService(w.audits)
	logs, total, err := svc.GetAuditLogs(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "CREATE_CLIENT", logs[0].Action)
	assert.Equal(t, "System", logs[0].UserName)
	assert.Empty(t, logs[0].UserID)
	assert.Equal(t, testUser, logs[1].UserID)

	logs, total, err = svc.GetAuditLogs(ctx, "CREATE_READING", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, logs, 1)
}
