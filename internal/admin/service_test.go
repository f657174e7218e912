package admin

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cargohold/service/internal/config"
)

type fakeRepo struct {
	users map[string]*User
	stats Stats
}

func (f *fakeRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	u := &User{ID: "a-new", Username: username, PasswordHash: passwordHash}
	f.users[username] = u
	return u, nil
}

func (f *fakeRepo) Stats(ctx context.Context) (*Stats, error) {
	s := f.stats
	return &s, nil
}

func testService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &fakeRepo{
		users: map[string]*User{
			"root": {ID: "a1", Username: "root", PasswordHash: string(hash)},
		},
		stats: Stats{TotalProjects: 2, TotalBuckets: 5, TotalObjects: 40, TotalStorageUsed: 1 << 30},
	}
	cfg := &config.Config{AdminJWTSecret: "test-jwt-secret"}
	return NewService(repo, cfg), repo
}

func TestLoginIssuesAdminJWT(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	raw, err := svc.Login(context.Background(), "root", "hunter2")
	require.NoError(t, err)

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-jwt-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "a1", claims["sub"])
	assert.Equal(t, "admin", claims["role"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)
	ctx := context.Background()

	// Wrong password and unknown user fail identically.
	_, err := svc.Login(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestStats(t *testing.T) {
	t.Parallel()
	svc, _ := testService(t)

	got, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.TotalObjects)
	assert.Equal(t, int64(1<<30), got.TotalStorageUsed)
}
