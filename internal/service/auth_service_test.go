package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medbook/support-engine/internal/auth"
	"github.com/medbook/support-engine/internal/config"
	"github.com/medbook/support-engine/internal/domain"
	apperrors "github.com/medbook/support-engine/pkg/util"
)

func authFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	hashed, err := auth.HashPassword("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)

	users := newFakeUserRepo(
		domain.User{ID: "admin-a", Name: "Admin", Email: "admin@clinic.test",
			PasswordHash: hashed, Role: domain.RoleAdmin, Active: true},
		domain.User{ID: "gone", Name: "Gone", Email: "gone@clinic.test",
			PasswordHash: hashed, Role: domain.RoleAdmin, Active: false},
	)
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 30}}
	return NewAuthService(cfg, users), users
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := authFixture(t)

	user, token, expiresAt, err := svc.Login(context.Background(), "admin@clinic.test", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "admin-a", user.ID)
	assert.False(t, expiresAt.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-a", claims.SubjectID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := authFixture(t)

	cases := []struct{ email, password string }{
		{"admin@clinic.test", "wrong"},
		{"missing@clinic.test", "correct-horse"},
		{"gone@clinic.test", "correct-horse"},
	}
	for _, tc := range cases {
		_, _, _, err := svc.Login(context.Background(), tc.email, tc.password)
		require.Error(t, err, "email=%s", tc.email)
		assert.Equal(t, 401, apperrors.ToDomainError(err).HTTPStatus)
	}
}
