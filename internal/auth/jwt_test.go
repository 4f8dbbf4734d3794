package auth

import (
	"testing"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestAuthenticator_IssueAndParse(t *testing.T) {
	a := NewAuthenticator(secret, "airticketing")

	token, err := a.Issue(domain.User{ID: 5, Email: "admin@example.com", Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(5), claims.UserID)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "5", claims.Subject)
}

func TestAuthenticator_Rejects(t *testing.T) {
	a := NewAuthenticator(secret, "airticketing")
	user := domain.User{ID: 5, Role: domain.RoleUser}

	other, err := NewAuthenticator("another-secret-of-length", "airticketing").Issue(user, time.Hour)
	require.NoError(t, err)
	_, err = a.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewAuthenticator(secret, "someone-else").Issue(user, time.Hour)
	require.NoError(t, err)
	_, err = a.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := a.Issue(user, -time.Minute)
	require.NoError(t, err)
	_, err = a.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 5}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_SubjectFallbackAndDefaultRole(t *testing.T) {
	a := NewAuthenticator(secret, "")

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "12",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	claims, err := a.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, domain.RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}
