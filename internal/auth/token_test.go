package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, exp, err := tm.GenerateToken(domain.Identity{ID: "id-1", Email: "a@example.com"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	identity, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "id-1", identity.ID)
	require.Equal(t, "a@example.com", identity.Email)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", time.Hour).GenerateToken(domain.Identity{ID: "id-1"})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).ParseToken(token)
	require.Error(t, err)
}

func TestTokenRejectsForeignIssuer(t *testing.T) {
	claims := &Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "id-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).ParseToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute)
	token, _, err := tm.GenerateToken(domain.Identity{ID: "id-1"})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "hunter22"))
	require.ErrorIs(t, ComparePassword(hash, "hunter23"), ErrPasswordMismatch)

	err = ComparePassword("not-a-hash", "hunter22")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPasswordMismatch)

	require.NoError(t, CheckPasswordLength("héllo!", 6))
	require.ErrorIs(t, CheckPasswordLength("héllo", 6), ErrPasswordTooShort)
}
