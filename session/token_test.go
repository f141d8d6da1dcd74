package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/go-grocery-client/credentials"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestNeedsRefresh(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name  string
		creds *credentials.Credentials
		want  bool
	}{
		{"nil credentials", nil, false},
		{"no refresh token", &credentials.Credentials{AccessToken: "a"}, false},
		{"explicit expiry in the past", &credentials.Credentials{AccessToken: "a", RefreshToken: "r", Expiry: past}, true},
		{"explicit expiry in the future", &credentials.Credentials{AccessToken: "a", RefreshToken: "r", Expiry: future}, false},
		// oauth2's validity delta treats a token about to expire as expired.
		{"explicit expiry inside the refresh skew", &credentials.Credentials{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(2 * time.Second)}, true},
		{"opaque token without expiry signal", &credentials.Credentials{AccessToken: "opaque", RefreshToken: "r"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, needsRefresh(tt.creds))
		})
	}
}

func TestNeedsRefreshReadsJWTExpClaim(t *testing.T) {
	expired := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	live := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	require.True(t, needsRefresh(&credentials.Credentials{AccessToken: expired, RefreshToken: "r"}))
	require.False(t, needsRefresh(&credentials.Credentials{AccessToken: live, RefreshToken: "r"}))
}

func TestTokenSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})
	require.Equal(t, "user-42", tokenSubject(token))
	require.Empty(t, tokenSubject("not-a-jwt"))
}

func TestSessionUserID(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-42"})
	s := New(&credentials.Credentials{AccessToken: token})
	require.Equal(t, "user-42", s.UserID())
	require.Equal(t, StateAuthenticated, s.State())

	s.Clear()
	require.Empty(t, s.UserID())
	require.Equal(t, StateUnauthenticated, s.State())
}
