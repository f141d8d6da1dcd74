package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mealkeeper/go-grocery-client/credentials"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// tokenExpiry peeks at the access token's exp claim without verifying the
// signature - the client holds no verification keys and does not need them,
// the server is the authority; the claim is only a hint for refreshing ahead
// of a guaranteed 401.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// tokenSubject peeks at the access token's sub claim, the authenticated
// user's id.
func tokenSubject(accessToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// needsRefresh reports whether the stored pair is refreshable and already
// expired, so the gate can exchange it before issuing a request that would
// only bounce off a 401. With an explicit expiry the oauth2 token validity
// check decides, early-refresh skew included; otherwise the access token's
// exp claim is the fallback signal.
func needsRefresh(creds *credentials.Credentials) bool {
	if creds == nil || creds.RefreshToken == "" || creds.AccessToken == "" {
		return false
	}
	if !creds.Expiry.IsZero() {
		return !creds.Valid()
	}
	expiry := tokenExpiry(creds.AccessToken)
	if expiry.IsZero() {
		return false // no expiry signal at all, let the server decide
	}
	return !NowTimeFunc().Before(expiry)
}
