package credentials

import (
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the access/refresh token pair issued by the backend.
// Expiry is zero when the backend did not communicate one; in that case the
// access token's own exp claim is the only expiry signal.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Token converts to the oauth2 token type so callers can ride on its expiry
// handling.
func (c *Credentials) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// Valid reports whether the credentials carry a usable access token.
func (c *Credentials) Valid() bool {
	return c != nil && c.Token().Valid()
}

// Store persists the credential pair. Implementations must tolerate platform
// storage failures on Load by returning (nil, nil) - a missing or unreadable
// pair means "unauthenticated", never an error the caller has to interpret.
type Store interface {
	Load() (*Credentials, error)
	Save(creds *Credentials) error
	Clear() error
}
