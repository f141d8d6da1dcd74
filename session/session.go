package session

import (
	"sync"

	"github.com/mealkeeper/go-grocery-client/credentials"
)

// State describes where the session is in its lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
)

// Session is the one piece of process-wide authentication state. It is
// mutated only by the refresh gate and by explicit logout; everything else
// reads it through accessors. Tests inject a fresh Session per case instead
// of sharing an ambient global.
type Session struct {
	lock  sync.RWMutex
	creds *credentials.Credentials
	state State
}

// New creates a session from a previously stored credential pair, which may
// be nil.
func New(creds *credentials.Credentials) *Session {
	s := &Session{state: StateUnauthenticated}
	if creds != nil && creds.AccessToken != "" {
		s.creds = creds
		s.state = StateAuthenticated
	}
	return s
}

// AccessToken returns the current bearer token, or "" when unauthenticated.
func (s *Session) AccessToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.AccessToken
}

// Credentials returns a copy of the current pair, or nil.
func (s *Session) Credentials() *credentials.Credentials {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.creds == nil {
		return nil
	}
	copied := *s.creds
	return &copied
}

// UserID returns the authenticated user's id from the access token's sub
// claim, or "" when logged out.
func (s *Session) UserID() string {
	return tokenSubject(s.AccessToken())
}

func (s *Session) State() State {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state
}

// SetCredentials installs a new pair and marks the session authenticated.
func (s *Session) SetCredentials(creds *credentials.Credentials) {
	s.lock.Lock()
	defer s.lock.Unlock()
	copied := *creds
	s.creds = &copied
	s.state = StateAuthenticated
}

func (s *Session) setState(state State) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

// Clear drops the credentials and returns the session to unauthenticated.
func (s *Session) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.creds = nil
	s.state = StateUnauthenticated
}
