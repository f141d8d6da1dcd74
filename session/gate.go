package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/credentials"
	"github.com/mealkeeper/go-grocery-client/transport"
)

// DefaultRefreshPath is the token exchange endpoint.
const DefaultRefreshPath = "/auth/refresh"

// ErrSessionExpired is the single normalized failure every caller sees when
// the refresh exchange itself fails. The underlying refresh failure is logged
// once at the gate, not re-derived per caller.
var ErrSessionExpired = transport.NewError(transport.KindUnauthorized, 0, "session expired", nil)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResult struct {
	token string
	err   error
}

// Gate wraps the transport with single-flight session refresh. However many
// requests fail authorization concurrently, exactly one refresh exchange is
// issued; every other caller parks until it settles and is then replayed
// exactly once with the new token. A failed exchange is terminal: the store
// is cleared, parked callers are all rejected with ErrSessionExpired, and the
// gate stays logged out until new credentials are installed.
type Gate struct {
	inner   transport.Doer
	store   credentials.Store
	session *Session
	log     zerolog.Logger
	path    string

	// mu guards the single-flight state. Check-state and enqueue happen
	// under one acquisition so two callers can never both conclude they
	// are first.
	mu         sync.Mutex
	refreshing bool
	loggedOut  bool
	waiters    []chan refreshResult
}

var _ transport.Doer = (*Gate)(nil)

type GateOption func(*Gate)

// WithRefreshPath overrides the token exchange endpoint.
func WithRefreshPath(path string) GateOption {
	return func(g *Gate) {
		g.path = path
	}
}

// WithLogger sets the gate logger.
func WithLogger(log zerolog.Logger) GateOption {
	return func(g *Gate) {
		g.log = log
	}
}

// NewGate creates the refresh gate, loading any stored credential pair into a
// fresh Session.
func NewGate(inner transport.Doer, store credentials.Store, options ...GateOption) (*Gate, error) {
	if inner == nil {
		return nil, errors.New("[NewGate] transport is required")
	}
	if store == nil {
		return nil, errors.New("[NewGate] credential store is required")
	}

	creds, err := store.Load()
	if err != nil {
		creds = nil // a broken store reads as unauthenticated
	}

	g := &Gate{
		inner:   inner,
		store:   store,
		session: New(creds),
		log:     zerolog.Nop(),
		path:    DefaultRefreshPath,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Session exposes the gate's session for read access (the transport's token
// source, state inspection in callers and tests).
func (g *Gate) Session() *Session {
	return g.session
}

// Do sends the request, refreshing the session when authorization fails. The
// request is replayed at most once; a post-refresh Unauthorized propagates.
func (g *Gate) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return g.send(ctx, &transport.Envelope{Req: req})
}

func (g *Gate) send(ctx context.Context, env *transport.Envelope) (*transport.Response, error) {
	// Refresh ahead of the send when the stored pair is already expired,
	// instead of burning a round trip on a guaranteed 401. Same
	// single-flight path as the failure case.
	if !env.Req.NoAuth && !env.Retried && needsRefresh(g.session.Credentials()) {
		if _, err := g.awaitRefresh(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := g.inner.Do(ctx, env.Req)
	if err == nil || env.Req.NoAuth || !transport.IsKind(err, transport.KindUnauthorized) {
		return resp, err
	}
	if env.Retried {
		// Already replayed once with a fresh token; propagate rather
		// than loop.
		return nil, err
	}

	if _, rerr := g.awaitRefresh(ctx); rerr != nil {
		return nil, rerr
	}

	env.Retried = true
	return g.send(ctx, env)
}

// awaitRefresh parks the caller until the in-flight refresh settles, starting
// one if none is running. Checking the state and enqueueing happen under one
// lock acquisition.
func (g *Gate) awaitRefresh(ctx context.Context) (string, error) {
	g.mu.Lock()
	if g.loggedOut {
		g.mu.Unlock()
		return "", ErrSessionExpired
	}
	ch := make(chan refreshResult, 1)
	g.waiters = append(g.waiters, ch)
	if !g.refreshing {
		g.refreshing = true
		g.session.setState(StateRefreshing)
		go g.refresh()
	}
	g.mu.Unlock()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		g.removeWaiter(ch)
		return "", transport.NewError(transport.KindCancelled, 0, "cancelled while awaiting refresh", ctx.Err())
	}
}

// refresh performs the token exchange and settles every parked caller.
// It runs on its own context: the exchange serves all waiters, so no single
// caller's cancellation may abort it.
func (g *Gate) refresh() {
	creds := g.session.Credentials()

	var result refreshResult
	if creds == nil || creds.RefreshToken == "" {
		result.err = ErrSessionExpired
	} else {
		result = g.exchange(creds.RefreshToken)
	}

	if result.err != nil {
		g.log.Warn().Err(result.err).Msg("session refresh failed, logging out")
		if err := g.store.Clear(); err != nil {
			g.log.Err(err).Msg("failed to clear credential store")
		}
		g.session.Clear()
		result = refreshResult{err: ErrSessionExpired}
	}

	g.mu.Lock()
	g.refreshing = false
	if result.err != nil {
		g.loggedOut = true
	}
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- result // buffered, never blocks on an abandoned waiter
	}
}

func (g *Gate) exchange(refreshToken string) refreshResult {
	resp, err := g.inner.Do(context.Background(), &transport.Request{
		Method: http.MethodPost,
		Path:   g.path,
		Body:   refreshRequest{RefreshToken: refreshToken},
		NoAuth: true,
	})
	if err != nil {
		return refreshResult{err: err}
	}

	var body refreshResponse
	if err := resp.Decode(&body); err != nil {
		return refreshResult{err: err}
	}
	if body.AccessToken == "" {
		return refreshResult{err: errors.New("[Gate.exchange] refresh response missing access token")}
	}

	fresh := &credentials.Credentials{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Expiry:       tokenExpiry(body.AccessToken),
	}
	if err := g.store.Save(fresh); err != nil {
		g.log.Err(err).Msg("failed to persist refreshed credentials")
	}
	g.session.SetCredentials(fresh)
	return refreshResult{token: body.AccessToken}
}

func (g *Gate) removeWaiter(ch chan refreshResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w == ch {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}

// SetCredentials installs a freshly issued pair (login) and re-opens a gate
// that had logged out.
func (g *Gate) SetCredentials(creds *credentials.Credentials) error {
	if err := g.store.Save(creds); err != nil {
		return errors.Wrap(err, "[Gate.SetCredentials] save")
	}
	g.session.SetCredentials(creds)
	g.mu.Lock()
	g.loggedOut = false
	g.mu.Unlock()
	return nil
}

// Logout clears the store and session. The gate rejects further refresh
// attempts until new credentials are installed.
func (g *Gate) Logout() error {
	g.mu.Lock()
	g.loggedOut = true
	g.mu.Unlock()
	g.session.Clear()
	if err := g.store.Clear(); err != nil {
		return errors.Wrap(err, "[Gate.Logout] clear store")
	}
	return nil
}
