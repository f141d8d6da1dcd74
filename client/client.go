// Package client wires the data-consistency core together: credential store,
// session refresh gate, transport, retry policy, entity cache, and the
// domain services riding on them.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/cache"
	"github.com/mealkeeper/go-grocery-client/chat"
	"github.com/mealkeeper/go-grocery-client/credentials"
	"github.com/mealkeeper/go-grocery-client/grocery"
	"github.com/mealkeeper/go-grocery-client/internal/config"
	"github.com/mealkeeper/go-grocery-client/mealshare"
	"github.com/mealkeeper/go-grocery-client/mutation"
	"github.com/mealkeeper/go-grocery-client/pantry"
	"github.com/mealkeeper/go-grocery-client/retry"
	"github.com/mealkeeper/go-grocery-client/session"
	"github.com/mealkeeper/go-grocery-client/transport"
)

// Client is the composition root. Reads flow transport → cache → services;
// writes round-trip through the mutation orchestrator.
type Client struct {
	log   zerolog.Logger
	store credentials.Store
	gate  *session.Gate
	doer  transport.Doer
	cache *cache.Store

	grocery   *grocery.Service
	pantry    *pantry.Service
	chat      *chat.Service
	mealshare *mealshare.Service
}

type Option func(*settings)

type settings struct {
	log       zerolog.Logger
	store     credentials.Store
	transport []transport.ClientOption
}

// WithLogger sets the logger threaded through every layer.
func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithCredentialStore overrides the configured credential store.
func WithCredentialStore(store credentials.Store) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithTransportOptions passes options to the underlying transport client.
func WithTransportOptions(options ...transport.ClientOption) Option {
	return func(s *settings) {
		s.transport = append(s.transport, options...)
	}
}

// New builds a client from configuration.
func New(cfg config.Config, options ...Option) (*Client, error) {
	s := &settings{log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}

	store := s.store
	if store == nil {
		var err error
		store, err = storeFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}

	timeout, err := time.ParseDuration(cfg.GetRequestTimeout())
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] parse request timeout")
	}

	// The token source reads through the gate's session; the gate is
	// created right after the transport it wraps.
	var gate *session.Gate
	tokens := func() string {
		if gate == nil {
			return ""
		}
		return gate.Session().AccessToken()
	}

	transportOpts := append([]transport.ClientOption{
		transport.WithTimeout(timeout),
		transport.WithLogger(s.log),
	}, s.transport...)
	httpClient, err := transport.NewClient(cfg.GetBaseURL(), tokens, transportOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] transport")
	}

	gate, err = session.NewGate(httpClient, store, session.WithLogger(s.log))
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] refresh gate")
	}

	policy, err := retry.NewPolicy(gate,
		retry.WithMaxAttempts(cfg.GetMaxAttempts()),
		retry.WithBaseDelay(time.Duration(cfg.GetBaseDelayMs())*time.Millisecond),
		retry.WithLogger(s.log),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] retry policy")
	}

	entityCache := cache.NewStore()
	orch, err := mutation.NewOrchestrator(entityCache, mutation.WithLogger(s.log))
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] orchestrator")
	}

	pantrySvc, err := pantry.NewService(policy, entityCache, s.log)
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] pantry service")
	}
	grocerySvc, err := grocery.NewService(policy, entityCache, orch, pantrySvc,
		gate.Session().UserID, grocery.WithLogger(s.log))
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] grocery service")
	}
	chatSvc, err := chat.NewService(policy, entityCache, orch, chat.WithLogger(s.log))
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] chat service")
	}
	mealshareSvc, err := mealshare.NewService(policy)
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] mealshare service")
	}

	return &Client{
		log:       s.log,
		store:     store,
		gate:      gate,
		doer:      policy,
		cache:     entityCache,
		grocery:   grocerySvc,
		pantry:    pantrySvc,
		chat:      chatSvc,
		mealshare: mealshareSvc,
	}, nil
}

func storeFromConfig(cfg config.Config) (credentials.Store, error) {
	path := cfg.GetCredentialsPath()
	key := cfg.GetCredentialsKey()
	if path == "" || key == "" {
		return credentials.NewMemoryStore(), nil
	}
	store, err := credentials.NewFileStore(path, key)
	if err != nil {
		return nil, errors.Wrap(err, "[client.storeFromConfig] file store")
	}
	return store, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges credentials for a token pair and installs it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	resp, err := c.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
		NoAuth: true,
	})
	if err != nil {
		return err
	}
	var body loginResponse
	if err := resp.Decode(&body); err != nil {
		return err
	}
	if body.AccessToken == "" {
		return errors.New("[Client.Login] login response missing access token")
	}
	return c.gate.SetCredentials(&credentials.Credentials{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
	})
}

// Logout clears the session, the stored credentials, and the entity cache.
func (c *Client) Logout() error {
	c.cache.Reset()
	return c.gate.Logout()
}

// Session exposes the authentication state.
func (c *Client) Session() *session.Session {
	return c.gate.Session()
}

// Cache exposes the entity cache for subscriptions.
func (c *Client) Cache() *cache.Store {
	return c.cache
}

// Grocery returns the grocery list service.
func (c *Client) Grocery() *grocery.Service {
	return c.grocery
}

// Pantry returns the pantry service.
func (c *Client) Pantry() *pantry.Service {
	return c.pantry
}

// Chat returns the conversation service.
func (c *Client) Chat() *chat.Service {
	return c.chat
}

// MealShare returns the share request service.
func (c *Client) MealShare() *mealshare.Service {
	return c.mealshare
}
