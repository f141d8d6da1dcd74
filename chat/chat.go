// Package chat implements meal-assistant conversations over the caching
// request pipeline.
package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/cache"
	"github.com/mealkeeper/go-grocery-client/mutation"
	"github.com/mealkeeper/go-grocery-client/transport"
)

const (
	KindConversation  cache.Kind = "conversation"
	KindConversations cache.Kind = "conversations"
)

// Message is one conversation turn.
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a chat thread with its messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationKey addresses one thread.
func ConversationKey(id string) cache.Key {
	return cache.NewKey(KindConversation, id)
}

// ConversationsKey addresses the thread summary listing.
func ConversationsKey() cache.Key {
	return cache.NewKey(KindConversations, "")
}

// Service is the chat client.
type Service struct {
	doer  transport.Doer
	cache *cache.Store
	orch  *mutation.Orchestrator
	now   func() time.Time
	log   zerolog.Logger
}

type ServiceOption func(*Service)

// WithNowFunc overrides the clock used for temporary message ids.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

func NewService(doer transport.Doer, store *cache.Store, orch *mutation.Orchestrator, options ...ServiceOption) (*Service, error) {
	if doer == nil {
		return nil, errors.New("[chat.NewService] doer is required")
	}
	if store == nil {
		return nil, errors.New("[chat.NewService] cache store is required")
	}
	if orch == nil {
		return nil, errors.New("[chat.NewService] orchestrator is required")
	}
	s := &Service{doer: doer, cache: store, orch: orch, now: time.Now, log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Conversations returns the thread summaries, from cache unless stale.
func (s *Service) Conversations(ctx context.Context) ([]Conversation, error) {
	key := ConversationsKey()
	if !s.cache.IsStale(key) {
		if convs, ok := cache.GetAs[[]Conversation](s.cache, key); ok {
			return convs, nil
		}
	}

	resp, err := s.doer.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/chat/conversations"})
	if err != nil {
		return nil, err
	}
	var convs []Conversation
	if err := resp.Decode(&convs); err != nil {
		return nil, err
	}
	s.cache.Put(key, convs)
	return convs, nil
}

// Conversation returns one thread by id.
func (s *Service) Conversation(ctx context.Context, id string) (*Conversation, error) {
	key := ConversationKey(id)
	if !s.cache.IsStale(key) {
		if conv, ok := cache.GetAs[Conversation](s.cache, key); ok {
			return &conv, nil
		}
	}

	resp, err := s.doer.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/chat/conversations/" + id})
	if err != nil {
		return nil, err
	}
	var conv Conversation
	if err := resp.Decode(&conv); err != nil {
		return nil, err
	}
	s.cache.Put(key, conv)
	return &conv, nil
}

// CreateConversation starts a new thread.
func (s *Service) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	resp, err := s.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/chat/conversations",
		Body:   map[string]string{"title": title},
	})
	if err != nil {
		return nil, err
	}
	var conv Conversation
	if err := resp.Decode(&conv); err != nil {
		return nil, err
	}
	s.cache.Put(ConversationKey(conv.ID), conv)
	s.cache.MarkStale(ConversationsKey())
	return &conv, nil
}

// DeleteConversation removes a thread, optimistically dropping it from the
// summary listing.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.orch.Run(ctx, ConversationsKey(),
		func(current any) any {
			convs, ok := current.([]Conversation)
			if !ok {
				return current
			}
			kept := make([]Conversation, 0, len(convs))
			for _, c := range convs {
				if c.ID != id {
					kept = append(kept, c)
				}
			}
			return kept
		},
		func(ctx context.Context) (any, error) {
			_, derr := s.doer.Do(ctx, &transport.Request{Method: http.MethodDelete, Path: "/chat/conversations/" + id})
			return nil, derr
		},
	)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ConversationKey(id))
	return nil
}

// Send appends the user's message optimistically and replaces the thread
// with the server's reply (which carries the assistant turn) on success.
func (s *Service) Send(ctx context.Context, conversationID, content string) (*Conversation, error) {
	pending := Message{
		ID:        s.now().UnixMilli(), // temporary until the server confirms
		Role:      "user",
		Content:   content,
		CreatedAt: s.now(),
	}

	result, err := s.orch.Run(ctx, ConversationKey(conversationID),
		func(current any) any {
			conv, ok := current.(Conversation)
			if !ok {
				return current
			}
			messages := make([]Message, len(conv.Messages), len(conv.Messages)+1)
			copy(messages, conv.Messages)
			conv.Messages = append(messages, pending)
			return conv
		},
		func(ctx context.Context) (any, error) {
			resp, derr := s.doer.Do(ctx, &transport.Request{
				Method: http.MethodPost,
				Path:   "/chat",
				Body:   map[string]string{"conversation_id": conversationID, "message": content},
			})
			if derr != nil {
				return nil, derr
			}
			var conv Conversation
			if err := resp.Decode(&conv); err != nil {
				return nil, err
			}
			return conv, nil
		},
		ConversationsKey(),
	)
	if err != nil {
		return nil, err
	}

	conv, ok := result.(Conversation)
	if !ok {
		return nil, errors.New("[chat.Send] unexpected response shape")
	}
	return &conv, nil
}
