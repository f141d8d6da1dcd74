// Package pantry holds the pantry inventory the reconciliation engine diffs
// grocery lists against.
package pantry

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/cache"
	"github.com/mealkeeper/go-grocery-client/transport"
)

// KindPantry caches the pantry snapshot per owner scope.
const KindPantry cache.Kind = "pantry"

// Entry is one pantry ingredient amount, already normalized to a canonical
// unit. CanonicalUnit is present whenever CanonicalQuantity is meaningful.
type Entry struct {
	IngredientID      int64   `json:"ingredient_id"`
	CanonicalQuantity float64 `json:"canonical_quantity"`
	CanonicalUnit     string  `json:"canonical_unit"`
	OwnerScope        string  `json:"owner_scope,omitempty"`
}

// Key addresses the cached snapshot for an owner scope ("" means personal).
func Key(ownerScope string) cache.Key {
	return cache.NewKey(KindPantry, ownerScope)
}

// Service fetches pantry snapshots through the request pipeline.
type Service struct {
	doer  transport.Doer
	cache *cache.Store
	log   zerolog.Logger
}

func NewService(doer transport.Doer, store *cache.Store, log zerolog.Logger) (*Service, error) {
	if doer == nil {
		return nil, errors.New("[pantry.NewService] doer is required")
	}
	if store == nil {
		return nil, errors.New("[pantry.NewService] cache store is required")
	}
	return &Service{doer: doer, cache: store, log: log}, nil
}

// Snapshot returns the pantry for an owner scope, from cache unless stale or
// missing.
func (s *Service) Snapshot(ctx context.Context, ownerScope string) ([]Entry, error) {
	key := Key(ownerScope)
	if !s.cache.IsStale(key) {
		if entries, ok := cache.GetAs[[]Entry](s.cache, key); ok {
			return entries, nil
		}
	}

	req := &transport.Request{Method: http.MethodGet, Path: "/pantry"}
	if ownerScope != "" {
		req.Query = url.Values{"scope": {ownerScope}}
	}
	resp, err := s.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := resp.Decode(&entries); err != nil {
		return nil, err
	}
	s.cache.Put(key, entries)
	return entries, nil
}
