// Package grocery implements grocery list operations and the pantry
// reconciliation engine over the caching request pipeline.
package grocery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/cache"
	"github.com/mealkeeper/go-grocery-client/mutation"
	"github.com/mealkeeper/go-grocery-client/pantry"
	"github.com/mealkeeper/go-grocery-client/transport"
)

// ErrForbidden is the domain permission failure for non-owner operations. It
// is distinct from session-level Unauthorized: it is never retried and never
// triggers a refresh.
var ErrForbidden = transport.NewError(transport.KindForbidden, 0, "only the list owner may sync the pantry", nil)

// UserIDSource supplies the authenticated user's id, or "" when logged out.
type UserIDSource func() string

// Service is the grocery list client. Every write goes through the mutation
// orchestrator so local state is applied immediately and rolled back on
// failure.
type Service struct {
	doer   transport.Doer
	cache  *cache.Store
	orch   *mutation.Orchestrator
	pantry *pantry.Service
	userID UserIDSource
	now    func() time.Time
	log    zerolog.Logger
}

type ServiceOption func(*Service)

// WithNowFunc overrides the clock used for temporary item ids (for tests).
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

func NewService(doer transport.Doer, store *cache.Store, orch *mutation.Orchestrator, pantrySvc *pantry.Service, userID UserIDSource, options ...ServiceOption) (*Service, error) {
	if doer == nil {
		return nil, errors.New("[grocery.NewService] doer is required")
	}
	if store == nil {
		return nil, errors.New("[grocery.NewService] cache store is required")
	}
	if orch == nil {
		return nil, errors.New("[grocery.NewService] orchestrator is required")
	}
	if pantrySvc == nil {
		return nil, errors.New("[grocery.NewService] pantry service is required")
	}
	if userID == nil {
		return nil, errors.New("[grocery.NewService] user id source is required")
	}

	s := &Service{
		doer:   doer,
		cache:  store,
		orch:   orch,
		pantry: pantrySvc,
		userID: userID,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Lists returns the caller's personal lists, from cache unless stale.
func (s *Service) Lists(ctx context.Context) ([]List, error) {
	return s.fetchLists(ctx, PersonalListsKey(), "/grocery-lists")
}

// FamilyLists returns the lists shared with a family.
func (s *Service) FamilyLists(ctx context.Context, familyID string) ([]List, error) {
	return s.fetchLists(ctx, FamilyListsKey(familyID), "/grocery-lists/family/"+familyID)
}

func (s *Service) fetchLists(ctx context.Context, key cache.Key, path string) ([]List, error) {
	if !s.cache.IsStale(key) {
		if lists, ok := cache.GetAs[[]List](s.cache, key); ok {
			return lists, nil
		}
	}

	resp, err := s.doer.Do(ctx, &transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	var lists []List
	if err := resp.Decode(&lists); err != nil {
		return nil, err
	}
	s.cache.Put(key, lists)
	return lists, nil
}

// List returns one list by id, from cache unless stale.
func (s *Service) List(ctx context.Context, listID string) (*List, error) {
	key := ListKey(listID)
	if !s.cache.IsStale(key) {
		if list, ok := cache.GetAs[List](s.cache, key); ok {
			return &list, nil
		}
	}

	resp, err := s.doer.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/grocery-lists/" + listID})
	if err != nil {
		return nil, err
	}
	var list List
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	s.cache.Put(key, list)
	return &list, nil
}

// CreateList creates a new personal list.
func (s *Service) CreateList(ctx context.Context, name string) (*List, error) {
	resp, err := s.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/grocery-lists",
		Body:   map[string]string{"name": name},
	})
	if err != nil {
		return nil, err
	}
	var list List
	if err := resp.Decode(&list); err != nil {
		return nil, err
	}
	s.cache.Put(ListKey(list.ID), list)
	s.cache.MarkStale(PersonalListsKey())
	return &list, nil
}

// DeleteList removes a list, optimistically dropping it from the personal
// summary.
func (s *Service) DeleteList(ctx context.Context, listID string) error {
	_, err := s.orch.Run(ctx, PersonalListsKey(),
		func(current any) any {
			lists, ok := current.([]List)
			if !ok {
				return current
			}
			kept := make([]List, 0, len(lists))
			for _, l := range lists {
				if l.ID != listID {
					kept = append(kept, l)
				}
			}
			return kept
		},
		func(ctx context.Context) (any, error) {
			_, derr := s.doer.Do(ctx, &transport.Request{Method: http.MethodDelete, Path: "/grocery-lists/" + listID})
			return nil, derr
		},
	)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ListKey(listID))
	return nil
}

// AddItem appends an item optimistically under a temporary timestamp id; the
// server-assigned list replaces it on confirmation.
func (s *Service) AddItem(ctx context.Context, listID string, item Item) (*List, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	item.ID = s.now().UnixMilli() // temporary until the server confirms

	return s.runListMutation(ctx, listID,
		func(list List) List {
			list.Items = append(list.Items, item)
			return list
		},
		&transport.Request{
			Method: http.MethodPost,
			Path:   fmt.Sprintf("/grocery-lists/%s/items", listID),
			Body:   item,
		},
	)
}

// UpdateItem replaces an item's fields.
func (s *Service) UpdateItem(ctx context.Context, listID string, item Item) (*List, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return s.runListMutation(ctx, listID,
		func(list List) List {
			for i := range list.Items {
				if list.Items[i].ID == item.ID {
					list.Items[i] = item
				}
			}
			return list
		},
		&transport.Request{
			Method: http.MethodPut,
			Path:   fmt.Sprintf("/grocery-lists/%s/items/%d", listID, item.ID),
			Body:   item,
		},
	)
}

// RemoveItem deletes an item.
func (s *Service) RemoveItem(ctx context.Context, listID string, itemID int64) (*List, error) {
	return s.runListMutation(ctx, listID,
		func(list List) List {
			kept := make([]Item, 0, len(list.Items))
			for _, it := range list.Items {
				if it.ID != itemID {
					kept = append(kept, it)
				}
			}
			list.Items = kept
			return list
		},
		&transport.Request{
			Method: http.MethodDelete,
			Path:   fmt.Sprintf("/grocery-lists/%s/items/%d", listID, itemID),
		},
	)
}

// ToggleChecked flips an item's checked state.
func (s *Service) ToggleChecked(ctx context.Context, listID string, itemID int64) (*List, error) {
	return s.toggleItemFlag(ctx, listID, itemID, "checked", func(it *Item) {
		it.Checked = !it.Checked
	})
}

// MarkPurchased marks an item as purchased.
func (s *Service) MarkPurchased(ctx context.Context, listID string, itemID int64) (*List, error) {
	return s.toggleItemFlag(ctx, listID, itemID, "purchased", func(it *Item) {
		it.IsPurchased = true
	})
}

func (s *Service) toggleItemFlag(ctx context.Context, listID string, itemID int64, action string, apply func(*Item)) (*List, error) {
	return s.runListMutation(ctx, listID,
		func(list List) List {
			for i := range list.Items {
				if list.Items[i].ID == itemID {
					apply(&list.Items[i])
				}
			}
			return list
		},
		&transport.Request{
			Method: http.MethodPut,
			Path:   fmt.Sprintf("/grocery-lists/%s/items/%d/%s", listID, itemID, action),
		},
	)
}

// SyncPantry reconciles the list against the caller's pantry. Only the list
// owner may trigger it; the engine is never invoked for anyone else. The
// local engine result is applied optimistically, the server's reply is
// authoritative, and any failure rolls the list back.
func (s *Service) SyncPantry(ctx context.Context, listID string) (*SyncResult, error) {
	list, err := s.List(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID != s.userID() {
		return nil, ErrForbidden
	}

	snapshot, err := s.pantry.Snapshot(ctx, list.FamilyID)
	if err != nil {
		return nil, err
	}
	local := Reconcile(list.Items, snapshot)

	var result SyncResult
	_, err = s.orch.Run(ctx, ListKey(listID),
		func(current any) any {
			cur, ok := current.(List)
			if !ok {
				return current
			}
			cur.Items = local.RemainingItems
			return cur
		},
		func(ctx context.Context) (any, error) {
			resp, derr := s.doer.Do(ctx, &transport.Request{
				Method: http.MethodPost,
				Path:   fmt.Sprintf("/grocery-lists/%s/sync-pantry", listID),
			})
			if derr != nil {
				return nil, derr
			}
			if err := resp.Decode(&result); err != nil {
				return nil, err
			}
			confirmed := *list
			confirmed.Items = result.RemainingItems
			return confirmed, nil
		},
		s.summaryKeys(list)...,
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// runListMutation is the shared optimistic recipe for single-list writes:
// copy-on-write update, remote call, authoritative list on success, summary
// keys stale-marked so counts and timestamps re-fetch.
func (s *Service) runListMutation(ctx context.Context, listID string, update func(List) List, req *transport.Request) (*List, error) {
	key := ListKey(listID)

	result, err := s.orch.Run(ctx, key,
		func(current any) any {
			list, ok := current.(List)
			if !ok {
				return current
			}
			return update(cloneList(list))
		},
		func(ctx context.Context) (any, error) {
			resp, derr := s.doer.Do(ctx, req)
			if derr != nil {
				return nil, derr
			}
			if len(resp.Body) == 0 {
				return nil, nil // keep the optimistic value
			}
			var list List
			if err := resp.Decode(&list); err != nil {
				return nil, err
			}
			return list, nil
		},
		s.summaryKeysFor(listID)...,
	)
	if err != nil {
		return nil, err
	}

	if list, ok := result.(List); ok {
		return &list, nil
	}
	if list, ok := cache.GetAs[List](s.cache, key); ok {
		return &list, nil
	}
	// The server confirmed without a body and the list was never cached, so
	// there is nothing to hand back.
	return nil, errors.Errorf("[Service.runListMutation] list %s not in cache after mutation", listID)
}

func (s *Service) summaryKeys(list *List) []cache.Key {
	keys := []cache.Key{PersonalListsKey()}
	if list.FamilyID != "" {
		keys = append(keys, FamilyListsKey(list.FamilyID))
	}
	return keys
}

func (s *Service) summaryKeysFor(listID string) []cache.Key {
	if list, ok := cache.GetAs[List](s.cache, ListKey(listID)); ok {
		return s.summaryKeys(&list)
	}
	return []cache.Key{PersonalListsKey()}
}

// cloneList copies the list and its item slice so optimistic updates never
// mutate the rollback snapshot through shared backing arrays.
func cloneList(list List) List {
	items := make([]Item, len(list.Items))
	copy(items, list.Items)
	list.Items = items
	return list
}
