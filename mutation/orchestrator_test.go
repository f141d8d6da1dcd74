package mutation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/go-grocery-client/cache"
	"github.com/mealkeeper/go-grocery-client/mutation"
	"github.com/mealkeeper/go-grocery-client/transport"
)

var listKey = cache.NewKey("list", "l1")

func setup(t *testing.T) (*cache.Store, *mutation.Orchestrator) {
	t.Helper()
	store := cache.NewStore()
	orch, err := mutation.NewOrchestrator(store)
	require.NoError(t, err)
	return store, orch
}

func TestRunCommitsAuthoritativeValue(t *testing.T) {
	store, orch := setup(t)
	summary := cache.NewKey("personal-lists", "")
	store.Put(listKey, "local")
	store.Put(summary, "summary")

	result, err := orch.Run(context.Background(), listKey,
		func(any) any { return "optimistic" },
		func(context.Context) (any, error) { return "authoritative", nil },
		summary,
	)
	require.NoError(t, err)
	require.Equal(t, "authoritative", result)

	v, _ := cache.GetAs[string](store, listKey)
	require.Equal(t, "authoritative", v)
	require.True(t, store.IsStale(summary), "dependent summary marked for re-fetch")
}

func TestRunKeepsOptimisticValueWhenCallReturnsNil(t *testing.T) {
	store, orch := setup(t)
	store.Put(listKey, "local")

	_, err := orch.Run(context.Background(), listKey,
		func(any) any { return "optimistic" },
		func(context.Context) (any, error) { return nil, nil },
	)
	require.NoError(t, err)

	v, _ := cache.GetAs[string](store, listKey)
	require.Equal(t, "optimistic", v)
}

func TestRunRollsBackOnFailure(t *testing.T) {
	store, orch := setup(t)
	store.Put(listKey, "before")
	remoteErr := transport.NewError(transport.KindConflict, 409, "conflict", nil)

	var observedDuringCall string
	_, err := orch.Run(context.Background(), listKey,
		func(any) any { return "optimistic" },
		func(context.Context) (any, error) {
			observedDuringCall, _ = cache.GetAs[string](store, listKey)
			return nil, remoteErr
		},
	)
	require.ErrorIs(t, err, remoteErr, "failure propagates unchanged")
	require.Equal(t, "optimistic", observedDuringCall, "optimistic state visible while the call is in flight")

	v, _ := cache.GetAs[string](store, listKey)
	require.Equal(t, "before", v, "rollback restores the pre-mutation value")
}

func TestRunCancelledWhileQueued(t *testing.T) {
	store, orch := setup(t)
	store.Put(listKey, "v")

	txn, err := store.BeginOptimistic(context.Background(), listKey, func(current any) any { return current })
	require.NoError(t, err)
	defer txn.Rollback()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = orch.Run(ctx, listKey,
		func(current any) any { return current },
		func(context.Context) (any, error) { return nil, nil },
	)
	require.Error(t, err)
}
