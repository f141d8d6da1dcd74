// Package mutation implements the one optimistic-write recipe every write
// operation follows: apply locally, call the server, keep or roll back.
package mutation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mealkeeper/go-grocery-client/cache"
)

// RemoteCall performs the server side of a mutation through the full request
// pipeline and returns the authoritative value, or nil to keep the optimistic
// one.
type RemoteCall func(ctx context.Context) (any, error)

// Orchestrator runs optimistic mutations against the cache. The recipe is
// identical for every write - toggle, remove, mark purchased, add - only the
// updater and the remote call differ.
type Orchestrator struct {
	cache *cache.Store
	log   zerolog.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(log zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func NewOrchestrator(store *cache.Store, options ...OrchestratorOption) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("[NewOrchestrator] cache store is required")
	}
	o := &Orchestrator{cache: store, log: zerolog.Nop()}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// Run applies updater to key optimistically, invokes call, and settles:
// commit with the authoritative value and stale-marks on success, rollback
// and the unchanged failure on error. The cache is never left partially
// applied - by the time the error reaches the caller the rollback has
// happened.
func (o *Orchestrator) Run(ctx context.Context, key cache.Key, updater func(current any) any, call RemoteCall, staleKeys ...cache.Key) (any, error) {
	txn, err := o.cache.BeginOptimistic(ctx, key, updater)
	if err != nil {
		return nil, err
	}

	authoritative, err := call(ctx)
	if err != nil {
		txn.Rollback()
		o.log.Debug().Str("key", key.String()).Err(err).Msg("mutation rolled back")
		return nil, err
	}

	txn.Commit(authoritative, staleKeys...)
	return authoritative, nil
}
