// Package cache is the keyed in-memory store of server entities. It is
// memory-only and rebuilt from the server on process start; consumers
// subscribe to keys for invalidation and write through the optimistic
// protocol so readers observe local mutations immediately.
package cache

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type entry struct {
	value       any
	snapshot    any
	hasSnapshot bool
	inflight    bool
	waiters     []chan struct{}
	stale       bool
}

// Store is a keyed entity cache with single-writer-per-key optimistic
// mutations. All access goes through the store's own lock so every reader
// observes the same value for a key.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key][]chan struct{}
}

func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*entry),
		subs:    make(map[Key][]chan struct{}),
	}
}

// Get returns the current value for key, optimistic state included.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.value == nil {
		return nil, false
	}
	return e.value, true
}

// GetAs reads a typed value from the store.
func GetAs[T any](s *Store, key Key) (T, bool) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Put stores an authoritative value and clears staleness.
func (s *Store) Put(key Key, value any) {
	s.mu.Lock()
	e := s.ensure(key)
	e.value = value
	e.stale = false
	s.notify(key)
	s.mu.Unlock()
}

// Invalidate drops the value so the next reader re-fetches.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.value = nil
		e.stale = false
	}
	s.notify(key)
	s.mu.Unlock()
}

// MarkStale flags keys for re-fetch without dropping the current value, so
// readers keep showing data while a refresh is pending.
func (s *Store) MarkStale(keys ...Key) {
	s.mu.Lock()
	for _, key := range keys {
		s.ensure(key).stale = true
		s.notify(key)
	}
	s.mu.Unlock()
}

// IsStale reports whether key is flagged for re-fetch.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// Reset drops every entry, notifying all subscribers. Used on logout; the
// cache is rebuilt from the server afterwards. Entries with an in-flight
// optimistic write keep their write lock so the pending mutation still
// settles against a coherent entry.
func (s *Store) Reset() {
	s.mu.Lock()
	for key, e := range s.entries {
		e.value = nil
		e.snapshot = nil
		e.hasSnapshot = false
		e.stale = false
		s.notify(key)
	}
	s.mu.Unlock()
}

// Subscribe returns a channel that receives a signal whenever key changes
// (put, invalidate, stale-mark, optimistic apply or settle), and a cancel
// function. Signals are coalesced: a slow consumer sees at least one.
func (s *Store) Subscribe(key Key) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[key] = append(s.subs[key], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[key]
		for i, sub := range subs {
			if sub == ch {
				s.subs[key] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

// Txn is one in-flight optimistic write. Exactly one of Commit or Rollback
// must be called to settle it and release the key.
type Txn struct {
	store   *Store
	key     Key
	settled bool
}

// BeginOptimistic snapshots the current value and applies updater in the same
// critical section, so every reader observes the optimistic state as soon as
// this returns. At most one optimistic write per key is in flight; later
// writers block here until the earlier one settles (queueing, never
// last-writer-wins - that would corrupt the rollback snapshot).
func (s *Store) BeginOptimistic(ctx context.Context, key Key, updater func(current any) any) (*Txn, error) {
	s.mu.Lock()
	for {
		e := s.ensure(key)
		if !e.inflight {
			e.inflight = true
			e.snapshot = e.value
			e.hasSnapshot = true
			e.value = updater(e.value)
			s.notify(key)
			s.mu.Unlock()
			return &Txn{store: s, key: key}, nil
		}

		ch := make(chan struct{})
		e.waiters = append(e.waiters, ch)
		s.mu.Unlock()

		select {
		case <-ch:
			s.mu.Lock()
		case <-ctx.Done():
			s.dropWaiter(key, ch)
			return nil, errors.Wrap(ctx.Err(), "[BeginOptimistic] cancelled while queued")
		}
	}
}

// Commit settles the write: the snapshot is dropped, the optimistic value is
// replaced with the authoritative one when provided (non-nil), and dependent
// keys are flagged stale for re-fetch.
func (t *Txn) Commit(authoritative any, staleKeys ...Key) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.settled {
		return
	}
	t.settled = true

	e := t.store.ensure(t.key)
	e.snapshot = nil
	e.hasSnapshot = false
	if authoritative != nil {
		e.value = authoritative
	}
	t.store.settle(t.key, e)
	for _, key := range staleKeys {
		t.store.ensure(key).stale = true
		t.store.notify(key)
	}
}

// Rollback restores the snapshot verbatim and discards the optimistic value.
func (t *Txn) Rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.settled {
		return
	}
	t.settled = true

	e := t.store.ensure(t.key)
	e.value = e.snapshot
	e.snapshot = nil
	e.hasSnapshot = false
	t.store.settle(t.key, e)
}

// settle releases the key and wakes every queued writer; the first to
// reacquire proceeds, the rest queue again. Caller holds the lock.
func (s *Store) settle(key Key, e *entry) {
	e.inflight = false
	for _, ch := range e.waiters {
		close(ch)
	}
	e.waiters = nil
	s.notify(key)
}

func (s *Store) dropWaiter(key Key, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	for i, w := range e.waiters {
		if w == ch {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			return
		}
	}
}

// ensure returns the entry for key, creating it empty. Caller holds the lock.
func (s *Store) ensure(key Key) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// notify signals subscribers without blocking. Caller holds the lock.
func (s *Store) notify(key Key) {
	for _, ch := range s.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
