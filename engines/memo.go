package engines

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Memo keeps the results of the most recent computations by key. Callers
// asking for a key that is being computed wait for that computation.
// Failed computations are not kept. It is safe for concurrent use.
type Memo[K comparable, V any] struct {
	mu      sync.Mutex
	size    int
	keys    []K // oldest first
	entries map[K]*memoEntry[V]
}

type memoEntry[V any] struct {
	ready chan struct{}
	value V
	err   error
}

// NewMemo creates a memo holding at most size results.
func NewMemo[K comparable, V any](size int) *Memo[K, V] {
	return &Memo[K, V]{
		size:    max(size, 1),
		entries: make(map[K]*memoEntry[V]),
	}
}

// Get returns the value for key, calling compute when no result is held.
func (m *Memo[K, V]) Get(ctx context.Context, key K, compute func() (V, error)) (V, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry[V]{ready: make(chan struct{})}
		m.entries[key] = e
		m.keys = append(m.keys, key)
		if len(m.keys) > m.size {
			delete(m.entries, m.keys[0])
			m.keys = m.keys[1:]
		}
	}
	m.mu.Unlock()

	if !ok {
		e.value, e.err = compute()
		if e.err != nil {
			m.forget(key, e)
		}
		close(e.ready)
		return e.value, e.err
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
	// the computing caller was cancelled, not us
	if ctx.Err() == nil && (errors.Is(e.err, context.Canceled) || errors.Is(e.err, context.DeadlineExceeded)) {
		return m.Get(ctx, key, compute)
	}
	return e.value, e.err
}

// Len returns the number of results held or in progress.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memo[K, V]) forget(key K, e *memoEntry[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] != e {
		return
	}
	delete(m.entries, key)
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool { return k == key })
}
