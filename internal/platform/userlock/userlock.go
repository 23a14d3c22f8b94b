// Package userlock serializes writers per user so concurrent review batches for the same
// user cannot interleave their read-modify-write cycles.
package userlock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("user lock: timed out waiting for lock")

// Locker acquires a per-user lock. The returned release func is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (release func(), err error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is the in-process Locker. Waiters give up when ctx is done.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[userID]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		m.locks[userID] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(userID, e)
		return func() {}, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(userID, e)
		})
	}, nil
}

func (m *KeyedMutex) unref(userID uuid.UUID, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, userID)
	}
}

func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
