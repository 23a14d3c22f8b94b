// Package cache is the in-process cache-aside store behind daily tasks, daily summaries and
// user stats. Entries are addressed by structured keys and indexed by user so per-user
// invalidation never scans the key space.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/yungbote/neurobridge-mastery/internal/platform/logger"
)

// Stats mirrors the counters reported by the cache stats endpoint.
type Stats struct {
	Keys      int   `json:"keys"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	KSize     int64 `json:"ksize"`
	VSize     int64 `json:"vsize"`
}

type Store interface {
	// Get returns the stored value itself, not a copy.
	Get(ctx context.Context, key Key) (interface{}, bool, error)
	Set(ctx context.Context, key Key, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...Key) (int, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) (int, error)
	Flush(ctx context.Context) error
	PurgeExpired(ctx context.Context) int
	Stats() Stats
}

type item = ttlcache.Item[Key, interface{}]

type indexEntry struct {
	item  *item
	ksize int64
	vsize int64
}

// memoryStore keeps values in a ttlcache and a per-user key index beside it. The index is
// updated synchronously by the store's own methods and by the eviction callback for
// removals ttlcache makes on its own (capacity, expiry sweeps). An index entry is only
// dropped when it still points at the evicted item, so a late callback cannot unindex a
// newer value for the same key.
type memoryStore struct {
	items *ttlcache.Cache[Key, interface{}]

	mu     sync.Mutex
	byUser map[uuid.UUID]map[Key]indexEntry
	ksize  int64
	vsize  int64

	log *logger.Logger
}

type storeOptions struct {
	capacity uint64
}

type Option func(*storeOptions)

// WithCapacity bounds the number of entries. The least recently used entry is evicted first.
func WithCapacity(n uint64) Option {
	return func(o *storeOptions) { o.capacity = n }
}

func NewMemoryStore(baseLog *logger.Logger, opts ...Option) Store {
	var cfg storeOptions
	for _, opt := range opts {
		opt(&cfg)
	}
	ttlOpts := []ttlcache.Option[Key, interface{}]{
		ttlcache.WithDisableTouchOnHit[Key, interface{}](),
	}
	if cfg.capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[Key, interface{}](cfg.capacity))
	}

	s := &memoryStore{
		items:  ttlcache.New[Key, interface{}](ttlOpts...),
		byUser: make(map[uuid.UUID]map[Key]indexEntry),
		log:    baseLog.With("component", "MemoryCacheStore"),
	}
	s.items.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, it *item) {
		s.unindex(it.Key(), it)
		if reason == ttlcache.EvictionReasonCapacityReached {
			s.log.Debug("Cache entry evicted at capacity", "key", it.Key().String())
		}
	})
	return s
}

func (s *memoryStore) Get(ctx context.Context, key Key) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	it := s.items.Get(key)
	if it == nil {
		// ttlcache keeps expired items until the next sweep; drop them from the index now.
		if e, ok := s.lookup(key); ok && e.item.IsExpired() {
			s.unindex(key, e.item)
		}
		return nil, false, nil
	}
	return it.Value(), true, nil
}

func (s *memoryStore) Set(ctx context.Context, key Key, value interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	it := s.items.Set(key, value, ttl)
	e := indexEntry{item: it, ksize: int64(len(key.String())), vsize: approxSize(value)}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.byUser[key.UserID]
	if idx == nil {
		idx = make(map[Key]indexEntry)
		s.byUser[key.UserID] = idx
	}
	if old, ok := idx[key]; ok {
		s.ksize -= old.ksize
		s.vsize -= old.vsize
	}
	idx[key] = e
	s.ksize += e.ksize
	s.vsize += e.vsize
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, keys ...Key) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		e, ok := s.lookup(k)
		s.items.Delete(k)
		if ok {
			s.unindex(k, e.item)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) DeleteUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	idx := s.byUser[userID]
	delete(s.byUser, userID)
	keys := make([]Key, 0, len(idx))
	for k, e := range idx {
		keys = append(keys, k)
		s.ksize -= e.ksize
		s.vsize -= e.vsize
	}
	s.mu.Unlock()

	for _, k := range keys {
		s.items.Delete(k)
	}
	return len(keys), nil
}

func (s *memoryStore) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.items.DeleteAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[uuid.UUID]map[Key]indexEntry)
	s.ksize = 0
	s.vsize = 0
	return nil
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (s *memoryStore) PurgeExpired(ctx context.Context) int {
	n := 0
	s.mu.Lock()
	for userID, idx := range s.byUser {
		if ctx.Err() != nil {
			break
		}
		for k, e := range idx {
			if e.item.IsExpired() {
				s.removeLocked(userID, idx, k, e)
				n++
			}
		}
	}
	s.mu.Unlock()
	s.items.DeleteExpired()
	return n
}

func (s *memoryStore) Stats() Stats {
	m := s.items.Metrics()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := 0
	for _, idx := range s.byUser {
		keys += len(idx)
	}
	return Stats{
		Keys:      keys,
		Hits:      int64(m.Hits),
		Misses:    int64(m.Misses),
		Evictions: int64(m.Evictions),
		KSize:     s.ksize,
		VSize:     s.vsize,
	}
}

func (s *memoryStore) lookup(key Key) (indexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byUser[key.UserID][key]
	return e, ok
}

// unindex removes key only while it still refers to it.
func (s *memoryStore) unindex(key Key, it *item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.byUser[key.UserID]
	e, ok := idx[key]
	if !ok || e.item != it {
		return
	}
	s.removeLocked(key.UserID, idx, key, e)
}

func (s *memoryStore) removeLocked(userID uuid.UUID, idx map[Key]indexEntry, key Key, e indexEntry) {
	delete(idx, key)
	s.ksize -= e.ksize
	s.vsize -= e.vsize
	if len(idx) == 0 {
		delete(s.byUser, userID)
	}
}

// approxSize estimates the value footprint from its JSON encoding.
func approxSize(v interface{}) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
