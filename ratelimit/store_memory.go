package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore. It is capacity-bounded:
// when full, the least recently touched key is evicted. A janitor can
// additionally drop keys idle longer than the idle TTL.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently touched
	capacity int
	idleTTL  time.Duration

	now func() time.Time
}

type memoryEntry struct {
	key         string
	count       int
	windowStart time.Time
	lastTouch   time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity bounds the number of tracked keys. Default: 100000.
func WithCapacity(n int) MemoryOption {
	return func(s *MemoryStore) { s.capacity = n }
}

// WithIdleTTL sets how long an untouched key survives janitor sweeps.
// Default: 15 minutes.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: 100000,
		idleTTL:  15 * time.Minute,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Hit implements CounterStore. The whole fetch-or-create-and-increment
// step runs under one lock so a window is reset at most once.
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		if s.order.Len() >= s.capacity {
			s.evictOldest()
		}
		el = s.order.PushFront(&memoryEntry{key: key, count: 1, windowStart: now, lastTouch: now})
		s.entries[key] = el
		return 1, nil
	}

	ent := el.Value.(*memoryEntry)
	ent.lastTouch = now
	s.order.MoveToFront(el)

	if now.Sub(ent.windowStart) >= window {
		ent.count = 1
		ent.windowStart = now
		return 1, nil
	}

	ent.count++
	return ent.count, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	ent := s.order.Remove(el).(*memoryEntry)
	delete(s.entries, ent.key)
}

// Cleanup drops keys untouched for longer than the idle TTL.
func (s *MemoryStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for el := s.order.Back(); el != nil; {
		ent := el.Value.(*memoryEntry)
		if !ent.lastTouch.Before(cutoff) {
			break
		}
		prev := el.Prev()
		s.order.Remove(el)
		delete(s.entries, ent.key)
		el = prev
	}
}

// StartJanitor sweeps idle keys every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
