package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketLimiter is an Admitter that smooths admission with one token
// bucket per key instead of a fixed window. Deployments that prefer
// steady throughput over windowed caps can swap it in.
type BucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewBucketLimiter creates a token-bucket admitter refilling at rps with
// the given burst size.
func NewBucketLimiter(rps float64, burst int) *BucketLimiter {
	return &BucketLimiter{
		buckets: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

// Admit implements Admitter.
func (b *BucketLimiter) Admit(_ context.Context, key string) (Decision, error) {
	now := time.Now()

	b.mu.Lock()
	ent, ok := b.buckets[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(b.rps, b.burst)}
		b.buckets[key] = ent
	}
	ent.lastSeen = now
	b.mu.Unlock()

	return Decision{Allowed: ent.lim.Allow()}, nil
}

// Cleanup drops buckets idle longer than the idle TTL.
func (b *BucketLimiter) Cleanup() {
	cutoff := time.Now().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, ent := range b.buckets {
		if ent.lastSeen.Before(cutoff) {
			delete(b.buckets, k)
		}
	}
}

// StartJanitor sweeps idle buckets every interval until ctx is done.
func (b *BucketLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
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
				b.Cleanup()
			}
		}
	}()
}
