package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// bucket is the per-client fixed-window counter. A missing bucket is
// equivalent to a fresh one.
type bucket struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter admits requests per client key using a fixed window counter.
// Keys are sharded so unrelated clients do not serialize behind one
// lock. State is per-instance and resets on restart.
type Limiter struct {
	limit  int
	window time.Duration
	shards [shardCount]*shard
	now    func() time.Time
}

// New builds a limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{limit: limit, window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Allow records one request for key and reports whether it is admitted.
// When the stored window has expired the counter restarts; once the
// count exceeds the ceiling within a window the request is rejected.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	sh := l.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.prune(now, l.window)

	b, ok := sh.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		b = &bucket{windowStart: now}
		sh.buckets[key] = b
	}
	b.count++
	return b.count <= l.limit
}

// prune drops buckets whose window expired more than one window ago so
// one-off clients do not accumulate forever. Caller holds the shard lock.
func (sh *shard) prune(now time.Time, window time.Duration) {
	for key, b := range sh.buckets {
		if now.Sub(b.windowStart) >= 2*window {
			delete(sh.buckets, key)
		}
	}
}

// Limit returns the configured per-window ceiling.
func (l *Limiter) Limit() int {
	return l.limit
}
