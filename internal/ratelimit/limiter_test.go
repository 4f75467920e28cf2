package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAllowWithinCeiling(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("4th request within the window must be rejected")
	}
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	now := time.Now()
	l := New(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		l.Allow("client")
	}
	if l.Allow("client") {
		t.Fatalf("still inside the window, must reject")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow("client") {
		t.Fatalf("expired window must admit again")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	if !l.Allow("a") {
		t.Fatalf("first request for a rejected")
	}
	if l.Allow("a") {
		t.Fatalf("second request for a admitted")
	}
	if !l.Allow("b") {
		t.Fatalf("unrelated key b was throttled")
	}
}

func TestStaleBucketsArePruned(t *testing.T) {
	now := time.Now()
	l := New(3, time.Minute)
	l.now = func() time.Time { return now }

	stale := "10.0.0.1"
	sh := l.shardFor(stale)
	l.Allow(stale)

	// Pick a second key landing on the same shard so the next touch of
	// that shard runs the prune.
	fresh := ""
	for i := 0; fresh == ""; i++ {
		if k := fmt.Sprintf("10.1.%d.1", i); l.shardFor(k) == sh {
			fresh = k
		}
	}

	// One window old: expired but still retained.
	now = now.Add(time.Minute)
	l.Allow(fresh)
	sh.mu.Lock()
	_, kept := sh.buckets[stale]
	sh.mu.Unlock()
	if !kept {
		t.Fatalf("bucket one window old must survive")
	}

	// Two windows old: dropped on the next touch.
	now = now.Add(time.Minute)
	l.Allow(fresh)
	sh.mu.Lock()
	_, kept = sh.buckets[stale]
	sh.mu.Unlock()
	if kept {
		t.Fatalf("bucket two windows old must be pruned")
	}
}

func TestConcurrentDistinctKeys(t *testing.T) {
	l := New(5, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", i)
			for j := 0; j < 5; j++ {
				if !l.Allow(key) {
					t.Errorf("key %s rejected within ceiling", key)
				}
			}
			if l.Allow(key) {
				t.Errorf("key %s admitted over ceiling", key)
			}
		}(i)
	}
	wg.Wait()
}
