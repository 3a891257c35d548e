package middlewares

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_ExactlyMaxAdmitsPerWindow(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		d := rl.Admit("key-a")
		if !d.Allowed {
			t.Fatalf("call %d: expected admit, got deny", i+1)
		}
	}

	d := rl.Admit("key-a")
	if d.Allowed {
		t.Fatal("6th call in window: expected deny")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("retryAfter out of range: %v", d.RetryAfter)
	}
}

func TestRateLimiter_LazyWindowRollover(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Admit("key-a")
	rl.Admit("key-a")
	if d := rl.Admit("key-a"); d.Allowed {
		t.Fatal("window exhausted; expected deny")
	}

	// Past resetAt, the next touch starts a fresh window.
	now = now.Add(time.Minute + time.Second)
	d := rl.Admit("key-a")
	if !d.Allowed {
		t.Fatal("expected admit after window rollover")
	}
	if d.Remaining != 1 {
		t.Fatalf("fresh window remaining = %d, want 1", d.Remaining)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	if d := rl.Admit("key-a"); !d.Allowed {
		t.Fatal("first touch of key-a should be admitted")
	}
	if d := rl.Admit("key-a"); d.Allowed {
		t.Fatal("key-a exhausted; expected deny")
	}
	if d := rl.Admit("key-b"); !d.Allowed {
		t.Fatal("key-b has its own window; expected admit")
	}
}

func TestRateLimiter_ConcurrentAdmitsNeverOverAdmit(t *testing.T) {
	const max = 50
	const callers = 10
	const callsEach = 20

	rl := NewRateLimiter(max, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				if rl.Admit("shared").Allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if admitted != max {
		t.Fatalf("admitted %d of %d calls, want exactly %d", admitted, callers*callsEach, max)
	}
}

func TestRateLimiter_SweepDropsOnlyExpiredKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(10, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Admit("stale")
	now = now.Add(30 * time.Second)
	rl.Admit("fresh")

	now = now.Add(45 * time.Second) // stale expired, fresh still live
	rl.mu.Lock()
	rl.sweepLocked(now)
	rl.mu.Unlock()

	rl.mu.Lock()
	_, staleKept := rl.entries["stale"]
	fresh, freshKept := rl.entries["fresh"]
	rl.mu.Unlock()

	if staleKept {
		t.Fatal("expired key survived the sweep")
	}
	if !freshKept {
		t.Fatal("live key was purged by the sweep")
	}
	if fresh.count != 1 {
		t.Fatalf("live key count = %d, want 1", fresh.count)
	}
}
