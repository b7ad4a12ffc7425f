package ratelimit

import (
	"context"
	"testing"
	"time"
)

// tryWait reports whether a request for key passes within a short deadline.
// Wait fails fast when the next token is further away than the deadline.
func tryWait(rl *KeyedRateLimiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return rl.Wait(ctx, key) == nil
}

func TestKeyedRateLimiter_Burst(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
		{name: "zero burst still lets one through", rps: 1, burst: 0, calls: 3, wantPass: 1},
		{name: "non-positive rps disables limiting", rps: 0, burst: 1, calls: 10, wantPass: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if tryWait(rl, "amazon") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_KeysAreCaseInsensitive(t *testing.T) {
	rl := New(1, 1)

	if !tryWait(rl, "Amazon") {
		t.Fatal("first request should pass")
	}
	if tryWait(rl, " amazon ") {
		t.Error("Amazon and amazon should share a bucket")
	}
	if !tryWait(rl, "eBay") {
		t.Error("eBay should have its own bucket")
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(10, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx, "ebay"); err != nil {
		t.Errorf("first Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}

	start = time.Now()
	if err := rl.Wait(ctx, "ebay"); err != nil {
		t.Errorf("second Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1)
	if err := rl.Wait(context.Background(), "amazon"); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "amazon"); err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}
