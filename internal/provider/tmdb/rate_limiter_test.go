package tmdb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("AllowsRequestsWithinLimit", func(t *testing.T) {
		rl := newRateLimiter(5, 1*time.Second)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := rl.wait(context.Background()); err != nil {
				t.Errorf("wait() request %d error = %v, want nil", i+1, err)
			}
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("5 requests under limit took %v, expected < 100ms", elapsed)
		}
	})

	t.Run("BlocksExcessRequests", func(t *testing.T) {
		rl := newRateLimiter(2, 300*time.Millisecond)

		start := time.Now()
		for i := 0; i < 3; i++ {
			if err := rl.wait(context.Background()); err != nil {
				t.Errorf("wait() request %d error = %v, want nil", i+1, err)
			}
		}
		if elapsed := time.Since(start); elapsed < 290*time.Millisecond {
			t.Errorf("3rd request took %v, expected at least the window", elapsed)
		}
	})

	t.Run("HonorsContext", func(t *testing.T) {
		rl := newRateLimiter(1, time.Hour)
		if err := rl.wait(context.Background()); err != nil {
			t.Fatalf("first wait() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := rl.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("wait() error = %v, want deadline exceeded", err)
		}
	})

	t.Run("ExpiresOldRequests", func(t *testing.T) {
		now := time.Unix(1000, 0)
		rl := newRateLimiter(2, 10*time.Second)
		rl.now = func() time.Time { return now }

		for i := 0; i < 2; i++ {
			if d := rl.reserve(); d != 0 {
				t.Fatalf("reserve() %d = %v, want 0", i, d)
			}
		}
		if d := rl.reserve(); d <= 0 {
			t.Fatalf("reserve() over limit = %v, want positive delay", d)
		}

		now = now.Add(11 * time.Second)
		if d := rl.reserve(); d != 0 {
			t.Errorf("reserve() after window = %v, want 0", d)
		}
	})

	t.Run("NilLimiter", func(t *testing.T) {
		var rl *rateLimiter
		if err := rl.wait(context.Background()); err != nil {
			t.Errorf("nil wait() error = %v", err)
		}
	})
}
