package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_BurstLimitCapsWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 1e9, // rate never binds in this test
		BurstLimit:        5,
		WindowSize:        time.Hour,
	})

	for i := 0; i < 5; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d rejected before burst limit", i+1)
		}
	}

	if rl.Allow() {
		t.Error("request burstLimit+1 should be rejected")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 1e9,
		BurstLimit:        2,
		WindowSize:        30 * time.Millisecond,
	})

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow() {
		t.Fatal("third request should be rejected inside the window")
	}

	time.Sleep(40 * time.Millisecond)

	if !rl.Allow() {
		t.Error("request after window elapse should pass")
	}
}

func TestRateLimiter_ImpliedRatePacesRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 10,
		BurstLimit:        1000,
		WindowSize:        time.Second,
	})

	// Immediately after the first request the implied rate is far above
	// 10/s, so a tight loop gets paced even though the burst cap is high.
	if !rl.Allow() {
		t.Fatal("first request should pass")
	}
	if rl.Allow() {
		t.Error("back-to-back request should exceed the implied rate")
	}
}

func TestRateLimiter_ExecuteReturnsErrRateLimited(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 1e9,
		BurstLimit:        1,
		WindowSize:        time.Hour,
	})

	if err := rl.Execute(func() error { return nil }); err != nil {
		t.Fatalf("first execute failed: %v", err)
	}

	called := false
	err := rl.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if called {
		t.Error("function must not run when rate limited")
	}
}

func TestRateLimiter_OnLimitCallback(t *testing.T) {
	var limited []string
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "radarr:health",
		RequestsPerSecond: 1e9,
		BurstLimit:        1,
		WindowSize:        time.Hour,
		OnLimit:           func(name string) { limited = append(limited, name) },
	})

	rl.Allow()
	rl.Allow()

	if len(limited) != 1 || limited[0] != "radarr:health" {
		t.Errorf("OnLimit calls = %v", limited)
	}
}

func TestRateLimiter_ConcurrentCountingStaysConsistent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Name:              "test",
		RequestsPerSecond: 1e9,
		BurstLimit:        50,
		WindowSize:        time.Hour,
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 50 {
		t.Errorf("admitted = %d, want exactly burst limit 50", admitted)
	}
}
