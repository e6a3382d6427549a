package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	if l := NewLimiter(10, 5); l.burst != 5 {
		t.Errorf("expected burst 5, got %d", l.burst)
	}
	if l := NewLimiter(10, -1); l.burst != 1 {
		t.Errorf("expected burst 1 for negative input, got %d", l.burst)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("openai") {
		t.Error("first openai call should be allowed")
	}
	if limiter.Allow("openai") {
		t.Error("second openai call should wait for a token")
	}
	if !limiter.Allow("docs.example.com") {
		t.Error("a different key has its own bucket")
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "anthropic"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	limiter.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "slow"); err == nil {
		t.Error("expected context error while waiting for an empty bucket")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("any") {
			t.Fatal("disabled limiter must allow everything")
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background(), "any"); err != nil {
		t.Errorf("nil limiter wait: %v", err)
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.SetRate("bulk", 1000, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow("bulk") {
			t.Fatalf("call %d should fit in the burst", i)
		}
	}
}

func TestKeyForURL(t *testing.T) {
	tests := map[string]string{
		"https://docs.example.com/a.pdf": "docs.example.com",
		"http://localhost:8080/x":        "localhost:8080",
		"openai":                         "openai",
		"://bad":                         "://bad",
	}
	for in, want := range tests {
		if got := KeyForURL(in); got != want {
			t.Errorf("KeyForURL(%q) = %q, want %q", in, got, want)
		}
	}
}
