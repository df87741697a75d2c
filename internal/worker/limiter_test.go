package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, OpWrite); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst of 1 is spent
	if limiter.Allow(OpWrite) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Operations have separate budgets
	if !limiter.Allow(OpFetch) {
		t.Errorf("expected allow for another operation")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow(OpWrite) {
			t.Fatalf("unlimited limiter refused call %d", i)
		}
	}

	var nilLimiter *Limiter
	if !nilLimiter.Allow(OpWrite) {
		t.Error("nil limiter should allow")
	}
	if err := nilLimiter.Wait(context.Background(), OpWrite); err != nil {
		t.Errorf("nil limiter Wait: %v", err)
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	limiter.Allow(OpWrite)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, OpWrite); err == nil {
		t.Error("expected Wait to fail once the deadline cannot be met")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(0, 1)
	limiter.SetRate(OpWrite, 1, 1)

	if !limiter.Allow(OpWrite) {
		t.Fatal("first call should pass")
	}
	if limiter.Allow(OpWrite) {
		t.Error("expected custom rate to apply")
	}
	if !limiter.Allow(OpFetch) {
		t.Error("other operations keep the default")
	}
}
