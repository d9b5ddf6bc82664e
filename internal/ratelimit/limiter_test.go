package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllow_ConsumesBurst(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("expected token %d to be available", i)
		}
	}
	if l.Allow() {
		t.Error("expected bucket to be empty after burst")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := New(100, 1)

	if !l.Allow() {
		t.Fatal("expected initial token")
	}
	if l.Allow() {
		t.Fatal("expected empty bucket")
	}

	// 100 tokens/s refills one token within 10ms.
	time.Sleep(30 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected token after refill interval")
	}
}

func TestWait_BlocksUntilToken(t *testing.T) {
	l := New(50, 1)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait failed: %v", err)
	}
	// 50 tokens/s means roughly 20ms per token.
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("expected Wait to block for a refill, returned after %v", elapsed)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	l := New(0.1, 1)
	l.Allow() // drain

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to fail on context deadline")
	}
}

func TestTokens_CappedAtBurst(t *testing.T) {
	l := New(1000, 5)
	time.Sleep(20 * time.Millisecond)

	if tokens := l.Tokens(); tokens > 5 {
		t.Errorf("expected tokens capped at 5, got %f", tokens)
	}
}
