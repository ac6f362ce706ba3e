package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := New(time.Millisecond, 10*time.Millisecond, 2, 5)

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	p := New(time.Millisecond, 10*time.Millisecond, 2, 3)

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestDoRespectsPermanent(t *testing.T) {
	p := New(time.Millisecond, 10*time.Millisecond, 2, 5)

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return Permanent(errors.New("fatal"))
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt for a permanent error, got %d", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	p := New(5*time.Millisecond, 50*time.Millisecond, 2, 100)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := p.Do(ctx, func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("still failing")
	})

	if err == nil {
		t.Fatal("expected error once context is cancelled")
	}
}
