package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 2, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if calls != 1 {
		t.Errorf("operation ran %d times, want 1", calls)
	}
}

func TestSucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 2, time.Millisecond, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls != 3 {
		t.Errorf("operation ran %d times, want 3", calls)
	}
}

func TestExhaustsRetries(t *testing.T) {
	calls := 0
	lastErr := errors.New("attempt 3")
	_, err := Do(context.Background(), 2, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, lastErr
		}
		return 0, errors.New("earlier attempt")
	})
	if calls != 3 {
		t.Errorf("operation ran %d times, want exactly 3 (maxRetries+1)", calls)
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("got error %v, want the final attempt's error", err)
	}
}

func TestZeroRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), 0, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("operation ran %d times, want 1", calls)
	}
	if err == nil {
		t.Error("expected the failure to be returned")
	}
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, 5, time.Minute, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation ran %d times after cancellation, want 1", calls)
	}
}
