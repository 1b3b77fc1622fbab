package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps test sleeps negligible.
func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(3), func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d, want 42", v)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("upstream 503")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func() (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want last error %v", err, boom)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want exactly MaxAttempts (3)", calls)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("401 unauthorized")
	p := fastPolicy(5)
	p.ShouldRetry = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	_, err := Do(context.Background(), p, func() (string, error) {
		calls++
		return "", fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1 for non-retryable error", calls)
	}
}

func TestDo_RecoversAfterFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastPolicy(4), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 7 || calls != 3 {
		t.Errorf("v = %d, calls = %d; want 7, 3", v, calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialDelay: time.Hour, Multiplier: 2}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func() (int, error) {
			return 0, errors.New("transient")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestPolicy_DelayProgression(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for attempt, w := range want {
		if got := p.delay(attempt); got != w {
			t.Errorf("delay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestDo_ZeroAttemptsTreatedAsOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func() (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
