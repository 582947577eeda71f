package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_FirstAttemptSucceeds(t *testing.T) {
	var calls int
	hits, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		return []string{"lsa-2", "cc-119"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(hits) != 2 {
		t.Errorf("expected the hits from the successful attempt, got %v", hits)
	}
}

func TestDoVal_RecoversFromTransientFault(t *testing.T) {
	var calls int
	hits, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, NewTransientError(errors.New("backend overloaded"), 503)
		}
		return []string{"esa-50"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(hits) != 1 || hits[0] != "esa-50" {
		t.Errorf("expected hits from the third attempt, got %v", hits)
	}
}

func TestDoVal_ExhaustionReturnsZeroValue(t *testing.T) {
	var calls int
	hits, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) ([]string, error) {
		calls++
		return []string{"stale"}, NewTransientError(errors.New("still down"), 502)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if hits != nil {
		t.Errorf("expected zero value on failure, got %v", hits)
	}
}

func TestDoVal_PermanentErrorFailsFast(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("malformed cypher query")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for a non-transient error, got %d", calls)
	}
}

func TestDoVal_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	var calls int
	start := time.Now()
	_, err := DoVal(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, NewTransientError(errors.New("backend down"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 3 {
		t.Errorf("expected retries to stop after cancel, got %d calls", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancel should cut the backoff sleep short, took %v", elapsed)
	}
}

func TestDoVal_DriverSpecificShouldRetry(t *testing.T) {
	deadlock := &pgconn.PgError{Code: "40P01"}
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "40P01"
	}

	var calls int
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, deadlock
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected the deadlock to be retried once, got %d calls", calls)
	}
}

func TestDoVal_OnRetrySeesAttemptNumbers(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) {
		attempts = append(attempts, attempt)
	}

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("flaky"), 500)
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls (no callback after the last attempt), got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
}

func TestDoVal_ZeroConfigUsesDefaults(t *testing.T) {
	// A zero RetryConfig must resolve to the documented defaults, including
	// IsTransient as the retry check.
	var calls int
	cfg := RetryConfig{InitialBackoff: time.Millisecond}

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, NewTransientError(errors.New("blip"), 503)
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected default transient check to trigger a retry, got %d calls", calls)
	}
}

func TestDo_WrapsDoVal(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 2 {
			return NewTransientError(errors.New("blip"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_PropagatesFinalError(t *testing.T) {
	final := errors.New("schema missing")
	err := Do(context.Background(), fastRetry(2), func(_ context.Context) error {
		return final
	})
	if !errors.Is(err, final) {
		t.Errorf("expected the final error back, got %v", err)
	}
}

func TestWithDefaults_FillsEveryZeroField(t *testing.T) {
	got := RetryConfig{}.withDefaults()
	want := DefaultRetryConfig()

	if got.MaxAttempts != want.MaxAttempts {
		t.Errorf("MaxAttempts: expected %d, got %d", want.MaxAttempts, got.MaxAttempts)
	}
	if got.InitialBackoff != want.InitialBackoff {
		t.Errorf("InitialBackoff: expected %v, got %v", want.InitialBackoff, got.InitialBackoff)
	}
	if got.MaxBackoff != want.MaxBackoff {
		t.Errorf("MaxBackoff: expected %v, got %v", want.MaxBackoff, got.MaxBackoff)
	}
	if got.Multiplier != want.Multiplier {
		t.Errorf("Multiplier: expected %v, got %v", want.Multiplier, got.Multiplier)
	}
	if got.JitterFraction != want.JitterFraction {
		t.Errorf("JitterFraction: expected %v, got %v", want.JitterFraction, got.JitterFraction)
	}
	if got.ShouldRetry == nil {
		t.Error("expected ShouldRetry to default to IsTransient")
	}
}

func TestWithDefaults_NegativeJitterClampsToZero(t *testing.T) {
	got := RetryConfig{JitterFraction: -0.5}.withDefaults()
	if got.JitterFraction != 0 {
		t.Errorf("expected negative jitter clamped to 0, got %v", got.JitterFraction)
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: -1, // clamped to 0 for a deterministic check
	}.withDefaults()

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, want := range expected {
		if got := cfg.backoff(i + 1); got != want {
			t.Errorf("retry %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     10.0,
		JitterFraction: -1,
	}.withDefaults()

	if got := cfg.backoff(6); got > 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %v", got)
	}
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	}.withDefaults()

	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		d := cfg.backoff(1)
		seen[d] = true
		// 50% jitter on a 1s base keeps the delay in [500ms, 1500ms].
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Errorf("delay %v outside [500ms, 1500ms]", d)
		}
	}
	if len(seen) < 2 {
		t.Error("expected jitter to vary the delays")
	}
}

func TestRetryLogger_DoesNotPanic(t *testing.T) {
	t.Parallel()
	logger := RetryLogger("weaviate_hybrid", "search")
	logger(1, errors.New("connection reset by peer"))
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 250, 10000)
	if cfg.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 250*time.Millisecond {
		t.Errorf("expected 250ms initial backoff, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("expected 10s max backoff, got %v", cfg.MaxBackoff)
	}

	// Unset config values fall back to the defaults.
	def := FromRetryConfig(0, 0, 0)
	if def.MaxAttempts != 3 || def.InitialBackoff != 500*time.Millisecond || def.MaxBackoff != 30*time.Second {
		t.Errorf("expected defaults for zero inputs, got %+v", def)
	}
}
