package adsb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyFetch fails the first failures calls and then returns one aircraft.
func flakyFetch(failures int, err error) (func() ([]Aircraft, error), *int) {
	calls := 0
	return func() ([]Aircraft, error) {
		calls++
		if calls <= failures {
			return nil, err
		}
		return []Aircraft{{ICAO: "a0b1c2", Latitude: 37.8, Longitude: -122.4}}, nil
	}, &calls
}

func fastRetry(retries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   retries,
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRetryFetchAttempts(t *testing.T) {
	upstream := errors.New("upstream 502")

	tests := []struct {
		name      string
		retries   int
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"first attempt succeeds", 3, 0, 1, false},
		{"recovers within budget", 3, 2, 3, false},
		{"budget exhausted", 2, 5, 3, true},
		{"no retries", 0, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch, calls := flakyFetch(tt.failures, upstream)
			aircraft, err := RetryWithBackoffResult(context.Background(), fastRetry(tt.retries), fetch)

			assert.Equal(t, tt.wantCalls, *calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, upstream)
				assert.Nil(t, aircraft)
				return
			}
			require.NoError(t, err)
			require.Len(t, aircraft, 1)
			assert.Equal(t, "a0b1c2", aircraft[0].ID())
		})
	}
}

func TestRetryWithBackoffWrapsResultless(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetry(1), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsOnContext(t *testing.T) {
	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fetch, calls := flakyFetch(10, errors.New("down"))
		_, err := RetryWithBackoffResult(ctx, fastRetry(3), fetch)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, *calls)
	})

	t.Run("deadline during backoff", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		cfg := fastRetry(10)
		cfg.InitialDelay = time.Second
		cfg.MaxDelay = time.Second

		fetch, calls := flakyFetch(10, errors.New("down"))
		start := time.Now()
		_, err := RetryWithBackoffResult(ctx, cfg, fetch)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, *calls)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := fastRetry(6)
	cfg.InitialDelay = 5 * time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond

	// Uncapped this would sleep 5+10+20+40+80 ms.
	fetch, _ := flakyFetch(5, errors.New("down"))
	start := time.Now()
	_, err := RetryWithBackoffResult(context.Background(), cfg, fetch)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 120*time.Millisecond)
}

func TestRetryHonoursRetryAfter(t *testing.T) {
	limited := fmt.Errorf("opensky: %w", &RateLimitError{
		StatusCode: 429,
		RetryAfter: 5 * time.Millisecond,
		Message:    "Rate limit exceeded",
		Headers:    RateLimitHeaders{Limit: 400, Remaining: 0},
	})

	cfg := fastRetry(1)
	cfg.InitialDelay = time.Hour // hangs unless Retry-After wins
	cfg.MaxDelay = time.Hour
	cfg.RespectRetryAfter = true

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fetch, calls := flakyFetch(1, limited)
	_, err := RetryWithBackoffResult(ctx, cfg, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, time.Minute, cfg.MaxDelay)
	assert.True(t, cfg.RespectRetryAfter)
}
