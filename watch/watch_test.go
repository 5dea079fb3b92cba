// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchMatchesOnFirstAttempt(t *testing.T) {
	assert := assert.New(t)
	value, outcome := Watch(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "record-1", true, nil
	}, Config{Interval: time.Millisecond, MaxAttempts: 3})

	assert.Equal(Matched, outcome)
	assert.Equal("record-1", value)
}

func TestWatchMatchesAfterRetries(t *testing.T) {
	assert := assert.New(t)
	var attempts int32
	value, outcome := Watch(context.Background(), func(ctx context.Context) (int, bool, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return 0, false, nil
		}
		return 42, true, nil
	}, Config{Interval: time.Millisecond, MaxAttempts: 5})

	assert.Equal(Matched, outcome)
	assert.Equal(42, value)
	assert.Equal(int32(3), atomic.LoadInt32(&attempts))
}

func TestWatchTimesOut(t *testing.T) {
	assert := assert.New(t)
	var attempts int32
	_, outcome := Watch(context.Background(), func(ctx context.Context) (string, bool, error) {
		atomic.AddInt32(&attempts, 1)
		return "", false, nil
	}, Config{Interval: time.Millisecond, MaxAttempts: 4})

	assert.Equal(TimedOut, outcome)
	assert.Equal(int32(4), atomic.LoadInt32(&attempts))
}

func TestWatchErrorsCountAsNonMatches(t *testing.T) {
	assert := assert.New(t)
	var attempts int32
	_, outcome := Watch(context.Background(), func(ctx context.Context) (string, bool, error) {
		atomic.AddInt32(&attempts, 1)
		return "", false, errors.New("listing failed")
	}, Config{Interval: time.Millisecond, MaxAttempts: 3})

	assert.Equal(TimedOut, outcome)
	assert.Equal(int32(3), atomic.LoadInt32(&attempts))
}

func TestWatchCancellationStopsChecks(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	var attempts int32
	done := make(chan Outcome, 1)
	go func() {
		_, outcome := Watch(ctx, func(ctx context.Context) (string, bool, error) {
			atomic.AddInt32(&attempts, 1)
			return "", false, nil
		}, Config{Interval: time.Hour, MaxAttempts: 100})
		done <- outcome
	}()

	// let the first check run, then cancel during the long sleep
	assert.Eventually(func() bool {
		return atomic.LoadInt32(&attempts) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(Cancelled, outcome)
	case <-time.After(time.Second):
		assert.Fail("watch did not stop after cancellation")
	}
	assert.Equal(int32(1), atomic.LoadInt32(&attempts))
}

func TestWatchRejectsBadConfig(t *testing.T) {
	assert := assert.New(t)
	_, outcome := Watch[string](context.Background(), nil, Config{MaxAttempts: 1})
	assert.Equal(TimedOut, outcome)

	_, outcome = Watch(context.Background(), func(ctx context.Context) (string, bool, error) {
		return "x", true, nil
	}, Config{})
	assert.Equal(TimedOut, outcome)
}

func TestOutcomeString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("matched", Matched.String())
	assert.Equal("timed_out", TimedOut.String())
	assert.Equal("cancelled", Cancelled.String())
}

func TestIndependentWatchersDoNotInterfere(t *testing.T) {
	assert := assert.New(t)
	results := make(chan string, 2)
	for _, want := range []string{"a", "b"} {
		want := want
		go func() {
			value, _ := Watch(context.Background(), func(ctx context.Context) (string, bool, error) {
				return want, true, nil
			}, Config{Interval: time.Millisecond, MaxAttempts: 2})
			results <- value
		}()
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-results:
			got[v] = true
		case <-time.After(time.Second):
			assert.Fail("watcher did not finish")
		}
	}
	assert.True(got["a"] && got["b"])
}
