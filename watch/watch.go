// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package watch provides the bounded polling primitive used wherever the
// client has to wait for a server-side condition to become true. Every
// "poll until something appears" loop in the engine goes through Watch so
// intervals, budgets and cancellation behave the same way everywhere.
package watch

import (
	"context"
	"time"

	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

const defaultInterval = time.Second * 5

// Outcome is the terminal result of a Watch call.
type Outcome int

const (
	// TimedOut means the attempt budget ran out with no match.
	TimedOut Outcome = iota

	// Matched means the check reported a match.
	Matched

	// Cancelled means the context was cancelled before a match.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Cancelled:
		return "cancelled"
	}
	return "timed_out"
}

// CheckFunc performs one external check. It reports the matched value and
// whether it matched; an error counts as a non-match and is logged, not
// surfaced, because a transient poll failure must not end the watch.
type CheckFunc[T any] func(ctx context.Context) (T, bool, error)

// Config contains the knobs for a single Watch call.
type Config struct {
	// Interval is the pause between checks.
	// (Optional) Defaults to 5 seconds.
	Interval time.Duration

	// MaxAttempts is the attempt budget. Required, must be positive.
	MaxAttempts int

	// Logger to be used by the watcher.
	// (Optional) By default sallust's default logger is used.
	Logger *zap.Logger

	// Measures records per-check outcomes. (Optional)
	Measures *Measures
}

// Watch runs check up to config.MaxAttempts times, pausing for
// config.Interval between attempts. It returns as soon as a check matches.
// Cancelling ctx stops the watch before the next check fires; a check
// already in flight sees the cancelled context. Watch holds no state
// outside its own frame, so any number of watches may run concurrently.
func Watch[T any](ctx context.Context, check CheckFunc[T], config Config) (T, Outcome) {
	var zero T
	if check == nil || config.MaxAttempts < 1 {
		return zero, TimedOut
	}
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = sallust.Default()
	}

	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return zero, Cancelled
		}

		value, matched, err := check(ctx)
		if err != nil {
			config.Measures.countCheck(FailureOutcome)
			logger.Warn("watch check failed",
				zap.Int("attempt", attempt), zap.Error(err))
		} else {
			config.Measures.countCheck(SuccessOutcome)
		}
		if matched {
			return value, Matched
		}
		if attempt >= config.MaxAttempts {
			return zero, TimedOut
		}

		select {
		case <-ctx.Done():
			return zero, Cancelled
		case <-ticker.C:
		}
	}
}
