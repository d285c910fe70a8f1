package ecsrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// retryableReasons is the fixed allow-set of placement failure reasons worth
// waiting out. Resource contention on a shared cluster resolves on its own;
// anything else will not.
var retryableReasons = map[string]bool{
	"RESOURCE:CPU":    true,
	"RESOURCE:MEMORY": true,
	"RESOURCE:ENI":    true,
	"RESOURCE:PORTS":  true,
	"RESOURCE:GPU":    true,
}

// ErrLaunchRetriesExhausted is returned when every launch attempt was
// rejected for a retryable reason.
var ErrLaunchRetriesExhausted = errors.New("launch retries exhausted")

// RejectionError is a fatal, non-retryable placement rejection.
type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("task rejected: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("task rejected: %s", e.Reason)
}

// Launcher submits a task, retrying rejections whose first failure reason is
// in the retry allow-set. Other rejections, transport errors, and empty
// failure lists abort immediately.
type Launcher struct {
	client      Client
	maxAttempts int
	backoff     time.Duration
	logger      zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(context.Context, time.Duration) error
}

// NewLauncher creates a launcher with the given retry budget.
func NewLauncher(client Client, maxAttempts int, backoff time.Duration, logger zerolog.Logger) *Launcher {
	return &Launcher{
		client:      client,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Launch runs the submission retry loop until a task is placed, a fatal
// rejection surfaces, or the attempt budget runs out.
//
// Only the first failure entry drives the decision. The API may report
// several simultaneous failures; policy is conservative: a fatal first
// reason aborts, a retryable first reason backs off.
func (l *Launcher) Launch(ctx context.Context, sub Submission) (TaskHandle, error) {
	attemptsUsed := 0
	for {
		outcome, err := l.client.Submit(ctx, sub)
		if err != nil {
			return TaskHandle{}, fmt.Errorf("run task: %w", err)
		}

		if outcome.TaskARN != "" {
			l.logger.Info().Str("task", outcome.TaskARN).Msg("task submitted")
			return TaskHandle{TaskARN: outcome.TaskARN, Cluster: sub.Cluster}, nil
		}

		if len(outcome.Failures) == 0 {
			// The API contract says a rejection always carries at
			// least one failure. Treat a bare one as fatal.
			return TaskHandle{}, &RejectionError{Reason: "no tasks launched"}
		}

		first := outcome.Failures[0]
		if !retryableReasons[first.Reason] {
			return TaskHandle{}, &RejectionError{Reason: first.Reason, Detail: first.Detail}
		}

		attemptsUsed++
		if attemptsUsed == l.maxAttempts {
			l.logger.Error().Str("reason", first.Reason).Int("attempts", attemptsUsed).
				Msg("giving up on task placement")
			return TaskHandle{}, fmt.Errorf("%w after %d attempts (%s)",
				ErrLaunchRetriesExhausted, attemptsUsed, first.Reason)
		}

		l.logger.Warn().Str("reason", first.Reason).
			Int("attempt", attemptsUsed).Int("max", l.maxAttempts).
			Dur("backoff", l.backoff).Msg("task placement rejected, retrying")
		if err := l.sleep(ctx, l.backoff); err != nil {
			return TaskHandle{}, err
		}
	}
}

// sleepCtx blocks for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
