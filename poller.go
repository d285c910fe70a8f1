package ecsrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrWaitRetriesExhausted is returned when the task never reached STOPPED
// within the total wait budget.
var ErrWaitRetriesExhausted = errors.New("wait retries exhausted")

// WaitError is an unrecoverable failure of the wait itself, as opposed to
// the per-call timeout elapsing.
type WaitError struct {
	Code string
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait failed: %s", e.Code)
}

// Poller waits for a submitted task to stop. Each wait round is bounded by
// waitTimeout; a round timing out is an expected event and just consumes one
// of maxRetries, while any other wait failure aborts immediately. Both knobs
// are independent so changing one never silently changes the total budget.
type Poller struct {
	client      Client
	maxRetries  int
	waitTimeout time.Duration
	logger      zerolog.Logger
}

// NewPoller creates a poller with the given wait budget.
func NewPoller(client Client, maxRetries int, waitTimeout time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		client:      client,
		maxRetries:  maxRetries,
		waitTimeout: waitTimeout,
		logger:      logger,
	}
}

// Await blocks until the task stops, then describes it once. Exhausting the
// retry budget returns ErrWaitRetriesExhausted without a describe call.
func (p *Poller) Await(ctx context.Context, h TaskHandle) (TaskResult, error) {
	retries := 0
	for {
		outcome := p.client.AwaitStopped(ctx, h, p.waitTimeout)
		switch outcome.Status {
		case WaitStopped:
			p.logger.Info().Str("task", h.TaskARN).Msg("task stopped")
			return p.client.Describe(ctx, h)
		case WaitTimedOut:
			retries++
			if retries == p.maxRetries {
				return TaskResult{}, fmt.Errorf("%w after %s",
					ErrWaitRetriesExhausted, time.Duration(retries)*p.waitTimeout)
			}
			p.logger.Info().Str("task", h.TaskARN).
				Int("round", retries).Int("max", p.maxRetries).
				Msg("task still running, waiting again")
		case WaitFailed:
			return TaskResult{}, &WaitError{Code: outcome.Code}
		}
	}
}
