package ecsrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Runner wires the launcher, poller and result mapper into one run.
type Runner struct {
	cfg    Config
	client Client
	tailer *LogTailer
	logger zerolog.Logger

	// Out receives the tailed log lines. Defaults to stdout.
	Out io.Writer
}

// NewRunner creates a runner. tailer may be nil when no log group is
// configured.
func NewRunner(cfg Config, client Client, tailer *LogTailer, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, client: client, tailer: tailer, logger: logger, Out: os.Stdout}
}

// Run executes the whole pipeline: submit with retries, wait for the task to
// stop, describe it, and map the container exit code to the process outcome.
// Every terminal path yields an Outcome; cancellation of ctx abandons any
// in-flight wait or backoff sleep and surfaces as a fatal outcome.
func (r *Runner) Run(ctx context.Context) Outcome {
	launcher := NewLauncher(r.client, r.cfg.LaunchRetries, r.cfg.LaunchBackoff, r.logger)
	handle, err := launcher.Launch(ctx, r.cfg.Submission())
	if err != nil {
		if errors.Is(err, ErrLaunchRetriesExhausted) {
			return Outcome{Code: ExitLaunchExhausted, Message: err.Error()}
		}
		return Outcome{Code: ExitFatal, Message: err.Error()}
	}

	logStream := LogStreamName(r.cfg.LogStreamPrefix, r.cfg.ContainerName, handle.TaskARN)
	logRef := ConsoleURL(r.cfg.Region, r.cfg.LogGroup, logStream)

	poller := NewPoller(r.client, r.cfg.WaitRetries, r.cfg.WaitTimeout, r.logger)
	result, err := poller.Await(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrWaitRetriesExhausted) {
			return Outcome{Code: ExitWaitExhausted, Message: withLogRef(err.Error(), logRef)}
		}
		return Outcome{Code: ExitFatal, Message: withLogRef(err.Error(), logRef)}
	}

	if r.cfg.Verbose {
		if raw, err := json.Marshal(result.Raw); err == nil {
			r.logger.Debug().RawJSON("task", raw).Msg("task description")
		}
	}

	r.printTail(ctx, logStream)
	return MapResult(result, logRef)
}

// printTail emits the last lines of the task's log stream. Best-effort.
func (r *Runner) printTail(ctx context.Context, logStream string) {
	if r.tailer == nil || r.cfg.TailLines <= 0 {
		return
	}
	events, err := r.tailer.Tail(ctx, logStream, r.cfg.TailLines)
	if err != nil {
		r.logger.Warn().Err(err).Str("stream", logStream).Msg("failed to tail task logs")
		return
	}
	for _, e := range events {
		fmt.Fprintf(r.Out, "%s %s\n", e.Timestamp.Format("2006-01-02T15:04:05Z"), e.Message)
	}
}
