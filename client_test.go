package ecsrun

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

// fakeClient scripts the orchestration API for tests. Submit and
// AwaitStopped consume their outcome slices in order, repeating the last
// entry once exhausted.
type fakeClient struct {
	submits     []SubmissionOutcome
	submitErr   error
	waits       []WaitOutcome
	describe    TaskResult
	describeErr error

	submitCalls   int
	waitCalls     int
	describeCalls int
}

func (f *fakeClient) Submit(_ context.Context, _ Submission) (SubmissionOutcome, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return SubmissionOutcome{}, f.submitErr
	}
	return takeScripted(f.submits, f.submitCalls), nil
}

func (f *fakeClient) AwaitStopped(_ context.Context, _ TaskHandle, _ time.Duration) WaitOutcome {
	f.waitCalls++
	return takeScripted(f.waits, f.waitCalls)
}

func (f *fakeClient) Describe(_ context.Context, _ TaskHandle) (TaskResult, error) {
	f.describeCalls++
	if f.describeErr != nil {
		return TaskResult{}, f.describeErr
	}
	return f.describe, nil
}

func takeScripted[T any](s []T, call int) T {
	if call <= len(s) {
		return s[call-1]
	}
	return s[len(s)-1]
}

func submitted(arn string) SubmissionOutcome {
	return SubmissionOutcome{TaskARN: arn}
}

func rejected(reason string) SubmissionOutcome {
	return SubmissionOutcome{Failures: []Failure{{Reason: reason}}}
}

func exitCode(code int32) *int32 {
	return &code
}

func TestAPIErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"}
	if got := apiErrorCode(fmt.Errorf("describe: %w", apiErr)); got != "AccessDeniedException" {
		t.Fatalf("got %q", got)
	}
	if got := apiErrorCode(errors.New("connection refused")); got != "connection refused" {
		t.Fatalf("got %q", got)
	}
}
