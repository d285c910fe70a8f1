// Package ecsrun launches a one-off ECS Fargate task, waits for it to stop,
// and maps the container's exit code to a process exit code. Transient
// resource-exhaustion rejections from RunTask are retried on a fixed backoff;
// wait timeouts are retried on a separate budget; everything else fails fast.
package ecsrun

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsecs "github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/smithy-go"
)

// Submission describes one RunTask invocation. Built once per run, never
// mutated afterwards.
type Submission struct {
	Cluster        string
	TaskDefinition string
	Count          int32
	Overrides      []ContainerOverride
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// ContainerOverride replaces a container's command for this run only.
type ContainerOverride struct {
	Name    string
	Command []string
}

// Failure is one API-reported reason a task could not be placed.
type Failure struct {
	Reason string
	Detail string
}

// SubmissionOutcome is the result of a single submit attempt. Exactly one of
// TaskARN or Failures is set; an outcome with neither violates the API
// contract and is treated as fatal by the launcher.
type SubmissionOutcome struct {
	TaskARN  string
	Failures []Failure
}

// TaskHandle identifies a submitted task for the rest of its lifetime.
type TaskHandle struct {
	TaskARN string
	Cluster string
}

// WaitStatus classifies the outcome of one bounded wait call.
type WaitStatus int

const (
	// WaitStopped means the task reached a terminal state.
	WaitStopped WaitStatus = iota
	// WaitTimedOut means the per-call timeout elapsed while the task was
	// still plausibly running. Retryable by the poller.
	WaitTimedOut
	// WaitFailed means the wait itself broke (permissions, task vanished).
	// Never retried.
	WaitFailed
)

// WaitOutcome is the result of one AwaitStopped call. Code is set only for
// WaitFailed.
type WaitOutcome struct {
	Status WaitStatus
	Code   string
}

// TaskResult is the described state of a stopped task. A nil ExitCode means
// the description was incomplete and must be treated as an anomaly.
type TaskResult struct {
	TaskARN  string
	ExitCode *int32
	Raw      ecstypes.Task
}

// Client is the capability-restricted facade over the orchestration API.
// Implementations do no retrying or interpretation of their own.
type Client interface {
	// Submit makes one RunTask call. API-reported placement failures come
	// back inside the outcome; a non-nil error is a transport-level
	// failure and is fatal to the caller.
	Submit(ctx context.Context, sub Submission) (SubmissionOutcome, error)

	// AwaitStopped blocks until the task reaches STOPPED or timeout
	// elapses. The timeout elapsing is reported as WaitTimedOut, not as an
	// error.
	AwaitStopped(ctx context.Context, h TaskHandle, timeout time.Duration) WaitOutcome

	// Describe returns the current recorded state of the task.
	Describe(ctx context.Context, h TaskHandle) (TaskResult, error)
}

// ecsClient implements Client against the AWS ECS API.
type ecsClient struct {
	aws          *AWSClients
	pollInterval time.Duration
}

// NewClient wraps AWS SDK clients in the Client facade. pollInterval governs
// how often AwaitStopped re-describes the task; zero means the default 6s.
func NewClient(clients *AWSClients, pollInterval time.Duration) Client {
	if pollInterval <= 0 {
		pollInterval = 6 * time.Second
	}
	return &ecsClient{aws: clients, pollInterval: pollInterval}
}

func (c *ecsClient) Submit(ctx context.Context, sub Submission) (SubmissionOutcome, error) {
	count := sub.Count
	if count <= 0 {
		count = 1
	}

	assignPublicIP := ecstypes.AssignPublicIpDisabled
	if sub.AssignPublicIP {
		assignPublicIP = ecstypes.AssignPublicIpEnabled
	}

	var overrides []ecstypes.ContainerOverride
	for _, o := range sub.Overrides {
		co := ecstypes.ContainerOverride{Name: aws.String(o.Name)}
		if len(o.Command) > 0 {
			co.Command = o.Command
		}
		overrides = append(overrides, co)
	}

	input := &awsecs.RunTaskInput{
		Cluster:        aws.String(sub.Cluster),
		TaskDefinition: aws.String(sub.TaskDefinition),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(count),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        sub.Subnets,
				SecurityGroups: sub.SecurityGroups,
				AssignPublicIp: assignPublicIP,
			},
		},
	}
	if len(overrides) > 0 {
		input.Overrides = &ecstypes.TaskOverride{ContainerOverrides: overrides}
	}

	result, err := c.aws.ECS.RunTask(ctx, input)
	if err != nil {
		return SubmissionOutcome{}, err
	}

	if len(result.Tasks) > 0 {
		return SubmissionOutcome{TaskARN: aws.ToString(result.Tasks[0].TaskArn)}, nil
	}

	outcome := SubmissionOutcome{}
	for _, f := range result.Failures {
		outcome.Failures = append(outcome.Failures, Failure{
			Reason: aws.ToString(f.Reason),
			Detail: aws.ToString(f.Detail),
		})
	}
	return outcome, nil
}

func (c *ecsClient) AwaitStopped(ctx context.Context, h TaskHandle, timeout time.Duration) WaitOutcome {
	deadline := time.After(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return WaitOutcome{Status: WaitFailed, Code: ctx.Err().Error()}
		case <-deadline:
			return WaitOutcome{Status: WaitTimedOut}
		case <-ticker.C:
			result, err := c.aws.ECS.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
				Cluster: aws.String(h.Cluster),
				Tasks:   []string{h.TaskARN},
			})
			if err != nil {
				return WaitOutcome{Status: WaitFailed, Code: apiErrorCode(err)}
			}
			if len(result.Failures) > 0 {
				// DescribeTasks reports a vanished task as a failure
				// entry (reason MISSING), not an error.
				return WaitOutcome{Status: WaitFailed, Code: aws.ToString(result.Failures[0].Reason)}
			}
			if len(result.Tasks) == 0 {
				continue
			}
			if aws.ToString(result.Tasks[0].LastStatus) == "STOPPED" {
				return WaitOutcome{Status: WaitStopped}
			}
		}
	}
}

func (c *ecsClient) Describe(ctx context.Context, h TaskHandle) (TaskResult, error) {
	result, err := c.aws.ECS.DescribeTasks(ctx, &awsecs.DescribeTasksInput{
		Cluster: aws.String(h.Cluster),
		Tasks:   []string{h.TaskARN},
	})
	if err != nil {
		return TaskResult{}, err
	}
	if len(result.Tasks) == 0 {
		reason := "task not found"
		if len(result.Failures) > 0 {
			reason = aws.ToString(result.Failures[0].Reason)
		}
		return TaskResult{}, errors.New("describe task: " + reason)
	}

	task := result.Tasks[0]
	res := TaskResult{TaskARN: h.TaskARN, Raw: task}
	for _, container := range task.Containers {
		if container.ExitCode != nil {
			code := aws.ToInt32(container.ExitCode)
			res.ExitCode = &code
			break
		}
	}
	return res, nil
}

// apiErrorCode extracts the AWS error code for operator-facing messages.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return err.Error()
}
