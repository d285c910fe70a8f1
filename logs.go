package ecsrun

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// TaskIDFromARN extracts the task ID from a task ARN.
// ARN format: arn:aws:ecs:region:account:task/cluster/taskid
func TaskIDFromARN(arn string) string {
	parts := strings.Split(arn, "/")
	return parts[len(parts)-1]
}

// LogStreamName builds the awslogs stream name for a task's container:
// prefix/container/taskID.
func LogStreamName(prefix, container, taskARN string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, container, TaskIDFromARN(taskARN))
}

// ConsoleURL builds the CloudWatch console link for a task's log stream.
// Empty when no log group is configured or no task was ever placed.
func ConsoleURL(region, logGroup, logStream string) string {
	if logGroup == "" || logStream == "" {
		return ""
	}
	return fmt.Sprintf(
		"https://console.aws.amazon.com/cloudwatch/home?region=%s#logEventViewer:group=%s;stream=%s",
		region, url.QueryEscape(logGroup), url.QueryEscape(logStream))
}

// LogEvent is one line of container output.
type LogEvent struct {
	Timestamp time.Time
	Message   string
}

// LogTailer fetches the tail of a task's CloudWatch log stream after the
// task has stopped. Best-effort: callers log failures and move on, the run's
// exit code is never affected.
type LogTailer struct {
	cw       *cloudwatchlogs.Client
	logGroup string
}

// NewLogTailer creates a tailer for the given log group.
func NewLogTailer(cw *cloudwatchlogs.Client, logGroup string) *LogTailer {
	return &LogTailer{cw: cw, logGroup: logGroup}
}

// Tail returns the last limit events of the stream, oldest first.
func (t *LogTailer) Tail(ctx context.Context, stream string, limit int32) ([]LogEvent, error) {
	result, err := t.cw.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(t.logGroup),
		LogStreamName: aws.String(stream),
		StartFromHead: aws.Bool(false),
		Limit:         aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("get log events: %w", err)
	}

	events := make([]LogEvent, 0, len(result.Events))
	for _, e := range result.Events {
		events = append(events, LogEvent{
			Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)).UTC(),
			Message:   aws.ToString(e.Message),
		})
	}
	return events, nil
}
