package ecsrun

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// Process exit codes. 0 and 1 follow convention, 253 and 255 distinguish the
// two exhaustion paths, and 254 is the sentinel for a stopped task whose
// description carries no container exit code. A container exiting with 253,
// 254 or 255 itself is indistinguishable from these; the collision is
// documented in the usage text.
const (
	ExitSuccess              = 0
	ExitFatal                = 1
	ExitLaunchExhausted      = 253
	ExitMissingContainerCode = 254
	ExitWaitExhausted        = 255
)

// Outcome is the final, externally observable result of a run.
type Outcome struct {
	Code    int
	Message string
}

// MapResult translates a stopped task's description into the process
// outcome. Pure: same result in, same outcome out. logRef is the
// operator-facing log reference and may be empty.
func MapResult(res TaskResult, logRef string) Outcome {
	if res.ExitCode == nil {
		msg := fmt.Sprintf("task %s stopped but reported no container exit code (reason: %s)",
			res.TaskARN, aws.ToString(res.Raw.StoppedReason))
		return Outcome{Code: ExitMissingContainerCode, Message: withLogRef(msg, logRef)}
	}

	code := int(*res.ExitCode)
	if code == 0 {
		return Outcome{Code: ExitSuccess, Message: withLogRef("task completed successfully", logRef)}
	}
	msg := fmt.Sprintf("task %s exited with code %d (reason: %s)",
		res.TaskARN, code, aws.ToString(res.Raw.StoppedReason))
	return Outcome{Code: code, Message: withLogRef(msg, logRef)}
}

func withLogRef(msg, logRef string) string {
	if logRef == "" {
		return msg
	}
	return msg + "\nlogs: " + logRef
}
