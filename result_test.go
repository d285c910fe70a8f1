package ecsrun

import (
	"strings"
	"testing"
)

func TestMapResult(t *testing.T) {
	tests := []struct {
		name     string
		exitCode *int32
		wantCode int
	}{
		{"success", exitCode(0), ExitSuccess},
		{"failure one", exitCode(1), 1},
		{"sigkill style", exitCode(137), 137},
		{"exit code forty two", exitCode(42), 42},
		{"missing exit code", nil, ExitMissingContainerCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := TaskResult{TaskARN: "arn:task/x", ExitCode: tt.exitCode}
			out := MapResult(res, "")
			if out.Code != tt.wantCode {
				t.Fatalf("got code %d, want %d", out.Code, tt.wantCode)
			}
			if out.Message == "" {
				t.Fatal("every outcome needs a message")
			}
		})
	}
}

func TestMapResult_Idempotent(t *testing.T) {
	res := TaskResult{TaskARN: "arn:task/x", ExitCode: exitCode(137)}
	first := MapResult(res, "https://example/logs")
	second := MapResult(res, "https://example/logs")
	if first != second {
		t.Fatalf("mapping is not idempotent: %+v vs %+v", first, second)
	}
}

func TestMapResult_IncludesLogRef(t *testing.T) {
	res := TaskResult{TaskARN: "arn:task/x", ExitCode: exitCode(1)}
	out := MapResult(res, "https://example/logs")
	if !strings.Contains(out.Message, "https://example/logs") {
		t.Fatalf("message missing log reference: %q", out.Message)
	}

	out = MapResult(TaskResult{TaskARN: "arn:task/x"}, "https://example/logs")
	if !strings.Contains(out.Message, "https://example/logs") {
		t.Fatalf("anomaly message missing log reference: %q", out.Message)
	}
}

func TestMapResult_MissingExitCodeIsNotSuccess(t *testing.T) {
	out := MapResult(TaskResult{TaskARN: "arn:task/x"}, "")
	if out.Code == ExitSuccess {
		t.Fatal("missing exit code must never map to success")
	}
	if !strings.Contains(out.Message, "no container exit code") {
		t.Fatalf("message should flag the anomaly: %q", out.Message)
	}
}
