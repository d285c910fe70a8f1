package ecsrun

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LaunchRetries != 5 || cfg.LaunchBackoff != 60*time.Second {
		t.Fatalf("wrong launch defaults: %+v", cfg)
	}
	if cfg.WaitRetries != 12 || cfg.WaitTimeout != 10*time.Minute {
		t.Fatalf("wrong wait defaults: %+v", cfg)
	}
	// Total wait budget is the product of two independent knobs.
	if time.Duration(cfg.WaitRetries)*cfg.WaitTimeout != 2*time.Hour {
		t.Fatal("default wait budget should be two hours")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ECS_RUN_TASK_CLUSTER", "staging")
	t.Setenv("ECS_RUN_TASK_SUBNETS", "subnet-1, subnet-2,")
	t.Setenv("ECS_RUN_TASK_LAUNCH_RETRIES", "3")
	t.Setenv("ECS_RUN_TASK_WAIT_TIMEOUT", "5m")

	cfg := ConfigFromEnv(DefaultConfig())
	if cfg.Cluster != "staging" {
		t.Fatalf("cluster: %s", cfg.Cluster)
	}
	if len(cfg.Subnets) != 2 || cfg.Subnets[1] != "subnet-2" {
		t.Fatalf("subnets: %v", cfg.Subnets)
	}
	if cfg.LaunchRetries != 3 {
		t.Fatalf("launch retries: %d", cfg.LaunchRetries)
	}
	if cfg.WaitTimeout != 5*time.Minute {
		t.Fatalf("wait timeout: %s", cfg.WaitTimeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
cluster = "prod"
task_definition = "batch-job:3"
container = "main"
subnets = ["subnet-1"]
launch_retries = 7
launch_backoff = "30s"
wait_timeout = "15m"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cluster != "prod" || cfg.TaskDefinition != "batch-job:3" {
		t.Fatalf("wrong config: %+v", cfg)
	}
	if cfg.LaunchRetries != 7 {
		t.Fatalf("launch retries: %d", cfg.LaunchRetries)
	}
	if cfg.LaunchBackoff != 30*time.Second {
		t.Fatalf("launch backoff: %s", cfg.LaunchBackoff)
	}
	if cfg.WaitTimeout != 15*time.Minute {
		t.Fatalf("wait timeout: %s", cfg.WaitTimeout)
	}
	// Untouched keys keep their defaults.
	if cfg.WaitRetries != 12 {
		t.Fatalf("wait retries: %d", cfg.WaitRetries)
	}
}

func TestLoadConfigFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("clutser = \"typo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path, DefaultConfig()); err == nil {
		t.Fatal("expected error on unknown key")
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Cluster = "prod"
	valid.TaskDefinition = "batch-job"
	valid.ContainerName = "main"
	valid.Subnets = []string{"subnet-1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no cluster", func(c *Config) { c.Cluster = "" }},
		{"no task definition", func(c *Config) { c.TaskDefinition = "" }},
		{"no container", func(c *Config) { c.ContainerName = "" }},
		{"no subnets", func(c *Config) { c.Subnets = nil }},
		{"zero launch retries", func(c *Config) { c.LaunchRetries = 0 }},
		{"zero wait retries", func(c *Config) { c.WaitRetries = 0 }},
		{"zero wait timeout", func(c *Config) { c.WaitTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSubmission(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster = "prod"
	cfg.TaskDefinition = "batch-job"
	cfg.ContainerName = "main"
	cfg.Subnets = []string{"subnet-1"}

	sub := cfg.Submission()
	if len(sub.Overrides) != 0 {
		t.Fatal("no override without a command")
	}

	cfg.Command = []string{"python", "job.py", "--fast"}
	sub = cfg.Submission()
	if len(sub.Overrides) != 1 || sub.Overrides[0].Name != "main" {
		t.Fatalf("wrong overrides: %+v", sub.Overrides)
	}
	if len(sub.Overrides[0].Command) != 3 || sub.Overrides[0].Command[2] != "--fast" {
		t.Fatalf("command order not preserved: %v", sub.Overrides[0].Command)
	}
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b,c", 3},
		{" a , b ,", 2},
		{",,", 0},
	}
	for _, tt := range tests {
		if got := splitCSV(tt.in); len(got) != tt.want {
			t.Fatalf("splitCSV(%q) = %v, want %d parts", tt.in, got, tt.want)
		}
	}
}
