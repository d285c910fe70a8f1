package ecsrun

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything one run needs. Built once in main and passed down;
// nothing mutates it after Validate.
type Config struct {
	Region      string `toml:"region"`
	Profile     string `toml:"profile"`
	EndpointURL string `toml:"endpoint_url"` // custom endpoint for simulator mode

	Cluster        string   `toml:"cluster"`
	TaskDefinition string   `toml:"task_definition"`
	ContainerName  string   `toml:"container"`
	Command        []string `toml:"command"`
	Count          int32    `toml:"count"`
	Subnets        []string `toml:"subnets"`
	SecurityGroups []string `toml:"security_groups"`
	AssignPublicIP bool     `toml:"public_ip"`

	LaunchRetries int           `toml:"launch_retries"`
	LaunchBackoff time.Duration `toml:"-"`
	WaitRetries   int           `toml:"wait_retries"`
	WaitTimeout   time.Duration `toml:"-"`
	PollInterval  time.Duration `toml:"-"`

	LogGroup        string `toml:"log_group"`
	LogStreamPrefix string `toml:"log_stream_prefix"`
	TailLines       int32  `toml:"tail_lines"`

	Verbose bool `toml:"verbose"`
}

// Durations are kept as strings in the TOML file ("60s", "10m") and parsed
// into the Config after decoding.
type fileDurations struct {
	LaunchBackoff string `toml:"launch_backoff"`
	WaitTimeout   string `toml:"wait_timeout"`
	PollInterval  string `toml:"poll_interval"`
}

// DefaultConfig returns the built-in defaults: 5 launch attempts 60s apart,
// 12 wait rounds of 10 minutes each (a two hour total wait budget).
func DefaultConfig() Config {
	return Config{
		Count:           1,
		LaunchRetries:   5,
		LaunchBackoff:   60 * time.Second,
		WaitRetries:     12,
		WaitTimeout:     10 * time.Minute,
		PollInterval:    6 * time.Second,
		LogStreamPrefix: "ecs",
	}
}

// ConfigFromEnv applies ECS_RUN_TASK_* environment variables on top of c.
func ConfigFromEnv(c Config) Config {
	c.Region = envOrDefault("AWS_REGION", c.Region)
	c.Profile = envOrDefault("AWS_PROFILE", c.Profile)
	c.EndpointURL = envOrDefault("ECS_RUN_TASK_ENDPOINT_URL", c.EndpointURL)
	c.Cluster = envOrDefault("ECS_RUN_TASK_CLUSTER", c.Cluster)
	c.TaskDefinition = envOrDefault("ECS_RUN_TASK_DEFINITION", c.TaskDefinition)
	c.ContainerName = envOrDefault("ECS_RUN_TASK_CONTAINER", c.ContainerName)
	if v := os.Getenv("ECS_RUN_TASK_SUBNETS"); v != "" {
		c.Subnets = splitCSV(v)
	}
	if v := os.Getenv("ECS_RUN_TASK_SECURITY_GROUPS"); v != "" {
		c.SecurityGroups = splitCSV(v)
	}
	if os.Getenv("ECS_RUN_TASK_PUBLIC_IP") == "true" {
		c.AssignPublicIP = true
	}
	c.LaunchRetries = envInt("ECS_RUN_TASK_LAUNCH_RETRIES", c.LaunchRetries)
	c.WaitRetries = envInt("ECS_RUN_TASK_WAIT_RETRIES", c.WaitRetries)
	c.LaunchBackoff = envDuration("ECS_RUN_TASK_LAUNCH_BACKOFF", c.LaunchBackoff)
	c.WaitTimeout = envDuration("ECS_RUN_TASK_WAIT_TIMEOUT", c.WaitTimeout)
	c.LogGroup = envOrDefault("ECS_RUN_TASK_LOG_GROUP", c.LogGroup)
	c.LogStreamPrefix = envOrDefault("ECS_RUN_TASK_LOG_STREAM_PREFIX", c.LogStreamPrefix)
	return c
}

// LoadConfigFile merges a TOML config file into c. Values already set in the
// file win over c; callers layer flags on top afterwards.
func LoadConfigFile(path string, c Config) (Config, error) {
	merged := c
	meta, err := toml.DecodeFile(path, &merged)
	if err != nil {
		return c, fmt.Errorf("config file %s: %w", path, err)
	}

	var durs fileDurations
	if _, err := toml.DecodeFile(path, &durs); err != nil {
		return c, fmt.Errorf("config file %s: %w", path, err)
	}
	if durs.LaunchBackoff != "" {
		if merged.LaunchBackoff, err = time.ParseDuration(durs.LaunchBackoff); err != nil {
			return c, fmt.Errorf("config file %s: launch_backoff: %w", path, err)
		}
	}
	if durs.WaitTimeout != "" {
		if merged.WaitTimeout, err = time.ParseDuration(durs.WaitTimeout); err != nil {
			return c, fmt.Errorf("config file %s: wait_timeout: %w", path, err)
		}
	}
	if durs.PollInterval != "" {
		if merged.PollInterval, err = time.ParseDuration(durs.PollInterval); err != nil {
			return c, fmt.Errorf("config file %s: poll_interval: %w", path, err)
		}
	}

	for _, key := range meta.Undecoded() {
		switch key.String() {
		case "launch_backoff", "wait_timeout", "poll_interval":
		default:
			return c, fmt.Errorf("config file %s: unknown key %q", path, key)
		}
	}
	return merged, nil
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.Cluster == "" {
		return fmt.Errorf("ECS cluster name is required")
	}
	if c.TaskDefinition == "" {
		return fmt.Errorf("task definition is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("container name is required")
	}
	if len(c.Subnets) == 0 {
		return fmt.Errorf("at least one subnet is required")
	}
	if c.LaunchRetries < 1 {
		return fmt.Errorf("launch retries must be at least 1")
	}
	if c.WaitRetries < 1 {
		return fmt.Errorf("wait retries must be at least 1")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	return nil
}

// Submission builds the immutable RunTask request from the config.
func (c Config) Submission() Submission {
	sub := Submission{
		Cluster:        c.Cluster,
		TaskDefinition: c.TaskDefinition,
		Count:          c.Count,
		Subnets:        c.Subnets,
		SecurityGroups: c.SecurityGroups,
		AssignPublicIP: c.AssignPublicIP,
	}
	if len(c.Command) > 0 {
		sub.Overrides = []ContainerOverride{{Name: c.ContainerName, Command: c.Command}}
	}
	return sub
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
