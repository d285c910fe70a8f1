package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"

	ecsrun "github.com/tlrobinson/ecs-run-task"
)

func main() {
	cfg := ecsrun.ConfigFromEnv(ecsrun.DefaultConfig())

	configPath := flag.String("config", "", "TOML config file")
	cluster := flag.String("cluster", cfg.Cluster, "ECS cluster name")
	taskDef := flag.String("task-definition", cfg.TaskDefinition, "task definition family[:revision] or ARN")
	container := flag.String("container", cfg.ContainerName, "container name for command override and log stream")
	count := flag.Int("count", int(cfg.Count), "number of tasks to run")
	subnets := flag.String("subnets", strings.Join(cfg.Subnets, ","), "comma-separated subnet IDs")
	securityGroups := flag.String("security-groups", strings.Join(cfg.SecurityGroups, ","), "comma-separated security group IDs")
	publicIP := flag.Bool("public-ip", cfg.AssignPublicIP, "assign a public IP to the task")
	launchRetries := flag.Int("launch-retries", cfg.LaunchRetries, "max RunTask attempts on retryable rejections")
	launchBackoff := flag.Duration("launch-backoff", cfg.LaunchBackoff, "delay between RunTask attempts")
	waitRetries := flag.Int("wait-retries", cfg.WaitRetries, "max wait rounds before giving up")
	waitTimeout := flag.Duration("wait-timeout", cfg.WaitTimeout, "per-round wait timeout")
	region := flag.String("region", cfg.Region, "AWS region")
	profile := flag.String("profile", cfg.Profile, "AWS credential profile")
	endpointURL := flag.String("endpoint-url", cfg.EndpointURL, "custom API endpoint (simulator mode)")
	logGroup := flag.String("log-group", cfg.LogGroup, "CloudWatch log group of the task definition")
	logStreamPrefix := flag.String("log-stream-prefix", cfg.LogStreamPrefix, "awslogs stream prefix of the task definition")
	tail := flag.Int("tail", int(cfg.TailLines), "print the last N log events after the task stops")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	verbose := flag.Bool("verbose", cfg.Verbose, "debug logging plus raw API responses")
	flag.Usage = usage
	flag.Parse()

	if *configPath != "" {
		// Precedence: flags > environment > file > defaults.
		fileCfg, err := ecsrun.LoadConfigFile(*configPath, ecsrun.DefaultConfig())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = ecsrun.ConfigFromEnv(fileCfg)
		flag.Visit(func(f *flag.Flag) { applyFlag(&cfg, f) })
	} else {
		cfg.Cluster = *cluster
		cfg.TaskDefinition = *taskDef
		cfg.ContainerName = *container
		cfg.Count = int32(*count)
		cfg.Subnets = splitCSV(*subnets)
		cfg.SecurityGroups = splitCSV(*securityGroups)
		cfg.AssignPublicIP = *publicIP
		cfg.LaunchRetries = *launchRetries
		cfg.LaunchBackoff = *launchBackoff
		cfg.WaitRetries = *waitRetries
		cfg.WaitTimeout = *waitTimeout
		cfg.Region = *region
		cfg.Profile = *profile
		cfg.EndpointURL = *endpointURL
		cfg.LogGroup = *logGroup
		cfg.LogStreamPrefix = *logStreamPrefix
		cfg.TailLines = int32(*tail)
	}
	cfg.Verbose = *verbose
	if args := flag.Args(); len(args) > 0 {
		cfg.Command = args
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Str("component", "ecs-run-task").
		Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// In-flight waits and backoff sleeps are abandoned on SIGINT/SIGTERM;
	// the task itself keeps running on the cluster.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := ecsrun.NewAWSClients(ctx, cfg.Region, cfg.Profile, cfg.EndpointURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AWS clients")
	}

	if cfg.Verbose {
		identity, err := clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			logger.Warn().Err(err).Msg("caller identity check failed")
		} else {
			logger.Debug().Str("arn", aws.ToString(identity.Arn)).Msg("caller identity")
		}
	}

	var tailer *ecsrun.LogTailer
	if cfg.LogGroup != "" {
		tailer = ecsrun.NewLogTailer(clients.CloudWatch, cfg.LogGroup)
	}

	client := ecsrun.NewClient(clients, cfg.PollInterval)
	runner := ecsrun.NewRunner(cfg, client, tailer, logger)

	outcome := runner.Run(ctx)
	if outcome.Code == 0 {
		fmt.Fprintln(os.Stderr, outcome.Message)
	} else {
		fmt.Fprintln(os.Stderr, "error: "+outcome.Message)
	}
	os.Exit(outcome.Code)
}

// applyFlag copies one explicitly-set flag over the file-derived config.
func applyFlag(cfg *ecsrun.Config, f *flag.Flag) {
	v := f.Value.String()
	switch f.Name {
	case "cluster":
		cfg.Cluster = v
	case "task-definition":
		cfg.TaskDefinition = v
	case "container":
		cfg.ContainerName = v
	case "count":
		cfg.Count = int32(atoi(v, 1))
	case "subnets":
		cfg.Subnets = splitCSV(v)
	case "security-groups":
		cfg.SecurityGroups = splitCSV(v)
	case "public-ip":
		cfg.AssignPublicIP = v == "true"
	case "launch-retries":
		cfg.LaunchRetries = atoi(v, cfg.LaunchRetries)
	case "launch-backoff":
		cfg.LaunchBackoff = parseDuration(v, cfg.LaunchBackoff)
	case "wait-retries":
		cfg.WaitRetries = atoi(v, cfg.WaitRetries)
	case "wait-timeout":
		cfg.WaitTimeout = parseDuration(v, cfg.WaitTimeout)
	case "region":
		cfg.Region = v
	case "profile":
		cfg.Profile = v
	case "endpoint-url":
		cfg.EndpointURL = v
	case "log-group":
		cfg.LogGroup = v
	case "log-stream-prefix":
		cfg.LogStreamPrefix = v
	case "tail":
		cfg.TailLines = int32(atoi(v, 0))
	}
}

func atoi(s string, def int) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return def
	}
	return n
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: ecs-run-task [flags] [-- command...]

Runs a one-off ECS Fargate task, waits for it to stop, and exits with the
task's container exit code.

Exit codes:
  0    container exited 0
  1    fatal rejection, wait failure, or transport error
  253  launch retries exhausted on a retryable rejection
  254  task stopped without reporting a container exit code
  255  wait retries exhausted (task never stopped in budget)
  N    the container's own nonzero exit code otherwise

Flags:`)
	flag.PrintDefaults()
}
