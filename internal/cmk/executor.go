package cmk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lunacloud/stackctl/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	DefaultBinary = "cmk"

	// MaxRetries is the number of re-executions after the first failed
	// attempt, so a command runs at most MaxRetries+1 times.
	MaxRetries = 5
)

// ErrAlreadyExists reports that the provider rejected a create because the
// resource name is already taken. Callers re-run their lookup instead of
// retrying the create.
var ErrAlreadyExists = errors.New("resource already exists")

// APIError is returned once every attempt of a command has failed.
type APIError struct {
	Command  string
	Attempts int
	Output   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cmk %s failed after %d attempts: %s", e.Command, e.Attempts, e.Output)
}

// Result is the kind-keyed JSON document printed by cmk. An empty response
// body parses as an empty result, not an error.
type Result map[string]json.RawMessage

// Decode unmarshals the section stored under key into value. A missing
// section leaves value untouched.
func (r Result) Decode(key string, value any) error {
	section, ok := r[key]
	if !ok {
		return nil
	}

	if err := json.Unmarshal(section, value); err != nil {
		return fmt.Errorf("failed to decode %q section: %w", key, err)
	}

	return nil
}

// Runner executes one CLI invocation. The default implementation shells out;
// tests plug in a scripted one.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	return stdout.Bytes(), stderr.Bytes(), err
}

type Config struct {
	Binary  string
	Runner  Runner
	Sleep   func(ctx context.Context, delay time.Duration) error
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
}

// Executor runs cmk commands in JSON output mode and retries transient
// failures with exponential backoff before giving up.
type Executor struct {
	binary  string
	runner  Runner
	sleep   func(ctx context.Context, delay time.Duration) error
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

func New(config Config) *Executor {
	executor := &Executor{
		binary:  config.Binary,
		runner:  config.Runner,
		sleep:   config.Sleep,
		log:     config.Logger.With().Str("component", "cmk").Logger(),
		metrics: config.Metrics,
	}

	if executor.binary == "" {
		executor.binary = DefaultBinary
	}

	if executor.runner == nil {
		executor.runner = execRunner{}
	}

	if executor.sleep == nil {
		executor.sleep = SleepContext
	}

	if executor.metrics == nil {
		executor.metrics = telemetry.NewMetrics()
	}

	return executor
}

// Execute runs a single cmk command and returns the parsed JSON document.
// Non-zero exits and malformed output are retried up to MaxRetries times
// with 2, 4, 8, 16 and 32 second delays. A duplicate-name diagnostic
// short-circuits to ErrAlreadyExists without retrying, since re-running the
// create can never succeed.
func (e *Executor) Execute(ctx context.Context, args ...string) (Result, error) {
	command := strings.Join(args, " ")
	invocation := append([]string{"-o", "json"}, args...)

	e.metrics.APICalls.WithLabelValues(commandLabel(args)).Inc()

	var lastOutput string
	for attempt := 0; ; attempt++ {
		stdout, stderr, err := e.runner.Run(ctx, e.binary, invocation...)
		if err == nil {
			trimmed := bytes.TrimSpace(stdout)
			if len(trimmed) == 0 {
				return Result{}, nil
			}

			result := Result{}
			if jsonErr := json.Unmarshal(trimmed, &result); jsonErr == nil {
				return result, nil
			}

			lastOutput = fmt.Sprintf("malformed json: %.200s", trimmed)
		} else {
			lastOutput = diagnostic(stdout, stderr, err)
			if isAlreadyExists(lastOutput) {
				return nil, fmt.Errorf("cmk %s: %w", command, ErrAlreadyExists)
			}
		}

		if attempt == MaxRetries {
			break
		}

		delay := backoff(attempt)

		e.metrics.APIRetries.Inc()
		e.log.Warn().
			Str("command", command).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Str("output", lastOutput).
			Msg("retrying cmk call")

		if err := e.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("failed to wait before retry: %w", err)
		}
	}

	e.metrics.APIFailures.Inc()

	return nil, &APIError{Command: command, Attempts: MaxRetries + 1, Output: lastOutput}
}

func backoff(attempt int) time.Duration {
	return time.Duration(2<<attempt) * time.Second
}

// commandLabel keeps the metrics label space bounded by using only the verb
// and resource kind, never resource-specific arguments.
func commandLabel(args []string) string {
	if len(args) >= 2 {
		return args[0] + " " + args[1]
	}

	return strings.Join(args, " ")
}

func diagnostic(stdout, stderr []byte, err error) string {
	if message := strings.TrimSpace(string(stderr)); message != "" {
		return message
	}

	if message := strings.TrimSpace(string(stdout)); message != "" {
		return message
	}

	return err.Error()
}

func isAlreadyExists(output string) bool {
	return strings.Contains(strings.ToLower(output), "already exist")
}

// SleepContext waits for the delay unless the context ends first.
func SleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
