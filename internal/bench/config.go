package bench

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"apibench/internal/adapter"
)

// Limits on the request count flag.
const (
	MinIterations = 1
	MaxIterations = 10000
)

// Config describes one benchmark run. It is validated once up front;
// a Run can only be built from a valid Config.
type Config struct {
	Protocols  []string      `json:"protocols"`
	Operations []string      `json:"operations"`
	Iterations int           `json:"iterations"`
	Sequential bool          `json:"sequential"`
	Workers    int           `json:"workers"`
	Timeout    time.Duration `json:"timeout"`

	// User IDs are drawn uniformly from [IDMin, IDMax], one per
	// iteration, shared across all groups so every protocol hits the
	// same targets.
	IDMin int64 `json:"id_min"`
	IDMax int64 `json:"id_max"`

	// Seed pins the ID sequence; 0 means time-seeded.
	Seed int64 `json:"seed,omitempty"`
}

// ConfigError aborts before anything is dispatched.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectivityError means a target failed the pre-flight probe; the
// whole run aborts before any call is dispatched.
type ConnectivityError struct {
	Protocol string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s target unreachable: %v", e.Protocol, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (c Config) Validate() error {
	if len(c.Protocols) == 0 {
		return configErrorf("at least one protocol required")
	}
	if len(c.Operations) == 0 {
		return configErrorf("at least one operation required")
	}
	for _, op := range c.Operations {
		if !adapter.IsOperation(op) {
			return configErrorf("unknown operation %q (known: %s)", op, strings.Join(adapter.Operations, ", "))
		}
	}
	if c.Iterations < MinIterations || c.Iterations > MaxIterations {
		return configErrorf("iterations must be in [%d, %d], got %d", MinIterations, MaxIterations, c.Iterations)
	}
	if !c.Sequential && c.Workers < 1 {
		return configErrorf("worker count must be >= 1, got %d", c.Workers)
	}
	if c.Timeout < 0 {
		return configErrorf("timeout must not be negative")
	}
	if c.IDMin < 1 || c.IDMax < c.IDMin {
		return configErrorf("user ID range must satisfy 1 <= min <= max, got %d-%d", c.IDMin, c.IDMax)
	}
	return nil
}

// ParseIDRange parses a "min-max" flag value.
func ParseIDRange(s string) (int64, int64, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, configErrorf("user ID range %q: want \"min-max\"", s)
	}
	min, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, configErrorf("user ID range %q: bad min: %v", s, err)
	}
	max, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, configErrorf("user ID range %q: bad max: %v", s, err)
	}
	if min < 1 || max < min {
		return 0, 0, configErrorf("user ID range %q: want 1 <= min <= max", s)
	}
	return min, max, nil
}
