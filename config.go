package conveyor

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the Conveyor engine.
type Config struct {
	// Concurrency is the maximum number of jobs processed concurrently
	// by the local worker pool.
	Concurrency int `env:"CONVEYOR_CONCURRENCY"`

	// Queues is the list of queues this instance will claim jobs from.
	Queues []string `env:"CONVEYOR_QUEUES" envSeparator:","`

	// LeaseDuration is how long a worker holds a claimed job before the
	// lease expires and the stall sweeper may reclaim it.
	LeaseDuration time.Duration `env:"CONVEYOR_LEASE_DURATION"`

	// PromoteInterval is how often the scheduler sweeps the delay set,
	// promoting jobs whose ReadyAt has elapsed. A shorter interval lowers
	// promotion latency at the cost of more store traffic.
	PromoteInterval time.Duration `env:"CONVEYOR_PROMOTE_INTERVAL"`

	// StallInterval is how often the stall sweeper scans for active jobs
	// whose lease has expired.
	StallInterval time.Duration `env:"CONVEYOR_STALL_INTERVAL"`

	// MaxStalledCount is how many times a job may stall (lease expiry
	// without a worker report) before being dead-lettered. Stalls are
	// counted separately from retry attempts.
	MaxStalledCount int `env:"CONVEYOR_MAX_STALLED_COUNT"`

	// PollInterval is how often idle workers poll for new jobs when not
	// using blocking acquire.
	PollInterval time.Duration `env:"CONVEYOR_POLL_INTERVAL"`

	// DefaultJobTimeout bounds handler execution for jobs that do not set
	// a per-job timeout. Zero leaves such jobs unbounded.
	DefaultJobTimeout time.Duration `env:"CONVEYOR_DEFAULT_JOB_TIMEOUT"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `env:"CONVEYOR_SHUTDOWN_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		Queues:          []string{"default"},
		LeaseDuration:   30 * time.Second,
		PromoteInterval: time.Second,
		StallInterval:   5 * time.Second,
		MaxStalledCount: 1,
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// FromEnv returns DefaultConfig overridden by CONVEYOR_* environment
// variables.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("conveyor: parse config from env: %w", err)
	}
	return cfg, nil
}
