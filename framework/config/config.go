package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default timeouts used throughout the framework
const (
	// DefaultScaleTimeout is the default timeout for a deployment to return to its replica count
	DefaultScaleTimeout = 10 * time.Minute

	// DefaultScalePollInterval is the default interval for polling deployment scale
	DefaultScalePollInterval = 5 * time.Second

	// DefaultContainerStartTimeout is the default timeout for a Kie container to report STARTED
	DefaultContainerStartTimeout = 5 * time.Minute

	// DefaultContainerPollInterval is the default interval for polling Kie container status
	DefaultContainerPollInterval = 3 * time.Second

	// DefaultPodReadyTimeout is the default timeout for waiting for pods to be ready
	DefaultPodReadyTimeout = 5 * time.Minute

	// DefaultPodReadyPollInterval is the default interval for polling pod readiness
	DefaultPodReadyPollInterval = 5 * time.Second

	// DefaultJobTimeout is the default timeout for Workbench asynchronous jobs
	DefaultJobTimeout = 10 * time.Minute

	// DefaultJobPollInterval is the default interval for polling Workbench job status
	DefaultJobPollInterval = 2 * time.Second

	// DefaultHTTPTimeout is the default timeout for REST requests
	DefaultHTTPTimeout = 60 * time.Second

	// DefaultSignalJoinTimeout bounds how long a scenario waits for an asynchronous signal to settle
	DefaultSignalJoinTimeout = 2 * time.Minute

	// DefaultCleanupTimeout bounds the whole release stack
	DefaultCleanupTimeout = 5 * time.Minute

	// DefaultMaxParallelDeletes is the default number of pods deleted concurrently
	DefaultMaxParallelDeletes = 5
)

// Environment variable names for configuration overrides
const (
	EnvScaleTimeout          = "KIE_CLOUD_SCALE_TIMEOUT"
	EnvContainerStartTimeout = "KIE_CLOUD_CONTAINER_START_TIMEOUT"
	EnvPodReadyTimeout       = "KIE_CLOUD_POD_READY_TIMEOUT"
	EnvJobTimeout            = "KIE_CLOUD_JOB_TIMEOUT"
	EnvHTTPTimeout           = "KIE_CLOUD_HTTP_TIMEOUT"
	EnvSignalJoinTimeout     = "KIE_CLOUD_SIGNAL_JOIN_TIMEOUT"
	EnvMaxParallelDeletes    = "KIE_CLOUD_MAX_PARALLEL_DELETES"
)

// DotEnvFile is the file LoadDotEnv reads when no path is given
const DotEnvFile = ".env"

// Config holds framework configuration with optional overrides
type Config struct {
	// Timeouts
	ScaleTimeout          time.Duration
	ScalePollInterval     time.Duration
	ContainerStartTimeout time.Duration
	ContainerPollInterval time.Duration
	PodReadyTimeout       time.Duration
	PodReadyPollInterval  time.Duration
	JobTimeout            time.Duration
	JobPollInterval       time.Duration
	HTTPTimeout           time.Duration
	SignalJoinTimeout     time.Duration
	CleanupTimeout        time.Duration

	// Disruption
	MaxParallelDeletes int
}

// Default returns a Config with all default values
func Default() *Config {
	return &Config{
		ScaleTimeout:          DefaultScaleTimeout,
		ScalePollInterval:     DefaultScalePollInterval,
		ContainerStartTimeout: DefaultContainerStartTimeout,
		ContainerPollInterval: DefaultContainerPollInterval,
		PodReadyTimeout:       DefaultPodReadyTimeout,
		PodReadyPollInterval:  DefaultPodReadyPollInterval,
		JobTimeout:            DefaultJobTimeout,
		JobPollInterval:       DefaultJobPollInterval,
		HTTPTimeout:           DefaultHTTPTimeout,
		SignalJoinTimeout:     DefaultSignalJoinTimeout,
		CleanupTimeout:        DefaultCleanupTimeout,
		MaxParallelDeletes:    DefaultMaxParallelDeletes,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables already set are left untouched and missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DotEnvFile}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	return godotenv.Load(existing...)
}

// FromEnv returns a Config with values from environment variables, falling back to defaults
func FromEnv() *Config {
	cfg := Default()

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{EnvScaleTimeout, &cfg.ScaleTimeout},
		{EnvContainerStartTimeout, &cfg.ContainerStartTimeout},
		{EnvPodReadyTimeout, &cfg.PodReadyTimeout},
		{EnvJobTimeout, &cfg.JobTimeout},
		{EnvHTTPTimeout, &cfg.HTTPTimeout},
		{EnvSignalJoinTimeout, &cfg.SignalJoinTimeout},
	}

	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
				*d.target = parsed
			}
		}
	}

	if v := os.Getenv(EnvMaxParallelDeletes); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxParallelDeletes = n
		}
	}

	return cfg
}

// WithScaleTimeout returns a copy with updated scale timeout
func (c *Config) WithScaleTimeout(d time.Duration) *Config {
	cp := *c
	cp.ScaleTimeout = d
	return &cp
}

// WithScalePollInterval returns a copy with updated scale poll interval
func (c *Config) WithScalePollInterval(d time.Duration) *Config {
	cp := *c
	cp.ScalePollInterval = d
	return &cp
}

// WithContainerStartTimeout returns a copy with updated container start timeout
func (c *Config) WithContainerStartTimeout(d time.Duration) *Config {
	cp := *c
	cp.ContainerStartTimeout = d
	return &cp
}

// WithContainerPollInterval returns a copy with updated container poll interval
func (c *Config) WithContainerPollInterval(d time.Duration) *Config {
	cp := *c
	cp.ContainerPollInterval = d
	return &cp
}

// WithPodReadyTimeout returns a copy with updated pod ready timeout
func (c *Config) WithPodReadyTimeout(d time.Duration) *Config {
	cp := *c
	cp.PodReadyTimeout = d
	return &cp
}

// WithJobTimeout returns a copy with updated job timeout
func (c *Config) WithJobTimeout(d time.Duration) *Config {
	cp := *c
	cp.JobTimeout = d
	return &cp
}

// WithHTTPTimeout returns a copy with updated HTTP timeout
func (c *Config) WithHTTPTimeout(d time.Duration) *Config {
	cp := *c
	cp.HTTPTimeout = d
	return &cp
}

// WithSignalJoinTimeout returns a copy with updated signal join timeout
func (c *Config) WithSignalJoinTimeout(d time.Duration) *Config {
	cp := *c
	cp.SignalJoinTimeout = d
	return &cp
}

// WithMaxParallelDeletes returns a copy with updated delete parallelism
func (c *Config) WithMaxParallelDeletes(n int) *Config {
	cp := *c
	cp.MaxParallelDeletes = n
	return &cp
}
