package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Orchestrator holds the control-plane configuration. Every field is
// settable through the environment; an optional YAML file (see Load) and
// command-line flags may override individual values.
type Orchestrator struct {
	Port              int    `env:"PORT,default=3001" yaml:"port"`
	InactivityTimeout int    `env:"INACTIVITY_TIMEOUT_SECONDS,default=60" yaml:"inactivityTimeoutSeconds"`
	ReuseRunnerMode   bool   `env:"REUSE_RUNNER_MODE,default=false" yaml:"reuseRunnerMode"`
	RunnersHost       string `env:"RUNNERS_HOST,default=localhost" yaml:"runnersHost"`
	Environment       string `env:"NODE_ENV,default=development" yaml:"environment"`

	Image         string `env:"RUNNER_IMAGE,default=runner-image" yaml:"image"`
	ContainerPort int    `env:"RUNNER_CONTAINER_PORT,default=3000" yaml:"containerPort"`
	DockerHost    string `env:"DOCKER_HOST" yaml:"dockerHost"`
	DataDir       string `env:"DATA_DIR,default=/var/lib/taylored-orchestrator" yaml:"dataDir"`

	LogLevel string `env:"LOG_LEVEL,default=info" yaml:"logLevel"`
	LogJSON  bool   `env:"LOG_JSON,default=false" yaml:"logJSON"`
}

// SweepInterval is how often the inactivity reaper scans the registry.
const SweepInterval = 30 * time.Second

// InactivityDuration returns the configured timeout as a duration.
func (c *Orchestrator) InactivityDuration() time.Duration {
	return time.Duration(c.InactivityTimeout) * time.Second
}

// Production reports whether error details should be withheld from clients.
func (c *Orchestrator) Production() bool {
	return c.Environment == "production"
}

// Runner holds the in-container agent configuration.
type Runner struct {
	Port          int    `env:"PORT,default=3000" yaml:"port"`
	ContainerRoot string `env:"CONTAINER_ROOT,default=/" yaml:"containerRoot"`
	TayloredBin   string `env:"TAYLORED_BIN,default=taylored" yaml:"tayloredBin"`

	LogLevel string `env:"LOG_LEVEL,default=info" yaml:"logLevel"`
	LogJSON  bool   `env:"LOG_JSON,default=false" yaml:"logJSON"`
}

// LoadOrchestrator resolves the orchestrator configuration: environment
// first, then the YAML file at path (if non-empty) overlaid on top.
func LoadOrchestrator(ctx context.Context, path string) (*Orchestrator, error) {
	var cfg Orchestrator
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if path != "" {
		if err := overlayYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRunner resolves the runner agent configuration from the environment.
func LoadRunner(ctx context.Context) (*Runner, error) {
	var cfg Runner
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid runner port %d", cfg.Port)
	}
	return &cfg, nil
}

func overlayYAML(path string, cfg *Orchestrator) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Orchestrator) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid listen port %d", c.Port)
	}
	if c.InactivityTimeout < 1 {
		return fmt.Errorf("inactivity timeout must be at least 1 second, got %d", c.InactivityTimeout)
	}
	if c.Image == "" {
		return fmt.Errorf("runner image must not be empty")
	}
	return nil
}
