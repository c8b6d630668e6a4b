package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Defaults for the container invocation template. The mount point and the
// default workspace name are what the pipeline image expects; the pipeline
// itself also reads WORKSPACE_DIR, which is why the same variable overrides
// the host side here.
const (
	DefaultImage      = "therealspring/inspring:latest"
	DefaultShmSize    = "16g"
	DefaultMountPoint = "/usr/local/workspace"
	WorkDBName        = "work_status.db"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ScenarioPath     string
	LimitToScenarios []string
	Watersheds       []string

	DryRun    bool
	KeepGoing bool
	Parallel  int

	WorkspaceDir   string `env:"WORKSPACE_DIR"`
	Engine         string `env:"NDR_CONTAINER_ENGINE"`
	ContainerImage string `env:"NDR_CONTAINER_IMAGE"`
	ShmSize        string `env:"NDR_SHM_SIZE"`
	Entrypoint     string `env:"NDR_ENTRYPOINT"`
	WorkDBPath     string
	NoLock         bool

	StatusPort int
	LogFormat  string
	LogLevel   string
}

// NewConfig applies environment overrides and defaults to cfg and validates
// the result. Precedence is flags, then environment, then defaults.
func NewConfig(cfg Config) (*Config, error) {
	var envCfg Config
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = envCfg.WorkspaceDir
	}
	if cfg.Engine == "" {
		cfg.Engine = envCfg.Engine
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = envCfg.ContainerImage
	}
	if cfg.ShmSize == "" {
		cfg.ShmSize = envCfg.ShmSize
	}
	if cfg.Entrypoint == "" {
		cfg.Entrypoint = envCfg.Entrypoint
	}

	if cfg.ScenarioPath == "" {
		return nil, errors.New("ScenarioPath is a required configuration field and cannot be empty")
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = "."
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = DefaultImage
	}
	if cfg.ShmSize == "" {
		cfg.ShmSize = DefaultShmSize
	}
	if cfg.WorkDBPath == "" {
		cfg.WorkDBPath = filepath.Join(cfg.WorkspaceDir, WorkDBName)
	}

	// The logger trusts these two fields, so this is the only place they
	// are validated.
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "json"
	case "text", "json":
	default:
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	return &cfg, nil
}
