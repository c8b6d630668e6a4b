package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/natcap/ndrbatch/internal/ctxlog"
	"github.com/natcap/ndrbatch/internal/scenario"
	"github.com/natcap/ndrbatch/internal/worklog"
)

// ScenarioLoader loads a merged scenario set from one or more paths. The
// concrete HCL implementation lives in the scenario package.
type ScenarioLoader interface {
	Load(ctx context.Context, paths ...string) (*scenario.Set, error)
}

// App encapsulates the launcher's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	set    *scenario.Set

	ledger     *worklog.DB
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the scenario set
// already loaded and validated.
func NewApp(outW io.Writer, appConfig *Config, loader ScenarioLoader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	set, err := loader.Load(ctx, appConfig.ScenarioPath)
	if err != nil {
		// A failure to load scenarios is a fatal startup error.
		panic(fmt.Errorf("failed to load scenarios: %w", err))
	}
	logger.Debug("Scenario set loaded and validated.",
		"scenarios", len(set.Scenarios), "ecoshards", len(set.Ecoshards))

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		set:    set,
	}
}

// Set returns the loaded scenario set. This is primarily for testing.
func (a *App) Set() *scenario.Set {
	return a.set
}
