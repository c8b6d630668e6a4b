package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/natcap/ndrbatch/internal/ctxlog"
	"github.com/natcap/ndrbatch/internal/launcher"
	"github.com/natcap/ndrbatch/internal/scenario"
	"github.com/natcap/ndrbatch/internal/worklog"
	"github.com/natcap/ndrbatch/internal/workspace"
)

// Run executes the batch: resolve the launch order, take the workspace lock,
// schedule the ledger, and issue one invocation per selected scenario.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cfg := a.config
	a.logger.Debug("App.Run method started.")

	selected, err := a.set.Limit(cfg.LimitToScenarios)
	if err != nil {
		return err
	}
	ordered, err := scenario.Order(selected)
	if err != nil {
		return err
	}
	if len(ordered) == 0 {
		a.logger.Warn("No scenarios selected, nothing to launch.")
		return nil
	}
	a.logger.Debug("Launch order resolved.", "scenarios", scenario.IDsOf(ordered))

	hostWorkdir, err := filepath.Abs(cfg.WorkspaceDir)
	if err != nil {
		return fmt.Errorf("resolve workspace dir: %w", err)
	}

	batch := &launcher.Launcher{
		KeepGoing:   cfg.KeepGoing,
		Parallel:    cfg.Parallel,
		Engine:      cfg.Engine,
		Image:       cfg.ContainerImage,
		ShmSize:     cfg.ShmSize,
		HostWorkdir: hostWorkdir,
		MountPoint:  DefaultMountPoint,
		Entrypoint:  cfg.Entrypoint,
		Watersheds:  cfg.Watersheds,
	}

	if cfg.DryRun {
		// Dry runs print the invocation template and touch nothing: no lock,
		// no ledger, no processes.
		batch.Runtime = &launcher.PrintRuntime{W: a.outW}
		a.logger.Info("Dry run, printing invocations.", "scenarios", len(ordered))
		_, runErr := batch.Run(ctx, ordered)
		return runErr
	}

	if !cfg.NoLock {
		lock, err := workspace.Acquire(hostWorkdir)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				a.logger.Error("Failed to release workspace lock.", "error", err)
			}
		}()
		a.logger.Debug("Workspace lock acquired.", "workspace", hostWorkdir)
	}

	ledger, err := worklog.Open(cfg.WorkDBPath)
	if err != nil {
		return fmt.Errorf("open work status ledger: %w", err)
	}
	defer ledger.Close()
	a.ledger = ledger

	if err := ledger.Schedule(ctx, scenario.IDsOf(ordered)); err != nil {
		return err
	}

	if cfg.StatusPort > 0 {
		a.startStatusServer(ctx, cfg.StatusPort)
		defer a.closeStatusServer(ctx)
	}

	batch.Runtime = &launcher.ExecRuntime{Stdout: a.outW, Stderr: a.outW}
	batch.Ledger = ledger

	a.logger.Info("🚀 Starting batch execution.",
		"scenarios", len(ordered), "parallel", cfg.Parallel, "keep_going", cfg.KeepGoing)
	results, runErr := batch.Run(ctx, ordered)

	completed := 0
	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.ScenarioID)
		} else {
			completed++
		}
	}
	a.logger.Info("🏁 Batch finished.",
		"complete", completed, "failed", len(failed), "attempted", len(results))
	if len(failed) > 0 {
		a.logger.Error("Failed scenarios.", "scenarios", failed)
	}

	a.logger.Debug("App.Run method finished.")
	return runErr
}
