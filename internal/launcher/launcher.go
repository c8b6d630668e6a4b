package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/natcap/ndrbatch/internal/ctxlog"
	"github.com/natcap/ndrbatch/internal/scenario"
)

// Ledger records per-scenario run state. It is satisfied by worklog.DB; a nil
// Ledger disables recording.
type Ledger interface {
	MarkRunning(ctx context.Context, scenarioID string) error
	MarkComplete(ctx context.Context, scenarioID string) error
	MarkFailed(ctx context.Context, scenarioID string, exitCode int) error
}

// Result is the outcome of one scenario invocation.
type Result struct {
	ScenarioID string
	Err        error
	ExitCode   int
	Duration   time.Duration
}

// Launcher runs the batch: exactly one invocation per selected scenario, in
// resolved order. Sequential unless Parallel is raised; a failure aborts the
// remaining scenarios unless KeepGoing is set, and dependents of a failed
// scenario are always skipped.
type Launcher struct {
	Runtime   Runtime
	Ledger    Ledger
	KeepGoing bool
	Parallel  int

	Engine      string
	Image       string
	ShmSize     string
	HostWorkdir string
	MountPoint  string
	Entrypoint  string
	Watersheds  []string
}

// Invocation builds the container invocation for one scenario.
func (l *Launcher) Invocation(sc *scenario.Scenario) Invocation {
	return Invocation{
		Engine:      l.Engine,
		Image:       l.Image,
		ShmSize:     l.ShmSize,
		HostWorkdir: l.HostWorkdir,
		MountPoint:  l.MountPoint,
		Entrypoint:  l.Entrypoint,
		Module:      sc.Module,
		ScenarioID:  sc.ID,
		Watersheds:  l.Watersheds,
	}
}

// Run launches every scenario in order and returns one Result per scenario
// attempted. The returned error is non-nil if any scenario failed.
func (l *Launcher) Run(ctx context.Context, ordered []*scenario.Scenario) ([]Result, error) {
	var results []Result
	if l.Parallel > 1 {
		results = l.runParallel(ctx, ordered)
	} else {
		results = l.runSequential(ctx, ordered)
	}

	var failed []string
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res.ScenarioID)
		}
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("%d of %d scenarios failed: %s",
			len(failed), len(ordered), strings.Join(failed, ", "))
	}
	return results, nil
}

func (l *Launcher) runSequential(ctx context.Context, ordered []*scenario.Scenario) []Result {
	logger := ctxlog.FromContext(ctx)
	failed := make(map[string]struct{})
	var results []Result

	for _, sc := range ordered {
		if err := ctx.Err(); err != nil {
			break
		}
		if dep, ok := failedDependency(sc, failed); ok {
			logger.Warn("Skipping scenario, dependency failed.", "scenario", sc.ID, "dependency", dep)
			results = append(results, l.skip(ctx, sc, dep, failed))
			continue
		}

		res := l.launch(ctx, sc)
		results = append(results, res)
		if res.Err != nil {
			failed[sc.ID] = struct{}{}
			if !l.KeepGoing {
				break
			}
		}
	}
	return results
}

func (l *Launcher) runParallel(ctx context.Context, ordered []*scenario.Scenario) []Result {
	logger := ctxlog.FromContext(ctx)
	failed := make(map[string]struct{})
	var mu sync.Mutex
	var results []Result

	// Scenarios run in dependency waves so a scenario never starts before
	// everything it depends on has finished.
	for _, level := range scenario.Levels(ordered) {
		if ctx.Err() != nil {
			break
		}

		runCtx := ctx
		cancel := context.CancelFunc(func() {})
		if !l.KeepGoing {
			runCtx, cancel = context.WithCancel(ctx)
		}

		g := &errgroup.Group{}
		g.SetLimit(l.Parallel)
		for _, sc := range level {
			sc := sc
			g.Go(func() error {
				mu.Lock()
				dep, skipped := failedDependency(sc, failed)
				mu.Unlock()
				if skipped {
					logger.Warn("Skipping scenario, dependency failed.", "scenario", sc.ID, "dependency", dep)
					res := l.skip(ctx, sc, dep, nil)
					mu.Lock()
					results = append(results, res)
					failed[sc.ID] = struct{}{}
					mu.Unlock()
					return nil
				}

				res := l.launch(runCtx, sc)
				mu.Lock()
				results = append(results, res)
				if res.Err != nil {
					failed[sc.ID] = struct{}{}
				}
				mu.Unlock()
				if res.Err != nil && !l.KeepGoing {
					cancel()
				}
				return nil
			})
		}
		_ = g.Wait()
		cancel()

		if len(failed) > 0 && !l.KeepGoing {
			break
		}
	}
	return results
}

// launch runs one scenario to completion and records it in the ledger.
func (l *Launcher) launch(ctx context.Context, sc *scenario.Scenario) Result {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Launching scenario.", "scenario", sc.ID, "module", sc.Module)

	l.markRunning(ctx, sc.ID)
	start := time.Now()
	err := l.Runtime.Run(ctx, l.Invocation(sc))
	res := Result{
		ScenarioID: sc.ID,
		Err:        err,
		ExitCode:   exitCode(err),
		Duration:   time.Since(start),
	}

	if err != nil {
		logger.Error("Scenario failed.", "scenario", sc.ID, "exit_code", res.ExitCode, "error", err)
		l.markFailed(ctx, sc.ID, res.ExitCode)
	} else {
		logger.Info("Scenario complete.", "scenario", sc.ID, "duration", res.Duration)
		l.markComplete(ctx, sc.ID)
	}
	return res
}

// skip records a scenario that never launched because a dependency failed.
func (l *Launcher) skip(ctx context.Context, sc *scenario.Scenario, dep string, failed map[string]struct{}) Result {
	if failed != nil {
		failed[sc.ID] = struct{}{}
	}
	l.markFailed(ctx, sc.ID, -1)
	return Result{
		ScenarioID: sc.ID,
		Err:        fmt.Errorf("dependency %q failed", dep),
		ExitCode:   -1,
	}
}

func (l *Launcher) markRunning(ctx context.Context, id string) {
	if l.Ledger == nil {
		return
	}
	if err := l.Ledger.MarkRunning(ctx, id); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to record running status.", "scenario", id, "error", err)
	}
}

func (l *Launcher) markComplete(ctx context.Context, id string) {
	if l.Ledger == nil {
		return
	}
	if err := l.Ledger.MarkComplete(ctx, id); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to record complete status.", "scenario", id, "error", err)
	}
}

func (l *Launcher) markFailed(ctx context.Context, id string, code int) {
	if l.Ledger == nil {
		return
	}
	if err := l.Ledger.MarkFailed(ctx, id, code); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to record failed status.", "scenario", id, "error", err)
	}
}

// failedDependency reports the first dependency of sc found in failed.
func failedDependency(sc *scenario.Scenario, failed map[string]struct{}) (string, bool) {
	for _, dep := range sc.DependsOn {
		if _, ok := failed[dep]; ok {
			return dep, true
		}
	}
	return "", false
}

// exitCode extracts the process exit code from a runtime error, or -1 when
// the invocation never produced one.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
