package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/natcap/ndrbatch/internal/ctxlog"
)

// Runtime is the execution backend for a single invocation.
type Runtime interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRuntime spawns each invocation as an external process and streams its
// output to the configured writers.
type ExecRuntime struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run spawns the invocation and blocks until it exits.
func (r *ExecRuntime) Run(ctx context.Context, inv Invocation) error {
	argv := inv.Argv()
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Spawning invocation.", "argv", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("scenario %s: %w", inv.ScenarioID, err)
	}
	return nil
}

// PrintRuntime writes the command line of each invocation without spawning
// anything. It is the dry-run counterpart of ExecRuntime, standing in for the
// echo-only variants of the original launcher scripts.
type PrintRuntime struct {
	W io.Writer
}

// Run prints the invocation's command line.
func (r *PrintRuntime) Run(_ context.Context, inv Invocation) error {
	_, err := fmt.Fprintln(r.W, inv.String())
	return err
}
