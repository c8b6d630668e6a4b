package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/natcap/ndrbatch/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("ndrbatch", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
ndrbatch - batch launcher for the Global NDR Plus pipeline.

Usage:
  ndrbatch [options] [SCENARIO_PATH]

Arguments:
  SCENARIO_PATH
    Path to a single .hcl scenario file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	scenariosFlag := flagSet.String("scenarios", "", "Path to the scenario file or directory.")
	sFlag := flagSet.String("s", "", "Path to the scenario file or directory (shorthand).")
	limitFlag := flagSet.String("limit_to_scenarios", "", "Comma separated scenario ids to restrict the run to.")
	watershedsFlag := flagSet.String("watersheds", "", "Comma separated watershed ids passed through to the pipeline.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print each pipeline invocation instead of executing it.")
	keepGoingFlag := flagSet.Bool("keep-going", false, "Continue with remaining scenarios after a failure.")
	parallelFlag := flagSet.Int("parallel", 1, "Number of scenario invocations to run concurrently.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	workspaceFlag := flagSet.String("workspace", "", "Host working directory mounted into each invocation. Defaults to WORKSPACE_DIR or the current directory.")
	engineFlag := flagSet.String("engine", "", "Container engine binary. Defaults to docker.")
	imageFlag := flagSet.String("image", "", "Container image holding the pipeline. Defaults to the release image.")
	shmSizeFlag := flagSet.String("shm-size", "", "Shared memory size for each invocation, e.g. '16g'.")
	entrypointFlag := flagSet.String("entrypoint", "", "Pipeline script executed inside the container. Defaults to global_ndr_plus_pipeline.py.")
	workDBFlag := flagSet.String("workdb", "", "Path to the work status database. Defaults to <workspace>/work_status.db.")
	noLockFlag := flagSet.Bool("no-lock", false, "Skip the advisory workspace lock.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *scenariosFlag != "" {
		path = *scenariosFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Scenario path determined.", "path", path)

	if path == "" {
		slog.Debug("No scenario path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	if *parallelFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid parallel: must be at least 1"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ScenarioPath:     path,
		LimitToScenarios: splitList(*limitFlag),
		Watersheds:       splitList(*watershedsFlag),
		DryRun:           *dryRunFlag,
		KeepGoing:        *keepGoingFlag,
		Parallel:         *parallelFlag,
		StatusPort:       *statusPortFlag,
		WorkspaceDir:     *workspaceFlag,
		Engine:           *engineFlag,
		ContainerImage:   *imageFlag,
		ShmSize:          *shmSizeFlag,
		Entrypoint:       *entrypointFlag,
		WorkDBPath:       *workDBFlag,
		NoLock:           *noLockFlag,
		LogFormat:        *logFormatFlag,
		LogLevel:         *logLevelFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// splitList turns a comma separated flag value into its non-empty elements.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
