package launcher

import "strings"

// DefaultEngine is the container engine binary used to spawn invocations.
const DefaultEngine = "docker"

// DefaultEntrypoint is the pipeline script executed inside the container.
const DefaultEntrypoint = "global_ndr_plus_pipeline.py"

// Invocation describes one containerized pipeline run for a single scenario.
type Invocation struct {
	Engine      string
	Image       string
	ShmSize     string
	HostWorkdir string
	MountPoint  string
	Entrypoint  string
	Module      string
	ScenarioID  string
	Watersheds  []string
}

// Argv renders the invocation as a command line: the container engine binary
// followed by its arguments. The host working directory is bind mounted onto
// the container workspace path and each run carries exactly one
// --limit_to_scenarios value.
func (inv Invocation) Argv() []string {
	engine := inv.Engine
	if engine == "" {
		engine = DefaultEngine
	}
	entrypoint := inv.Entrypoint
	if entrypoint == "" {
		entrypoint = DefaultEntrypoint
	}

	argv := []string{
		engine, "run", "--rm",
		"-v", inv.HostWorkdir + ":" + inv.MountPoint,
		"-w", inv.MountPoint,
		"--shm-size", inv.ShmSize,
		inv.Image,
		"python", entrypoint, inv.Module,
		"--limit_to_scenarios", inv.ScenarioID,
	}
	if len(inv.Watersheds) > 0 {
		argv = append(argv, "--watersheds")
		argv = append(argv, inv.Watersheds...)
	}
	return argv
}

// String renders the invocation the way the print-only launcher scripts did.
func (inv Invocation) String() string {
	return strings.Join(inv.Argv(), " ")
}
