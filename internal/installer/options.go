package installer

import (
	"context"
	"os/exec"

	"github.com/ritzau/pkginstall/internal/progress"
)

// ScriptRunner invokes a package's lifecycle script. The invocation
// itself is opaque to the installer; only cwd and the script's shell
// command matter. Grounded on the teacher's bazel.Executor pattern: a
// small interface around os/exec so tests can substitute a fake.
type ScriptRunner interface {
	Run(ctx context.Context, dir, command string) error
}

// shellScriptRunner runs a script with "sh -c <command>" in dir.
type shellScriptRunner struct{}

// NewShellScriptRunner returns the default ScriptRunner, which shells out
// via os/exec.
func NewShellScriptRunner() ScriptRunner { return shellScriptRunner{} }

func (shellScriptRunner) Run(ctx context.Context, dir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &IOError{Op: "run script", Path: dir, Err: err}
	}
	_ = out
	return nil
}

// Options configures one Install call.
type Options struct {
	FilesToExclude     map[string]bool
	IgnoreBinConflicts bool

	// WorkersLimit caps the copy-engine worker pool. Zero means use
	// WORKERS_LIMIT or runtime.NumCPU, per the environment contract.
	WorkersLimit int

	// GeneralConcurrency caps simultaneous mkdir/symlink/shim operations.
	// Zero means the default of 300.
	GeneralConcurrency int

	ScriptRunner ScriptRunner
	Publisher    progress.Publisher
}

// NewOptions returns Options with the spec's defaults: bin conflicts are
// fatal, scripts run via the shell, and no filtering or event publishing.
func NewOptions() Options {
	return Options{
		FilesToExclude: map[string]bool{},
		ScriptRunner:   NewShellScriptRunner(),
	}
}

const defaultGeneralConcurrency = 300
