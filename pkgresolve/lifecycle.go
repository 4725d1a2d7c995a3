package pkgresolve

import (
	"context"
	"os"
	"os/exec"
	"runtime"
)

// ScriptRunner executes one lifecycle script in a package's install
// directory. Implementations decide how the command string is spawned;
// the installer only sequences preinstall/install/postinstall and turns a
// failure into a structured error.
type ScriptRunner interface {
	Run(ctx context.Context, pkgDir, scriptName, command string) error
}

// WithScriptRunner enables lifecycle scripts for local installs. Passing
// nil (the default state) disables them.
func (in *Installer) WithScriptRunner(r ScriptRunner) *Installer {
	in.scripts = r
	return in
}

// ExecScriptRunner spawns each script through the platform shell, the way
// a package manager's `npm run`-equivalent would.
type ExecScriptRunner struct{}

func (ExecScriptRunner) Run(ctx context.Context, pkgDir, scriptName, command string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = pkgDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
