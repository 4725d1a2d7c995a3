//go:build windows

package pkgresolve

import (
	"fmt"
	"path/filepath"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
)

// writeWindowsShim writes name.cmd in binDir, a batch shim that spawns the
// runtime with script as its entrypoint.
func writeWindowsShim(binDir, name, script string) error {
	shim := fmt.Sprintf("@echo off\r\nkerneld run %q %%*\r\n", script)
	path := filepath.Join(binDir, name+".cmd")
	if err := cos.AtomicWriteFile(path, []byte(shim), cos.CachePerm); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "write windows bin shim %q", name)
	}
	return nil
}

func writeUnixSymlink(string, string, string) error {
	panic("unreachable on windows build")
}
