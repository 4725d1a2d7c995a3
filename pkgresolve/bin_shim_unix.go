//go:build !windows

package pkgresolve

import (
	"os"
	"path/filepath"

	"github.com/coreruntime/kernel/kerrors"
)

func writeUnixSymlink(binDir, name, script string) error {
	link := filepath.Join(binDir, name)
	_ = os.Remove(link)
	if err := os.Symlink(script, link); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "symlink bin entry %q", name)
	}
	return nil
}

func writeWindowsShim(string, string, string) error {
	panic("unreachable on non-windows build")
}
