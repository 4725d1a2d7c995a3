//go:build !windows

// Unix rename is atomic by itself; golang.org/x/sys/unix is used only to
// classify the rare EACCES/EEXIST races some filesystems produce under
// concurrent rename.
package cos

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const renameRetries = 3

func renameWithRetries(oldpath, newpath string) (err error) {
	for i := 0; i < renameRetries; i++ {
		err = os.Rename(oldpath, newpath)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EEXIST) || errors.Is(err, unix.EACCES) {
			time.Sleep(time.Millisecond * time.Duration(i+1))
			continue
		}
		return err
	}
	return err
}
