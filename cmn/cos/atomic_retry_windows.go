//go:build windows

package cos

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

const renameRetries = 8

// Windows denies a rename onto an open or antivirus-scanned destination far
// more often than Unix does, so the retry budget is larger here.
func renameWithRetries(oldpath, newpath string) (err error) {
	for i := 0; i < renameRetries; i++ {
		err = os.Rename(oldpath, newpath)
		if err == nil {
			return nil
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) || errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, os.ErrExist) {
			time.Sleep(time.Millisecond * time.Duration((i+1)*5))
			continue
		}
		return err
	}
	return err
}
