// Package cos (common OS utilities) collects the small file, checksum and
// id-generation helpers every persistence layer in this module shares:
// the artifact cache, the lockfile and the standalone-binary writer:
// temp-file-then-rename saves, a Cksum (algorithm, value) type, GenTie tie breakers
// for temp file names.
package cos

import (
	"io"
	"os"
)

const SizeofI64 = 8

// CachePerm is the file mode every cache and lockfile write uses; the
// lockfile's permission bits follow the cache's, so both live here rather
// than being duplicated per package.
const CachePerm = 0o644

// CreateFile creates filepath, truncating it if it already exists.
func CreateFile(filepath string) (*os.File, error) {
	return os.OpenFile(filepath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func RemoveFile(filepath string) error {
	err := os.Remove(filepath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func Close(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

// FlushClose fsyncs then closes f, so that a subsequent rename is only ever
// observed once the bytes are durable - required for the atomic
// temp+rename contract.
func FlushClose(f *os.File) error {
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// AtomicWriteFile writes data to a temp file next to filepath and renames it
// into place, retrying the rename a bounded number of times on transient
// EEXIST/EACCES failures (see atomic_retry_unix.go and
// atomic_retry_windows.go for the platform-specific retry policy).
func AtomicWriteFile(filepath string, data []byte, perm os.FileMode) error {
	tmp := filepath + ".tmp." + GenTie()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = RemoveFile(tmp)
		return err
	}
	if err = FlushClose(f); err != nil {
		_ = RemoveFile(tmp)
		return err
	}
	if err = renameWithRetries(tmp, filepath); err != nil {
		_ = RemoveFile(tmp)
		return err
	}
	return nil
}
