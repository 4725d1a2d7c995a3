package snapshot

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
)

// MagicTrailer is the 8-byte magic written last, so a reader can find the
// trailer by seeking from the end of the file without parsing the
// executable itself.
const MagicTrailer = "d3n0l4nd"

// trailerFixedLen is the length-and-magic suffix appended after the
// payload: a little-endian u64 payload length, then the 8 magic bytes.
const trailerFixedLen = 8 + len(MagicTrailer)

// Append writes [executable bytes][payload bytes][u64 len][magic] to a new
// file at outPath, atomically (temp file + rename, the discipline every
// other persisted artifact in this module follows). exe is read fully
// into memory; standalone executables are expected to be tens of
// megabytes, well within a single buffer.
func Append(exePath string, payload []byte, outPath string) error {
	exe, err := os.ReadFile(exePath)
	if err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "read host executable %q", exePath)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))

	out := make([]byte, 0, len(exe)+len(payload)+trailerFixedLen)
	out = append(out, exe...)
	out = append(out, payload...)
	out = append(out, lenBuf[:]...)
	out = append(out, []byte(MagicTrailer)...)

	mode := os.FileMode(0o755)
	if info, statErr := os.Stat(exePath); statErr == nil {
		mode = info.Mode().Perm()
	}
	return cos.AtomicWriteFile(outPath, out, mode)
}

// Extract locates and returns the payload bytes embedded in a standalone
// binary at path, or an InvalidData error if the trailer's magic doesn't
// match (not a standalone binary, or it was truncated).
func Extract(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "open %q", path)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "seek %q", path)
	}
	if size < int64(trailerFixedLen) {
		return nil, kerrors.New(kerrors.KindInvalidData, "%q is too small to contain a standalone trailer", path)
	}

	trailer := make([]byte, trailerFixedLen)
	if _, err := f.ReadAt(trailer, size-int64(trailerFixedLen)); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "read trailer of %q", path)
	}
	magic := trailer[8:]
	if string(magic) != MagicTrailer {
		return nil, kerrors.New(kerrors.KindInvalidData, "%q has no standalone binary trailer", path)
	}
	payloadLen := binary.LittleEndian.Uint64(trailer[:8])

	payloadEnd := size - int64(trailerFixedLen)
	payloadStart := payloadEnd - int64(payloadLen)
	if payloadStart < 0 {
		return nil, kerrors.New(kerrors.KindInvalidData, "%q's trailer claims a payload longer than the file", path)
	}

	payload := make([]byte, payloadLen)
	if _, err := f.ReadAt(payload, payloadStart); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "read payload of %q", path)
	}
	return payload, nil
}

// HasTrailer is a cheap check (reads only trailerFixedLen bytes) for
// whether path looks like a standalone binary at all, used by `kerneld
// run` to decide whether to treat argv[0] as a snapshot before attempting
// the more expensive Extract+Deserialize.
func HasTrailer(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil || size < int64(trailerFixedLen) {
		return false
	}
	trailer := make([]byte, len(MagicTrailer))
	if _, err := f.ReadAt(trailer, size-int64(len(MagicTrailer))); err != nil {
		return false
	}
	return string(trailer) == MagicTrailer
}
