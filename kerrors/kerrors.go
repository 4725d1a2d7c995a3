// Package kerrors implements the runtime's error-kind design:
// errors are tagged by kind, not by Go type, so that an op can surface the
// kind verbatim to JS as the thrown error's class name. The causal chain
// is preserved under a single concrete type via github.com/pkg/errors.
package kerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the error kinds surfaced to JS.
type Kind string

const (
	KindBadResource        Kind = "BadResource"
	KindNotCapable         Kind = "NotCapable"
	KindNotSupported       Kind = "NotSupported"
	KindNotFound           Kind = "NotFound"
	KindInterrupted        Kind = "Interrupted"
	KindCancelled          Kind = "Cancelled"
	KindTimedOut           Kind = "TimedOut"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindInvalidData        Kind = "InvalidData"
	KindResolution         Kind = "Resolution"
	KindChecksumIntegrity  Kind = "ChecksumIntegrity"
	KindImportMap          Kind = "ImportMap"
	KindNetwork            Kind = "Network"
	KindHttp               Kind = "Http"
	KindTls                Kind = "Tls"
	KindIo                 Kind = "Io"
)

// Kerror is the concrete error type carried across every subsystem boundary.
// The class name JS sees is Kind; Cause preserves the chain for diagnostics.
type Kerror struct {
	K       Kind
	Message string
	cause   error
}

func (e *Kerror) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.K, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.K, e.Message)
}

func (e *Kerror) Unwrap() error { return e.cause }

// New creates a Kerror with no underlying cause.
func New(k Kind, format string, args ...interface{}) *Kerror {
	return &Kerror{K: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving its causal chain
// via pkg/errors.
func Wrap(k Kind, cause error, format string, args ...interface{}) *Kerror {
	return &Kerror{K: k, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Is reports whether err is a Kerror of the given kind, unwrapping through
// the wrapper chain with the standard library's errors.Unwrap.
func Is(err error, k Kind) bool {
	for err != nil {
		if ke, ok := err.(*Kerror); ok {
			return ke.K == k
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return false
		}
		err = cause
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindIo for plain errors
// the way the module loader and lockfile convert opaque I/O failures.
func KindOf(err error) Kind {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ke, ok := e.(*Kerror); ok {
			return ke.K
		}
	}
	return KindIo
}
