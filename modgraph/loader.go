package modgraph

import "github.com/coreruntime/kernel/kerrors"

// CachePolicy is the cache instruction a load carries.
type CachePolicy int

const (
	CacheUse CachePolicy = iota
	CacheReload
	CacheOnly
)

// LoadOptions are the per-load knobs a caller can set.
type LoadOptions struct {
	Cache    CachePolicy
	Checksum string // expected content hash, if the caller pinned one
	Dynamic  bool   // true for a dynamic import() rather than a static one
}

// MediaType enumerates the source kinds the graph transpiles.
type MediaType int

const (
	MediaJavaScript MediaType = iota
	MediaJsx
	MediaTypeScript
	MediaTsx
	MediaMts
	MediaCts
	MediaMjs
	MediaCjs
	MediaJSON
	MediaUnknown
)

func MediaTypeFromExt(ext string) MediaType {
	switch ext {
	case ".js":
		return MediaJavaScript
	case ".jsx":
		return MediaJsx
	case ".ts":
		return MediaTypeScript
	case ".tsx":
		return MediaTsx
	case ".mts":
		return MediaMts
	case ".cts":
		return MediaCts
	case ".mjs":
		return MediaMjs
	case ".cjs":
		return MediaCjs
	case ".json":
		return MediaJSON
	default:
		return MediaUnknown
	}
}

// NeedsTranspile reports whether the media type must pass through the
// TS/JSX transpile step before it is runnable JS.
func (m MediaType) NeedsTranspile() bool {
	switch m {
	case MediaJsx, MediaTypeScript, MediaTsx, MediaMts, MediaCts:
		return true
	default:
		return false
	}
}

// LoadResult is the sum type a load returns: exactly one of
// Module, Redirect, External or NotFound is populated.
type LoadResult struct {
	Module   *LoadedModule
	Redirect string // new specifier, if the fetch was redirected
	External bool   // handled by the package subsystem, not the graph
	NotFound bool
}

type LoadedModule struct {
	Specifier string
	MediaType MediaType
	Headers   map[string]string
	Bytes     []byte
	SourceHash uint64
}

// Loader is a pluggable fetch backend, one per URL scheme family.
type Loader interface {
	Scheme() string
	Load(specifier string, opts LoadOptions) (LoadResult, error)
}

// ErrCouldNotResolve is the distinct terminal error returned when a reload
// is attempted under a cached-only global setting.
func ErrCouldNotResolve(specifier string) error {
	return kerrors.New(kerrors.KindResolution, "CouldNotResolve: %q requires network access but cached-only is set", specifier)
}

// ErrChecksumMismatch is terminal: there is no fallback to a cached body
// when the caller pinned a checksum that does not match.
func ErrChecksumMismatch(specifier, want, got string) error {
	return kerrors.New(kerrors.KindChecksumIntegrity, "checksum mismatch for %q: want %s got %s", specifier, want, got)
}
