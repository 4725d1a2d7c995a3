package modgraph

import (
	"net/url"
	"os"

	"github.com/OneOfOne/xxhash"

	"github.com/coreruntime/kernel/kerrors"
)

// fileLoader reads file:// module sources directly off disk. Specifiers
// under a node_modules directory are never loaded here - InNodeModules
// routes them to External before the loader is ever consulted.
type fileLoader struct{}

func NewFileLoader() Loader { return &fileLoader{} }

func (fileLoader) Scheme() string { return "file" }

func (fileLoader) Load(specifier string, opts LoadOptions) (LoadResult, error) {
	if InNodeModules(specifier) {
		return LoadResult{External: true}, nil
	}
	u, err := url.Parse(specifier)
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	body, err := os.ReadFile(u.Path)
	if os.IsNotExist(err) {
		return LoadResult{NotFound: true}, nil
	}
	if err != nil {
		return LoadResult{}, kerrors.Wrap(kerrors.KindIo, err, "read %q", u.Path)
	}
	return LoadResult{Module: &LoadedModule{
		Specifier:  specifier,
		MediaType:  MediaTypeFromExt(extFromPath(u.Path)),
		Bytes:      body,
		SourceHash: xxhash.Checksum64(body),
	}}, nil
}
