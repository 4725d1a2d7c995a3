package artifactcache

import (
	"os"
	"path/filepath"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
)

// Metadata is the sibling file written next to a cached body, carrying the
// response headers and the url that produced it.
type Metadata struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// HTTPCache is the content-addressed disk cache for fetched URLs. Reads
// return (bytes, true) or (nil, false) - not-found is not an error - and a
// present body with missing or corrupt metadata is still returned, treated
// as uncached for revalidation purposes.
type HTTPCache struct {
	root string
}

func NewHTTPCache(root string) *HTTPCache {
	return &HTTPCache{root: root}
}

func (c *HTTPCache) paths(rawURL string) (body, meta string, err error) {
	key, err := KeyPath(rawURL)
	if err != nil {
		return "", "", err
	}
	base := filepath.Join(c.root, key)
	return base, base + ".metadata.json", nil
}

// Get returns the cached body for rawURL, plus its metadata if present and
// decodable. A present body with absent/corrupt metadata still returns the
// body with ok=true and meta=nil, so the caller revalidates instead of
// refetching blindly.
func (c *HTTPCache) Get(rawURL string) (body []byte, meta *Metadata, ok bool, err error) {
	bodyPath, metaPath, err := c.paths(rawURL)
	if err != nil {
		return nil, nil, false, err
	}
	body, err = os.ReadFile(bodyPath)
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, kerrors.Wrap(kerrors.KindIo, err, "read cached body for %q", rawURL)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return body, nil, true, nil
	}
	var m Metadata
	if err := cos.JSON.Unmarshal(raw, &m); err != nil {
		return body, nil, true, nil
	}
	return body, &m, true, nil
}

// Set writes body and its metadata via temp+rename, so a reader never
// observes a half-written entry.
func (c *HTTPCache) Set(rawURL string, body []byte, headers map[string]string) error {
	bodyPath, metaPath, err := c.paths(rawURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(bodyPath), 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create cache dir for %q", rawURL)
	}
	if err := cos.AtomicWriteFile(bodyPath, body, cos.CachePerm); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "write cached body for %q", rawURL)
	}
	meta := Metadata{URL: rawURL, Headers: headers}
	raw, err := cos.JSON.Marshal(meta)
	if err != nil {
		return kerrors.Wrap(kerrors.KindInvalidData, err, "marshal cache metadata for %q", rawURL)
	}
	if err := cos.AtomicWriteFile(metaPath, raw, cos.CachePerm); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "write cache metadata for %q", rawURL)
	}
	return nil
}
