// Package artifactcache implements the HTTP cache and artifact cache:
// URL-keyed content-addressed storage on disk, written via temp+rename
// with a sibling .metadata.json, plus a set of schema-versioned tables
// (emitdata, tsbuildinfo, moduleinfocache) backed by buntdb that purge
// on a version bump.
package artifactcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
)

// KeyPath derives the on-disk path for a cached URL:
// scheme/host[_PORT<port>]/SHA256(path?query). The fragment is never
// considered.
func KeyPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse cache key url %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if port := u.Port(); port != "" {
		host = host + "_PORT" + port
	}
	// Opaque schemes (data:) have no path; the whole opaque part is the key.
	pathAndQuery := u.Opaque
	if pathAndQuery == "" {
		pathAndQuery = u.EscapedPath()
	}
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}
	sum := sha256.Sum256([]byte(pathAndQuery))
	return path.Join(u.Scheme, host, hex.EncodeToString(sum[:])), nil
}
