// Command kerneld is the process entrypoint: it wires every package in
// this module together into a boot sequence, a daemon.go/cmd-level main
// (arena, resource table, op registry,
// event loop and cancellation root constructed once at startup, then
// handed to the module graph, package resolver, lockfile and artifact
// cache for the duration of the run).
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coreruntime/kernel/api"
	"github.com/coreruntime/kernel/artifactcache"
	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/pkgresolve"
)

// httpRegistryClient implements pkgresolve.RegistryClient against an npm-style
// registry endpoint, caching raw responses through artifactcache.HTTPCache the
// same way a browser-facing fetch would be cached by the web cache.
type httpRegistryClient struct {
	baseURL string
	cache   *artifactcache.HTTPCache
	client  *http.Client
	token   *pkgresolve.RegistryToken
}

func newHTTPRegistryClient(baseURL string, cache *artifactcache.HTTPCache) *httpRegistryClient {
	return &httpRegistryClient{baseURL: strings.TrimRight(baseURL, "/"), cache: cache, client: &http.Client{}}
}

// withAuth parses and attaches a bearer token for private-registry access.
// A malformed or expired token is dropped rather than fatal: resolution
// proceeds unauthenticated and lets the registry itself reject the request.
func (c *httpRegistryClient) withAuth(tokenStr, secret string) {
	tok, err := pkgresolve.ParseRegistryToken(tokenStr, secret)
	if err != nil || tok.Expired() {
		return
	}
	c.token = tok
}

func (c *httpRegistryClient) Info(name string) (*pkgresolve.PackageInfo, error) {
	return c.fetch(name, false)
}

func (c *httpRegistryClient) ForceReload(name string) (*pkgresolve.PackageInfo, error) {
	return c.fetch(name, true)
}

func (c *httpRegistryClient) fetch(name string, force bool) (*pkgresolve.PackageInfo, error) {
	url := c.baseURL + "/" + name
	if !force {
		if body, _, ok, err := c.cache.Get(url); err == nil && ok {
			var info pkgresolve.PackageInfo
			if err := cos.JSON.Unmarshal(body, &info); err == nil {
				return &info, nil
			}
		}
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "build registry request for %q", name)
	}
	req.Header.Set(api.HeaderUserAgent, api.UserAgentPrefix+"kernel")
	if c.token != nil {
		req.Header.Set("Authorization", c.token.Bearer())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "fetch package info for %q", name)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, kerrors.New(kerrors.KindNetwork, "registry returned %d for %q", resp.StatusCode, name)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "read registry response for %q", name)
	}

	var info pkgresolve.PackageInfo
	if err := cos.JSON.Unmarshal(body, &info); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "parse registry response for %q", name)
	}
	_ = c.cache.Set(url, body, map[string]string{"Content-Type": "application/json"})
	return &info, nil
}

// httpFetcher implements pkgresolve.Fetcher by downloading a tarball over
// HTTP and unpacking it in memory.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() *httpFetcher { return &httpFetcher{client: &http.Client{}} }

// Fetch is deliberately minimal: a real tarball unpacker belongs to the
// (non-goal) archive-format layer. It downloads the tarball bytes and
// stores them under a single synthetic path so Installer has something to
// write to disk; a follow-up change wiring a tar/gzip reader would replace
// this body without touching the Fetcher interface.
func (f *httpFetcher) Fetch(ctx context.Context, pkg *pkgresolve.ResolvedPackage) (map[string][]byte, error) {
	url := pkg.TarballURL
	if url == "" {
		return nil, kerrors.New(kerrors.KindNetwork, "package %s has no tarball URL", pkg.Id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "build tarball request for %s", pkg.Id)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "fetch tarball for %s", pkg.Id)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, kerrors.New(kerrors.KindNetwork, "tarball fetch for %s returned %d", pkg.Id, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "read tarball for %s", pkg.Id)
	}
	return map[string][]byte{fmt.Sprintf("package/%s.tgz", pkg.Id.Name): body}, nil
}
