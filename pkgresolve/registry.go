package pkgresolve

import (
	"sync"

	"github.com/coreruntime/kernel/kerrors"
)

// RegistryClient fetches package metadata. Info is expected to cache
// internally; Resolve calls ForceReload only on the single retry allowed
// after a conflict or network failure.
type RegistryClient interface {
	Info(name string) (*PackageInfo, error)
	ForceReload(name string) (*PackageInfo, error)
}

// cachingRegistry wraps a RegistryClient with an in-process memo so
// repeated resolution of the same name never re-fetches.
type cachingRegistry struct {
	inner RegistryClient
	mu    sync.Mutex
	cache map[string]*PackageInfo
}

func newCachingRegistry(inner RegistryClient) *cachingRegistry {
	return &cachingRegistry{inner: inner, cache: make(map[string]*PackageInfo)}
}

func (c *cachingRegistry) info(name string) (*PackageInfo, error) {
	c.mu.Lock()
	if info, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	info, err := c.inner.Info(name)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "fetch package info for %q", name)
	}
	c.mu.Lock()
	c.cache[name] = info
	c.mu.Unlock()
	return info, nil
}

func (c *cachingRegistry) forceReload(name string) (*PackageInfo, error) {
	info, err := c.inner.ForceReload(name)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindNetwork, err, "force-reload package info for %q", name)
	}
	c.mu.Lock()
	c.cache[name] = info
	c.mu.Unlock()
	return info, nil
}
