package artifactcache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/artifactcache"
)

func TestHTTPCacheGetMissIsNotAnError(t *testing.T) {
	c := artifactcache.NewHTTPCache(t.TempDir())
	body, meta, ok, err := c.Get("https://example.com/missing.ts")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, body)
	require.Nil(t, meta)
}

func TestHTTPCacheSetThenGetRoundTrips(t *testing.T) {
	c := artifactcache.NewHTTPCache(t.TempDir())
	require.NoError(t, c.Set("https://example.com/a.ts", []byte("export const x = 1;"), map[string]string{"content-type": "application/typescript"}))

	body, meta, ok, err := c.Get("https://example.com/a.ts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "export const x = 1;", string(body))
	require.NotNil(t, meta)
	require.Equal(t, "https://example.com/a.ts", meta.URL)
	require.Equal(t, "application/typescript", meta.Headers["content-type"])
}

func TestHTTPCacheRecoversFromMissingMetadata(t *testing.T) {
	root := t.TempDir()
	c := artifactcache.NewHTTPCache(root)
	require.NoError(t, c.Set("https://example.com/a.ts", []byte("body"), nil))

	key, err := artifactcache.KeyPath("https://example.com/a.ts")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, key+".metadata.json")))

	body, meta, ok, err := c.Get("https://example.com/a.ts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "body", string(body))
	require.Nil(t, meta)
}
