package artifactcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/artifactcache"
)

func TestKeyPathKnownDigests(t *testing.T) {
	for _, tc := range []struct{ url, want string }{
		{"https://example.com/x/foo.ts",
			"https/example.com/2c0a064891b9e3fbe386f5d4a833bce5076543f5404613656042107213a7bbc8"},
		{"https://example.com:8080/x/foo.ts",
			"https/example.com_PORT8080/2c0a064891b9e3fbe386f5d4a833bce5076543f5404613656042107213a7bbc8"},
		{"data:text/plain,Hello%2C%20Deno!",
			"data/967374e3561d6741234131e342bf5c6848b70b13758adfe23ee1a813a8131818"},
	} {
		got, err := artifactcache.KeyPath(tc.url)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.url)
	}
}

func TestKeyPathIgnoresFragment(t *testing.T) {
	a, err := artifactcache.KeyPath("https://example.com/a/b.ts?x=1#section")
	require.NoError(t, err)
	b, err := artifactcache.KeyPath("https://example.com/a/b.ts?x=1#other")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestKeyPathIncludesNonDefaultPort(t *testing.T) {
	withPort, err := artifactcache.KeyPath("http://example.com:8080/a.ts")
	require.NoError(t, err)
	withoutPort, err := artifactcache.KeyPath("http://example.com/a.ts")
	require.NoError(t, err)
	require.NotEqual(t, withPort, withoutPort)
	require.Contains(t, withPort, "example.com_PORT8080")
}

func TestKeyPathQueryChangesDigest(t *testing.T) {
	a, err := artifactcache.KeyPath("https://example.com/a.ts?x=1")
	require.NoError(t, err)
	b, err := artifactcache.KeyPath("https://example.com/a.ts?x=2")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
