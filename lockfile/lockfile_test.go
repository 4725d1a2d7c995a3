package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/lockfile"
)

func TestDiscoverReturnsNilWhenNoLockRequested(t *testing.T) {
	lf, err := lockfile.Discover(t.TempDir(), true, false, false, false)
	require.NoError(t, err)
	require.Nil(t, lf)
}

func TestDiscoverReturnsNilForGlobalOp(t *testing.T) {
	lf, err := lockfile.Discover(t.TempDir(), false, true, false, false)
	require.NoError(t, err)
	require.Nil(t, lf)
}

func TestSetWorkspaceConfigThenWriteIfChanged(t *testing.T) {
	dir := t.TempDir()
	lf, err := lockfile.Discover(dir, false, false, false, false)
	require.NoError(t, err)
	require.NotNil(t, lf)

	lf.SetWorkspaceConfig("root", lockfile.WorkspaceMemberConfig{JSRDeps: []string{"jsr:@std/fs@1.0.0"}})
	require.NoError(t, lf.WriteIfChanged())

	raw, err := os.ReadFile(filepath.Join(dir, "deno.lock"))
	require.NoError(t, err)
	require.Contains(t, string(raw), "@std/fs@1.0.0")
}

func TestWriteIfChangedIsNoopWhenNothingChanged(t *testing.T) {
	dir := t.TempDir()
	lf, err := lockfile.Discover(dir, false, false, false, false)
	require.NoError(t, err)
	require.NoError(t, lf.WriteIfChanged())
	_, err = os.Stat(filepath.Join(dir, "deno.lock"))
	require.True(t, os.IsNotExist(err))
}

func TestLockfileSerializationRoundTripsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	lf, err := lockfile.Discover(dir, false, false, false, false)
	require.NoError(t, err)

	lf.SetWorkspaceConfig("root", lockfile.WorkspaceMemberConfig{PackageJSONDeps: []string{"left-pad"}})
	lf.SetPackageIntegrity("left-pad@1.3.0", lockfile.PackageIntegrity{
		Name: "left-pad", Version: "1.3.0", Integrity: "sha512-bbb",
	})
	lf.SetRemoteIntegrity("https://example.com/mod.ts", "sha256-abc")
	require.NoError(t, lf.WriteIfChanged())

	first, err := os.ReadFile(filepath.Join(dir, "deno.lock"))
	require.NoError(t, err)
	require.True(t, len(first) > 0 && first[len(first)-1] == '\n')
	require.Contains(t, string(first), "  \"remote\"")

	// Reparse and rewrite: canonically produced input re-serializes
	// byte-identically.
	reread, err := lockfile.Discover(dir, false, false, false, false)
	require.NoError(t, err)
	integrity, ok := reread.RemoteIntegrity("https://example.com/mod.ts")
	require.True(t, ok)
	require.Equal(t, "sha256-abc", integrity)
	reread.SetRemoteIntegrity("https://example.com/mod.ts", "sha256-abc")
	require.NoError(t, reread.WriteIfChanged())
	second, err := os.ReadFile(filepath.Join(dir, "deno.lock"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestErrorIfChangedBlocksFrozenWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deno.lock")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"4"}`), 0o644))

	lf, err := lockfile.Discover(dir, false, false, true, false)
	require.NoError(t, err)
	require.NotNil(t, lf)

	lf.SetWorkspaceConfig("root", lockfile.WorkspaceMemberConfig{JSRDeps: []string{"jsr:@std/fs@1.0.0"}})
	err = lf.WriteIfChanged()
	require.Error(t, err)

	err = lf.ErrorIfChanged()
	require.Error(t, err)
	require.Contains(t, err.Error(), "The lockfile is out of date")
}
