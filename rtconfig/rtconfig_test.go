package rtconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/rtconfig"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := rtconfig.Default()
	cfg.CacheDir = dir
	cfg.FrozenLockfile = true
	cfg.RegistryURL = "https://registry.example.com"

	require.NoError(t, rtconfig.Save(cfg))

	loaded, err := rtconfig.Load(dir)
	require.NoError(t, err)
	require.Equal(t, cfg.FrozenLockfile, loaded.FrozenLockfile)
	require.Equal(t, cfg.RegistryURL, loaded.RegistryURL)
}

func TestLoadMissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := rtconfig.Load(dir)
	require.Error(t, err)
}

func TestLoadOrDefaultFallsBackWithoutError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	cfg := rtconfig.LoadOrDefault(dir)
	require.Equal(t, dir, cfg.CacheDir)
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"version":99}`), 0o644))

	_, err := rtconfig.Load(dir)
	require.Error(t, err)
}
