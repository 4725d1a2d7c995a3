package pkgresolve_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/pkgresolve"
)

type mapFetcher struct {
	files map[string]map[string][]byte // id.String() -> rel path -> content
}

func (f *mapFetcher) Fetch(_ context.Context, pkg *pkgresolve.ResolvedPackage) (map[string][]byte, error) {
	return f.files[pkg.Id.String()], nil
}

type recordingRunner struct {
	ran []string // script names, in run order
}

func (r *recordingRunner) Run(_ context.Context, _ string, scriptName, _ string) error {
	r.ran = append(r.ran, scriptName)
	return nil
}

func installSnapshot() *pkgresolve.Snapshot {
	root := pkgresolve.PackageId{Name: "app-dep", Version: "1.2.0"}
	return &pkgresolve.Snapshot{
		Roots: map[string]pkgresolve.PackageId{"app-dep@^1.0.0": root},
		Packages: map[pkgresolve.PackageId]*pkgresolve.ResolvedPackage{
			root: {
				Id:           root,
				Dependencies: map[string]pkgresolve.PackageId{},
				Bin:          map[string]string{"app-dep": "bin/run.js"},
				Scripts:      map[string]string{"postinstall": "echo done", "preinstall": "echo first"},
			},
		},
	}
}

func TestInstallLocalMaterializesTree(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink layout is unix-shaped")
	}
	cacheDir := t.TempDir()
	projectRoot := t.TempDir()
	snap := installSnapshot()
	fetcher := &mapFetcher{files: map[string]map[string][]byte{
		"app-dep@1.2.0": {
			"package.json": []byte(`{"name":"app-dep"}`),
			"bin/run.js":   []byte("#!/usr/bin/env node\n"),
		},
	}}

	in := pkgresolve.NewInstaller(fetcher, cacheDir)
	require.NoError(t, in.InstallLocal(context.Background(), snap, projectRoot))

	linked := filepath.Join(projectRoot, "node_modules", ".deno",
		"app-dep@1.2.0", "node_modules", "app-dep", "package.json")
	_, err := os.Stat(linked)
	require.NoError(t, err)

	rootLink := filepath.Join(projectRoot, "node_modules", "app-dep")
	target, err := os.Readlink(rootLink)
	require.NoError(t, err)
	require.Contains(t, target, ".deno")

	shim := filepath.Join(projectRoot, "node_modules", ".bin", "app-dep")
	shimTarget, err := os.Readlink(shim)
	require.NoError(t, err)
	require.Contains(t, shimTarget, "bin/run.js")
}

func TestInstallLocalRunsLifecycleScriptsInOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink layout is unix-shaped")
	}
	cacheDir := t.TempDir()
	projectRoot := t.TempDir()
	snap := installSnapshot()
	fetcher := &mapFetcher{files: map[string]map[string][]byte{
		"app-dep@1.2.0": {"package.json": []byte(`{}`)},
	}}
	runner := &recordingRunner{}

	in := pkgresolve.NewInstaller(fetcher, cacheDir).WithScriptRunner(runner)
	require.NoError(t, in.InstallLocal(context.Background(), snap, projectRoot))
	require.Equal(t, []string{"preinstall", "postinstall"}, runner.ran)
}

func TestInstallLocalSkipsScriptsWithoutRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink layout is unix-shaped")
	}
	cacheDir := t.TempDir()
	projectRoot := t.TempDir()
	snap := installSnapshot()
	fetcher := &mapFetcher{files: map[string]map[string][]byte{
		"app-dep@1.2.0": {"package.json": []byte(`{}`)},
	}}

	in := pkgresolve.NewInstaller(fetcher, cacheDir)
	require.NoError(t, in.InstallLocal(context.Background(), snap, projectRoot))
}
