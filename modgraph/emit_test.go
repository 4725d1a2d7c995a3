package modgraph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/artifactcache"
	"github.com/coreruntime/kernel/modgraph"
)

func newTestEmitter(t *testing.T, transpile modgraph.TranspileFn) *modgraph.Emitter {
	t.Helper()
	db, err := artifactcache.OpenArtifactDB(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return modgraph.NewEmitter(db, transpile)
}

func TestEmitModulePassesThroughPlainJS(t *testing.T) {
	calls := 0
	e := newTestEmitter(t, func(_ *modgraph.LoadedModule) ([]byte, []byte, error) {
		calls++
		return nil, nil, nil
	})
	m := &modgraph.LoadedModule{
		Specifier: "https://example.com/a.js",
		MediaType: modgraph.MediaJavaScript,
		Bytes:     []byte("export {}"),
	}
	out, err := e.EmitModule(m)
	require.NoError(t, err)
	require.Equal(t, m.Bytes, out)
	require.Zero(t, calls)
}

func TestEmitModuleTranspilesOncePerContentHash(t *testing.T) {
	calls := 0
	e := newTestEmitter(t, func(m *modgraph.LoadedModule) ([]byte, []byte, error) {
		calls++
		return []byte("var x = 1;"), nil, nil
	})
	m := &modgraph.LoadedModule{
		Specifier:  "https://example.com/a.ts",
		MediaType:  modgraph.MediaTypeScript,
		Bytes:      []byte("const x: number = 1;"),
		SourceHash: 42,
	}

	first, err := e.EmitModule(m)
	require.NoError(t, err)
	require.Equal(t, "var x = 1;", string(first))
	second, err := e.EmitModule(m)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)

	// A changed source hash misses the cache and transpiles again.
	m.SourceHash = 43
	_, err = e.EmitModule(m)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestModuleInfoForMemoizesByHash(t *testing.T) {
	e := newTestEmitter(t, nil)
	m := &modgraph.LoadedModule{
		Specifier:  "https://example.com/a.ts",
		MediaType:  modgraph.MediaTypeScript,
		SourceHash: 7,
	}
	computes := 0
	compute := func() (string, error) {
		computes++
		return `{"imports":["./b.ts"]}`, nil
	}

	info, err := e.ModuleInfoFor(m, compute)
	require.NoError(t, err)
	again, err := e.ModuleInfoFor(m, compute)
	require.NoError(t, err)
	require.Equal(t, info, again)
	require.Equal(t, 1, computes)
}
