package modgraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/modgraph"
)

func TestResolveURLRelative(t *testing.T) {
	r := &modgraph.Resolver{}
	out, err := r.Resolve("./util.ts", "https://example.com/mod/main.ts", modgraph.KindImport)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/mod/util.ts", out)
}

func TestResolveImportMapPrefix(t *testing.T) {
	r := &modgraph.Resolver{ImportMap: &modgraph.ImportMap{Imports: map[string]string{
		"std/": "https://deno.land/std@0.200.0/",
	}}}
	out, err := r.Resolve("std/fs/mod.ts", "https://example.com/main.ts", modgraph.KindImport)
	require.NoError(t, err)
	require.Equal(t, "https://deno.land/std@0.200.0/fs/mod.ts", out)
}

func TestResolveUnknownSpecifierWithNoReferrer(t *testing.T) {
	r := &modgraph.Resolver{}
	_, err := r.Resolve("./relative.ts", "", modgraph.KindImport)
	require.True(t, kerrors.Is(err, kerrors.KindResolution))
}

func TestResolveInvalidScheme(t *testing.T) {
	r := &modgraph.Resolver{}
	_, err := r.Resolve("ftp://example.com/a.ts", "", modgraph.KindImport)
	require.True(t, kerrors.Is(err, kerrors.KindResolution))
}

func TestInNodeModulesDetectsSegment(t *testing.T) {
	require.True(t, modgraph.InNodeModules("file:///repo/node_modules/left-pad/index.js"))
	require.False(t, modgraph.InNodeModules("file:///repo/src/index.js"))
}
