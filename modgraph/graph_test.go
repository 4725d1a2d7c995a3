package modgraph_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/modgraph"
)

// fakeLoader serves a fixed in-memory fileset and counts how many times
// each specifier was actually fetched, to assert singleflight dedup.
type fakeLoader struct {
	mu      sync.Mutex
	files   map[string]string
	imports map[string][]string
	fetches map[string]*int32
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		files:   map[string]string{},
		imports: map[string][]string{},
		fetches: map[string]*int32{},
	}
}

func (f *fakeLoader) add(specifier, body string, imports ...string) {
	f.files[specifier] = body
	f.imports[specifier] = imports
	var n int32
	f.fetches[specifier] = &n
}

func (f *fakeLoader) Scheme() string { return "http" }

func (f *fakeLoader) Load(specifier string, _ modgraph.LoadOptions) (modgraph.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[specifier]
	if !ok {
		return modgraph.LoadResult{NotFound: true}, nil
	}
	atomic.AddInt32(f.fetches[specifier], 1)
	return modgraph.LoadResult{Module: &modgraph.LoadedModule{
		Specifier: specifier,
		MediaType: modgraph.MediaTypeScript,
		Bytes:     []byte(body),
	}}, nil
}

func TestGraphBuildFollowsImportsAndDedups(t *testing.T) {
	fl := newFakeLoader()
	fl.add("http://root.ts", "root", "http://a.ts", "http://b.ts")
	fl.add("http://a.ts", "a", "http://shared.ts")
	fl.add("http://b.ts", "b", "http://shared.ts")
	fl.add("http://shared.ts", "shared")

	reg := modgraph.NewRegistry()
	reg.Register(fl)

	extract := func(_ modgraph.MediaType, source []byte) ([]modgraph.Import, error) {
		fl.mu.Lock()
		defer fl.mu.Unlock()
		for specifier, body := range fl.files {
			if body == string(source) {
				imports := make([]modgraph.Import, 0, len(fl.imports[specifier]))
				for _, s := range fl.imports[specifier] {
					imports = append(imports, modgraph.Import{Specifier: s})
				}
				return imports, nil
			}
		}
		return nil, nil
	}

	g := modgraph.NewGraph(reg, &modgraph.Resolver{}, extract)
	err := g.Build([]string{"http://root.ts"}, modgraph.LoadOptions{})
	require.NoError(t, err)
	require.True(t, g.Built())

	for _, specifier := range []string{"http://root.ts", "http://a.ts", "http://b.ts", "http://shared.ts"} {
		_, ok := g.Module(specifier)
		require.True(t, ok, specifier)
	}
	require.Equal(t, int32(1), atomic.LoadInt32(fl.fetches["http://shared.ts"]))

	rootEdges := g.Edges("http://root.ts")
	require.Len(t, rootEdges, 2)
	targets := []string{rootEdges[0].To, rootEdges[1].To}
	require.ElementsMatch(t, []string{"http://a.ts", "http://b.ts"}, targets)
}

type redirectingLoader struct {
	inner     *fakeLoader
	redirects map[string]string
}

func (r *redirectingLoader) Scheme() string { return "http" }

func (r *redirectingLoader) Load(specifier string, opts modgraph.LoadOptions) (modgraph.LoadResult, error) {
	if to, ok := r.redirects[specifier]; ok {
		return modgraph.LoadResult{Redirect: to}, nil
	}
	return r.inner.Load(specifier, opts)
}

func TestGraphBuildCollapsesRedirects(t *testing.T) {
	fl := newFakeLoader()
	fl.add("http://real.ts", "real")
	reg := modgraph.NewRegistry()
	reg.Register(&redirectingLoader{inner: fl, redirects: map[string]string{"http://alias.ts": "http://real.ts"}})

	g := modgraph.NewGraph(reg, &modgraph.Resolver{}, nil)
	require.NoError(t, g.Build([]string{"http://alias.ts"}, modgraph.LoadOptions{}))

	// The module is stored under its canonical specifier, and the original
	// specifier still resolves to it through the redirect map.
	canonical, ok := g.Module("http://real.ts")
	require.True(t, ok)
	viaAlias, ok := g.Module("http://alias.ts")
	require.True(t, ok)
	require.Same(t, canonical, viaAlias)
	require.Equal(t, map[string]string{"http://alias.ts": "http://real.ts"}, g.Redirects())
}

func TestGraphBuildReportsNotFound(t *testing.T) {
	reg := modgraph.NewRegistry()
	reg.Register(newFakeLoader())
	g := modgraph.NewGraph(reg, &modgraph.Resolver{}, nil)
	err := g.Build([]string{"http://missing.ts"}, modgraph.LoadOptions{})
	require.Error(t, err)
}
