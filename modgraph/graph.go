package modgraph

import (
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// Registry dispatches a specifier to the Loader registered for its scheme.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

func NewRegistry() *Registry { return &Registry{loaders: make(map[string]Loader)} }

func (r *Registry) Register(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[l.Scheme()] = l
}

func (r *Registry) loaderFor(specifier string) (Loader, error) {
	u, err := url.Parse(specifier)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindResolution, err, "parse %q", specifier)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	scheme := u.Scheme
	if scheme == "https" {
		// the http loader is registered under "http" and serves both.
		scheme = "http"
	}
	l, ok := r.loaders[scheme]
	if !ok {
		return nil, kerrors.New(kerrors.KindNotSupported, "no loader registered for scheme %q", u.Scheme)
	}
	return l, nil
}

// Import is one outgoing reference discovered in a module's source: the
// raw specifier plus whether it was a dynamic import() and whether it is
// a type-only reference.
type Import struct {
	Specifier string
	Dynamic   bool
	TypeOnly  bool
}

// Edge is a recorded dependency edge to a canonical (post-redirect)
// specifier. An edge only exists once its target has fully loaded.
type Edge struct {
	To       string
	Dynamic  bool
	TypeOnly bool
}

// ExtractSpecifiers parses a module's source for import/re-export
// specifiers. The graph doesn't carry a JS parser itself; this hook
// plugs one in so Graph stays decoupled from a concrete AST library.
type ExtractSpecifiers func(mediaType MediaType, source []byte) ([]Import, error)

// Graph is the module graph: a set of roots, processed breadth-first, with
// each specifier's load shared across concurrent discoverers via
// singleflight so at most one load per specifier is ever in flight.
// Redirects collapse: modules are stored under their canonical specifier
// and the redirect map remembers every hop.
type Graph struct {
	registry  *Registry
	resolver  *Resolver
	extract   ExtractSpecifiers
	sf        singleflight.Group
	mu        sync.Mutex
	modules   map[string]*LoadedModule
	edges     map[string][]Edge
	redirects map[string]string
	built     bool
}

func NewGraph(registry *Registry, resolver *Resolver, extract ExtractSpecifiers) *Graph {
	return &Graph{
		registry:  registry,
		resolver:  resolver,
		extract:   extract,
		modules:   make(map[string]*LoadedModule),
		edges:     make(map[string][]Edge),
		redirects: make(map[string]string),
	}
}

// Build processes roots breadth-first. It returns once every transitively
// required module has loaded, deduplicating
// concurrent requests for the same specifier and following redirects until
// they settle on a Module, External, or NotFound.
func (g *Graph) Build(roots []string, opts LoadOptions) error {
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	var visit func(imp Import, referrer string)
	visit = func(imp Import, referrer string) {
		defer wg.Done()
		enqueue := func(child Import, ref string) {
			wg.Add(1)
			go visit(child, ref)
		}
		if err := g.loadOne(imp, referrer, opts, enqueue); err != nil {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
		}
	}

	for _, r := range roots {
		wg.Add(1)
		go visit(Import{Specifier: r}, "")
	}
	wg.Wait()

	g.mu.Lock()
	g.built = true
	g.mu.Unlock()

	return firstErr
}

func (g *Graph) loadOne(imp Import, referrer string, opts LoadOptions, enqueue func(Import, string)) error {
	resolved := imp.Specifier
	if g.resolver != nil {
		r, err := g.resolver.Resolve(imp.Specifier, referrer, KindImport)
		if err != nil {
			return err
		}
		resolved = r
	}
	opts.Dynamic = imp.Dynamic

	g.mu.Lock()
	if _, ok := g.modules[resolved]; ok {
		g.addEdgeLocked(referrer, imp, resolved)
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	v, err, _ := g.sf.Do(resolved, func() (interface{}, error) {
		loader, err := g.registry.loaderFor(resolved)
		if err != nil {
			return nil, err
		}
		return loader.Load(resolved, opts)
	})
	if err != nil {
		return err
	}
	result := v.(LoadResult)

	switch {
	case result.Redirect != "":
		rtlog.Infof("modgraph: %q redirected to %q", resolved, result.Redirect)
		g.mu.Lock()
		g.redirects[resolved] = result.Redirect
		g.mu.Unlock()
		return g.loadOne(Import{Specifier: result.Redirect, Dynamic: imp.Dynamic, TypeOnly: imp.TypeOnly}, referrer, opts, enqueue)
	case result.NotFound:
		return kerrors.New(kerrors.KindNotFound, "module %q not found", resolved)
	case result.External:
		g.mu.Lock()
		g.addEdgeLocked(referrer, imp, resolved)
		g.mu.Unlock()
		return nil
	case result.Module != nil:
		g.mu.Lock()
		g.modules[resolved] = result.Module
		g.addEdgeLocked(referrer, imp, resolved)
		g.mu.Unlock()
		if g.extract == nil {
			return nil
		}
		imports, err := g.extract(result.Module.MediaType, result.Module.Bytes)
		if err != nil {
			return err
		}
		for _, child := range imports {
			enqueue(child, resolved)
		}
		return nil
	default:
		return kerrors.New(kerrors.KindInvalidData, "loader for %q returned an empty result", resolved)
	}
}

// addEdgeLocked records referrer -> resolved once the target is settled.
// Root loads have no referrer and record nothing.
func (g *Graph) addEdgeLocked(referrer string, imp Import, resolved string) {
	if referrer == "" {
		return
	}
	for _, e := range g.edges[referrer] {
		if e.To == resolved && e.Dynamic == imp.Dynamic && e.TypeOnly == imp.TypeOnly {
			return
		}
	}
	g.edges[referrer] = append(g.edges[referrer], Edge{To: resolved, Dynamic: imp.Dynamic, TypeOnly: imp.TypeOnly})
}

// Module looks up an already-loaded module, following the redirect map to
// the canonical specifier. It only returns populated results once Build
// has returned (the queryable-after-barrier rule); callers that query
// mid-build get a stale, possibly-empty view.
func (g *Graph) Module(specifier string) (*LoadedModule, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		if m, ok := g.modules[specifier]; ok {
			return m, true
		}
		next, ok := g.redirects[specifier]
		if !ok {
			return nil, false
		}
		specifier = next
	}
}

// Edges returns the recorded outgoing edges of a canonical specifier.
func (g *Graph) Edges(specifier string) []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Edge(nil), g.edges[specifier]...)
}

// Redirects returns a copy of the redirect map accumulated during Build.
func (g *Graph) Redirects() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.redirects))
	for k, v := range g.redirects {
		out[k] = v
	}
	return out
}

func (g *Graph) Built() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.built
}
