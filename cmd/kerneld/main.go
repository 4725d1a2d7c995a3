package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/coreruntime/kernel/api"
	"github.com/coreruntime/kernel/arena"
	"github.com/coreruntime/kernel/artifactcache"
	"github.com/coreruntime/kernel/cancel"
	"github.com/coreruntime/kernel/evloop"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/lockfile"
	"github.com/coreruntime/kernel/modgraph"
	"github.com/coreruntime/kernel/ops"
	"github.com/coreruntime/kernel/pkgresolve"
	"github.com/coreruntime/kernel/resource"
	"github.com/coreruntime/kernel/rtconfig"
	"github.com/coreruntime/kernel/rtlog"
	"github.com/coreruntime/kernel/snapshot"
)

// kernel bundles the long-lived state every op and subsystem shares across
// a single run: bootstrapped once, passed by reference, owner of every
// shared table.
type kernel struct {
	cfg       *rtconfig.Config
	resources *resource.Table
	scratch   *arena.Arena[[]byte]
	registry  *ops.Registry
	loop      *evloop.Loop
	root      *cancel.Handle
	graph     *modgraph.Graph
	cache     *artifactcache.ArtifactDB
	httpCache *artifactcache.HTTPCache
}

func newKernel(cfg *rtconfig.Config) (*kernel, error) {
	dbPath := filepath.Join(cfg.CacheDir, "artifacts.db")
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "create cache dir %q", cfg.CacheDir)
	}
	db, err := artifactcache.OpenArtifactDB(dbPath)
	if err != nil {
		return nil, err
	}

	k := &kernel{
		cfg:       cfg,
		resources: resource.NewTable(),
		scratch:   arena.New[[]byte](),
		registry:  ops.NewRegistry(),
		loop:      evloop.New(),
		root:      cancel.New(),
		cache:     db,
		httpCache: artifactcache.NewHTTPCache(filepath.Join(cfg.CacheDir, "http")),
	}
	k.loop.AddKeepAliveSource(k.resources)
	k.registerOps()

	modRegistry := modgraph.NewRegistry()
	modRegistry.Register(modgraph.NewFileLoader())
	modRegistry.Register(modgraph.NewHTTPLoader(cfg.CachedOnly))
	resolver := &modgraph.Resolver{}
	k.graph = modgraph.NewGraph(modRegistry, resolver, extractSpecifiersStub)

	return k, nil
}

// extractSpecifiersStub stands in for the (non-goal) JS/TS parser: it never
// reports additional imports, so Graph.Build only ever visits the roots
// passed to it. A real parser would replace this without changing Graph's
// contract.
func extractSpecifiersStub(_ modgraph.MediaType, _ []byte) ([]modgraph.Import, error) {
	return nil, nil
}

func (k *kernel) Close() {
	if err := k.cache.Close(); err != nil {
		rtlog.Warningf("kerneld: closing artifact cache: %v", err)
	}
}

// registerOps installs the op declarations for the resource subsystem
// (close and shutdown), registering each once at daemon construction.
func (k *kernel) registerOps() {
	k.registry.Register(ops.NewDecl(api.OpResourceClose, []ops.ArgKind{ops.KindU32}, ops.KindVoid, false,
		func(_ *ops.OpContext, rawArgs []byte) ([]byte, error) {
			// The dispatcher's rawArgs slice is only valid for the duration of
			// this call; stash a copy in the scratch arena rather than
			// assuming callers keep decodeRid's input alive past return.
			scratch := k.scratch.Allocate(append([]byte(nil), rawArgs...))
			defer scratch.Release()
			rid, err := decodeRid(*scratch.Get())
			if err != nil {
				return nil, err
			}
			if err := k.resources.Close(rid); err != nil {
				return nil, err
			}
			return nil, nil
		}))

	k.registry.Register(ops.NewDecl(api.OpResourceShutdown, []ops.ArgKind{ops.KindU32}, ops.KindVoid, true,
		func(_ *ops.OpContext, rawArgs []byte) ([]byte, error) {
			rid, err := decodeRid(rawArgs)
			if err != nil {
				return nil, err
			}
			r, err := k.resources.Get(rid)
			if err != nil {
				return nil, err
			}
			return nil, r.Shutdown()
		}))
}

func decodeRid(rawArgs []byte) (uint32, error) {
	if len(rawArgs) != 4 {
		return 0, kerrors.New(kerrors.KindInvalidData, "op_resource_* expects a 4-byte rid argument")
	}
	return uint32(rawArgs[0]) | uint32(rawArgs[1])<<8 | uint32(rawArgs[2])<<16 | uint32(rawArgs[3])<<24, nil
}

func main() {
	flag.Usage = usage
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "compile":
		err = compileCommand(args)
	case "extract":
		err = extractCommand(args)
	case "install":
		err = installCommand(args)
	case "serve":
		err = serveCommand(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		rtlog.Errorf("kerneld %s: %v", cmd, err)
		rtlog.Flush()
		os.Exit(1)
	}
	rtlog.Flush()
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kerneld <run|compile|extract|install|serve> [args]")
}

// runCommand loads (or falls back to default) rtconfig, discovers the
// workspace lockfile, constructs the kernel, builds a module graph rooted
// at entrypoint, and runs the event loop to idle: config load, table
// construction, run until quiescent.
func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	noLock := fs.Bool("no-lock", false, "skip lockfile discovery")
	frozen := fs.Bool("frozen", false, "fail instead of writing a changed lockfile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return kerrors.New(kerrors.KindInvalidData, "run requires an entrypoint argument")
	}
	entrypoint := fs.Arg(0)

	if snapshot.HasTrailer(entrypoint) {
		return runStandalone(entrypoint)
	}

	cfg := rtconfig.LoadOrDefault(defaultCacheDirFlag())
	cfg.NoLock = *noLock || cfg.NoLock
	cfg.FrozenLockfile = *frozen || cfg.FrozenLockfile

	k, err := newKernel(cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	k.root.OnCancel(func() { rtlog.Infof("kerneld: cancellation root fired, draining event loop") })
	go func() {
		<-sigCh
		k.root.Cancel()
	}()

	workspaceRoot, err := filepath.Abs(filepath.Dir(entrypoint))
	if err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "resolve workspace root for %q", entrypoint)
	}
	if !cfg.NoLock {
		lf, err := lockfile.Discover(workspaceRoot, false, false, cfg.FrozenLockfile, false)
		if err != nil {
			return err
		}
		if cfg.FrozenLockfile {
			if err := lf.ErrorIfChanged(); err != nil {
				return err
			}
		} else if err := lf.WriteIfChanged(); err != nil {
			return err
		}
	}

	specifier := "file://" + entrypoint
	if err := k.graph.Build([]string{specifier}, modgraph.LoadOptions{Cache: modgraph.CacheUse}); err != nil {
		return err
	}
	mod, ok := k.graph.Module(specifier)
	if !ok {
		return kerrors.New(kerrors.KindNotFound, "entrypoint %q did not load", specifier)
	}
	rtlog.Infof("kerneld: loaded entrypoint %s (%d bytes)", specifier, len(mod.Bytes))

	k.loop.Run()
	return nil
}

// runStandalone extracts and deserializes the embedded payload of a
// standalone binary and reports its contents, standing in for the full
// execution path (constructing a V8-equivalent runtime from the payload),
// which belongs to the engine-embedding layer, not this kernel.
func runStandalone(path string) error {
	raw, err := snapshot.Extract(path)
	if err != nil {
		return err
	}
	payload, err := snapshot.Deserialize(raw)
	if err != nil {
		return err
	}
	rtlog.Infof("kerneld: standalone entrypoint %s, %d modules embedded", payload.Metadata.EntrypointKey, payload.ModuleStore.Len())
	return nil
}

// compileCommand builds a standalone binary embedding sourceRoot's virtual
// filesystem, appended to a copy of the running kerneld binary itself as
// the host executable.
func compileCommand(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("out", "", "output path for the standalone binary")
	entrypoint := fs.String("entrypoint", "", "entrypoint module key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || *out == "" || *entrypoint == "" {
		return kerrors.New(kerrors.KindInvalidData, "compile requires a source root, --entrypoint and --out")
	}
	sourceRoot := fs.Arg(0)

	vfs, err := snapshot.BuildVirtualFS(sourceRoot, snapshot.CaseSensitive)
	if err != nil {
		return err
	}
	payload := &snapshot.Payload{
		Metadata: &snapshot.Metadata{
			Argv:               []string{*entrypoint},
			EntrypointKey:      *entrypoint,
			NodeModules:        snapshot.NodeModulesManaged,
			VFSCaseSensitivity: snapshot.CaseSensitive,
		},
		ModuleStore: snapshot.NewModuleStore(),
		VFS:         vfs,
	}
	data, err := snapshot.Serialize(payload, true)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "locate running executable")
	}
	if err := snapshot.Append(self, data, *out); err != nil {
		return err
	}
	rtlog.Infof("kerneld: compiled %s into standalone binary %s (%d payload bytes)", sourceRoot, *out, len(data))
	return nil
}

// extractCommand dumps a standalone binary's embedded payload summary
// without running it, useful for inspecting a `compile` result.
func extractCommand(args []string) error {
	if len(args) != 1 {
		return kerrors.New(kerrors.KindInvalidData, "extract requires a standalone binary path")
	}
	return runStandalone(args[0])
}

func defaultCacheDirFlag() string {
	cfg := rtconfig.Default()
	return cfg.CacheDir
}

// installCommand resolves and installs a flat list of "name@range" package
// requests into projectRoot/node_modules: registry fetch (cached through
// artifactcache.HTTPCache), single-writer resolution, then a local
// install.
func installCommand(args []string) error {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	registryURL := fs.String("registry", "https://registry.npmjs.org", "registry base URL")
	projectRoot := fs.String("root", ".", "project root to install node_modules into")
	allowScripts := fs.Bool("allow-scripts", false, "run package lifecycle scripts after install")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return kerrors.New(kerrors.KindInvalidData, "install requires at least one name@range argument")
	}

	cfg := rtconfig.LoadOrDefault(defaultCacheDirFlag())
	if cfg.RegistryURL != "" {
		*registryURL = cfg.RegistryURL
	}

	httpCache := artifactcache.NewHTTPCache(filepath.Join(cfg.CacheDir, "http"))
	client := newHTTPRegistryClient(*registryURL, httpCache)
	if tok := os.Getenv(api.EnvRegistryToken); tok != "" {
		client.withAuth(tok, os.Getenv(api.EnvRegistryTokenSecret))
	}
	resolver := pkgresolve.NewResolver(client, nil)

	reqs := make([]pkgresolve.PackageReq, 0, fs.NArg())
	for _, arg := range fs.Args() {
		name, rng, ok := strings.Cut(arg, "@")
		if !ok {
			return kerrors.New(kerrors.KindInvalidData, "%q is not name@range", arg)
		}
		reqs = append(reqs, pkgresolve.PackageReq{Name: name, Range: rng})
	}

	snap, err := resolver.Resolve(reqs)
	if err != nil {
		return err
	}
	rtlog.Infof("kerneld: resolved %d packages for %d root requests", len(snap.Packages), len(reqs))

	// Resolution succeeded, so the lockfile is written now - before the
	// install step, whose failures (including lifecycle scripts) must not
	// lose the resolved state.
	lf, err := lockfile.Discover(*projectRoot, cfg.NoLock, false, cfg.FrozenLockfile, false)
	if err != nil {
		return err
	}
	if lf != nil {
		for _, pkg := range snap.Packages {
			lf.SetPackageIntegrity(pkg.Id.Name+"@"+pkg.Id.Version, lockfile.PackageIntegrity{
				Name:       pkg.Id.Name,
				Version:    pkg.Id.Version,
				Integrity:  pkg.Integrity,
				TarballURL: pkg.TarballURL,
			})
		}
		if err := lf.WriteIfChanged(); err != nil {
			return err
		}
	}

	if cfg.CachedOnly {
		rtlog.Infof("kerneld: --cached-only set, skipping install")
		return nil
	}

	installer := pkgresolve.NewInstaller(newHTTPFetcher(), filepath.Join(cfg.CacheDir, "npm"))
	if *allowScripts {
		installer.WithScriptRunner(pkgresolve.ExecScriptRunner{})
	}
	return installer.InstallLocal(context.Background(), snap, *projectRoot)
}
