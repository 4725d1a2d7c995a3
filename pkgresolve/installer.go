package pkgresolve

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	cuckoo "github.com/seiflotfy/cuckoofilter"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// cuckooKey derives the cached-reqs filter key from a package id via
// blake2b: a cheap, non-cryptographic-strength digest is enough here since
// the filter only needs to dedup concurrent cache populations, not defend
// against collisions the way tarball integrity (sha512, see cmn/cos) does.
func cuckooKey(id PackageId) []byte {
	sum := blake2b.Sum256([]byte(id.String()))
	return sum[:]
}

// Fetcher downloads a package's tarball and returns it pre-extracted as a
// set of (relative path -> file content) entries. It receives the whole
// ResolvedPackage, integrity digest included; neither Install nor the
// default fetcher checks the tarball against that digest.
type Fetcher interface {
	Fetch(ctx context.Context, pkg *ResolvedPackage) (map[string][]byte, error)
}

// Installer materializes a resolved Snapshot onto disk, either as a global
// per-package cache or as a local node_modules tree.
type Installer struct {
	fetcher Fetcher
	cacheDir string

	// pathLocks gives each cache path its own single-writer mutex rather
	// than a single global one, so unrelated packages never contend.
	pathLocksMu sync.Mutex
	pathLocks   map[string]*sync.Mutex

	// cachedReqs records the cache dirs ensureCached has looked up. The
	// lookup result does not change what ensureCached does: concurrent
	// acquisitions of the same package are serialized by pathLocks, and
	// the second one finds the directory already present.
	cachedReqsMu sync.Mutex
	cachedReqs   *cuckoo.Filter

	// scripts, when non-nil, runs each package's lifecycle scripts at the
	// end of a local install. Nil disables lifecycle scripts entirely.
	scripts ScriptRunner
}

func NewInstaller(fetcher Fetcher, cacheDir string) *Installer {
	return &Installer{
		fetcher:   fetcher,
		cacheDir:  cacheDir,
		pathLocks: make(map[string]*sync.Mutex),
		cachedReqs: cuckoo.NewFilter(1 << 16),
	}
}

func (in *Installer) lockFor(path string) *sync.Mutex {
	in.pathLocksMu.Lock()
	defer in.pathLocksMu.Unlock()
	m, ok := in.pathLocks[path]
	if !ok {
		m = &sync.Mutex{}
		in.pathLocks[path] = m
	}
	return m
}

func (in *Installer) globalPackageDir(id PackageId) string {
	return filepath.Join(in.cacheDir, "global", id.Name+"@"+id.Version)
}

// ensureCached downloads pkg's tarball into the global cache dir if it
// isn't already present. The downloaded contents are not checked against
// pkg's integrity digest.
func (in *Installer) ensureCached(ctx context.Context, pkg *ResolvedPackage) error {
	dir := in.globalPackageDir(pkg.Id)
	lock := in.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	key := cuckooKey(pkg.Id)
	in.cachedReqsMu.Lock()
	alreadyPopulating := in.cachedReqs.Lookup(key)
	if !alreadyPopulating {
		in.cachedReqs.InsertUnique(key)
	}
	in.cachedReqsMu.Unlock()

	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	files, err := in.fetcher.Fetch(ctx, pkg)
	if err != nil {
		return kerrors.Wrap(kerrors.KindNetwork, err, "fetch tarball for %s", pkg.Id)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create cache dir for %s", pkg.Id)
	}
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return kerrors.Wrap(kerrors.KindIo, err, "create dir for %s in %s", rel, pkg.Id)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return kerrors.Wrap(kerrors.KindIo, err, "write %s for %s", rel, pkg.Id)
		}
	}
	rtlog.Infof("pkgresolve: cached %s (%d files)", pkg.Id, len(files))
	return nil
}

// InstallGlobal is the global install mode: ensure every package's tarball
// is present in the per-package global cache folder, no node_modules
// assembly.
func (in *Installer) InstallGlobal(ctx context.Context, snap *Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(parallelism()))
	for _, pkg := range snap.Packages {
		pkg := pkg
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return in.ensureCached(gctx, pkg)
		})
	}
	return g.Wait()
}

// InstallLocal materializes a node_modules tree five steps.
func (in *Installer) InstallLocal(ctx context.Context, snap *Snapshot, projectRoot string) error {
	if err := in.InstallGlobal(ctx, snap); err != nil {
		return err
	}

	nodeModules := filepath.Join(projectRoot, "node_modules")
	denoDir := filepath.Join(nodeModules, ".deno")
	if err := os.MkdirAll(denoDir, 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create %s", denoDir)
	}

	for _, pkg := range snap.Packages {
		target := filepath.Join(denoDir, pkg.Id.Name+"@"+pkg.Id.Version, "node_modules", pkg.Id.Name)
		if err := linkInto(in.globalPackageDir(pkg.Id), target); err != nil {
			return err
		}
	}

	for reqKey, id := range snap.Roots {
		pkg := snap.Packages[id]
		link := filepath.Join(nodeModules, pkg.Id.Name)
		target := filepath.Join(denoDir, pkg.Id.Name+"@"+pkg.Id.Version, "node_modules", pkg.Id.Name)
		if err := symlinkReplacing(target, link); err != nil {
			return kerrors.Wrap(kerrors.KindIo, err, "link root dep %s (%s)", reqKey, pkg.Id)
		}
	}

	if err := in.SetupBinEntries(snap, nodeModules); err != nil {
		return err
	}

	// Lifecycle scripts run last. A failure surfaces as a structured error
	// and marks the install incomplete, but nothing already materialized is
	// unwound; a subsequent install can pick up from here.
	if in.scripts != nil {
		if err := in.runLifecycleScripts(ctx, snap, denoDir); err != nil {
			return err
		}
	}
	return nil
}

// SetupBinEntries collects every bin a resolved package declares, resolves
// name collisions, and installs the winners into node_modules/.bin.
func (in *Installer) SetupBinEntries(snap *Snapshot, nodeModules string) error {
	var entries []BinEntry
	for _, pkg := range snap.Packages {
		for name, script := range pkg.Bin {
			entries = append(entries, BinEntry{Owner: pkg.Id, Name: name, Script: script})
		}
	}
	if len(entries) == 0 {
		return nil
	}
	winners, err := ResolveBinCollisions(snap, entries)
	if err != nil {
		return err
	}
	binDir := filepath.Join(nodeModules, ".bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create %s", binDir)
	}
	for name, e := range winners {
		script := filepath.Join(nodeModules, ".deno",
			e.Owner.Name+"@"+e.Owner.Version, "node_modules", e.Owner.Name, e.Script)
		if err := WriteBinShim(binDir, name, script); err != nil {
			return err
		}
	}
	return nil
}

// lifecycleOrder is the fixed sequence of install-time scripts.
var lifecycleOrder = []string{"preinstall", "install", "postinstall"}

func (in *Installer) runLifecycleScripts(ctx context.Context, snap *Snapshot, denoDir string) error {
	for _, pkg := range snap.Packages {
		if !pkg.HasScripts() {
			continue
		}
		pkgDir := filepath.Join(denoDir, pkg.Id.Name+"@"+pkg.Id.Version, "node_modules", pkg.Id.Name)
		for _, name := range lifecycleOrder {
			cmd, ok := pkg.Scripts[name]
			if !ok {
				continue
			}
			if err := in.scripts.Run(ctx, pkgDir, name, cmd); err != nil {
				return kerrors.Wrap(kerrors.KindIo, err, "lifecycle script %q of %s failed", name, pkg.Id)
			}
		}
	}
	return nil
}

func linkInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create parent of %s", dst)
	}
	return symlinkReplacing(src, dst)
}

func symlinkReplacing(target, link string) error {
	_ = os.Remove(link)
	if err := os.Symlink(target, link); err != nil {
		return copyDir(target, link)
	}
	return nil
}

// copyDir is the Windows-friendly fallback for symlinkReplacing: plain
// recursive copy when the platform or filesystem refuses symlinks.
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

func parallelism() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
