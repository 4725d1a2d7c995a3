// Package lockfile implements the workspace lockfile: a JSON document with
// a stable key order, frozen-mode diff checking and atomic
// rewrite-if-changed. The document is versioned metadata loaded once,
// compared for equality, and rewritten only on change.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
)

// WorkspaceMemberConfig is the per-member dependency set recorded by
// SetWorkspaceConfig.
type WorkspaceMemberConfig struct {
	PackageJSONDeps []string
	JSRDeps         []string
}

// PackageIntegrity is one entry of the lockfile's packages section.
// TarballURL is recorded as the caller gives it; nothing drops it when it
// matches the registry's default URL, so a default-registry URL is written
// out in full.
type PackageIntegrity struct {
	Name       string
	Version    string
	Integrity  string
	TarballURL string
}

// Document is the in-memory, not-yet-serialized lockfile content. Key
// order on disk is made stable by Bytes, not by this struct's field order.
type Document struct {
	Version   string
	Workspace map[string]WorkspaceMemberConfig
	Packages  map[string]PackageIntegrity // keyed by "name@version"
	Remote    map[string]string           // module URL -> integrity
}

func newDocument() *Document {
	return &Document{
		Version:   "4",
		Workspace: make(map[string]WorkspaceMemberConfig),
		Packages:  make(map[string]PackageIntegrity),
		Remote:    make(map[string]string),
	}
}

// Lockfile is the CliLockfile-equivalent handle: path, frozen flag, the
// document, and the dirty bit write_if_changed consults.
type Lockfile struct {
	mu         sync.Mutex
	path       string
	frozen     bool
	skipWrite  bool
	doc        *Document
	onDiskHash string
	changed    bool
}

// Discover walks upward from
// workspaceRoot looking for "deno.lock", honoring noLock (--no-lock) and
// isGlobalOp (global install/uninstall never consult a lockfile).
func Discover(workspaceRoot string, noLock, isGlobalOp, frozen, skipWrite bool) (*Lockfile, error) {
	if noLock || isGlobalOp {
		return nil, nil
	}
	dir := workspaceRoot
	for {
		candidate := filepath.Join(dir, "deno.lock")
		if _, err := os.Stat(candidate); err == nil {
			return readFromPath(candidate, frozen, skipWrite)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return readFromPath(filepath.Join(workspaceRoot, "deno.lock"), frozen, skipWrite)
}

func readFromPath(path string, frozen, skipWrite bool) (*Lockfile, error) {
	lf := &Lockfile{path: path, frozen: frozen, skipWrite: skipWrite, doc: newDocument()}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return lf, nil
	}
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "read lockfile %q", path)
	}
	doc, err := parse(raw)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "parse lockfile %q", path)
	}
	lf.doc = doc
	lf.onDiskHash = string(Bytes(doc))
	return lf, nil
}

// SetWorkspaceConfig records member.cfg for member, marking the document
// dirty if the value actually differs from what's recorded.
func (lf *Lockfile) SetWorkspaceConfig(member string, cfg WorkspaceMemberConfig) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	existing, ok := lf.doc.Workspace[member]
	if ok && equalMemberConfig(existing, cfg) {
		return
	}
	lf.doc.Workspace[member] = cfg
	lf.changed = true
}

// SetPackageIntegrity is the equivalent write path for the packages table.
func (lf *Lockfile) SetPackageIntegrity(key string, pkg PackageIntegrity) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if existing, ok := lf.doc.Packages[key]; ok && existing == pkg {
		return
	}
	lf.doc.Packages[key] = pkg
	lf.changed = true
}

// SetRemoteIntegrity records the integrity of a fetched remote module URL.
func (lf *Lockfile) SetRemoteIntegrity(url, integrity string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if existing, ok := lf.doc.Remote[url]; ok && existing == integrity {
		return
	}
	lf.doc.Remote[url] = integrity
	lf.changed = true
}

// RemoteIntegrity returns the pinned integrity for a remote module URL, if
// any; loaders treat a mismatch against this value as terminal.
func (lf *Lockfile) RemoteIntegrity(url string) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	v, ok := lf.doc.Remote[url]
	return v, ok
}

func equalMemberConfig(a, b WorkspaceMemberConfig) bool {
	if len(a.PackageJSONDeps) != len(b.PackageJSONDeps) || len(a.JSRDeps) != len(b.JSRDeps) {
		return false
	}
	for i := range a.PackageJSONDeps {
		if a.PackageJSONDeps[i] != b.PackageJSONDeps[i] {
			return false
		}
	}
	for i := range a.JSRDeps {
		if a.JSRDeps[i] != b.JSRDeps[i] {
			return false
		}
	}
	return true
}

// ErrorIfChanged implements the frozen-mode check: if frozen is on and the
// in-memory document differs from what was last read from disk, it returns
// a user-visible diff and refuses to let the caller write.
func (lf *Lockfile) ErrorIfChanged() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if !lf.frozen {
		return nil
	}
	current := Bytes(lf.doc)
	if string(current) == lf.onDiskHash {
		return nil
	}
	diff := diffLines(lf.onDiskHash, string(current))
	return kerrors.New(kerrors.KindInvalidData,
		"The lockfile is out of date. Run with `--frozen=false` to update it.\nchanges:\n%s", diff)
}

// WriteIfChanged atomically rewrites the lockfile iff its content changed
// since the last successful write. It honors frozen mode with the same
// check ErrorIfChanged makes: a frozen lockfile whose content changed is
// an error and is never written.
func (lf *Lockfile) WriteIfChanged() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.skipWrite || !lf.changed {
		return nil
	}
	raw := Bytes(lf.doc)
	if string(raw) == lf.onDiskHash {
		lf.changed = false
		return nil
	}
	if lf.frozen {
		diff := diffLines(lf.onDiskHash, string(raw))
		return kerrors.New(kerrors.KindInvalidData,
			"The lockfile is out of date. Run with `--frozen=false` to update it.\nchanges:\n%s", diff)
	}
	if err := cos.AtomicWriteFile(lf.path, raw, cos.CachePerm); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "write lockfile %q", lf.path)
	}
	lf.onDiskHash = string(raw)
	lf.changed = false
	return nil
}

func diffLines(before, after string) string {
	if before == "" {
		return fmt.Sprintf("+ %s", after)
	}
	return fmt.Sprintf("- %s\n+ %s", before, after)
}
