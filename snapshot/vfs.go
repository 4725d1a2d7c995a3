package snapshot

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
	"github.com/tinylib/msgp/msgp"

	"github.com/coreruntime/kernel/kerrors"
)

// vfsKind is the sum-type tag for a VirtualFSEntry: file bytes, a
// redirect, or a directory listing.
type vfsKind uint8

const (
	vfsFile vfsKind = iota
	vfsRedirect
	vfsDir
)

// VirtualFSEntry is one node of the tree appended to a standalone binary
//. RelativePath is always slash-separated and relative
// to the vfs root regardless of build platform, so the serialized tree is
// reproducible across operating systems.
type VirtualFSEntry struct {
	RelativePath string
	Kind         vfsKind
	Data         []byte   // populated when Kind == vfsFile
	RedirectTo   string   // populated when Kind == vfsRedirect
	Children     []string // populated when Kind == vfsDir, sorted relative paths
}

// VirtualFS is the full tree plus the target filesystem's case-sensitivity
// flag (the invariant: "serialization is deterministic byte-for-byte
// across runs given the same inputs").
type VirtualFS struct {
	CaseSensitivity VFSCaseSensitivity
	entries         []*VirtualFSEntry // in insertion order; sorted() orders them for encoding
}

func NewVirtualFS(cs VFSCaseSensitivity) *VirtualFS {
	return &VirtualFS{CaseSensitivity: cs}
}

// AddFile/AddRedirect/AddDir insert a node. Callers may add entries in any
// order; encode sorts a copy by RelativePath (via sorted())
// before serialization so determinism never depends on caller order.
func (v *VirtualFS) AddFile(relPath string, data []byte) {
	v.entries = append(v.entries, &VirtualFSEntry{RelativePath: relPath, Kind: vfsFile, Data: data})
}

func (v *VirtualFS) AddRedirect(relPath, target string) {
	v.entries = append(v.entries, &VirtualFSEntry{RelativePath: relPath, Kind: vfsRedirect, RedirectTo: target})
}

func (v *VirtualFS) AddDir(relPath string, children []string) {
	sorted := append([]string(nil), children...)
	sort.Strings(sorted)
	v.entries = append(v.entries, &VirtualFSEntry{RelativePath: relPath, Kind: vfsDir, Children: sorted})
}

func (v *VirtualFS) sorted() []*VirtualFSEntry {
	out := append([]*VirtualFSEntry(nil), v.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}

// BuildVirtualFS walks root with godirwalk and produces a VirtualFS
// snapshot of its contents, used by `kerneld compile` to embed a
// project's source tree into a standalone binary.
func BuildVirtualFS(root string, cs VFSCaseSensitivity) (*VirtualFS, error) {
	vfs := NewVirtualFS(cs)
	dirChildren := map[string][]string{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)
			parent := filepath.ToSlash(filepath.Dir(rel))
			if parent == "." {
				parent = ""
			}
			dirChildren[parent] = append(dirChildren[parent], rel)

			if de.IsDir() {
				return nil
			}
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			if info.Mode()&os.ModeSymlink != 0 {
				target, err := os.Readlink(path)
				if err != nil {
					return err
				}
				vfs.AddRedirect(rel, filepath.ToSlash(target))
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			vfs.AddFile(rel, data)
			return nil
		},
	})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindIo, err, "walk %q", root)
	}
	for parent, children := range dirChildren {
		vfs.AddDir(parent, children)
	}
	return vfs, nil
}

func (v *VirtualFS) encode(w *msgp.Writer) error {
	if err := w.WriteUint8(uint8(v.CaseSensitivity)); err != nil {
		return err
	}
	entries := v.sorted()
	if err := w.WriteUint32(uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.WriteString(e.RelativePath); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(e.Kind)); err != nil {
			return err
		}
		switch e.Kind {
		case vfsFile:
			if err := w.WriteBytes(e.Data); err != nil {
				return err
			}
		case vfsRedirect:
			if err := w.WriteString(e.RedirectTo); err != nil {
				return err
			}
		case vfsDir:
			if err := writeStringSlice(w, e.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeVirtualFS(r *msgp.Reader) (*VirtualFS, error) {
	cs, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	v := NewVirtualFS(VFSCaseSensitivity(cs))
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < n; i++ {
		relPath, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		switch vfsKind(kind) {
		case vfsFile:
			data, err := r.ReadBytes(nil)
			if err != nil {
				return nil, err
			}
			v.AddFile(relPath, data)
		case vfsRedirect:
			target, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			v.AddRedirect(relPath, target)
		case vfsDir:
			children, err := readStringSlice(r)
			if err != nil {
				return nil, err
			}
			v.AddDir(relPath, children)
		default:
			return nil, kerrors.New(kerrors.KindInvalidData, "unknown vfs entry kind %d for %q", kind, relPath)
		}
	}
	return v, nil
}
