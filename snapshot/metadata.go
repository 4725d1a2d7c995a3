package snapshot

import (
	"sort"

	"github.com/tinylib/msgp/msgp"
)

// NodeModulesMode selects how the embedded runtime treats node_modules:
// managed by the runtime's own installer, bring-your-own, or none.
type NodeModulesMode uint8

const (
	NodeModulesManaged NodeModulesMode = iota
	NodeModulesByonm
	NodeModulesNone
)

// VFSCaseSensitivity is the case-sensitivity flag carried by the virtual
// FS tree as a whole (not per-entry).
type VFSCaseSensitivity uint8

const (
	CaseSensitive VFSCaseSensitivity = iota
	CaseInsensitive
)

// Metadata is the first section of the standalone payload:
// argv defaults, seed, permissions, v8 flags, log level, CA data,
// env-from-file, workspace resolver, entrypoint key, node_modules mode,
// unstable flags, otel config, vfs case sensitivity. Fields this kernel
// has no concrete analogue for (PermissionsOptions, OtelConfig, the
// workspace resolver's JSR/import-map internals) are carried as opaque,
// already-serialized JSON blobs rather than invented structs, since the
// external collaborators that own their shape are out of scope.
type Metadata struct {
	Argv                  []string
	Seed                  *uint64
	PermissionsJSON       []byte // opaque: owned by the (non-goal) permissions subsystem
	V8Flags               []string
	LogLevel              string
	CABundle              []byte
	EnvVarsFromFile       map[string]string
	WorkspaceResolverJSON []byte // opaque: owned by the (non-goal) workspace-resolver internals
	EntrypointKey         string
	NodeModules           NodeModulesMode
	UnstableFlags         []string
	OtelConfigJSON        []byte // opaque: observability config, out of scope
	VFSCaseSensitivity    VFSCaseSensitivity
}

func (m *Metadata) encode(w *msgp.Writer) error {
	if err := writeStringSlice(w, m.Argv); err != nil {
		return err
	}
	if err := writeOptionalUint64(w, m.Seed); err != nil {
		return err
	}
	if err := w.WriteBytes(m.PermissionsJSON); err != nil {
		return err
	}
	if err := writeStringSlice(w, m.V8Flags); err != nil {
		return err
	}
	if err := w.WriteString(m.LogLevel); err != nil {
		return err
	}
	if err := w.WriteBytes(m.CABundle); err != nil {
		return err
	}
	if err := writeStringMap(w, m.EnvVarsFromFile); err != nil {
		return err
	}
	if err := w.WriteBytes(m.WorkspaceResolverJSON); err != nil {
		return err
	}
	if err := w.WriteString(m.EntrypointKey); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.NodeModules)); err != nil {
		return err
	}
	if err := writeStringSlice(w, m.UnstableFlags); err != nil {
		return err
	}
	if err := w.WriteBytes(m.OtelConfigJSON); err != nil {
		return err
	}
	return w.WriteUint8(uint8(m.VFSCaseSensitivity))
}

func decodeMetadata(r *msgp.Reader) (*Metadata, error) {
	m := &Metadata{}
	var err error
	if m.Argv, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if m.Seed, err = readOptionalUint64(r); err != nil {
		return nil, err
	}
	if m.PermissionsJSON, err = r.ReadBytes(nil); err != nil {
		return nil, err
	}
	if m.V8Flags, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if m.LogLevel, err = r.ReadString(); err != nil {
		return nil, err
	}
	if m.CABundle, err = r.ReadBytes(nil); err != nil {
		return nil, err
	}
	if m.EnvVarsFromFile, err = readStringMap(r); err != nil {
		return nil, err
	}
	if m.WorkspaceResolverJSON, err = r.ReadBytes(nil); err != nil {
		return nil, err
	}
	if m.EntrypointKey, err = r.ReadString(); err != nil {
		return nil, err
	}
	nm, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.NodeModules = NodeModulesMode(nm)
	if m.UnstableFlags, err = readStringSlice(r); err != nil {
		return nil, err
	}
	if m.OtelConfigJSON, err = r.ReadBytes(nil); err != nil {
		return nil, err
	}
	cs, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	m.VFSCaseSensitivity = VFSCaseSensitivity(cs)
	return m, nil
}

// writeStringSlice/readStringSlice, writeStringMap/readStringMap and the
// optional-uint64 helpers give defaulted fields a fixed-shape sentinel:
// omitting a field's value still means writing a zero-length marker, never
// skipping a slot, so the decoder never needs to guess what's missing.
func writeStringSlice(w *msgp.Writer, items []string) error {
	if err := w.WriteUint32(uint32(len(items))); err != nil {
		return err
	}
	for _, s := range items {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(r *msgp.Reader) ([]string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeStringMap serializes m in sorted-key order so identical inputs
// always encode identically.
func writeStringMap(w *msgp.Writer, m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := w.WriteUint32(uint32(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r *msgp.Reader) (map[string]string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func writeOptionalUint64(w *msgp.Writer, v *uint64) error {
	if v == nil {
		if err := w.WriteBool(false); err != nil {
			return err
		}
		return w.WriteUint64(0)
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	return w.WriteUint64(*v)
}

func readOptionalUint64(r *msgp.Reader) (*uint64, error) {
	has, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	v, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &v, nil
}
