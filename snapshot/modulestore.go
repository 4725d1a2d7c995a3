// Package snapshot implements the standalone binary format: a
// deterministic trailer (metadata, remote-module store, virtual FS tree)
// appended to a host executable. The layout is a per-entry bitflag for
// optional sections, stable insertion-order specifier ids, and a trailer
// of [payload][u64 len][8-byte magic].
package snapshot

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/coreruntime/kernel/kerrors"
)

// Per-entry bitflags for ModuleStoreEntry's optional sections. The
// numbering is part of the wire format.
const (
	flagHasTranspiled uint8 = 1 << 0
	flagHasSourceMap  uint8 = 1 << 1
	flagHasCjsExport  uint8 = 1 << 2
)

// SpecifierID identifies a module in the store. Ids are assigned in
// first-seen-specifier order, never derived from a hash, so the same
// build produces the same ids run to run.
type SpecifierID uint32

// ModuleStoreEntry is one remote-module-store row: the module's media
// type and bytes, plus three independently-optional derived sections.
type ModuleStoreEntry struct {
	MediaType           MediaType
	Data                []byte
	Transpiled          []byte // nil if not present
	SourceMap           []byte
	CjsExportAnalysis   []byte
}

func (e *ModuleStoreEntry) flags() uint8 {
	var f uint8
	if e.Transpiled != nil {
		f |= flagHasTranspiled
	}
	if e.SourceMap != nil {
		f |= flagHasSourceMap
	}
	if e.CjsExportAnalysis != nil {
		f |= flagHasCjsExport
	}
	return f
}

func (e *ModuleStoreEntry) encode(w *msgp.Writer) error {
	if err := writeMediaType(w, e.MediaType); err != nil {
		return err
	}
	if err := w.WriteBytes(e.Data); err != nil {
		return err
	}
	flags := e.flags()
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	for _, section := range []struct {
		has  bool
		data []byte
	}{
		{flags&flagHasTranspiled != 0, e.Transpiled},
		{flags&flagHasSourceMap != 0, e.SourceMap},
		{flags&flagHasCjsExport != 0, e.CjsExportAnalysis},
	} {
		if section.has {
			if err := w.WriteBytes(section.data); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeModuleStoreEntry(r *msgp.Reader) (*ModuleStoreEntry, error) {
	e := &ModuleStoreEntry{}
	var err error
	if e.MediaType, err = readMediaType(r); err != nil {
		return nil, err
	}
	if e.Data, err = r.ReadBytes(nil); err != nil {
		return nil, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if flags&flagHasTranspiled != 0 {
		if e.Transpiled, err = r.ReadBytes(nil); err != nil {
			return nil, err
		}
	}
	if flags&flagHasSourceMap != 0 {
		if e.SourceMap, err = r.ReadBytes(nil); err != nil {
			return nil, err
		}
	}
	if flags&flagHasCjsExport != 0 {
		if e.CjsExportAnalysis, err = r.ReadBytes(nil); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ModuleStore is the remote-module store keyed by specifier id. Ids are
// assigned by Add in insertion order; iteration (and therefore
// serialization) always walks that same order, which is what makes
// Serialize deterministic across runs given the same inputs.
type ModuleStore struct {
	bySpecifier map[string]SpecifierID
	entries     []*ModuleStoreEntry
	specifiers  []string
}

func NewModuleStore() *ModuleStore {
	return &ModuleStore{bySpecifier: make(map[string]SpecifierID)}
}

// Add inserts specifier with entry, returning its id. Re-adding the same
// specifier is a no-op returning the existing id (first-seen order is
// preserved, matching the original's IndexMap semantics).
func (s *ModuleStore) Add(specifier string, entry *ModuleStoreEntry) SpecifierID {
	if id, ok := s.bySpecifier[specifier]; ok {
		return id
	}
	id := SpecifierID(len(s.entries))
	s.bySpecifier[specifier] = id
	s.entries = append(s.entries, entry)
	s.specifiers = append(s.specifiers, specifier)
	return id
}

func (s *ModuleStore) Lookup(specifier string) (SpecifierID, bool) {
	id, ok := s.bySpecifier[specifier]
	return id, ok
}

func (s *ModuleStore) Get(id SpecifierID) (*ModuleStoreEntry, bool) {
	if int(id) >= len(s.entries) {
		return nil, false
	}
	return s.entries[id], true
}

func (s *ModuleStore) Len() int { return len(s.entries) }

func (s *ModuleStore) encode(w *msgp.Writer) error {
	if err := w.WriteUint32(uint32(len(s.entries))); err != nil {
		return err
	}
	for i, entry := range s.entries {
		if err := w.WriteUint32(uint32(i)); err != nil {
			return err
		}
		if err := w.WriteString(s.specifiers[i]); err != nil {
			return err
		}
		if err := entry.encode(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeModuleStore(r *msgp.Reader) (*ModuleStore, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	s := NewModuleStore()
	for i := uint32(0); i < n; i++ {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if id != i {
			return nil, kerrors.New(kerrors.KindInvalidData, "module store entry %d has out-of-order id %d", i, id)
		}
		specifier, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		entry, err := decodeModuleStoreEntry(r)
		if err != nil {
			return nil, err
		}
		s.Add(specifier, entry)
	}
	return s, nil
}
