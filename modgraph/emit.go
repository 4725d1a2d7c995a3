package modgraph

import (
	"fmt"

	"github.com/coreruntime/kernel/artifactcache"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// TranspileFn turns a TS/JSX-family module into runnable JS plus an
// optional source map. The graph doesn't carry a transpiler itself; this
// hook plugs one in, the same way ExtractSpecifiers plugs in a parser.
type TranspileFn func(m *LoadedModule) (js, sourceMap []byte, err error)

// Emitter produces runnable JS for a loaded module, consulting the emit
// cache first. The cache row is keyed by the module's 64-bit content
// hash, so an unchanged source is never transpiled twice across runs.
type Emitter struct {
	db        *artifactcache.ArtifactDB
	transpile TranspileFn
}

func NewEmitter(db *artifactcache.ArtifactDB, transpile TranspileFn) *Emitter {
	return &Emitter{db: db, transpile: transpile}
}

func emitKey(m *LoadedModule) string { return fmt.Sprintf("%016x", m.SourceHash) }

// EmitModule returns the module's bytes unchanged when its media type
// needs no transpile, else the cached or freshly transpiled form.
func (e *Emitter) EmitModule(m *LoadedModule) ([]byte, error) {
	if !m.MediaType.NeedsTranspile() {
		return m.Bytes, nil
	}
	key := emitKey(m)
	row, ok, err := e.db.GetEmitData(m.Specifier, key)
	if err != nil {
		return nil, err
	}
	if ok && row.SourceHash == key {
		return []byte(row.Text), nil
	}

	if e.transpile == nil {
		return nil, kerrors.New(kerrors.KindNotSupported, "no transpiler configured for %q", m.Specifier)
	}
	js, srcMap, err := e.transpile(m)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "transpile %q", m.Specifier)
	}

	out := artifactcache.EmitData{Specifier: m.Specifier, Version: key, SourceHash: key, Text: string(js)}
	if srcMap != nil {
		s := string(srcMap)
		out.SourceMap = &s
	}
	// A failed cache write costs a re-transpile next run, nothing more.
	if err := e.db.PutEmitData(out); err != nil {
		rtlog.Warningf("modgraph: caching emit for %q: %v", m.Specifier, err)
	}
	return js, nil
}

// ModuleInfoFor memoizes the structural summary the extract hook computes
// through the module-info cache table, which holds one row per (specifier,
// content hash). A cached row whose media type differs from m's is treated
// as a miss: the summary is recomputed and overwrites that row.
func (e *Emitter) ModuleInfoFor(m *LoadedModule, compute func() (string, error)) (string, error) {
	key := emitKey(m)
	row, ok, err := e.db.GetModuleInfo(m.Specifier, key)
	if err != nil {
		return "", err
	}
	if ok && row.MediaType == int(m.MediaType) {
		return row.ModuleInfo, nil
	}
	info, err := compute()
	if err != nil {
		return "", err
	}
	if err := e.db.PutModuleInfo(artifactcache.ModuleInfoCache{
		Specifier: m.Specifier, MediaType: int(m.MediaType), SourceHash: key, ModuleInfo: info,
	}); err != nil {
		rtlog.Warningf("modgraph: caching module info for %q: %v", m.Specifier, err)
	}
	return info, nil
}
