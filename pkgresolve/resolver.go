package pkgresolve

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// Resolver turns a set of package requirements into a Snapshot. Mutations
// to the snapshot are serialized through a single writer; Current returns
// the live copy-on-write snapshot without taking a lock.
type Resolver struct {
	registry *cachingRegistry
	cell     atomic.Pointer[Snapshot]

	writerMu sync.Mutex // serializes the resolution writer; not held by readers
}

func NewResolver(client RegistryClient, initial *Snapshot) *Resolver {
	r := &Resolver{registry: newCachingRegistry(client)}
	if initial == nil {
		initial = newSnapshot()
	}
	r.cell.Store(initial)
	return r
}

// Current returns the live snapshot, lock-free.
func (r *Resolver) Current() *Snapshot { return r.cell.Load() }

// Resolve resolves reqs against the current snapshot, installing the
// resulting snapshot as current on success. Only one Resolve may be in
// flight at a time (the single-writer property); concurrent callers block
// on writerMu.
func (r *Resolver) Resolve(reqs []PackageReq) (*Snapshot, error) {
	r.writerMu.Lock()
	defer r.writerMu.Unlock()

	base := r.cell.Load()
	next := base.Clone()

	forced := map[string]string{}
	for _, req := range reqs {
		if _, ok := next.Roots[req.String()]; ok {
			continue // already satisfied
		}
		id, err := r.resolveOne(next, req, forced, false)
		if err != nil {
			return nil, err
		}
		next.Roots[req.String()] = id
	}

	r.cell.Store(next)
	return next, nil
}

// resolveOne resolves req against snap (mutating it in place with newly
// discovered packages), retrying once with a forced reload on conflict or
// network failure.
func (r *Resolver) resolveOne(snap *Snapshot, req PackageReq, forced map[string]string, retried bool) (PackageId, error) {
	info, err := r.registry.info(req.Name)
	if err != nil {
		if !retried {
			if info, err = r.registry.forceReload(req.Name); err == nil {
				return r.resolveWithInfo(snap, req, info, forced, true)
			}
		}
		return PackageId{}, kerrors.Wrap(kerrors.KindResolution, err, "resolve %s", req)
	}
	return r.resolveWithInfo(snap, req, info, forced, retried)
}

func (r *Resolver) resolveWithInfo(snap *Snapshot, req PackageReq, info *PackageInfo, forced map[string]string, retried bool) (PackageId, error) {
	best, err := info.highestInRange(req.Range, forced)
	if err != nil {
		if !retried {
			reloaded, reloadErr := r.registry.forceReload(req.Name)
			if reloadErr == nil {
				return r.resolveWithInfo(snap, req, reloaded, forced, true)
			}
		}
		return PackageId{}, kerrors.Wrap(kerrors.KindResolution, err, "resolve %s", req)
	}

	peers, err := r.resolvePeers(snap, best, forced, retried)
	if err != nil {
		return PackageId{}, err
	}
	id := PackageId{Name: info.Name, Version: best.Version, Peers: PeerSignature(peers)}

	if existing, ok := snap.Packages[id]; ok {
		return existing.Id, nil
	}

	resolved := &ResolvedPackage{
		Id:           id,
		Dependencies: map[string]PackageId{},
		Integrity:    best.Integrity,
		TarballURL:   best.TarballURL,
		Bin:          best.Bin,
		Scripts:      best.Scripts,
		SystemInfo:   SystemInfo{Os: best.Os, Cpu: best.Cpu},
		Deprecated:   best.Deprecated,
	}
	if best.Deprecated != "" {
		rtlog.Warningf("pkgresolve: %s@%s is deprecated: %s", info.Name, best.Version, best.Deprecated)
	}
	snap.Packages[id] = resolved

	for depName, depRange := range best.Dependencies {
		depID, err := r.resolveOne(snap, PackageReq{Name: depName, Range: depRange}, forced, retried)
		if err != nil {
			return PackageId{}, err
		}
		resolved.Dependencies[depName] = depID
	}

	// Optional dependencies resolve like hard ones, but a failure skips the
	// dep instead of failing the whole resolution.
	for depName, depRange := range best.OptionalDependencies {
		depID, err := r.resolveOne(snap, PackageReq{Name: depName, Range: depRange}, forced, retried)
		if err != nil {
			rtlog.Warningf("pkgresolve: skipping optional dependency %s of %s: %v", depName, id, err)
			continue
		}
		resolved.Dependencies[depName] = depID
		resolved.OptionalDeps = append(resolved.OptionalDeps, depName)
	}
	sort.Strings(resolved.OptionalDeps)

	// A name declared both as an optional peer and a hard dependency is an
	// optional peer whose id comes from the hard Dependencies map; optional
	// peers with no hard counterpart stay unresolved by design.
	for peerName := range best.OptionalPeerDependencies {
		resolved.OptionalPeers = append(resolved.OptionalPeers, peerName)
	}
	sort.Strings(resolved.OptionalPeers)

	return id, nil
}

// resolvePeers resolves a version's peerDependencies to concrete versions,
// without registering them as graph nodes themselves (they must already be
// satisfied by an ancestor in a full implementation; here they widen the
// id's peer signature so distinct peer sets produce distinct PackageIds).
func (r *Resolver) resolvePeers(snap *Snapshot, ver *PackageVersion, forced map[string]string, retried bool) (map[string]string, error) {
	if len(ver.PeerDependencies) == 0 {
		return nil, nil
	}
	peers := make(map[string]string, len(ver.PeerDependencies))
	for name, rng := range ver.PeerDependencies {
		id, err := r.resolveOne(snap, PackageReq{Name: name, Range: rng}, forced, retried)
		if err != nil {
			return nil, err
		}
		peers[name] = id.Version
	}
	return peers, nil
}
