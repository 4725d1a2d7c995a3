// Package pkgresolve implements the package resolver and installer:
// single-writer snapshot resolution over a copy-on-write cell,
// peer-dependency-aware package identity, and a two-mode installer
// (global/local) with parallel tarball fetch and bin-entry collision
// resolution.
package pkgresolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// PackageReq is a resolution input: a bare name plus a semver range.
type PackageReq struct {
	Name  string
	Range string
}

func (r PackageReq) String() string { return r.Name + "@" + r.Range }

// PackageId identifies a resolved node in the dependency graph. Two
// packages with the same name and version but different peer resolutions
// are distinct ids: peer choices are threaded into the id so the same
// package with different peers becomes distinct nodes.
type PackageId struct {
	Name    string
	Version string
	Peers   string // canonical, sorted "name@version,name@version" signature
}

func (id PackageId) String() string {
	if id.Peers == "" {
		return fmt.Sprintf("%s@%s", id.Name, id.Version)
	}
	return fmt.Sprintf("%s@%s+%s", id.Name, id.Version, id.Peers)
}

// PeerSignature canonicalizes a peer-choice map into PackageId.Peers.
func PeerSignature(peers map[string]string) string {
	if len(peers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(peers))
	for k := range peers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"@"+peers[k])
	}
	return strings.Join(parts, ",")
}

// SystemInfo restricts a package to particular platforms, straight from
// the registry's os/cpu arrays. Empty means unrestricted.
type SystemInfo struct {
	Os  []string
	Cpu []string
}

// ResolvedPackage is a node of the resolved graph.
type ResolvedPackage struct {
	Id           PackageId
	Dependencies map[string]PackageId // dep name -> resolved id
	// OptionalDeps names the subset of Dependencies whose install failure
	// is tolerated; OptionalPeers names peers declared optional. A name
	// declared both optional-peer and hard dependency is recorded as an
	// optional peer with its id resolved from the hard Dependencies map.
	OptionalDeps  []string
	OptionalPeers []string
	Integrity     string            // sha512 integrity hash
	TarballURL    string            // as the registry reported it
	Bin           map[string]string // bin name -> script path within the package
	Scripts       map[string]string // lifecycle script name -> command
	SystemInfo    SystemInfo
	Deprecated    string // non-empty when the registry marked this version deprecated
}

func (p *ResolvedPackage) HasBin() bool     { return len(p.Bin) > 0 }
func (p *ResolvedPackage) HasScripts() bool { return len(p.Scripts) > 0 }

// Snapshot is the resolver's output: the full set of resolved packages plus
// which id satisfies each root PackageReq, invariant: every
// dependency edge must resolve to a PackageId present in Packages.
type Snapshot struct {
	Roots    map[string]PackageId // PackageReq.String() -> resolved id
	Packages map[PackageId]*ResolvedPackage
}

func newSnapshot() *Snapshot {
	return &Snapshot{Roots: map[string]PackageId{}, Packages: map[PackageId]*ResolvedPackage{}}
}

// Clone copies the snapshot, including each package's maps and slices, used for the copy-on-write
// cell swapped by the single-writer resolution loop.
func (s *Snapshot) Clone() *Snapshot {
	out := newSnapshot()
	for k, v := range s.Roots {
		out.Roots[k] = v
	}
	for k, v := range s.Packages {
		cp := *v
		cp.Dependencies = make(map[string]PackageId, len(v.Dependencies))
		for dn, did := range v.Dependencies {
			cp.Dependencies[dn] = did
		}
		cp.OptionalDeps = append([]string(nil), v.OptionalDeps...)
		cp.OptionalPeers = append([]string(nil), v.OptionalPeers...)
		if v.Bin != nil {
			cp.Bin = make(map[string]string, len(v.Bin))
			for bn, bs := range v.Bin {
				cp.Bin[bn] = bs
			}
		}
		if v.Scripts != nil {
			cp.Scripts = make(map[string]string, len(v.Scripts))
			for sn, sc := range v.Scripts {
				cp.Scripts[sn] = sc
			}
		}
		out.Packages[k] = &cp
	}
	return out
}

// PackageVersion is one version entry in a PackageInfo.
type PackageVersion struct {
	Version                  string
	Dependencies             map[string]string // name -> range
	PeerDependencies         map[string]string
	OptionalDependencies     map[string]string
	OptionalPeerDependencies map[string]string // peerDependenciesMeta {optional:true} names -> range
	Bin                      map[string]string
	Scripts                  map[string]string
	Os                       []string
	Cpu                      []string
	Integrity                string
	TarballURL               string
	Deprecated               string
}

// PackageInfo is what the registry returns for a package name: every known
// version, newest first is not assumed, Resolve sorts by semver itself.
type PackageInfo struct {
	Name     string
	Versions []PackageVersion
}

func (info *PackageInfo) highestInRange(rng string, forced map[string]string) (*PackageVersion, error) {
	constraint, err := semver.NewConstraint(rng)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q for %q: %w", rng, info.Name, err)
	}
	if forcedVersion, ok := forced[info.Name]; ok {
		for i := range info.Versions {
			if info.Versions[i].Version == forcedVersion {
				return &info.Versions[i], nil
			}
		}
		return nil, fmt.Errorf("forced version %q for %q has no matching package info entry", forcedVersion, info.Name)
	}

	var best *PackageVersion
	var bestVer *semver.Version
	for i := range info.Versions {
		v, err := semver.NewVersion(info.Versions[i].Version)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			bestVer = v
			best = &info.Versions[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no version of %q satisfies range %q", info.Name, rng)
	}
	return best, nil
}
