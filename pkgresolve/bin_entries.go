package pkgresolve

import (
	"runtime"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// BinEntry is one executable a package exposes, prior to collision
// resolution: the package that owns it, the bin name, and the script path
// relative to the package's install directory.
type BinEntry struct {
	Owner  PackageId
	Name   string
	Script string
}

// ResolveBinCollisions picks, for each bin name claimed by more than one
// package, a single winner: the package reachable in the fewest BFS hops
// from snap's roots, breaking ties by the highest semver version (reverse
// sort).
func ResolveBinCollisions(snap *Snapshot, entries []BinEntry) (map[string]BinEntry, error) {
	depth := bfsDepths(snap)

	byName := make(map[string][]BinEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = append(byName[e.Name], e)
	}

	winners := make(map[string]BinEntry, len(byName))
	for name, candidates := range byName {
		sort.SliceStable(candidates, func(i, j int) bool {
			di, dj := depth[candidates[i].Owner], depth[candidates[j].Owner]
			if di != dj {
				return di < dj
			}
			vi, erri := semver.NewVersion(candidates[i].Owner.Version)
			vj, errj := semver.NewVersion(candidates[j].Owner.Version)
			if erri != nil || errj != nil {
				return candidates[i].Owner.Version > candidates[j].Owner.Version
			}
			return vi.GreaterThan(vj) // reverse: higher version sorts first
		})
		winners[name] = candidates[0]
	}
	return winners, nil
}

// bfsDepths computes each PackageId's shortest distance (in dependency
// edges) from any root in snap.
func bfsDepths(snap *Snapshot) map[PackageId]int {
	depth := make(map[PackageId]int, len(snap.Packages))
	queue := make([]PackageId, 0, len(snap.Roots))
	for _, id := range snap.Roots {
		if _, seen := depth[id]; !seen {
			depth[id] = 0
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		pkg, ok := snap.Packages[cur]
		if !ok {
			continue
		}
		for _, dep := range pkg.Dependencies {
			if _, seen := depth[dep]; !seen {
				depth[dep] = depth[cur] + 1
				queue = append(queue, dep)
			}
		}
	}
	return depth
}

// WriteBinShim installs the bin entry at binDir/name: a symlink to script
// on Unix, a .cmd shim that spawns the runtime on Windows.
func WriteBinShim(binDir, name, script string) error {
	if runtime.GOOS == "windows" {
		return writeWindowsShim(binDir, name, script)
	}
	return writeUnixSymlink(binDir, name, script)
}
