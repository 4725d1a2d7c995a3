package pkgresolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/pkgresolve"
)

func TestResolveBinCollisionsPrefersShallowestThenHighestVersion(t *testing.T) {
	root := pkgresolve.PackageId{Name: "app", Version: "1.0.0"}
	shallow := pkgresolve.PackageId{Name: "cli-tool", Version: "1.0.0"}
	deepOld := pkgresolve.PackageId{Name: "cli-tool", Version: "2.0.0"}
	deepNew := pkgresolve.PackageId{Name: "other", Version: "1.0.0"}

	snap := &pkgresolve.Snapshot{
		Roots: map[string]pkgresolve.PackageId{"app@1.0.0": root},
		Packages: map[pkgresolve.PackageId]*pkgresolve.ResolvedPackage{
			root: {Id: root, Dependencies: map[string]pkgresolve.PackageId{
				"cli-tool": shallow,
				"other":    deepNew,
			}},
			shallow: {Id: shallow, Dependencies: map[string]pkgresolve.PackageId{}},
			deepNew: {Id: deepNew, Dependencies: map[string]pkgresolve.PackageId{"cli-tool": deepOld}},
			deepOld: {Id: deepOld, Dependencies: map[string]pkgresolve.PackageId{}},
		},
	}

	entries := []pkgresolve.BinEntry{
		{Owner: shallow, Name: "mytool", Script: "shallow/bin.js"},
		{Owner: deepOld, Name: "mytool", Script: "deep/bin.js"},
	}

	winners, err := pkgresolve.ResolveBinCollisions(snap, entries)
	require.NoError(t, err)
	require.Equal(t, shallow, winners["mytool"].Owner)
}

func TestResolveBinCollisionsBreaksTiesByVersion(t *testing.T) {
	old := pkgresolve.PackageId{Name: "cli-tool", Version: "1.0.0"}
	newer := pkgresolve.PackageId{Name: "cli-tool-fork", Version: "3.0.0"}
	root := pkgresolve.PackageId{Name: "app", Version: "1.0.0"}

	snap := &pkgresolve.Snapshot{
		Roots: map[string]pkgresolve.PackageId{"app@1.0.0": root},
		Packages: map[pkgresolve.PackageId]*pkgresolve.ResolvedPackage{
			root: {Id: root, Dependencies: map[string]pkgresolve.PackageId{
				"cli-tool":      old,
				"cli-tool-fork": newer,
			}},
			old:   {Id: old, Dependencies: map[string]pkgresolve.PackageId{}},
			newer: {Id: newer, Dependencies: map[string]pkgresolve.PackageId{}},
		},
	}

	entries := []pkgresolve.BinEntry{
		{Owner: old, Name: "mytool", Script: "old/bin.js"},
		{Owner: newer, Name: "mytool", Script: "newer/bin.js"},
	}

	winners, err := pkgresolve.ResolveBinCollisions(snap, entries)
	require.NoError(t, err)
	require.Equal(t, newer, winners["mytool"].Owner)
}
