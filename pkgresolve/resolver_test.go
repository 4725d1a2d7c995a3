package pkgresolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/pkgresolve"
)

type fakeRegistry struct {
	infos map[string]*pkgresolve.PackageInfo
}

func (f *fakeRegistry) Info(name string) (*pkgresolve.PackageInfo, error) {
	info, ok := f.infos[name]
	if !ok {
		return nil, errNotFound{name}
	}
	return info, nil
}

func (f *fakeRegistry) ForceReload(name string) (*pkgresolve.PackageInfo, error) {
	return f.Info(name)
}

type errNotFound struct{ name string }

func (e errNotFound) Error() string { return "package not found: " + e.name }

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{infos: map[string]*pkgresolve.PackageInfo{
		"left-pad": {
			Name: "left-pad",
			Versions: []pkgresolve.PackageVersion{
				{Version: "1.0.0", Integrity: "sha512-aaa"},
				{Version: "1.3.0", Integrity: "sha512-bbb"},
			},
		},
		"has-dep": {
			Name: "has-dep",
			Versions: []pkgresolve.PackageVersion{
				{Version: "2.0.0", Dependencies: map[string]string{"left-pad": "^1.0.0"}, Integrity: "sha512-ccc"},
			},
		},
		"has-optionals": {
			Name: "has-optionals",
			Versions: []pkgresolve.PackageVersion{
				{
					Version:                  "1.0.0",
					Dependencies:             map[string]string{"left-pad": "^1.0.0"},
					OptionalDependencies:     map[string]string{"does-not-exist": "^1.0.0"},
					OptionalPeerDependencies: map[string]string{"left-pad": "^1.0.0"},
					Integrity:                "sha512-ddd",
				},
			},
		},
	}}
}

func TestResolveSelectsHighestInRange(t *testing.T) {
	r := pkgresolve.NewResolver(newFakeRegistry(), nil)
	snap, err := r.Resolve([]pkgresolve.PackageReq{{Name: "left-pad", Range: "^1.0.0"}})
	require.NoError(t, err)
	id := snap.Roots["left-pad@^1.0.0"]
	require.Equal(t, "1.3.0", id.Version)
}

func TestResolveExpandsDependenciesDFS(t *testing.T) {
	r := pkgresolve.NewResolver(newFakeRegistry(), nil)
	snap, err := r.Resolve([]pkgresolve.PackageReq{{Name: "has-dep", Range: "^2.0.0"}})
	require.NoError(t, err)
	rootID := snap.Roots["has-dep@^2.0.0"]
	pkg := snap.Packages[rootID]
	require.NotNil(t, pkg)
	depID, ok := pkg.Dependencies["left-pad"]
	require.True(t, ok)
	require.Equal(t, "1.3.0", depID.Version)
	require.Contains(t, snap.Packages, depID)
}

func TestResolveUnknownPackageSurfacesResolutionError(t *testing.T) {
	r := pkgresolve.NewResolver(newFakeRegistry(), nil)
	_, err := r.Resolve([]pkgresolve.PackageReq{{Name: "does-not-exist", Range: "^1.0.0"}})
	require.Error(t, err)
}

func TestResolveToleratesFailedOptionalDepAndRecordsOptionalPeer(t *testing.T) {
	r := pkgresolve.NewResolver(newFakeRegistry(), nil)
	snap, err := r.Resolve([]pkgresolve.PackageReq{{Name: "has-optionals", Range: "^1.0.0"}})
	require.NoError(t, err)
	pkg := snap.Packages[snap.Roots["has-optionals@^1.0.0"]]
	require.NotNil(t, pkg)

	// The unresolvable optional dep is skipped, not fatal.
	require.NotContains(t, pkg.Dependencies, "does-not-exist")
	require.Empty(t, pkg.OptionalDeps)

	// left-pad is both an optional peer and a hard dependency: the peer is
	// recorded by name and its id comes from the hard Dependencies map.
	require.Equal(t, []string{"left-pad"}, pkg.OptionalPeers)
	depID, ok := pkg.Dependencies["left-pad"]
	require.True(t, ok)
	require.Contains(t, snap.Packages, depID)
}

func TestResolveIsIdempotentForAlreadySatisfiedRoot(t *testing.T) {
	r := pkgresolve.NewResolver(newFakeRegistry(), nil)
	snap1, err := r.Resolve([]pkgresolve.PackageReq{{Name: "left-pad", Range: "^1.0.0"}})
	require.NoError(t, err)
	snap2, err := r.Resolve([]pkgresolve.PackageReq{{Name: "left-pad", Range: "^1.0.0"}})
	require.NoError(t, err)
	require.Equal(t, snap1.Roots, snap2.Roots)
}
