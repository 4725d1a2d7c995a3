// Package modgraph implements the module graph and loader: specifier
// resolution through an import map, a workspace resolver and URL-relative
// fallback, breadth-first graph construction with per-specifier dedup, and
// pluggable fetch backends (one small interface, several backend
// implementations selected by URL scheme).
package modgraph

import (
	"net/url"
	"path"
	"strings"

	"github.com/coreruntime/kernel/kerrors"
)

// ReferrerKind distinguishes a static import from the entry point the
// graph was built for; resolution always takes the full (raw, referrer,
// kind) tuple.
type ReferrerKind int

const (
	KindImport ReferrerKind = iota
	KindExecution
)

// ImportMap is the parsed contents of an import map: bare specifier
// prefixes to their replacement, longest-prefix-wins.
type ImportMap struct {
	Imports map[string]string
}

func (m *ImportMap) resolve(raw string) (string, bool) {
	if m == nil {
		return "", false
	}
	if target, ok := m.Imports[raw]; ok {
		return target, true
	}
	best := ""
	bestTarget := ""
	for prefix, target := range m.Imports {
		if !strings.HasSuffix(prefix, "/") {
			continue
		}
		if strings.HasPrefix(raw, prefix) && len(prefix) > len(best) {
			best = prefix
			bestTarget = target + strings.TrimPrefix(raw, prefix)
		}
	}
	if best != "" {
		return bestTarget, true
	}
	return "", false
}

// WorkspaceResolver maps a bare specifier to a workspace member or a
// package.json dependency, ahead of URL-relative resolution.
type WorkspaceResolver interface {
	Resolve(raw string) (string, bool)
}

// Resolver implements the three-stage lookup: import map, then
// workspace resolver, then URL-relative resolution.
type Resolver struct {
	ImportMap *ImportMap
	Workspace WorkspaceResolver
}

// Resolve turns (raw, referrer, kind) into a canonical specifier, or one of
// the explicit failure classes: UnknownSpecifier, NotFound, InvalidScheme.
func (r *Resolver) Resolve(raw, referrer string, _ ReferrerKind) (string, error) {
	if target, ok := r.ImportMap.resolve(raw); ok {
		raw = target
	} else if r.Workspace != nil {
		if target, ok := r.Workspace.Resolve(raw); ok {
			raw = target
		}
	}

	u, err := url.Parse(raw)
	if err == nil && u.IsAbs() {
		switch u.Scheme {
		case "http", "https", "file", "npm", "jsr", "node", "gs", "s3", "az", "hdfs":
			return u.String(), nil
		default:
			return "", kerrors.New(kerrors.KindResolution, "InvalidScheme: %q", u.Scheme)
		}
	}

	if referrer == "" {
		return "", kerrors.New(kerrors.KindResolution, "UnknownSpecifier: %q has no referrer to resolve against", raw)
	}
	base, err := url.Parse(referrer)
	if err != nil || !base.IsAbs() {
		return "", kerrors.New(kerrors.KindResolution, "NotFound: referrer %q is not a resolvable base", referrer)
	}
	rel, err := url.Parse(raw)
	if err != nil {
		return "", kerrors.New(kerrors.KindResolution, "UnknownSpecifier: %q: %v", raw, err)
	}
	resolved := base.ResolveReference(rel)
	resolved.Path = path.Clean(resolved.Path)
	return resolved.String(), nil
}

// InNodeModules reports whether a file: specifier's path runs through a
// node_modules directory, the signal to hand the specifier to the package
// subsystem instead of the loader.
func InNodeModules(specifier string) bool {
	u, err := url.Parse(specifier)
	if err != nil || u.Scheme != "file" {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "node_modules" {
			return true
		}
	}
	return false
}
