// Package rtlog is the runtime-wide logging shim. Every subsystem logs
// through this package instead of calling glog directly: callers write
// rtlog.Errorf/Infof exactly as they would glog.Errorf/Infof, and the one
// place that knows about the concrete backend is this file.
package rtlog

import (
	"flag"

	"github.com/golang/glog"
)

// Smodule names a subsystem for logging; String gives its name. Verbosity
// is process-wide: V and SetV take no Smodule.
type Smodule uint8

const (
	SmoduleArena Smodule = iota
	SmoduleResource
	SmoduleOps
	SmoduleEvloop
	SmoduleModgraph
	SmoduleCache
	SmoduleLockfile
	SmodulePkgresolve
	SmoduleServemux
	SmoduleSnapshot
)

var names = map[Smodule]string{
	SmoduleArena:      "arena",
	SmoduleResource:   "resource",
	SmoduleOps:        "ops",
	SmoduleEvloop:     "evloop",
	SmoduleModgraph:   "modgraph",
	SmoduleCache:      "artifactcache",
	SmoduleLockfile:   "lockfile",
	SmodulePkgresolve: "pkgresolve",
	SmoduleServemux:   "servemux",
	SmoduleSnapshot:   "snapshot",
}

func (s Smodule) String() string { return names[s] }

func Infof(format string, args ...interface{})    { glog.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func Info(args ...interface{})                    { glog.Info(args...) }
func Warning(args ...interface{})                 { glog.Warning(args...) }
func Error(args ...interface{})                   { glog.Error(args...) }
func Flush()                                      { glog.Flush() }

// V reports whether verbosity level l is enabled, exactly as glog.V does;
// kept as a thin indirection so callers never import glog directly.
func V(l glog.Level) bool { return bool(glog.V(l)) }

// SetV programmatically sets the process-wide glog verbosity level (the
// -v flag). No package in this module calls it.
func SetV(l glog.Level) {
	if !flag.Parsed() {
		flag.Parse()
	}
	f := flag.Lookup("v")
	if f != nil {
		_ = f.Value.Set(l.String())
	}
}
