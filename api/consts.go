// Package api holds the small set of client-facing constants the other
// packages agree on without importing each other: op names, environment
// variable names, and cache/registry header conventions. Tiny and
// dependency-free on purpose: everything else imports it.
package api

import "time"

// Environment variables read at process start.
const (
	EnvCacheDir            = "DENO_DIR"
	EnvNpmRegistry         = "NPM_CONFIG_REGISTRY"
	EnvExtraCA             = "DENO_CERT"
	EnvCronTestOffset      = "DENO_CRON_TEST_SCHEDULE_OFFSET"
	EnvNoColor             = "NO_COLOR"
	EnvRegistryToken       = "NPM_CONFIG_TOKEN"
	EnvRegistryTokenSecret = "NPM_CONFIG_TOKEN_SECRET"
)

// CLI flags relevant to the core; the flag-parsing surface
// itself is a non-goal, but op/config wiring agrees on these names.
const (
	FlagLock      = "--lock"
	FlagFrozen    = "--frozen"
	FlagNoLock    = "--no-lock"
	FlagNoNpm     = "--no-npm"
	FlagCachedOnly = "--cached-only"
	FlagReload    = "--reload"
	FlagCert      = "--cert"
	FlagInspect   = "--inspect"
)

// Op names dispatched through ops.Registry for the core subsystems this
// kernel exposes to JS. Each name is a stable string, never reused for a
// different signature once shipped.
const (
	OpResourceRead     = "op_resource_read"
	OpResourceWrite    = "op_resource_write"
	OpResourceShutdown = "op_resource_shutdown"
	OpResourceClose    = "op_resource_close"
	OpModuleLoad       = "op_module_load"
	OpCacheGet         = "op_cache_get"
	OpCacheSet         = "op_cache_set"
	OpPkgResolve       = "op_pkg_resolve"
	OpPkgInstall       = "op_pkg_install"
)

// Registry request headers. Every registry request carries
// User-Agent: deno/<ver> and honors NPM_CONFIG_REGISTRY.
const (
	HeaderUserAgent = "User-Agent"
	UserAgentPrefix = "deno/"
)

// DefaultTimeout is the sentinel for "use the caller's default" (-1). No
// package in this module references it.
const DefaultTimeout = time.Duration(-1)

// On-disk layout segment names, rooted at the cache dir.
const (
	DirDeps          = "deps"
	DirNpmRegistry   = "npm/registry.npmjs.org"
	DirNodeModules   = "npm/node_modules/.deno"
	DirGen           = "gen"
	SchemeHTTP       = "http"
	SchemeHTTPS      = "https"
)

// FilePermBits is the constant mode every atomically-written cache/lock
// file uses on Unix.
const FilePermBits = 0o644
