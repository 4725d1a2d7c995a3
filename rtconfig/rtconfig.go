// Package rtconfig holds the runtime's small, process-wide configuration:
// cache root, registry override, extra CA bundle, and the lockfile/cache
// policy flags a kernel process reads at startup: atomic JSON load/save
// through cmn/cos, with a version field and env-var overrides read at
// process start.
package rtconfig

import (
	"os"
	"path/filepath"

	"github.com/coreruntime/kernel/api"
	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// configVersion is bumped whenever Config's shape changes; Load rejects a
// file whose Version doesn't match rather than guessing at a migration
// (the artifact cache, by contrast, purges its tables on a mismatch).
const configVersion = 1

// Config is the process-wide configuration: the env vars plus the
// loader/lockfile policy knobs.
type Config struct {
	Version int `json:"version"`

	// CacheDir is DENO_DIR: the root of the on-disk cache layout.
	CacheDir string `json:"cache_dir"`
	// RegistryURL overrides the default npm registry (NPM_CONFIG_REGISTRY).
	RegistryURL string `json:"registry_url,omitempty"`
	// ExtraCAPath is an additional CA bundle to trust (DENO_CERT).
	ExtraCAPath string `json:"extra_ca_path,omitempty"`
	// NoColor mirrors NO_COLOR: disable ANSI output from any external
	// collaborator (formatter/linter diff output) this kernel shells out to.
	NoColor bool `json:"no_color,omitempty"`

	// FrozenLockfile is the --frozen default: refuse any lockfile mutation.
	FrozenLockfile bool `json:"frozen_lockfile,omitempty"`
	// CachedOnly is --cached-only: the loader and registry client must
	// never go to network, surfacing kerrors.KindNetwork (as a
	// CouldNotResolve-shaped error) instead of fetching.
	CachedOnly bool `json:"cached_only,omitempty"`
	// NoLock is --no-lock: skip lockfile discovery entirely.
	NoLock bool `json:"no_lock,omitempty"`
	// NoNpm is --no-npm: the package resolver never resolves npm: specifiers.
	NoNpm bool `json:"no_npm,omitempty"`

	// InspectAddr is --inspect[=addr]; empty disables the (non-goal)
	// inspector, but the address still needs to be threaded to the
	// external collaborator that owns it.
	InspectAddr string `json:"inspect_addr,omitempty"`
}

// Default returns a Config seeded from environment variables, the first
// step of process boot before an on-disk override is loaded.
func Default() *Config {
	cfg := &Config{
		Version:     configVersion,
		CacheDir:    envOr(api.EnvCacheDir, defaultCacheDir()),
		RegistryURL: os.Getenv(api.EnvNpmRegistry),
		ExtraCAPath: os.Getenv(api.EnvExtraCA),
		NoColor:     os.Getenv(api.EnvNoColor) != "",
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kernel-cache")
	}
	return filepath.Join(home, ".cache", "kernel")
}

// path is the on-disk location of a saved Config beneath a cache root:
// one file per cache root.
func path(cacheDir string) string {
	return filepath.Join(cacheDir, "config.json")
}

// Save atomically persists cfg beneath its own CacheDir (temp file +
// rename via cmn/cos.AtomicWriteFile), the same discipline the artifact
// cache and the lockfile follow.
func Save(cfg *Config) error {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return kerrors.Wrap(kerrors.KindIo, err, "create cache dir %q", cfg.CacheDir)
	}
	cfg.Version = configVersion
	return cos.AtomicWriteFile(path(cfg.CacheDir), cos.MustMarshal(cfg), api.FilePermBits)
}

// Load reads a previously saved Config from cacheDir. A missing file is a
// NotFound error (LoadOrDefault treats it as a first run). A version mismatch is InvalidData: unlike the artifact cache (whose
// tables are safe to purge-and-rebuild), a config schema bump needs an
// explicit migration, so Load refuses to guess.
func Load(cacheDir string) (*Config, error) {
	raw, err := os.ReadFile(path(cacheDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.New(kerrors.KindNotFound, "no saved config under %q", cacheDir)
		}
		return nil, kerrors.Wrap(kerrors.KindIo, err, "read config under %q", cacheDir)
	}
	var cfg Config
	if err := cos.JSON.Unmarshal(raw, &cfg); err != nil {
		return nil, kerrors.Wrap(kerrors.KindInvalidData, err, "parse config under %q", cacheDir)
	}
	if cfg.Version != configVersion {
		return nil, kerrors.New(kerrors.KindInvalidData, "config under %q is version %d, want %d", cacheDir, cfg.Version, configVersion)
	}
	return &cfg, nil
}

// LoadOrDefault loads a saved Config, falling back to Default on any Load
// error: silently when no file exists, so a first run never fails merely
// for lack of a prior save, and with a logged warning when the file is
// unreadable, corrupt or of another version.
func LoadOrDefault(cacheDir string) *Config {
	cfg, err := Load(cacheDir)
	if err == nil {
		return cfg
	}
	if kerrors.KindOf(err) != kerrors.KindNotFound {
		rtlog.Warningf("rtconfig: discarding unreadable config under %q: %v", cacheDir, err)
	}
	def := Default()
	def.CacheDir = cacheDir
	return def
}
