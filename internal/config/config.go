// Package config loads engine bootstrap configuration: where the Core
// Store's sqlite file lives, how long to wait on its file lock, the
// default name-conflict policy, and the subscriber queue size.
//
// Grounded on the teacher's internal/config/config.go: a package-level
// viper singleton, discovered by walking up from the working directory
// looking for a project config file, env vars bound with a prefix taking
// precedence over the file, and sane defaults for everything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/untoldecay/treehouse/internal/debug"
	"github.com/untoldecay/treehouse/internal/types"
)

var v *viper.Viper

// Config is the resolved set of values the engine bootstrap needs.
type Config struct {
	StorePath         string
	LockTimeout       time.Duration
	SubscriberBufSize int
	OnNameConflict    types.OnNameConflict
}

// Initialize sets up the viper singleton. Should be called once at
// process startup, before Load.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	// 1. Walk up from CWD looking for a project .treehouse/config.yaml,
	// so commands work from any subdirectory of the tree.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".treehouse", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory (~/.config/treehouse/config.yaml).
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "treehouse", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("TREEHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store-path", defaultStorePath())
	v.SetDefault("lock-timeout", "30s")
	v.SetDefault("subscriber-buffer-size", 256)
	v.SetDefault("on-name-conflict", string(types.ConflictError))

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("loaded config from %s", v.ConfigFileUsed())
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			debug.Logf("config file changed (%s), values refresh on next Load", e.Name)
		})
	} else {
		debug.Logf("no config.yaml found; using defaults and environment variables")
	}

	return nil
}

func defaultStorePath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".treehouse/store.db"
	}
	return filepath.Join(dir, ".treehouse", "store.db")
}

// Load resolves the current Config. Initialize must have been called
// first; an uninitialized viper yields the hardcoded defaults below so
// tests can call Load without Initialize.
func Load() Config {
	if v == nil {
		return Config{
			StorePath:         defaultStorePath(),
			LockTimeout:       30 * time.Second,
			SubscriberBufSize: 256,
			OnNameConflict:    types.ConflictError,
		}
	}
	onConflict := types.OnNameConflict(v.GetString("on-name-conflict"))
	if onConflict != types.ConflictError && onConflict != types.ConflictAutoRename {
		onConflict = types.ConflictError
	}
	return Config{
		StorePath:         v.GetString("store-path"),
		LockTimeout:       v.GetDuration("lock-timeout"),
		SubscriberBufSize: v.GetInt("subscriber-buffer-size"),
		OnNameConflict:    onConflict,
	}
}

// LoadTOML reads an alternate-format config file directly, bypassing
// viper, for callers that ship a plain TOML file instead of the
// discovered YAML layout (e.g. an embedded default shipped alongside a
// binary distribution).
func LoadTOML(path string) (Config, error) {
	var raw struct {
		StorePath         string `toml:"store_path"`
		LockTimeout        string `toml:"lock_timeout"`
		SubscriberBufSize int    `toml:"subscriber_buffer_size"`
		OnNameConflict    string `toml:"on_name_conflict"`
	}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return Config{}, fmt.Errorf("reading toml config %s: %w", path, err)
	}
	cfg := Config{
		StorePath:         raw.StorePath,
		SubscriberBufSize: raw.SubscriberBufSize,
		OnNameConflict:    types.OnNameConflict(raw.OnNameConflict),
	}
	if cfg.OnNameConflict == "" {
		cfg.OnNameConflict = types.ConflictError
	}
	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}
		cfg.LockTimeout = d
	} else {
		cfg.LockTimeout = 30 * time.Second
	}
	return cfg, nil
}
