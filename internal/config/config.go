// Package config handles the global configuration file and its
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in
// ~/.config/refsweep/config.yml. Every field is optional; command-line
// flags override config values, and environment variables sit between
// the two.
type GlobalConfig struct {
	GrobidURL   string `yaml:"grobid_url,omitempty"`
	Format      string `yaml:"format,omitempty"`
	CachePath   string `yaml:"cache_path,omitempty"`
	Consolidate bool   `yaml:"consolidate_citations,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "refsweep"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// EnvGrobidURL overrides grobid_url between config file and flag.
	EnvGrobidURL = "REFSWEEP_GROBID_URL"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/refsweep/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.CachePath != "" {
		cfg.CachePath = ExpandPath(cfg.CachePath)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ResolveGrobidURL picks the service base URL: an explicit flag value
// wins, then the environment, then the config file, then the fallback.
func ResolveGrobidURL(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvGrobidURL); env != "" {
		return env
	}
	cfg, _ := LoadGlobalConfig()
	if cfg.GrobidURL != "" {
		return cfg.GrobidURL
	}
	return fallback
}

// ResolveFormat picks the output format name the same way, minus the
// environment tier.
func ResolveFormat(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	cfg, _ := LoadGlobalConfig()
	if cfg.Format != "" {
		return cfg.Format
	}
	return fallback
}

// ResolveCachePath picks the TEI cache location, defaulting under the
// XDG cache directory.
func ResolveCachePath() string {
	cfg, _ := LoadGlobalConfig()
	if cfg.CachePath != "" {
		return cfg.CachePath
	}
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, GlobalConfigDir, "tei.db")
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
