package config

import (
	"os"
	"path/filepath"
	"testing"
)

// withConfigDir points XDG_CONFIG_HOME at a temp dir holding the given
// config content, clearing the package cache around the test.
func withConfigDir(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	if content == "" {
		return
	}
	cfgDir := filepath.Join(dir, GlobalConfigDir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGlobalConfig_Missing(t *testing.T) {
	withConfigDir(t, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error: %v", err)
	}
	if cfg.GrobidURL != "" || cfg.Format != "" {
		t.Errorf("missing file should yield empty config: %+v", cfg)
	}
}

func TestLoadGlobalConfig_Values(t *testing.T) {
	withConfigDir(t, "grobid_url: http://grobid.local:8070\nformat: bibtex\n")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error: %v", err)
	}
	if cfg.GrobidURL != "http://grobid.local:8070" {
		t.Errorf("GrobidURL = %q", cfg.GrobidURL)
	}
	if cfg.Format != "bibtex" {
		t.Errorf("Format = %q", cfg.Format)
	}
}

func TestLoadGlobalConfig_Malformed(t *testing.T) {
	withConfigDir(t, "grobid_url: [unclosed\n")

	if _, err := LoadGlobalConfig(); err == nil {
		t.Errorf("malformed YAML should fail")
	}
}

func TestResolveGrobidURL(t *testing.T) {
	withConfigDir(t, "grobid_url: http://from-config:8070\n")
	t.Setenv(EnvGrobidURL, "")

	if got := ResolveGrobidURL("http://from-flag:1", "http://fallback:2"); got != "http://from-flag:1" {
		t.Errorf("flag should win, got %q", got)
	}

	t.Setenv(EnvGrobidURL, "http://from-env:3")
	if got := ResolveGrobidURL("", "http://fallback:2"); got != "http://from-env:3" {
		t.Errorf("env should beat config, got %q", got)
	}

	t.Setenv(EnvGrobidURL, "")
	if got := ResolveGrobidURL("", "http://fallback:2"); got != "http://from-config:8070" {
		t.Errorf("config should beat fallback, got %q", got)
	}

	withConfigDir(t, "")
	if got := ResolveGrobidURL("", "http://fallback:2"); got != "http://fallback:2" {
		t.Errorf("fallback when nothing configured, got %q", got)
	}
}

func TestResolveFormat(t *testing.T) {
	withConfigDir(t, "format: ris\n")

	if got := ResolveFormat("bibtex", "csl-json"); got != "bibtex" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := ResolveFormat("", "csl-json"); got != "ris" {
		t.Errorf("config should beat fallback, got %q", got)
	}
}

func TestResolveCachePath(t *testing.T) {
	withConfigDir(t, "")
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	want := filepath.Join(cache, GlobalConfigDir, "tei.db")
	if got := ResolveCachePath(); got != want {
		t.Errorf("ResolveCachePath() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandPath("~/caches/tei.db"); got != filepath.Join(home, "caches/tei.db") {
		t.Errorf("ExpandPath() = %q", got)
	}
	if got := ExpandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}
