package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullConfigTOML = `
[analysis]
workers = 8

[analyzers.rector]
enabled = true
cache_ttl = 3600

[analyzers.rector.options]
php_version = "8.2"

[analyzers.loc]
enabled = false

[reporting]
formats = ["json", "markdown"]
output_dir = "reports"

[cache]
enabled = false
dir = "/tmp/t3up-cache"

[git]
timeout_seconds = 30

[git.github]
token = "ghp_filetoken"

[rector]
binary_path = "/usr/local/bin/rector"
timeout_seconds = 120

[fractor]
binary_path = "fractor"
`

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if cfg.Analysis.Workers != DefaultWorkers {
		t.Fatalf("workers = %d", cfg.Analysis.Workers)
	}
	if cfg.Reporting.OutputDir != DefaultOutputDir {
		t.Fatalf("output dir = %q", cfg.Reporting.OutputDir)
	}
	if !cfg.CacheEnabled() {
		t.Fatal("cache should default to enabled")
	}
}

func TestParseAppliesFileValues(t *testing.T) {
	cfg, warnings, err := Parse([]byte(fullConfigTOML), "config.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if cfg.Analysis.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Analysis.Workers)
	}
	if got := cfg.Reporting.Formats; len(got) != 2 || got[0] != "json" || got[1] != "markdown" {
		t.Fatalf("formats = %v", got)
	}
	if cfg.CacheEnabled() {
		t.Fatal("cache should be disabled")
	}
	if dir, err := cfg.CacheDir(); err != nil || dir != "/tmp/t3up-cache" {
		t.Fatalf("cache dir = %q, %v", dir, err)
	}
	if cfg.Git.GitHub.Token != "ghp_filetoken" {
		t.Fatalf("token = %q", cfg.Git.GitHub.Token)
	}
	if cfg.Rector.BinaryPath != "/usr/local/bin/rector" {
		t.Fatalf("rector binary = %q", cfg.Rector.BinaryPath)
	}
	if cfg.RectorTimeout() != 120*time.Second {
		t.Fatalf("rector timeout = %s", cfg.RectorTimeout())
	}
	// fractor sets no timeout, so the default applies.
	if cfg.FractorTimeout() != DefaultToolTimeout {
		t.Fatalf("fractor timeout = %s", cfg.FractorTimeout())
	}
}

func TestParseWarnsOnUnknownKeys(t *testing.T) {
	data := []byte("[reporting]\nformat = \"html\"\n")
	cfg, warnings, err := Parse(data, "config.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "reporting.format") {
		t.Fatalf("warnings = %v", warnings)
	}
	// Unknown keys never change behavior.
	if len(cfg.Reporting.Formats) != 3 {
		t.Fatalf("formats = %v", cfg.Reporting.Formats)
	}
}

func TestParseRejectsInvalidTOML(t *testing.T) {
	if _, _, err := Parse([]byte("analysis = ["), "config.toml"); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestParseRejectsUnsupportedFormat(t *testing.T) {
	data := []byte("[reporting]\nformats = [\"pdf\"]\n")
	if _, _, err := Parse(data, "config.toml"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestParseRejectsNonPositiveWorkers(t *testing.T) {
	data := []byte("[analysis]\nworkers = 0\n")
	if _, _, err := Parse(data, "config.toml"); err == nil {
		t.Fatal("expected workers error")
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	t.Setenv(EnvGitHubToken, "ghp_envtoken")
	t.Setenv(EnvOutputDir, "/srv/reports")

	cfg, _, err := Parse([]byte(fullConfigTOML), "config.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Git.GitHub.Token != "ghp_envtoken" {
		t.Fatalf("token = %q", cfg.Git.GitHub.Token)
	}
	if cfg.Reporting.OutputDir != "/srv/reports" {
		t.Fatalf("output dir = %q", cfg.Reporting.OutputDir)
	}
}

func TestAnalyzerAccessors(t *testing.T) {
	cfg, _, err := Parse([]byte(fullConfigTOML), "config.toml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.AnalyzerEnabled("rector") {
		t.Fatal("rector should be enabled")
	}
	if cfg.AnalyzerEnabled("loc") {
		t.Fatal("loc should be disabled")
	}
	if !cfg.AnalyzerEnabled("availability") {
		t.Fatal("unconfigured analyzers default to enabled")
	}
	if cfg.AnalyzerCacheTTL("rector") != time.Hour {
		t.Fatalf("rector ttl = %s", cfg.AnalyzerCacheTTL("rector"))
	}
	if cfg.AnalyzerCacheTTL("availability") != DefaultCacheTTL {
		t.Fatalf("availability ttl = %s", cfg.AnalyzerCacheTTL("availability"))
	}
	if got := cfg.AnalyzerOptions("rector")["php_version"]; got != "8.2" {
		t.Fatalf("option = %q", got)
	}
	if cfg.AnalyzerOptions("availability") == nil {
		t.Fatal("options must never be nil")
	}
}

func TestCacheDirDefaultsUnderHome(t *testing.T) {
	cfg := Default()
	dir, err := cfg.CacheDir()
	if err != nil {
		t.Fatalf("CacheDir: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".t3up", "cache")) {
		t.Fatalf("cache dir = %q", dir)
	}
}

func TestLoadLayersEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(fullConfigTOML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envContent := "T3UP_GITHUB_TOKEN=ghp_dotenv\nOTHER_TOOL_VAR=ignored\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envContent), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	t.Setenv(EnvGitHubToken, "")
	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if cfg.Git.GitHub.Token != "ghp_dotenv" {
		t.Fatalf("token = %q", cfg.Git.GitHub.Token)
	}

	// The process environment wins over the .env file.
	t.Setenv(EnvGitHubToken, "ghp_process")
	cfg, _, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Git.GitHub.Token != "ghp_process" {
		t.Fatalf("token = %q", cfg.Git.GitHub.Token)
	}
}

func TestLoadWarnsOnMalformedEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BROKEN\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, warnings, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil || len(warnings) != 1 || !strings.Contains(warnings[0], ".env") {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(fullConfigTOML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Analysis.Workers)
	}
}
