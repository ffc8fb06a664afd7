// Package config loads the tool configuration from TOML, applies defaults,
// and layers environment overrides on top.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/report"
)

// Defaults applied when the config file is absent or leaves fields unset.
const (
	DefaultWorkers        = 4
	DefaultOutputDir      = "t3up-reports"
	DefaultCacheTTL       = 24 * time.Hour
	DefaultToolTimeout    = 300 * time.Second
	DefaultGitTimeout     = 15 * time.Second
	defaultConfigDirName  = ".t3up"
	defaultCacheDirName   = "cache"
	DefaultConfigFileName = "config.toml"
)

// Config is the full tool configuration. The key set is closed; unrecognized
// keys are reported as warnings and ignored.
type Config struct {
	Analysis  AnalysisConfig            `toml:"analysis"`
	Analyzers map[string]AnalyzerConfig `toml:"analyzers"`
	Reporting ReportingConfig           `toml:"reporting"`
	Cache     CacheConfig               `toml:"cache"`
	Git       GitConfig                 `toml:"git"`
	Rector    ToolConfig                `toml:"rector"`
	Fractor   ToolConfig                `toml:"fractor"`
}

// AnalysisConfig controls orchestration.
type AnalysisConfig struct {
	Workers int `toml:"workers"`
}

// AnalyzerConfig holds per-analyzer settings keyed by analyzer name.
type AnalyzerConfig struct {
	Enabled  *bool             `toml:"enabled"`
	CacheTTL int               `toml:"cache_ttl"` // seconds
	Options  map[string]string `toml:"options"`
}

// ReportingConfig selects output formats and the report directory.
type ReportingConfig struct {
	Formats   []string `toml:"formats"`
	OutputDir string   `toml:"output_dir"`
}

// CacheConfig controls the on-disk result cache.
type CacheConfig struct {
	Enabled *bool  `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// GitConfig holds source-repository lookup settings.
type GitConfig struct {
	GitHub         GitHubConfig `toml:"github"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
}

// GitHubConfig carries the API token.
type GitHubConfig struct {
	Token string `toml:"token"`
}

// ToolConfig configures one external transformation tool.
type ToolConfig struct {
	BinaryPath     string `toml:"binary_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{Workers: DefaultWorkers},
		Reporting: ReportingConfig{
			Formats:   report.Formats(),
			OutputDir: DefaultOutputDir,
		},
		Git:     GitConfig{TimeoutSeconds: int(DefaultGitTimeout / time.Second)},
		Rector:  ToolConfig{BinaryPath: "rector", TimeoutSeconds: int(DefaultToolTimeout / time.Second)},
		Fractor: ToolConfig{BinaryPath: "fractor", TimeoutSeconds: int(DefaultToolTimeout / time.Second)},
	}
}

// CacheEnabled reports whether the on-disk cache is active. It defaults to
// enabled when the config leaves it unset.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// CacheDir returns the cache directory, expanding the home-relative default
// when the config does not set one.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf(messages.ConfigHomeDirFmt, err)
	}
	return filepath.Join(home, defaultConfigDirName, defaultCacheDirName), nil
}

// AnalyzerEnabled reports whether the named analyzer should run. Analyzers
// are enabled unless the config disables them.
func (c *Config) AnalyzerEnabled(name string) bool {
	ac, ok := c.Analyzers[name]
	if !ok || ac.Enabled == nil {
		return true
	}
	return *ac.Enabled
}

// AnalyzerCacheTTL returns the result cache lifetime for the named analyzer.
func (c *Config) AnalyzerCacheTTL(name string) time.Duration {
	if ac, ok := c.Analyzers[name]; ok && ac.CacheTTL > 0 {
		return time.Duration(ac.CacheTTL) * time.Second
	}
	return DefaultCacheTTL
}

// AnalyzerOptions returns the option map for the named analyzer, never nil.
func (c *Config) AnalyzerOptions(name string) map[string]string {
	if ac, ok := c.Analyzers[name]; ok && ac.Options != nil {
		return ac.Options
	}
	return map[string]string{}
}

// GitTimeout returns the source-repository request timeout.
func (c *Config) GitTimeout() time.Duration {
	if c.Git.TimeoutSeconds > 0 {
		return time.Duration(c.Git.TimeoutSeconds) * time.Second
	}
	return DefaultGitTimeout
}

// RectorTimeout returns the rector invocation timeout.
func (c *Config) RectorTimeout() time.Duration {
	return toolTimeout(c.Rector)
}

// FractorTimeout returns the fractor invocation timeout.
func (c *Config) FractorTimeout() time.Duration {
	return toolTimeout(c.Fractor)
}

func toolTimeout(tc ToolConfig) time.Duration {
	if tc.TimeoutSeconds > 0 {
		return time.Duration(tc.TimeoutSeconds) * time.Second
	}
	return DefaultToolTimeout
}
