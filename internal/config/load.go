package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/t3up/analyzer/internal/envfile"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/report"
)

// Environment variables that override file values. The token override exists
// so credentials can stay out of the config file.
const (
	EnvGitHubToken = "T3UP_GITHUB_TOKEN"
	EnvCacheDir    = "T3UP_CACHE_DIR"
	EnvOutputDir   = "T3UP_OUTPUT_DIR"
)

// Load reads the config file at path, applies defaults, and layers
// environment overrides. A .env file next to the config contributes T3UP_
// values; the process environment wins over both. A missing config file is
// not an error: the defaults are returned. The warnings cover unrecognized
// keys, which are ignored.
func Load(path string) (*Config, []string, error) {
	fileEnv, envWarning := loadEnvFile(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		applyEnv(cfg, fileEnv)
		var warnings []string
		if envWarning != "" {
			warnings = append(warnings, envWarning)
		}
		return cfg, warnings, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf(messages.ConfigReadFileFmt, path, err)
	}
	cfg, warnings, err := parse(data, path, fileEnv)
	if envWarning != "" {
		warnings = append(warnings, envWarning)
	}
	return cfg, warnings, err
}

// loadEnvFile reads a .env file, keeping only T3UP_ keys. A malformed file
// degrades to a warning rather than failing the load.
func loadEnvFile(path string) (map[string]string, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ""
	}
	env, err := envfile.Parse(string(data))
	if err != nil {
		return nil, fmt.Sprintf(messages.ConfigInvalidEnvFileFmt, path, err)
	}
	filtered := make(map[string]string, len(env))
	for key, value := range env {
		if strings.HasPrefix(key, "T3UP_") {
			filtered[key] = value
		}
	}
	return filtered, ""
}

// Parse decodes TOML config data. source names the origin in messages.
func Parse(data []byte, source string) (*Config, []string, error) {
	return parse(data, source, nil)
}

func parse(data []byte, source string, fileEnv map[string]string) (*Config, []string, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf(messages.ConfigInvalidTOMLFmt, source, err)
	}

	var warnings []string
	if unknown := unknownKeys(data); len(unknown) > 0 {
		warnings = append(warnings, fmt.Sprintf(messages.ConfigUnknownKeysFmt, source, unknown))
	}

	applyEnv(cfg, fileEnv)
	if err := cfg.validate(source); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// unknownKeys re-decodes strictly to surface keys outside the closed set.
// toml.Unmarshal ignores them silently; the strict decoder names them.
func unknownKeys(data []byte) []string {
	var cfg Config
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&cfg)
	if err == nil {
		return nil
	}
	var strict *toml.StrictMissingError
	if !errors.As(err, &strict) {
		return nil
	}
	var keys []string
	for _, entry := range strict.Errors {
		keys = append(keys, strings.Join(entry.Key(), "."))
	}
	return keys
}

func applyEnv(cfg *Config, fileEnv map[string]string) {
	lookup := func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return fileEnv[key]
	}
	if token := lookup(EnvGitHubToken); token != "" {
		cfg.Git.GitHub.Token = token
	}
	if dir := lookup(EnvCacheDir); dir != "" {
		cfg.Cache.Dir = dir
	}
	if dir := lookup(EnvOutputDir); dir != "" {
		cfg.Reporting.OutputDir = dir
	}
}

func (c *Config) validate(source string) error {
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf(messages.ConfigInvalidWorkersFmt, source, c.Analysis.Workers)
	}
	known := map[string]bool{}
	for _, format := range report.Formats() {
		known[format] = true
	}
	for _, format := range c.Reporting.Formats {
		if !known[format] {
			return fmt.Errorf(messages.ConfigInvalidFormatFmt, source, format)
		}
	}
	if c.Rector.TimeoutSeconds < 0 {
		return fmt.Errorf(messages.ConfigInvalidTimeoutFmt, source, "rector.timeout_seconds", c.Rector.TimeoutSeconds)
	}
	if c.Fractor.TimeoutSeconds < 0 {
		return fmt.Errorf(messages.ConfigInvalidTimeoutFmt, source, "fractor.timeout_seconds", c.Fractor.TimeoutSeconds)
	}
	if c.Git.TimeoutSeconds < 0 {
		return fmt.Errorf(messages.ConfigInvalidTimeoutFmt, source, "git.timeout_seconds", c.Git.TimeoutSeconds)
	}
	return nil
}
