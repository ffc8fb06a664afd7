package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/t3up/analyzer/internal/cache"
	"github.com/t3up/analyzer/internal/confparse"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/pathres"
)

// Options control what a discovery run performs beyond detection.
type Options struct {
	// DiscoverConfiguration parses the installation's configuration files
	// and attaches them to the result.
	DiscoverConfiguration bool
	// Validate runs the validation rules after detection.
	Validate bool
	// Extensions enumerates the installation's extensions.
	Extensions bool
	// ForceRefresh bypasses the cache for this run.
	ForceRefresh bool
}

// Result is the outcome of one discovery run. It serializes to JSON without
// loss; FromCache is the only field that differs between a fresh run and a
// cache hit.
type Result struct {
	Installation *Installation     `json:"installation,omitempty"`
	Attempts     []StrategyAttempt `json:"attempts,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	FromCache    bool              `json:"from_cache"`
}

// Pipeline orchestrates detection, configuration discovery, validation, and
// extension enumeration.
type Pipeline struct {
	strategies []DetectionStrategy
	rules      []Rule
	enumerator *Enumerator
	resolver   *pathres.Resolver
	parsers    *confparse.Registry
	store      cache.Store
	ttl        time.Duration
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStrategies replaces the detection strategies.
func WithStrategies(strategies []DetectionStrategy) PipelineOption {
	return func(p *Pipeline) { p.strategies = strategies }
}

// WithRules replaces the validation rules.
func WithRules(rules []Rule) PipelineOption {
	return func(p *Pipeline) { p.rules = rules }
}

// WithStore enables result caching through store.
func WithStore(store cache.Store, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.store = store
		p.ttl = ttl
	}
}

// WithResolver sets the path resolver used for configuration discovery and
// extension enumeration.
func WithResolver(resolver *pathres.Resolver) PipelineOption {
	return func(p *Pipeline) { p.resolver = resolver }
}

// WithParsers replaces the configuration parser registry.
func WithParsers(registry *confparse.Registry) PipelineOption {
	return func(p *Pipeline) { p.parsers = registry }
}

// WithSkipList excludes extension keys from enumeration.
func WithSkipList(keys []string) PipelineOption {
	return func(p *Pipeline) {
		skip := make(map[string]bool, len(keys))
		for _, key := range keys {
			skip[key] = true
		}
		p.enumerator.Skip = skip
	}
}

// NewPipeline builds a pipeline with the default strategies, rules, and
// parsers, then applies opts.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		strategies: DefaultDetectionStrategies(),
		rules:      DefaultRules(),
		parsers:    confparse.DefaultRegistry(nil),
		enumerator: &Enumerator{},
		ttl:        time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.enumerator.Resolver = p.resolver
	return p
}

// Discover runs the full pipeline against path. The returned error is
// non-nil only when no installation could be established; validation issues
// never fail discovery.
func (p *Pipeline) Discover(ctx context.Context, path string, opts Options) (*Result, error) {
	// Canonicalize once; the installation path flows into reports, cache
	// keys, and subprocess working directories.
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf(messages.DiscoveryNotADirectoryFmt, path)
	}
	path = abs

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf(messages.DiscoveryNotADirectoryFmt, path)
	}

	key := p.cacheKey(path, opts)
	if p.store != nil && !opts.ForceRefresh {
		if cached, ok := p.cachedResult(ctx, key); ok {
			return cached, nil
		}
	}

	result, err := p.discover(ctx, path, opts)
	if err != nil {
		return result, err
	}
	if p.store != nil {
		if payload, err := json.Marshal(result); err == nil {
			_ = p.store.Set(ctx, cache.TypeInstallationDiscovery, key, payload, p.ttl)
		}
	}
	return result, nil
}

func (p *Pipeline) cachedResult(ctx context.Context, key string) (*Result, bool) {
	payload, ok, err := p.store.Get(ctx, cache.TypeInstallationDiscovery, key)
	if err != nil || !ok {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		_ = p.store.Delete(ctx, cache.TypeInstallationDiscovery, key)
		return nil, false
	}
	result.FromCache = true
	return &result, true
}

func (p *Pipeline) discover(ctx context.Context, path string, opts Options) (*Result, error) {
	result := &Result{}
	inst, err := p.detect(ctx, path, result)
	if err != nil {
		return result, err
	}
	result.Installation = inst

	if opts.DiscoverConfiguration {
		p.discoverConfiguration(ctx, inst)
	}
	if opts.Extensions {
		exts, warnings, err := p.enumerateExtensions(ctx, inst, opts.ForceRefresh)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf(messages.DiscoveryEnumerationFailedFmt, err))
		} else {
			inst.Extensions = exts
			result.Warnings = append(result.Warnings, warnings...)
		}
	}
	if opts.Validate {
		inst.ValidationIssues = Validate(inst, p.rules)
	}
	return result, nil
}

// detect runs the strategy chain: indicators are checked without invoking
// unsupported strategies, supported ones run in descending priority order,
// and the first non-nil installation wins.
func (p *Pipeline) detect(ctx context.Context, path string, result *Result) (*Installation, error) {
	ordered := make([]DetectionStrategy, len(p.strategies))
	copy(ordered, p.strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})

	supportedAny := false
	for _, strategy := range ordered {
		attempt := StrategyAttempt{Strategy: strategy.Name()}
		for _, indicator := range strategy.RequiredIndicators() {
			if _, err := os.Stat(filepath.Join(path, indicator)); err != nil {
				attempt.MissingIndicators = append(attempt.MissingIndicators, indicator)
			}
		}
		if len(attempt.MissingIndicators) > 0 {
			result.Attempts = append(result.Attempts, attempt)
			continue
		}
		attempt.Supported = true
		supportedAny = true

		inst, err := strategy.Detect(ctx, path)
		if err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			continue
		}
		result.Attempts = append(result.Attempts, attempt)
		if inst != nil {
			return inst, nil
		}
	}

	if !supportedAny {
		return nil, fmt.Errorf(messages.DiscoveryNoStrategyFmt, path)
	}
	return nil, fmt.Errorf(messages.DiscoveryAllFailedFmt, path)
}

// configurationFiles maps attachment keys to file locations relative to the
// configuration directory.
var configurationFiles = []struct {
	key  string
	rels []string
}{
	{"local_configuration", []string{"LocalConfiguration.php"}},
	{"system_settings", []string{filepath.Join("system", "settings.php")}},
	{"services", []string{"Services.yaml"}},
}

// discoverConfiguration locates and parses the installation's configuration
// files. Failures degrade to Warning issues.
func (p *Pipeline) discoverConfiguration(ctx context.Context, inst *Installation) {
	for _, dir := range p.configDirs(ctx, inst) {
		for _, file := range configurationFiles {
			if _, ok := inst.Configuration[file.key]; ok {
				continue
			}
			for _, rel := range file.rels {
				full := filepath.Join(dir, rel)
				if _, err := os.Stat(full); err != nil {
					continue
				}
				parsed := p.parsers.Parse(ctx, full)
				if !parsed.Successful() {
					inst.ValidationIssues = append(inst.ValidationIssues, ValidationIssue{
						Rule:          "configuration-discovery",
						Severity:      SeverityWarning,
						Message:       fmt.Sprintf(messages.DiscoveryConfigParseFmt, full, parsed.Errors[0].Message),
						Category:      "configuration",
						AffectedPaths: []string{full},
					})
					continue
				}
				inst.AttachConfiguration(file.key, parsed.Data)
				break
			}
		}
	}
	inst.Metadata.DatabaseConfigured = databaseConfigured(inst.Configuration)
}

// configDirs yields candidate configuration directories, preferring the
// path resolver's answer over layout conventions.
func (p *Pipeline) configDirs(ctx context.Context, inst *Installation) []string {
	var dirs []string
	if p.resolver != nil {
		req, err := pathres.NewRequest(pathres.PathTypo3ConfDir).
			InstallationPath(inst.Path).
			InstallationType(inst.Mode).
			PathConfiguration(inst.CustomPaths).
			Build()
		if err == nil {
			if resp := p.resolver.Resolve(ctx, req); resp.Status == pathres.StatusSuccess {
				dirs = append(dirs, resp.ResolvedPath)
			}
		}
		req, err = pathres.NewRequest(pathres.PathConfigDir).
			InstallationPath(inst.Path).
			InstallationType(inst.Mode).
			PathConfiguration(inst.CustomPaths).
			Build()
		if err == nil {
			if resp := p.resolver.Resolve(ctx, req); resp.Status == pathres.StatusSuccess {
				dirs = append(dirs, resp.ResolvedPath)
			}
		}
	}
	webDir := inst.CustomPaths[string(pathres.PathWebDir)]
	if webDir == "" {
		webDir = "public"
	}
	dirs = append(dirs,
		filepath.Join(inst.Path, webDir, "typo3conf"),
		filepath.Join(inst.Path, "typo3conf"),
		filepath.Join(inst.Path, "config"),
	)

	seen := map[string]bool{}
	var out []string
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	return out
}

// databaseConfigured looks for a non-empty DB.Connections block in any
// attached configuration.
func databaseConfigured(configuration map[string]map[string]any) bool {
	for _, data := range configuration {
		db, _ := data["DB"].(map[string]any)
		if db == nil {
			continue
		}
		if connections, _ := db["Connections"].(map[string]any); len(connections) > 0 {
			return true
		}
	}
	return false
}

func (p *Pipeline) enumerateExtensions(ctx context.Context, inst *Installation, forceRefresh bool) ([]Extension, []string, error) {
	type cachedExtensions struct {
		Extensions []Extension `json:"extensions"`
		Warnings   []string    `json:"warnings,omitempty"`
	}

	key := p.cacheKey(inst.Path, Options{Extensions: true})
	if p.store != nil && !forceRefresh {
		if payload, ok, err := p.store.Get(ctx, cache.TypeExtensionDiscovery, key); err == nil && ok {
			var cached cachedExtensions
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached.Extensions, cached.Warnings, nil
			}
			_ = p.store.Delete(ctx, cache.TypeExtensionDiscovery, key)
		}
	}

	exts, warnings, err := p.enumerator.Enumerate(ctx, inst)
	if err != nil {
		return nil, nil, err
	}
	if p.store != nil {
		if payload, err := json.Marshal(cachedExtensions{Extensions: exts, Warnings: warnings}); err == nil {
			_ = p.store.Set(ctx, cache.TypeExtensionDiscovery, key, payload, p.ttl)
		}
	}
	return exts, warnings, nil
}

// cacheKey hashes the installation path together with the option booleans
// that change the result's shape. ForceRefresh does not participate.
func (p *Pipeline) cacheKey(path string, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|cfg=%t|val=%t|ext=%t",
		filepath.Clean(path), opts.DiscoverConfiguration, opts.Validate, opts.Extensions)
	return fmt.Sprintf("%x", h.Sum(nil))
}
