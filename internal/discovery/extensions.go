package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/t3up/analyzer/internal/confparse"
	"github.com/t3up/analyzer/internal/messages"
	"github.com/t3up/analyzer/internal/pathres"
	"github.com/t3up/analyzer/internal/version"
)

// Source authority: a higher rank wins attribute conflicts during merge.
type sourceRank int

const (
	rankDirectoryScan sourceRank = iota
	rankPackageStates
	rankComposerLock
)

// Enumerator walks an installation and returns its extensions, merging the
// three evidence sources deterministically.
type Enumerator struct {
	Resolver  *pathres.Resolver
	PHPParser *confparse.PHPParser
	// Skip lists extension keys excluded from the output.
	Skip map[string]bool
}

// Enumerate returns the installation's extensions sorted by key, together
// with non-fatal warnings.
func (e *Enumerator) Enumerate(ctx context.Context, inst *Installation) ([]Extension, []string, error) {
	merged := map[string]*Extension{}
	ranks := map[string]sourceRank{}
	var warnings []string

	merge := func(rank sourceRank, exts []Extension, sourceWarnings []string) {
		warnings = append(warnings, sourceWarnings...)
		seen := map[string]bool{}
		for _, ext := range exts {
			if e.Skip[ext.Key] {
				continue
			}
			if seen[ext.Key] {
				warnings = append(warnings, fmt.Sprintf(messages.DiscoveryDuplicateKeyFmt, ext.Key))
				continue
			}
			seen[ext.Key] = true

			existing, ok := merged[ext.Key]
			if !ok {
				copied := ext
				merged[ext.Key] = &copied
				ranks[ext.Key] = rank
				continue
			}
			mergeExtension(existing, ext, ranks[ext.Key], rank)
			if rank > ranks[ext.Key] {
				ranks[ext.Key] = rank
			}
		}
	}

	// Authority order: composer.lock > PackageStates.php > directory scans.
	// Sources are merged lowest first so higher ranks overwrite.
	scanned, scanWarnings := e.scanDirectories(ctx, inst)
	merge(rankDirectoryScan, scanned, scanWarnings)

	states, stateWarnings := e.readPackageStates(ctx, inst)
	merge(rankPackageStates, states, stateWarnings)

	locked, lockWarnings := e.readComposerLock(inst)
	merge(rankComposerLock, locked, lockWarnings)

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Extension, 0, len(keys))
	for _, key := range keys {
		out = append(out, *merged[key])
	}
	return out, warnings, nil
}

// mergeExtension folds incoming into existing: the higher-authority source
// wins the version, Active comes from the state file, and empty attributes
// fill in from either side.
func mergeExtension(existing *Extension, incoming Extension, existingRank, incomingRank sourceRank) {
	if incomingRank > existingRank {
		if !incoming.Version.IsZero() {
			existing.Version = incoming.Version
		}
		if incoming.Type != "" {
			existing.Type = incoming.Type
		}
	} else if existing.Version.IsZero() && !incoming.Version.IsZero() {
		existing.Version = incoming.Version
	}
	if incomingRank == rankPackageStates {
		existing.Active = incoming.Active
	}
	if existing.Title == "" {
		existing.Title = incoming.Title
	}
	if existing.ComposerName == "" {
		existing.ComposerName = incoming.ComposerName
	}
	if existing.Path == "" {
		existing.Path = incoming.Path
	}
	if existing.EmConfiguration == nil {
		existing.EmConfiguration = incoming.EmConfiguration
	}
}

// lockPackage is the subset of a composer.lock package record the
// enumerator reads.
type lockPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
	Extra   struct {
		Typo3CMS struct {
			ExtensionKey string `json:"extension-key"`
		} `json:"typo3/cms"`
	} `json:"extra"`
}

// readComposerLock enumerates extensions from the lock file: packages typed
// typo3-cms-extension plus core packages named typo3/cms-<key>.
func (e *Enumerator) readComposerLock(inst *Installation) ([]Extension, []string) {
	data, err := os.ReadFile(filepath.Join(inst.Path, "composer.lock"))
	if err != nil {
		return nil, nil
	}
	var lock struct {
		Packages []lockPackage `json:"packages"`
	}
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, []string{fmt.Sprintf(messages.DiscoveryLockParseFmt, err)}
	}

	var out []Extension
	var warnings []string
	for _, pkg := range lock.Packages {
		ext, ok := extensionFromLockPackage(pkg)
		if !ok {
			continue
		}
		if ext.Version.IsZero() {
			warnings = append(warnings, fmt.Sprintf(messages.DiscoveryLockVersionFmt, pkg.Name, pkg.Version))
		}
		out = append(out, ext)
	}
	return out, warnings
}

func extensionFromLockPackage(pkg lockPackage) (Extension, bool) {
	const coreNamespace = "typo3/cms-"

	switch {
	case pkg.Type == "typo3-cms-extension":
		key := pkg.Extra.Typo3CMS.ExtensionKey
		if key == "" {
			key = keyFromComposerName(pkg.Name)
		}
		v, _ := version.Parse(pkg.Version)
		return Extension{
			Key:          key,
			Version:      v,
			Type:         ExtensionThirdParty,
			ComposerName: pkg.Name,
			Active:       true,
		}, key != ""
	case strings.HasPrefix(pkg.Name, coreNamespace):
		key := strings.ReplaceAll(strings.TrimPrefix(pkg.Name, coreNamespace), "-", "_")
		v, _ := version.Parse(pkg.Version)
		return Extension{
			Key:          key,
			Version:      v,
			Type:         ExtensionSystem,
			ComposerName: pkg.Name,
			Active:       true,
		}, true
	default:
		return Extension{}, false
	}
}

func keyFromComposerName(name string) string {
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.ReplaceAll(name, "-", "_")
}

// readPackageStates reads typo3conf/PackageStates.php, the legacy record of
// locally installed extensions and their active state.
func (e *Enumerator) readPackageStates(ctx context.Context, inst *Installation) ([]Extension, []string) {
	statePath := e.locatePackageStates(ctx, inst)
	if statePath == "" {
		return nil, nil
	}
	parser := e.PHPParser
	if parser == nil {
		parser = confparse.NewPHPParser(nil)
	}
	result := parser.Parse(ctx, statePath)
	if !result.Successful() {
		return nil, []string{fmt.Sprintf(messages.DiscoveryStateParseFmt, statePath, result.Errors[0].Message)}
	}

	packages, _ := result.Data["packages"].(map[string]any)
	var out []Extension
	keys := make([]string, 0, len(packages))
	for key := range packages {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		record, _ := packages[key].(map[string]any)
		state, _ := record["state"].(string)
		packagePath, _ := record["packagePath"].(string)
		ext := Extension{
			Key:    key,
			Active: state == "active",
			Type:   classifyByPath(packagePath),
		}
		if packagePath != "" {
			ext.Path = filepath.Join(inst.Path, strings.TrimPrefix(packagePath, "typo3conf/../"))
		}
		out = append(out, ext)
	}
	return out, nil
}

func (e *Enumerator) locatePackageStates(ctx context.Context, inst *Installation) string {
	if e.Resolver != nil {
		req, err := pathres.NewRequest(pathres.PathTypo3ConfDir).
			InstallationPath(inst.Path).
			InstallationType(inst.Mode).
			PathConfiguration(inst.CustomPaths).
			Build()
		if err == nil {
			resp := e.Resolver.Resolve(ctx, req)
			if resp.Status == pathres.StatusSuccess {
				candidate := filepath.Join(resp.ResolvedPath, "PackageStates.php")
				if _, err := os.Stat(candidate); err == nil {
					return candidate
				}
			}
		}
	}
	for _, rel := range []string{
		filepath.Join("public", "typo3conf", "PackageStates.php"),
		filepath.Join("typo3conf", "PackageStates.php"),
	} {
		candidate := filepath.Join(inst.Path, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func classifyByPath(packagePath string) ExtensionType {
	switch {
	case strings.Contains(packagePath, "sysext"):
		return ExtensionSystem
	case strings.Contains(packagePath, "typo3conf/ext"):
		return ExtensionLocal
	default:
		return ExtensionThirdParty
	}
}

// scanDirectories walks the extension directories and reads each
// subdirectory's ext_emconf.php for metadata.
func (e *Enumerator) scanDirectories(ctx context.Context, inst *Installation) ([]Extension, []string) {
	type scanRoot struct {
		dir     string
		extType ExtensionType
	}
	var roots []scanRoot
	webDir := inst.CustomPaths[string(pathres.PathWebDir)]
	if webDir == "" {
		if inst.Mode == pathres.InstallLegacy {
			webDir = "."
		} else {
			webDir = "public"
		}
	}
	roots = append(roots,
		scanRoot{filepath.Join(inst.Path, webDir, "typo3conf", "ext"), ExtensionLocal},
		scanRoot{filepath.Join(inst.Path, webDir, "typo3", "sysext"), ExtensionSystem},
		scanRoot{filepath.Join(inst.Path, "typo3conf", "ext"), ExtensionLocal},
		scanRoot{filepath.Join(inst.Path, "typo3", "sysext"), ExtensionSystem},
	)

	var out []Extension
	var warnings []string
	visited := map[string]bool{}
	for _, root := range roots {
		clean := filepath.Clean(root.dir)
		if visited[clean] {
			continue
		}
		visited[clean] = true

		entries, err := os.ReadDir(clean)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			ext := Extension{
				Key:  entry.Name(),
				Type: root.extType,
				Path: filepath.Join(clean, entry.Name()),
			}
			emconf, warn := e.readEmConf(ctx, filepath.Join(clean, entry.Name(), "ext_emconf.php"))
			if warn != "" {
				warnings = append(warnings, warn)
			}
			if emconf != nil {
				ext.EmConfiguration = emconf
				if title, ok := emconf["title"].(string); ok {
					ext.Title = title
				}
				if raw, ok := emconf["version"].(string); ok {
					if v, err := version.Parse(raw); err == nil {
						ext.Version = v
					}
				}
			}
			out = append(out, ext)
		}
	}
	return out, warnings
}

// emConfAssignment locates the $EM_CONF array assignment so the file can be
// fed to the safe parser as a return statement. The rewrite stays purely
// textual; nothing is ever evaluated.
var emConfAssignment = regexp.MustCompile(`\$EM_CONF\[[^\]]*\]\s*=`)

func (e *Enumerator) readEmConf(_ context.Context, path string) (map[string]any, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ""
	}
	rewritten := emConfAssignment.ReplaceAll(data, []byte("return"))
	parser := e.PHPParser
	if parser == nil {
		parser = confparse.NewPHPParser(nil)
	}
	result := parser.ParseBytes(rewritten, path)
	if !result.Successful() {
		return nil, fmt.Sprintf(messages.DiscoveryEmConfParseFmt, path, result.Errors[0].Message)
	}
	return result.Data, ""
}
