package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/messages"
)

// LOCAnalyzer walks an extension's sources and reports size metrics. Bigger
// extensions mean more migration surface, so risk grows with code lines.
type LOCAnalyzer struct{}

func (LOCAnalyzer) Name() string { return "loc" }

func (LOCAnalyzer) Supports(ext *discovery.Extension) bool {
	return ext.Path != ""
}

// sourceExtensions are the file kinds counted as source.
var sourceExtensions = map[string]bool{
	".php":  true,
	".html": true,
	".ts":   true,
	".js":   true,
	".xml":  true,
	".yaml": true,
	".yml":  true,
}

type fileStats struct {
	total   int
	code    int
	comment int
	blank   int
	classes int
	methods int
}

func (LOCAnalyzer) Analyze(_ context.Context, ext *discovery.Extension, _ *Context) (*Result, error) {
	if _, err := os.Stat(ext.Path); err != nil {
		return nil, fmt.Errorf(messages.AnalyzerMissingPathFmt, ext.Key)
	}

	totals := fileStats{}
	filesPerKind := map[string]int{}
	largestFile := ""
	largestLines := 0

	err := filepath.WalkDir(ext.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		kind := strings.ToLower(filepath.Ext(path))
		if !sourceExtensions[kind] {
			return nil
		}
		stats, err := countFile(path, kind == ".php")
		if err != nil {
			return nil
		}
		filesPerKind[kind]++
		totals.total += stats.total
		totals.code += stats.code
		totals.comment += stats.comment
		totals.blank += stats.blank
		totals.classes += stats.classes
		totals.methods += stats.methods
		if stats.total > largestLines {
			largestLines = stats.total
			rel, relErr := filepath.Rel(ext.Path, path)
			if relErr != nil {
				rel = path
			}
			largestFile = rel
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fileCount := 0
	for _, n := range filesPerKind {
		fileCount += n
	}

	result := &Result{
		AnalyzerName: "loc",
		ExtensionKey: ext.Key,
		Successful:   true,
		Metrics: map[string]any{
			"lines_total":        totals.total,
			"lines_code":         totals.code,
			"lines_comment":      totals.comment,
			"lines_blank":        totals.blank,
			"files":              fileCount,
			"files_per_kind":     filesPerKind,
			"classes":            totals.classes,
			"methods":            totals.methods,
			"largest_file":       largestFile,
			"largest_file_lines": largestLines,
		},
	}
	result.RiskScore = sizeRisk(totals.code)
	return result, nil
}

// sizeRisk maps code lines onto [0,10]: one point per 2000 code lines,
// clamped. A 20k-line extension maxes out.
func sizeRisk(codeLines int) float64 {
	return clampScore(float64(codeLines) / 2000)
}

// countFile counts a file's lines. PHP files additionally get class and
// method counts from line-shape heuristics; comment detection covers //, #
// and /* */ blocks.
func countFile(path string, isPHP bool) (fileStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return fileStats{}, err
	}
	defer func() { _ = file.Close() }()

	stats := fileStats{}
	inBlock := false
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		stats.total++
		switch {
		case line == "":
			stats.blank++
		case inBlock:
			stats.comment++
			if strings.Contains(line, "*/") {
				inBlock = false
			}
		case strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#"):
			stats.comment++
		case strings.HasPrefix(line, "/*"):
			stats.comment++
			if !strings.Contains(line, "*/") {
				inBlock = true
			}
		default:
			stats.code++
			if isPHP {
				if isClassDecl(line) {
					stats.classes++
				}
				if strings.Contains(line, "function ") {
					stats.methods++
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fileStats{}, err
	}
	return stats, nil
}

func isClassDecl(line string) bool {
	for _, prefix := range []string{"class ", "abstract class ", "final class ", "interface ", "trait ", "enum "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
