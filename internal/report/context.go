// Package report turns an installation and its flat analysis results into
// rendered report trees. Rendering is deterministic: byte-identical inputs
// produce byte-identical output files.
package report

import (
	"encoding/json"
	"sort"

	"github.com/t3up/analyzer/internal/analyzer"
	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/version"
)

// ReportContext is the single serializable input every renderer consumes.
type ReportContext struct {
	InstallationPath string            `json:"installation_path"`
	CurrentVersion   version.Version   `json:"current_version"`
	TargetVersion    version.Version   `json:"target_version"`
	Extensions       []ExtensionReport `json:"extensions"`
	RiskDistribution map[string]int    `json:"risk_distribution"`
	Availability     AvailabilityStats `json:"availability"`
	Totals           Totals            `json:"totals"`
}

// ExtensionReport bundles one extension with its analyzer results in
// registration order.
type ExtensionReport struct {
	Extension discovery.Extension    `json:"extension"`
	Results   []analyzer.Result      `json:"results"`
	Risk      analyzer.ExtensionRisk `json:"risk"`
	Findings  []analyzer.Finding     `json:"findings,omitempty"`
}

// HasFindings reports whether the extension carries detailed findings that
// warrant a detail page.
func (e ExtensionReport) HasFindings() bool { return len(e.Findings) > 0 }

// AvailabilityStats counts the upgrade paths found across extensions.
type AvailabilityStats struct {
	TER       int `json:"ter"`
	Packagist int `json:"packagist"`
	Git       int `json:"git"`
}

// Totals are the installation-wide counters.
type Totals struct {
	Extensions     int `json:"extensions"`
	Analyses       int `json:"analyses"`
	FailedAnalyses int `json:"failed_analyses"`
}

// BuildContext assembles the report context. Extensions are sorted by key;
// each extension's results follow analyzerOrder (the registration order).
// An empty extension list yields a well-formed zero-valued context.
func BuildContext(inst *discovery.Installation, current, target version.Version, results []*analyzer.Result, analyzerOrder []string) *ReportContext {
	ctx := &ReportContext{
		InstallationPath: inst.Path,
		CurrentVersion:   current,
		TargetVersion:    target,
		RiskDistribution: map[string]int{
			string(analyzer.RiskLow):      0,
			string(analyzer.RiskMedium):   0,
			string(analyzer.RiskHigh):     0,
			string(analyzer.RiskCritical): 0,
		},
		Extensions: []ExtensionReport{},
	}

	byExtension := map[string][]analyzer.Result{}
	for _, result := range results {
		byExtension[result.ExtensionKey] = append(byExtension[result.ExtensionKey], *result)
		ctx.Totals.Analyses++
		if !result.Successful {
			ctx.Totals.FailedAnalyses++
		}
		if result.Successful {
			if boolMetric(result.Metrics, "ter_available") {
				ctx.Availability.TER++
			}
			if boolMetric(result.Metrics, "packagist_available") {
				ctx.Availability.Packagist++
			}
			if boolMetric(result.Metrics, "git_available") {
				ctx.Availability.Git++
			}
		}
	}

	aggregates := map[string]analyzer.ExtensionRisk{}
	for _, agg := range analyzer.AggregateByExtension(results) {
		aggregates[agg.ExtensionKey] = agg
	}

	keys := make([]string, 0, len(inst.Extensions))
	extByKey := map[string]discovery.Extension{}
	for _, ext := range inst.Extensions {
		keys = append(keys, ext.Key)
		extByKey[ext.Key] = ext
	}
	sort.Strings(keys)

	for _, key := range keys {
		block := ExtensionReport{
			Extension: extByKey[key],
			Results:   orderResults(byExtension[key], analyzerOrder),
			Risk:      aggregates[key],
		}
		if block.Risk.ExtensionKey == "" {
			block.Risk = analyzer.ExtensionRisk{ExtensionKey: key, Level: analyzer.RiskLow}
		}
		block.Findings = collectFindings(block.Results)
		ctx.RiskDistribution[string(block.Risk.Level)]++
		ctx.Extensions = append(ctx.Extensions, block)
		ctx.Totals.Extensions++
	}
	return ctx
}

// orderResults sorts results into analyzerOrder; unknown analyzers keep
// their relative order at the end.
func orderResults(results []analyzer.Result, analyzerOrder []string) []analyzer.Result {
	rank := map[string]int{}
	for i, name := range analyzerOrder {
		rank[name] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, iOK := rank[results[i].AnalyzerName]
		rj, jOK := rank[results[j].AnalyzerName]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		default:
			return false
		}
	})
	return results
}

// collectFindings extracts the raw finding arrays the transformation
// analyzers attach to their metrics. Cached results arrive as generic JSON
// values, so the extraction goes through a round trip.
func collectFindings(results []analyzer.Result) []analyzer.Finding {
	var out []analyzer.Finding
	for _, result := range results {
		raw, ok := result.Metrics["findings"]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		var findings []analyzer.Finding
		if err := json.Unmarshal(encoded, &findings); err != nil {
			continue
		}
		out = append(out, findings...)
	}
	return out
}

func boolMetric(metrics map[string]any, key string) bool {
	value, ok := metrics[key]
	if !ok {
		return false
	}
	b, ok := value.(bool)
	return ok && b
}
