package analyzer

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/t3up/analyzer/internal/discovery"
	"github.com/t3up/analyzer/internal/errcode"
	"github.com/t3up/analyzer/internal/messages"
)

// Registry holds the analyzers wired at process init and fans analyses out
// across extensions.
type Registry struct {
	analyzers []Analyzer
	workers   int
}

// NewRegistry returns a registry running at most workers concurrent
// analyses (minimum 1).
func NewRegistry(workers int) *Registry {
	if workers < 1 {
		workers = 1
	}
	return &Registry{workers: workers}
}

// Register appends a. Duplicate names are a wiring bug and fail loudly.
func (r *Registry) Register(a Analyzer) error {
	for _, existing := range r.analyzers {
		if existing.Name() == a.Name() {
			return fmt.Errorf(messages.AnalyzerDuplicateName, a.Name())
		}
	}
	r.analyzers = append(r.analyzers, a)
	return nil
}

// Analyzers returns the registration-ordered analyzer list.
func (r *Registry) Analyzers() []Analyzer {
	out := make([]Analyzer, len(r.analyzers))
	copy(out, r.analyzers)
	return out
}

type task struct {
	index    int
	analyzer Analyzer
	ext      *discovery.Extension
}

// Run analyzes every supported (extension, analyzer) pair. Analyzer
// failures become Successful=false results and never halt the run; the
// returned slice is ordered by extension key, then analyzer registration
// order. On cancellation the results collected so far are returned together
// with the context error.
func (r *Registry) Run(ctx context.Context, inst *discovery.Installation, actx *Context) ([]*Result, error) {
	extensions := make([]*discovery.Extension, 0, len(inst.Extensions))
	for i := range inst.Extensions {
		extensions = append(extensions, &inst.Extensions[i])
	}
	sort.Slice(extensions, func(i, j int) bool { return extensions[i].Key < extensions[j].Key })

	var tasks []task
	for _, ext := range extensions {
		for _, a := range r.analyzers {
			if !a.Supports(ext) {
				continue
			}
			tasks = append(tasks, task{index: len(tasks), analyzer: a, ext: ext})
		}
	}

	slots := make([]*Result, len(tasks))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for _, tk := range tasks {
		tk := tk
		group.Go(func() error {
			// Cancellation is honored between invocations, never mid-result.
			if err := groupCtx.Err(); err != nil {
				return err
			}
			slots[tk.index] = r.analyzeOne(groupCtx, tk, actx)
			return nil
		})
	}
	err := group.Wait()

	results := make([]*Result, 0, len(slots))
	for _, result := range slots {
		if result != nil {
			results = append(results, result)
		}
	}
	return results, err
}

// analyzeOne runs one task, converting failures into failed results with
// coded messages.
func (r *Registry) analyzeOne(ctx context.Context, tk task, actx *Context) *Result {
	if tr, ok := tk.analyzer.(ToolRequirer); ok && !tr.HasRequiredTools() {
		missing := ""
		if tools := tr.RequiredTools(); len(tools) > 0 {
			missing = tools[0]
		}
		err := errcode.New(errcode.AnalyzerToolMissing, messages.AnalyzerToolMissingFmt, missing)
		return failedResult(tk.analyzer.Name(), tk.ext.Key, err.Error())
	}

	result, err := tk.analyzer.Analyze(ctx, tk.ext, actx)
	if err != nil {
		return failedResult(tk.analyzer.Name(), tk.ext.Key, err.Error())
	}
	return result
}

// ExtensionRisk aggregates one extension's results across analyzers.
type ExtensionRisk struct {
	ExtensionKey string    `json:"extension_key"`
	Mean         float64   `json:"mean"`
	Max          float64   `json:"max"`
	Level        RiskLevel `json:"level"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
}

// AggregateByExtension folds results into per-extension risk summaries,
// sorted by key. The mean covers successful results only; an extension
// whose analyses all failed scores 10 (critical).
func AggregateByExtension(results []*Result) []ExtensionRisk {
	byKey := map[string]*ExtensionRisk{}
	sums := map[string]float64{}
	for _, result := range results {
		agg, ok := byKey[result.ExtensionKey]
		if !ok {
			agg = &ExtensionRisk{ExtensionKey: result.ExtensionKey}
			byKey[result.ExtensionKey] = agg
		}
		if !result.Successful {
			agg.Failed++
			continue
		}
		agg.Successful++
		sums[result.ExtensionKey] += result.RiskScore
		if result.RiskScore > agg.Max {
			agg.Max = result.RiskScore
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]ExtensionRisk, 0, len(keys))
	for _, key := range keys {
		agg := byKey[key]
		if agg.Successful == 0 {
			agg.Mean = 10
			agg.Max = 10
		} else {
			agg.Mean = sums[key] / float64(agg.Successful)
		}
		agg.Level = LevelForScore(agg.Mean)
		out = append(out, *agg)
	}
	return out
}
