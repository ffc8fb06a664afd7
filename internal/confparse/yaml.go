package confparse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/t3up/analyzer/internal/messages"
)

// envPlaceholder matches ${NAME} and the Symfony-style %env(NAME)% forms
// used throughout TYPO3 site and service configuration.
var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|%env\(([A-Za-z_][A-Za-z0-9_]*)\)%`)

// YAMLParser decodes tabular configuration with environment placeholder
// substitution. Multi-document inputs produce a document list with the
// first document as primary.
type YAMLParser struct {
	resolve func(string) (string, bool)
}

// NewYAMLParser builds a parser using resolve for placeholder lookup.
// A nil resolver falls back to os.LookupEnv.
func NewYAMLParser(resolve func(string) (string, bool)) *YAMLParser {
	if resolve == nil {
		resolve = os.LookupEnv
	}
	return &YAMLParser{resolve: resolve}
}

func (p *YAMLParser) Name() string { return "yaml" }

func (p *YAMLParser) Supports(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

func (p *YAMLParser) Parse(_ context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(FormatYAML, KindParse, fmt.Sprintf(messages.ConfParseReadFmt, err), path)
	}
	return p.ParseBytes(data, path)
}

// ParseBytes decodes raw YAML. source names the origin for diagnostics.
func (p *YAMLParser) ParseBytes(data []byte, source string) Result {
	var warnings []string
	substituted := envPlaceholder.ReplaceAllStringFunc(string(data), func(match string) string {
		groups := envPlaceholder.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		if value, ok := p.resolve(name); ok {
			return value
		}
		warnings = append(warnings, fmt.Sprintf(messages.ConfParseUnresolvedEnvFmt, name))
		return ""
	})

	decoder := yaml.NewDecoder(strings.NewReader(substituted))
	var documents []map[string]any
	for {
		var doc any
		err := decoder.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result := failed(FormatYAML, KindParse, err.Error(), source)
			result.Warnings = warnings
			return result
		}
		documents = append(documents, lowerYAMLDocument(doc))
	}

	result := Result{
		Format:   FormatYAML,
		Warnings: warnings,
		Metadata: map[string]any{"source": source, "documents": len(documents)},
	}
	switch len(documents) {
	case 0:
		result.Data = map[string]any{}
	case 1:
		result.Data = documents[0]
	default:
		result.Data = documents[0]
		extra := make([]any, 0, len(documents)-1)
		for _, doc := range documents[1:] {
			extra = append(extra, doc)
		}
		result.Metadata["additional_documents"] = extra
	}
	return result
}

// lowerYAMLDocument normalizes a decoded document into map[string]any form.
func lowerYAMLDocument(doc any) map[string]any {
	lowered := lowerYAMLValue(doc)
	if m, ok := lowered.(map[string]any); ok {
		return m
	}
	if lowered == nil {
		return map[string]any{}
	}
	return map[string]any{"document": lowered}
}

// lowerYAMLValue converts yaml.v3 map[string]any / []any trees recursively,
// stringifying non-string keys.
func lowerYAMLValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = lowerYAMLValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[fmt.Sprintf("%v", k)] = lowerYAMLValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = lowerYAMLValue(val)
		}
		return out
	default:
		return typed
	}
}
