package confparse

import (
	"context"
	"fmt"

	"github.com/t3up/analyzer/internal/messages"
)

// Parser handles one configuration format.
type Parser interface {
	Name() string
	Supports(path string) bool
	Parse(ctx context.Context, path string) Result
}

// Registry dispatches files to the first parser that supports them,
// in registration order.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a parser.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Parse dispatches path to the first supporting parser. When none matches,
// the result carries an Unsupported error.
func (r *Registry) Parse(ctx context.Context, path string) Result {
	for _, p := range r.parsers {
		if p.Supports(path) {
			return p.Parse(ctx, path)
		}
	}
	return failed("", KindUnsupported, fmt.Sprintf(messages.ConfParseUnsupportedFmt, path), path)
}

// DefaultRegistry wires the built-in parsers. envResolver supplies values
// for YAML environment placeholders; nil falls back to the process env.
func DefaultRegistry(envResolver func(string) (string, bool)) *Registry {
	registry := NewRegistry()
	registry.Register(NewPHPParser(nil))
	registry.Register(NewYAMLParser(envResolver))
	registry.Register(NewXMLParser())
	return registry
}
