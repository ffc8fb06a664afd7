// Package confparse extracts structured data from TYPO3 configuration files
// without ever executing them: PHP-style array returns are parsed from an
// AST restricted to literal expressions, YAML is decoded after environment
// placeholder substitution, and XML is lowered to nested maps with external
// entity resolution disabled.
package confparse

import "fmt"

// Format identifies a supported configuration format.
type Format string

const (
	FormatPHP  Format = "php"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	// KindUnsupported means no registered parser matched the file.
	KindUnsupported ErrorKind = "unsupported"
	// KindParse means the file was syntactically invalid.
	KindParse ErrorKind = "parse"
	// KindInvalid means the file parsed but violated a schema constraint.
	KindInvalid ErrorKind = "invalid"
	// KindSecurity means a size/depth cap was exceeded or a dangerous
	// construct was encountered.
	KindSecurity ErrorKind = "security"
)

// ParseError is one failure attached to a Result. Parsers report errors on
// the result instead of unwinding so one bad file never halts discovery.
type ParseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Context string    `json:"context,omitempty"`
}

func (e ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the outcome of parsing a single configuration file.
type Result struct {
	Format   Format         `json:"format"`
	Data     map[string]any `json:"data,omitempty"`
	Errors   []ParseError   `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Successful reports whether the parse produced usable data.
func (r Result) Successful() bool {
	return len(r.Errors) == 0
}

func failed(format Format, kind ErrorKind, message, context string) Result {
	return Result{
		Format: format,
		Errors: []ParseError{{Kind: kind, Message: message, Context: context}},
	}
}
