package confparse

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/t3up/analyzer/internal/messages"
)

const (
	defaultMaxPHPFileBytes = int64(10 * 1024 * 1024) // 10 MiB
	defaultMaxPHPDepth     = 50
)

// PHPParser extracts the array returned by a PHP configuration file without
// executing it. Only top-level `return <literal-expression>;` statements are
// evaluated; the expression language covers literal scalars, array literals,
// string concatenation, and constants from a closed allowlist. Everything
// else is skipped with a warning.
type PHPParser struct {
	constants map[string]any
	maxBytes  int64
	maxDepth  int
}

// NewPHPParser builds a parser whose constant allowlist is constants.
// A nil map allows no constants.
func NewPHPParser(constants map[string]any) *PHPParser {
	return &PHPParser{
		constants: constants,
		maxBytes:  defaultMaxPHPFileBytes,
		maxDepth:  defaultMaxPHPDepth,
	}
}

func (p *PHPParser) Name() string { return "php" }

func (p *PHPParser) Supports(path string) bool {
	return strings.HasSuffix(path, ".php")
}

// Parse reads and safely evaluates the file at path.
func (p *PHPParser) Parse(_ context.Context, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return failed(FormatPHP, KindParse, fmt.Sprintf(messages.ConfParseReadFmt, err), path)
	}
	if info.Size() > p.maxBytes {
		return failed(FormatPHP, KindSecurity,
			fmt.Sprintf(messages.ConfParseFileTooLargeFmt, info.Size(), p.maxBytes), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(FormatPHP, KindParse, fmt.Sprintf(messages.ConfParseReadFmt, err), path)
	}
	return p.ParseBytes(data, path)
}

// ParseBytes evaluates raw PHP source. source names the origin for errors.
func (p *PHPParser) ParseBytes(data []byte, source string) Result {
	if int64(len(data)) > p.maxBytes {
		return failed(FormatPHP, KindSecurity,
			fmt.Sprintf(messages.ConfParseFileTooLargeFmt, len(data), p.maxBytes), source)
	}
	tokens, warnings, err := tokenizePHP(data)
	if err != nil {
		result := failed(FormatPHP, KindParse, err.Error(), source)
		result.Warnings = warnings
		return result
	}

	parser := &phpParser{tokens: tokens, constants: p.constants, maxDepth: p.maxDepth, warnings: warnings}
	value, perr := parser.parseTopLevel()
	result := Result{
		Format:   FormatPHP,
		Warnings: parser.warnings,
		Metadata: map[string]any{"source": source},
	}
	if perr != nil {
		result.Errors = append(result.Errors, *perr)
		return result
	}
	switch typed := value.(type) {
	case map[string]any:
		result.Data = typed
	case nil:
		result.Data = map[string]any{}
	default:
		result.Data = map[string]any{"return": typed}
	}
	return result
}

type phpTokenKind int

const (
	tokEOF phpTokenKind = iota
	tokString
	tokNumber
	tokIdent
	tokPunct
)

type phpToken struct {
	kind phpTokenKind
	text string
	line int
}

// tokenizePHP lexes the payload between the opening tag and EOF. Comments
// are skipped; strings are decoded; everything else becomes identifier,
// number, or punctuation tokens.
func tokenizePHP(data []byte) ([]phpToken, []string, error) {
	src := string(data)
	start := strings.Index(src, "<?php")
	if start < 0 {
		return nil, nil, fmt.Errorf(messages.ConfParseNoOpenTag)
	}
	src = src[start+len("<?php"):]

	var tokens []phpToken
	var warnings []string
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, warnings, fmt.Errorf(messages.ConfParseUnterminatedComment)
			}
			line += strings.Count(src[i:i+2+end+2], "\n")
			i += 2 + end + 2
		case c == '\'' || c == '"':
			text, consumed, warn, err := lexPHPString(src[i:], c)
			if err != nil {
				return nil, warnings, fmt.Errorf("%s: line %d", err.Error(), line)
			}
			if warn != "" {
				warnings = append(warnings, fmt.Sprintf("%s (line %d)", warn, line))
			}
			line += strings.Count(src[i:i+consumed], "\n")
			tokens = append(tokens, phpToken{kind: tokString, text: text, line: line})
			i += consumed
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.' || src[j] == 'e' || src[j] == 'E' || src[j] == 'x' || src[j] == 'X' || (src[j] >= 'a' && src[j] <= 'f') || (src[j] >= 'A' && src[j] <= 'F') || src[j] == '_') {
				j++
			}
			tokens = append(tokens, phpToken{kind: tokNumber, text: src[i:j], line: line})
			i = j
		case isPHPIdentStart(c):
			j := i
			for j < len(src) && isPHPIdentPart(src[j]) {
				j++
			}
			tokens = append(tokens, phpToken{kind: tokIdent, text: src[i:j], line: line})
			i = j
		case c == '=' && i+1 < len(src) && src[i+1] == '>':
			tokens = append(tokens, phpToken{kind: tokPunct, text: "=>", line: line})
			i += 2
		case c == '?' && i+1 < len(src) && src[i+1] == '>':
			// Closing tag ends the PHP payload.
			return append(tokens, phpToken{kind: tokEOF, line: line}), warnings, nil
		default:
			tokens = append(tokens, phpToken{kind: tokPunct, text: string(c), line: line})
			i++
		}
	}
	return append(tokens, phpToken{kind: tokEOF, line: line}), warnings, nil
}

// lexPHPString decodes a quoted string starting at src[0] == quote.
// It returns the decoded text, bytes consumed, and an optional warning for
// double-quoted interpolation markers (treated literally).
func lexPHPString(src string, quote byte) (string, int, string, error) {
	var b strings.Builder
	warn := ""
	i := 1
	for i < len(src) {
		c := src[i]
		if c == quote {
			return b.String(), i + 1, warn, nil
		}
		if c == '\\' && i+1 < len(src) {
			next := src[i+1]
			if quote == '\'' {
				switch next {
				case '\'', '\\':
					b.WriteByte(next)
				default:
					b.WriteByte('\\')
					b.WriteByte(next)
				}
			} else {
				switch next {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case 'r':
					b.WriteByte('\r')
				case '"', '\\', '$':
					b.WriteByte(next)
				default:
					b.WriteByte('\\')
					b.WriteByte(next)
				}
			}
			i += 2
			continue
		}
		if c == '$' && quote == '"' {
			warn = messages.ConfParseInterpolationLiteral
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, "", fmt.Errorf(messages.ConfParseUnterminatedString)
}

func isPHPIdentStart(c byte) bool {
	return c == '_' || c == '\\' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isPHPIdentPart(c byte) bool {
	return isPHPIdentStart(c) || (c >= '0' && c <= '9')
}

// skipped marks an expression that was recognized but not representable in
// the restricted language; containing arrays drop the element.
type skippedValue struct{}

type phpParser struct {
	tokens    []phpToken
	pos       int
	constants map[string]any
	maxDepth  int
	warnings  []string
}

func (p *phpParser) peek() phpToken { return p.tokens[p.pos] }

func (p *phpParser) next() phpToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *phpParser) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// parseTopLevel walks statements; the first `return <expr>;` wins. Every
// other statement is skipped with a warning and never evaluated.
func (p *phpParser) parseTopLevel() (any, *ParseError) {
	var value any
	haveReturn := false
	for p.peek().kind != tokEOF {
		tok := p.peek()
		if tok.kind == tokIdent && tok.text == "return" {
			p.next()
			expr, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			p.expectStatementEnd()
			if haveReturn {
				p.warnf(messages.ConfParseExtraReturnFmt, tok.line)
				continue
			}
			if _, isSkipped := expr.(skippedValue); isSkipped {
				expr = nil
			}
			value = expr
			haveReturn = true
			continue
		}
		p.warnf(messages.ConfParseIgnoredStatementFmt, describeToken(tok), tok.line)
		p.skipStatement()
	}
	return value, nil
}

// skipStatement consumes tokens through the next top-level semicolon,
// balancing brackets so compound statements are skipped whole.
func (p *phpParser) skipStatement() {
	depth := 0
	for {
		tok := p.next()
		switch {
		case tok.kind == tokEOF:
			return
		case tok.kind == tokPunct && (tok.text == "(" || tok.text == "[" || tok.text == "{"):
			depth++
		case tok.kind == tokPunct && (tok.text == ")" || tok.text == "]" || tok.text == "}"):
			if depth > 0 {
				depth--
			}
		case tok.kind == tokPunct && tok.text == ";" && depth == 0:
			return
		}
	}
}

func (p *phpParser) expectStatementEnd() {
	if tok := p.peek(); tok.kind == tokPunct && tok.text == ";" {
		p.next()
		return
	}
	p.skipStatement()
}

// parseExpr parses a restricted expression: a primary optionally followed by
// string concatenation.
func (p *phpParser) parseExpr(depth int) (any, *ParseError) {
	if depth > p.maxDepth {
		return nil, &ParseError{Kind: KindSecurity, Message: fmt.Sprintf(messages.ConfParseDepthExceededFmt, p.maxDepth)}
	}
	left, err := p.parsePrimary(depth)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokPunct || tok.text != "." {
			return left, nil
		}
		p.next()
		right, err := p.parsePrimary(depth)
		if err != nil {
			return nil, err
		}
		left = concatPHP(left, right, p)
	}
}

func concatPHP(left, right any, p *phpParser) any {
	ls, lok := phpStringValue(left)
	rs, rok := phpStringValue(right)
	if !lok || !rok {
		p.warnf(messages.ConfParseNonStringConcat)
		return skippedValue{}
	}
	return ls + rs
}

func phpStringValue(v any) (string, bool) {
	switch typed := v.(type) {
	case string:
		return typed, true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}

func (p *phpParser) parsePrimary(depth int) (any, *ParseError) {
	tok := p.peek()
	switch {
	case tok.kind == tokString:
		p.next()
		return tok.text, nil
	case tok.kind == tokNumber:
		p.next()
		return parsePHPNumber(tok.text), nil
	case tok.kind == tokPunct && tok.text == "-":
		p.next()
		inner, err := p.parsePrimary(depth)
		if err != nil {
			return nil, err
		}
		switch typed := inner.(type) {
		case int64:
			return -typed, nil
		case float64:
			return -typed, nil
		default:
			p.warnf(messages.ConfParseUnsupportedNegation)
			return skippedValue{}, nil
		}
	case tok.kind == tokPunct && tok.text == "[":
		return p.parseArray(depth, "]")
	case tok.kind == tokIdent:
		return p.parseIdent(depth)
	default:
		p.next()
		p.warnf(messages.ConfParseUnsupportedExprFmt, describeToken(tok), tok.line)
		p.skipBalancedFrom(tok)
		return skippedValue{}, nil
	}
}

func (p *phpParser) parseIdent(depth int) (any, *ParseError) {
	tok := p.next()
	switch strings.ToLower(tok.text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	case "array":
		if open := p.peek(); open.kind == tokPunct && open.text == "(" {
			p.next()
			return p.parseArray(depth, ")")
		}
	}
	// A call is any identifier followed by an opening paren. Never resolved,
	// never executed: the argument list is skipped wholesale.
	if next := p.peek(); next.kind == tokPunct && next.text == "(" {
		p.warnf(messages.ConfParseIgnoredCallFmt, tok.text, tok.line)
		p.skipBalanced("(", ")")
		return skippedValue{}, nil
	}
	if value, ok := p.constants[tok.text]; ok {
		return value, nil
	}
	p.warnf(messages.ConfParseUnknownConstantFmt, tok.text, tok.line)
	return skippedValue{}, nil
}

// parseArray parses entries up to the closing delimiter. The opening token
// has already been consumed for array(...); for [...] it is consumed here.
func (p *phpParser) parseArray(depth int, closer string) (any, *ParseError) {
	if closer == "]" {
		p.next() // consume '['
	}
	type entry struct {
		key      any // nil for implicit index
		value    any
		hasValue bool
	}
	var entries []entry
	for {
		tok := p.peek()
		if tok.kind == tokEOF {
			return nil, &ParseError{Kind: KindParse, Message: messages.ConfParseUnterminatedArray}
		}
		if tok.kind == tokPunct && tok.text == closer {
			p.next()
			break
		}
		first, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		e := entry{value: first, hasValue: true}
		if arrow := p.peek(); arrow.kind == tokPunct && arrow.text == "=>" {
			p.next()
			value, err := p.parseExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			e = entry{key: first, value: value, hasValue: true}
		}
		if _, isSkipped := e.value.(skippedValue); isSkipped {
			e.hasValue = false
		}
		if _, isSkipped := e.key.(skippedValue); isSkipped {
			e.hasValue = false
		}
		if e.hasValue {
			entries = append(entries, e)
		}
		if sep := p.peek(); sep.kind == tokPunct && sep.text == "," {
			p.next()
		}
	}

	// Pure list when no explicit keys appear; otherwise a string-keyed map.
	isList := true
	for _, e := range entries {
		if e.key != nil {
			isList = false
			break
		}
	}
	if isList {
		list := make([]any, 0, len(entries))
		for _, e := range entries {
			list = append(list, e.value)
		}
		return list, nil
	}
	out := make(map[string]any, len(entries))
	index := int64(0)
	for _, e := range entries {
		var key string
		switch typed := e.key.(type) {
		case nil:
			key = strconv.FormatInt(index, 10)
			index++
		case string:
			key = typed
		case int64:
			key = strconv.FormatInt(typed, 10)
			if typed >= index {
				index = typed + 1
			}
		case bool:
			key = strconv.FormatBool(typed)
		default:
			p.warnf(messages.ConfParseUnsupportedKeyFmt, e.key)
			continue
		}
		out[key] = e.value
	}
	return out, nil
}

// skipBalanced consumes a bracketed region starting at the current opener.
func (p *phpParser) skipBalanced(open, close string) {
	depth := 0
	for {
		tok := p.next()
		switch {
		case tok.kind == tokEOF:
			return
		case tok.kind == tokPunct && tok.text == open:
			depth++
		case tok.kind == tokPunct && tok.text == close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// skipBalancedFrom recovers after an unexpected opener token.
func (p *phpParser) skipBalancedFrom(tok phpToken) {
	if tok.kind != tokPunct {
		return
	}
	switch tok.text {
	case "(":
		p.skipUnbalanced(")", "(")
	case "{":
		p.skipUnbalanced("}", "{")
	}
}

func (p *phpParser) skipUnbalanced(close, open string) {
	depth := 1
	for depth > 0 {
		tok := p.next()
		switch {
		case tok.kind == tokEOF:
			return
		case tok.kind == tokPunct && tok.text == open:
			depth++
		case tok.kind == tokPunct && tok.text == close:
			depth--
		}
	}
}

func parsePHPNumber(text string) any {
	clean := strings.ReplaceAll(text, "_", "")
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		if v, err := strconv.ParseInt(clean[2:], 16, 64); err == nil {
			return v
		}
	}
	if v, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(clean, 64); err == nil {
		return v
	}
	return clean
}

func describeToken(tok phpToken) string {
	switch tok.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return "string"
	default:
		return strconv.Quote(tok.text)
	}
}
