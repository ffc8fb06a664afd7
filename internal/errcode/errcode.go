// Package errcode defines the closed set of error codes surfaced to callers,
// each paired with a severity and a retryable flag.
package errcode

import (
	"errors"
	"fmt"
)

// Code identifies a user-visible error condition.
type Code string

// The closed code set. New codes require a severity and retryable entry below.
const (
	PathNotFound         Code = "PATH_NOT_FOUND"
	NoCompatibleStrategy Code = "NO_COMPATIBLE_STRATEGY"
	StrategyConflict     Code = "STRATEGY_CONFLICT"
	InvalidRequest       Code = "INVALID_REQUEST"
	AnalyzerToolMissing  Code = "ANALYZER_TOOL_MISSING"
	AnalyzerTimeout      Code = "ANALYZER_TIMEOUT"
	AnalyzerExitNonzero  Code = "ANALYZER_EXIT_NONZERO"
)

// Severity grades an error condition.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severities = map[Code]Severity{
	PathNotFound:         SeverityWarning,
	NoCompatibleStrategy: SeverityError,
	StrategyConflict:     SeverityCritical,
	InvalidRequest:       SeverityError,
	AnalyzerToolMissing:  SeverityError,
	AnalyzerTimeout:      SeverityError,
	AnalyzerExitNonzero:  SeverityError,
}

var retryable = map[Code]bool{
	PathNotFound:        true,
	AnalyzerTimeout:     true,
	AnalyzerExitNonzero: true,
}

// Severity returns the severity assigned to c.
func (c Code) Severity() Severity {
	if s, ok := severities[c]; ok {
		return s
	}
	return SeverityError
}

// Retryable reports whether the condition may succeed on a later attempt
// without caller-side changes beyond environment state.
func (c Code) Retryable() bool {
	return retryable[c]
}

// CodedError attaches a Code to an underlying error.
type CodedError struct {
	Code Code
	Err  error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// New builds a CodedError from a format string.
func New(code Code, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code to err, returning nil when err is nil.
func Wrap(code Code, err error) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Err: err}
}

// CodeOf extracts the Code from err, or "" when err carries none.
func CodeOf(err error) Code {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
