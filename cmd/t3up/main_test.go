package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMainExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "silent exit", err: &SilentExitError{Code: exitBlocking}, want: exitBlocking},
		{name: "usage error", err: &usageError{err: errors.New("bad flag")}, want: exitUsage},
		{name: "plain error", err: errors.New("boom"), want: exitFailure},
		{name: "success", err: nil, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := executeFunc
			defer func() { executeFunc = original }()
			executeFunc = func(args []string, stdout, stderr io.Writer) error {
				return tt.err
			}

			code := -1
			runMain([]string{"t3up"}, io.Discard, io.Discard, func(c int) { code = c })
			require.Equal(t, tt.want, code)
		})
	}
}

func TestRunMainPrintsPlainErrors(t *testing.T) {
	original := executeFunc
	defer func() { executeFunc = original }()
	executeFunc = func(args []string, stdout, stderr io.Writer) error {
		return errors.New("discovery failed")
	}

	var stderr bytes.Buffer
	runMain([]string{"t3up"}, io.Discard, &stderr, func(int) {})
	require.Contains(t, stderr.String(), "discovery failed")
}

func TestVersionString(t *testing.T) {
	originalCommit, originalDate := Commit, BuildDate
	defer func() { Commit, BuildDate = originalCommit, originalDate }()

	Commit, BuildDate = "unknown", "unknown"
	require.Equal(t, Version, versionString())

	Commit, BuildDate = "abc1234", "2026-08-01"
	require.Contains(t, versionString(), "abc1234")
	require.Contains(t, versionString(), "2026-08-01")
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	err := execute([]string{"t3up", "analyze", "--no-such-flag", "x"}, io.Discard, io.Discard)
	var usage *usageError
	require.ErrorAs(t, err, &usage)
}
