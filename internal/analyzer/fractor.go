package analyzer

import (
	"fmt"
	"os"
	"time"

	"github.com/t3up/analyzer/internal/discovery"
)

// NewFractorAnalyzer wraps the fractor binary, which rewrites the non-PHP
// resources (TypoScript, FlexForms, fluid templates) rector does not cover.
// Same invocation and output contract, separate config shape.
func NewFractorAnalyzer(binary string, timeout time.Duration) *ToolAnalyzer {
	if binary == "" {
		binary = "fractor"
	}
	return &ToolAnalyzer{
		name:        "fractor",
		binary:      binary,
		timeout:     timeout,
		flags:       []string{"--dry-run", "--output-format=json"},
		writeConfig: writeFractorConfig,
	}
}

func writeFractorConfig(ext *discovery.Extension, actx *Context) (string, func(), error) {
	file, err := os.CreateTemp("", "fractor-*.php")
	if err != nil {
		return "", nil, err
	}
	content := fmt.Sprintf(`<?php

declare(strict_types=1);

use a9f\Fractor\Configuration\FractorConfiguration;
use a9f\Typo3Fractor\Set\Typo3LevelSetList;

return FractorConfiguration::configure()
    ->withPaths([%q])
    ->withSets([Typo3LevelSetList::UP_TO_TYPO3_%d]);
`, ext.Path, actx.TargetVersion.Major)

	if _, err := file.WriteString(content); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", nil, err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", nil, err
	}
	return file.Name(), func() { _ = os.Remove(file.Name()) }, nil
}
