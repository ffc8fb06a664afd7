package analyzer

import (
	"fmt"
	"os"
	"time"

	"github.com/t3up/analyzer/internal/discovery"
)

// NewRectorAnalyzer wraps the rector binary. The generated config enables
// the TYPO3 level sets up to the upgrade target and forces a dry run so the
// analyzed installation is never modified.
func NewRectorAnalyzer(binary string, timeout time.Duration) *ToolAnalyzer {
	if binary == "" {
		binary = "rector"
	}
	return &ToolAnalyzer{
		name:        "rector",
		binary:      binary,
		timeout:     timeout,
		flags:       []string{"--dry-run", "--output-format=json", "--no-progress-bar"},
		writeConfig: writeRectorConfig,
	}
}

func writeRectorConfig(ext *discovery.Extension, actx *Context) (string, func(), error) {
	file, err := os.CreateTemp("", "rector-*.php")
	if err != nil {
		return "", nil, err
	}
	content := fmt.Sprintf(`<?php

declare(strict_types=1);

use Rector\Config\RectorConfig;
use Ssch\TYPO3Rector\Set\Typo3LevelSetList;

return static function (RectorConfig $rectorConfig): void {
    $rectorConfig->paths([%q]);
    $rectorConfig->sets([Typo3LevelSetList::UP_TO_TYPO3_%d]);
};
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
