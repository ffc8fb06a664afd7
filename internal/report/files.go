package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/t3up/analyzer/internal/messages"
)

// Writer lays out rendered reports on disk. Each format gets its own
// subdirectory under OutputDir:
//
//	<OutputDir>/<format>/main.<ext>
//	<OutputDir>/<format>/extensions/<key>.<ext>
//	<OutputDir>/<format>/findings-detail/<key>.<ext>
//
// The findings-detail directory only exists for formats that render findings
// on separate pages, and only holds extensions that have findings.
type Writer struct {
	OutputDir string
}

// Write renders the context in every requested format and returns the paths
// of the written files in a stable order.
func (w *Writer) Write(rc *ReportContext, formats []string) ([]string, error) {
	var written []string
	for _, format := range formats {
		renderer, err := NewRenderer(format)
		if err != nil {
			return written, err
		}
		paths, err := w.writeFormat(rc, renderer)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (w *Writer) writeFormat(rc *ReportContext, renderer Renderer) ([]string, error) {
	root := filepath.Join(w.OutputDir, renderer.Format())
	ext := renderer.FileExt()

	content, err := renderer.RenderMain(rc)
	if err != nil {
		return nil, err
	}
	var written []string
	mainPath := filepath.Join(root, "main."+ext)
	if err := writeFile(mainPath, content); err != nil {
		return written, err
	}
	written = append(written, mainPath)

	for _, block := range rc.Extensions {
		content, err := renderer.RenderExtension(rc, block)
		if err != nil {
			return written, err
		}
		path := filepath.Join(root, "extensions", block.Extension.Key+"."+ext)
		if err := writeFile(path, content); err != nil {
			return written, err
		}
		written = append(written, path)

		if renderer.InlineFindings() || !block.HasFindings() {
			continue
		}
		content, err = renderer.RenderFindings(rc, block)
		if err != nil {
			return written, err
		}
		path = filepath.Join(root, "findings-detail", block.Extension.Key+"."+ext)
		if err := writeFile(path, content); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.ReportCreateDirFmt, dir, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf(messages.ReportWriteFileFmt, path, err)
	}
	return nil
}
