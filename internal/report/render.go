package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/t3up/analyzer/internal/analyzer"
	"github.com/t3up/analyzer/internal/messages"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Report formats. The set is closed; NewRenderer rejects anything else.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists every supported report format in rendering order.
func Formats() []string { return []string{FormatHTML, FormatMarkdown, FormatJSON} }

// Renderer produces the byte content of one report format. Renderers hold
// parsed templates and are safe for reuse across reports.
type Renderer interface {
	// Format returns the format name used as the output subdirectory.
	Format() string
	// FileExt returns the file extension, without the leading dot.
	FileExt() string
	// RenderMain renders the installation-wide summary page.
	RenderMain(rc *ReportContext) ([]byte, error)
	// RenderExtension renders one extension's detail page.
	RenderExtension(rc *ReportContext, block ExtensionReport) ([]byte, error)
	// RenderFindings renders one extension's findings detail page. It is
	// only called when InlineFindings is false and the block has findings.
	RenderFindings(rc *ReportContext, block ExtensionReport) ([]byte, error)
	// InlineFindings reports whether findings are embedded in the
	// extension page instead of a separate detail page.
	InlineFindings() bool
}

// NewRenderer builds the renderer for the named format.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case FormatHTML:
		return newHTMLRenderer()
	case FormatMarkdown:
		return newMarkdownRenderer()
	case FormatJSON:
		return &jsonRenderer{}, nil
	default:
		return nil, fmt.Errorf(messages.ReportUnknownFormatFmt, format)
	}
}

// extensionPage is the data handed to the per-extension templates.
type extensionPage struct {
	Report *ReportContext
	Block  ExtensionReport
}

type htmlRenderer struct {
	templates *htmltemplate.Template
}

func newHTMLRenderer() (*htmlRenderer, error) {
	templates, err := htmltemplate.New("html").
		Funcs(htmltemplate.FuncMap{"level": analyzer.LevelForScore}).
		ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf(messages.ReportParseTemplatesFmt, FormatHTML, err)
	}
	return &htmlRenderer{templates: templates}, nil
}

func (r *htmlRenderer) Format() string       { return FormatHTML }
func (r *htmlRenderer) FileExt() string      { return "html" }
func (r *htmlRenderer) InlineFindings() bool { return false }

func (r *htmlRenderer) RenderMain(rc *ReportContext) ([]byte, error) {
	return r.render("main.html.tmpl", rc)
}

func (r *htmlRenderer) RenderExtension(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.render("extension.html.tmpl", extensionPage{Report: rc, Block: block})
}

func (r *htmlRenderer) RenderFindings(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.render("findings.html.tmpl", extensionPage{Report: rc, Block: block})
}

func (r *htmlRenderer) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf(messages.ReportRenderFmt, FormatHTML, name, err)
	}
	return buf.Bytes(), nil
}

type markdownRenderer struct {
	templates *texttemplate.Template
}

func newMarkdownRenderer() (*markdownRenderer, error) {
	templates, err := texttemplate.New("markdown").
		Funcs(texttemplate.FuncMap{"level": analyzer.LevelForScore}).
		ParseFS(templateFS, "templates/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf(messages.ReportParseTemplatesFmt, FormatMarkdown, err)
	}
	return &markdownRenderer{templates: templates}, nil
}

func (r *markdownRenderer) Format() string       { return FormatMarkdown }
func (r *markdownRenderer) FileExt() string      { return "md" }
func (r *markdownRenderer) InlineFindings() bool { return false }

func (r *markdownRenderer) RenderMain(rc *ReportContext) ([]byte, error) {
	return r.render("main.md.tmpl", rc)
}

func (r *markdownRenderer) RenderExtension(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.render("extension.md.tmpl", extensionPage{Report: rc, Block: block})
}

func (r *markdownRenderer) RenderFindings(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.render("findings.md.tmpl", extensionPage{Report: rc, Block: block})
}

func (r *markdownRenderer) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf(messages.ReportRenderFmt, FormatMarkdown, name, err)
	}
	return buf.Bytes(), nil
}

// jsonRenderer emits machine-readable reports. Findings are carried inline
// in each extension document, so no separate detail files are written.
// encoding/json sorts map keys, which keeps the output deterministic.
type jsonRenderer struct{}

func (r *jsonRenderer) Format() string       { return FormatJSON }
func (r *jsonRenderer) FileExt() string      { return "json" }
func (r *jsonRenderer) InlineFindings() bool { return true }

func (r *jsonRenderer) RenderMain(rc *ReportContext) ([]byte, error) {
	return r.encode(rc)
}

func (r *jsonRenderer) RenderExtension(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.encode(block)
}

func (r *jsonRenderer) RenderFindings(rc *ReportContext, block ExtensionReport) ([]byte, error) {
	return r.encode(block.Findings)
}

func (r *jsonRenderer) encode(value any) ([]byte, error) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf(messages.ReportEncodeFmt, FormatJSON, err)
	}
	return append(encoded, '\n'), nil
}
