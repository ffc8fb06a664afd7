package messages

// Report rendering and file management messages.
const (
	ReportUnknownFormatFmt  = "unknown report format %q (expected html, markdown, or json)"
	ReportParseTemplatesFmt = "parsing %s templates: %w"
	ReportRenderFmt         = "rendering %s %s: %w"
	ReportEncodeFmt         = "encoding %s report: %w"
	ReportCreateDirFmt      = "creating report directory %s: %w"
	ReportWriteFileFmt      = "writing report file %s: %w"
)
