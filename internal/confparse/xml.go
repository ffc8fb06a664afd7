package confparse

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/t3up/analyzer/internal/messages"
)

// XMLParser lowers tree-structured markup to the shared nested-map form.
// Child elements become named sub-trees, repeated names become sequences,
// attributes live under an "@" prefix, and text content under "#text".
// Entity expansion and external loading are disabled unconditionally.
type XMLParser struct{}

// NewXMLParser returns the tree-markup parser.
func NewXMLParser() *XMLParser { return &XMLParser{} }

func (p *XMLParser) Name() string { return "xml" }

func (p *XMLParser) Supports(path string) bool {
	return strings.HasSuffix(path, ".xml")
}

func (p *XMLParser) Parse(_ context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(FormatXML, KindParse, fmt.Sprintf(messages.ConfParseReadFmt, err), path)
	}
	return p.ParseBytes(data, path)
}

// ParseBytes lowers raw XML. source names the origin for diagnostics.
func (p *XMLParser) ParseBytes(data []byte, source string) Result {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	// Strict mode rejects undeclared entities instead of resolving them,
	// and no entity map or charset reader is installed, so neither custom
	// entities nor external resources are ever loaded.
	decoder.Strict = true
	decoder.Entity = map[string]string{}

	root, rootName, err := decodeXMLElement(decoder)
	if err != nil {
		return failed(FormatXML, KindParse, err.Error(), source)
	}
	if rootName == "" {
		return failed(FormatXML, KindParse, messages.ConfParseEmptyDocument, source)
	}
	return Result{
		Format:   FormatXML,
		Data:     map[string]any{rootName: root},
		Metadata: map[string]any{"source": source},
	}
}

// decodeXMLElement reads the next start element and lowers its subtree.
func decodeXMLElement(decoder *xml.Decoder) (any, string, error) {
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil, "", nil
		}
		if err != nil {
			return nil, "", err
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := lowerXMLElement(decoder, start)
			return value, start.Name.Local, err
		}
	}
}

// lowerXMLElement lowers one element whose start token has been consumed.
func lowerXMLElement(decoder *xml.Decoder, start xml.StartElement) (any, error) {
	node := map[string]any{}
	for _, attr := range start.Attr {
		node["@"+attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, err
		}
		switch typed := tok.(type) {
		case xml.StartElement:
			child, err := lowerXMLElement(decoder, typed)
			if err != nil {
				return nil, err
			}
			appendXMLChild(node, typed.Name.Local, child)
		case xml.CharData:
			text.Write([]byte(typed))
		case xml.EndElement:
			content := strings.TrimSpace(text.String())
			if len(node) == 0 {
				// Leaf element: just its text.
				return content, nil
			}
			if content != "" {
				node["#text"] = content
			}
			return node, nil
		}
	}
}

// appendXMLChild stores child under name, converting repeats to sequences.
func appendXMLChild(node map[string]any, name string, child any) {
	existing, ok := node[name]
	if !ok {
		node[name] = child
		return
	}
	if list, isList := existing.([]any); isList {
		node[name] = append(list, child)
		return
	}
	node[name] = []any{existing, child}
}
