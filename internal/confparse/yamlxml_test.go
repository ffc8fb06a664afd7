package confparse

import (
	"context"
	"strings"
	"testing"
)

func TestYAMLEnvSubstitution(t *testing.T) {
	resolver := func(name string) (string, bool) {
		if name == "DB_HOST" {
			return "db.internal", true
		}
		return "", false
	}
	parser := NewYAMLParser(resolver)
	result := parser.ParseBytes([]byte(`
database:
  host: ${DB_HOST}
  password: "%env(DB_PASS)%"
`), "settings.yaml")
	if !result.Successful() {
		t.Fatalf("errors: %+v", result.Errors)
	}
	db := result.Data["database"].(map[string]any)
	if db["host"] != "db.internal" {
		t.Fatalf("placeholder unsubstituted: %+v", db)
	}
	if db["password"] != "" {
		t.Fatalf("unresolved placeholder should yield empty string: %+v", db)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "DB_PASS") {
		t.Fatalf("expected unresolved warning, got %+v", result.Warnings)
	}
}

func TestYAMLMultiDocument(t *testing.T) {
	parser := NewYAMLParser(func(string) (string, bool) { return "", false })
	result := parser.ParseBytes([]byte("first: 1\n---\nsecond: 2\n"), "multi.yaml")
	if !result.Successful() {
		t.Fatalf("errors: %+v", result.Errors)
	}
	if result.Data["first"] != 1 {
		t.Fatalf("primary document wrong: %+v", result.Data)
	}
	if result.Metadata["documents"] != 2 {
		t.Fatalf("expected 2 documents, got %+v", result.Metadata)
	}
	extra := result.Metadata["additional_documents"].([]any)
	if extra[0].(map[string]any)["second"] != 2 {
		t.Fatalf("secondary document wrong: %+v", extra)
	}
}

func TestYAMLSyntaxError(t *testing.T) {
	parser := NewYAMLParser(nil)
	result := parser.ParseBytes([]byte(":\n  - ]["), "broken.yaml")
	if result.Successful() {
		t.Fatal("expected parse failure")
	}
	if result.Errors[0].Kind != KindParse {
		t.Fatalf("expected parse kind, got %+v", result.Errors[0])
	}
}

func TestXMLLowering(t *testing.T) {
	parser := NewXMLParser()
	result := parser.ParseBytes([]byte(`
<T3DataStructure type="array">
  <sheet index="1">General</sheet>
  <sheet index="2">Advanced</sheet>
  <meta><langDisable>1</langDisable></meta>
</T3DataStructure>`), "ds.xml")
	if !result.Successful() {
		t.Fatalf("errors: %+v", result.Errors)
	}
	root := result.Data["T3DataStructure"].(map[string]any)
	if root["@type"] != "array" {
		t.Fatalf("attribute lost: %+v", root)
	}
	sheets, ok := root["sheet"].([]any)
	if !ok || len(sheets) != 2 {
		t.Fatalf("repeated elements should become a sequence: %+v", root["sheet"])
	}
	first := sheets[0].(map[string]any)
	if first["@index"] != "1" || first["#text"] != "General" {
		t.Fatalf("unexpected sheet: %+v", first)
	}
	meta := root["meta"].(map[string]any)
	if meta["langDisable"] != "1" {
		t.Fatalf("leaf text lost: %+v", meta)
	}
}

func TestXMLEntityRejected(t *testing.T) {
	parser := NewXMLParser()
	result := parser.ParseBytes([]byte(`<!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]><root>&xxe;</root>`), "evil.xml")
	if result.Successful() {
		t.Fatal("expected entity resolution to be rejected")
	}
}

func TestRegistryDispatchOrder(t *testing.T) {
	registry := DefaultRegistry(func(string) (string, bool) { return "", false })
	ctx := context.Background()

	result := registry.Parse(ctx, "/nonexistent/file.conf")
	if result.Successful() || result.Errors[0].Kind != KindUnsupported {
		t.Fatalf("expected unsupported, got %+v", result)
	}
}
