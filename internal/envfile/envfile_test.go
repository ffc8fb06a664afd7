package envfile

import "testing"

func TestParseBasicPairs(t *testing.T) {
	env, err := Parse("T3UP_GITHUB_TOKEN=abc\n# comment\n\nexport T3UP_CACHE_DIR=/tmp/cache\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env["T3UP_GITHUB_TOKEN"] != "abc" {
		t.Fatalf("token = %q", env["T3UP_GITHUB_TOKEN"])
	}
	if env["T3UP_CACHE_DIR"] != "/tmp/cache" {
		t.Fatalf("cache dir = %q", env["T3UP_CACHE_DIR"])
	}
}

func TestParseQuotedValues(t *testing.T) {
	env, err := Parse("A=\"with \\\"quotes\\\" and\\nnewline\"  # trailing comment\nB='single # not comment'\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env["A"] != "with \"quotes\" and\nnewline" {
		t.Fatalf("A = %q", env["A"])
	}
	if env["B"] != "single # not comment" {
		t.Fatalf("B = %q", env["B"])
	}
}

func TestParseRejectsMalformedLines(t *testing.T) {
	for _, content := range []string{
		"NOVALUE\n",
		"=missing-key\n",
		"A=\"unterminated\n",
		"A='unterminated\n",
		"A=\"closed\" trailing\n",
	} {
		if _, err := Parse(content); err == nil {
			t.Errorf("expected error for %q", content)
		}
	}
}

func TestParseEmptyContent(t *testing.T) {
	env, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(env) != 0 {
		t.Fatalf("env = %v", env)
	}
}
