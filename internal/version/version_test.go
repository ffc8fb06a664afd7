package version

import "testing"

func TestParseCanonical(t *testing.T) {
	v, err := Parse("12.4.10")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if v.Major != 12 || v.Minor != 4 || v.Patch != 10 || v.Suffix != "" {
		t.Fatalf("unexpected version %+v", v)
	}
}

func TestParseVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"v11.5", "11.5.0"},
		{" 10.4.22 ", "10.4.22"},
		{"13.0.0-dev", "13.0.0-dev"},
		{"v12.4.10-rc1", "12.4.10-rc1"},
	}
	for _, tc := range cases {
		v, err := Parse(tc.raw)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tc.raw, err)
		}
		if v.String() != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.raw, v.String(), tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, raw := range []string{"", "12", "a.b.c", "12.4.10-", "1.2.3.4", "-1.0.0"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q) expected error", raw)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, raw := range []string{"12.4.10", "11.5.0", "13.1.2-beta1"} {
		v, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", raw, err)
		}
		back, err := Parse(v.String())
		if err != nil {
			t.Fatalf("re-Parse(%q) error: %v", v.String(), err)
		}
		if back != v {
			t.Fatalf("round trip mismatch: %+v != %+v", back, v)
		}
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"12.4.10", "12.4.10", 0},
		{"12.4.9", "12.4.10", -1},
		{"12.5.0", "12.4.10", 1},
		{"11.5.0", "12.0.0", -1},
		// Suffixed versions order before the release at the same triple.
		{"12.4.10-rc1", "12.4.10", -1},
		{"12.4.10", "12.4.10-rc1", 1},
		{"12.4.10-alpha", "12.4.10-beta", -1},
	}
	for _, tc := range cases {
		a := MustParse(tc.a)
		b := MustParse(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Fatalf("Compare(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestLess(t *testing.T) {
	if !MustParse("11.5.0").Less(MustParse("12.0.0")) {
		t.Fatal("expected 11.5.0 < 12.0.0")
	}
	if MustParse("12.0.0").Less(MustParse("12.0.0")) {
		t.Fatal("expected 12.0.0 not less than itself")
	}
}

func TestMatchesConstraint(t *testing.T) {
	cases := []struct {
		version    string
		constraint string
		want       bool
	}{
		{"12.4.10", "^12.4", true},
		{"13.0.0", "^12.4", false},
		{"11.5.3", "~11.5.0", true},
		{"11.6.0", "~11.5.0", false},
		{"12.4.0", ">=10.4 <13", true},
		{"9.5.0", "^10.4|^11.5", false},
		{"11.5.0", "^10.4|^11.5", true},
		{"12.4.0", "not a constraint", false},
	}
	for _, tc := range cases {
		v := MustParse(tc.version)
		if got := v.MatchesConstraint(tc.constraint); got != tc.want {
			t.Fatalf("MatchesConstraint(%s, %q) = %v, want %v", tc.version, tc.constraint, got, tc.want)
		}
	}
}

func TestMajorOnlyAndZero(t *testing.T) {
	v := MustParse("12.4.10")
	if v.MajorOnly().String() != "12.0.0" {
		t.Fatalf("MajorOnly = %s", v.MajorOnly())
	}
	if v.IsZero() {
		t.Fatal("expected non-zero")
	}
	if !(Version{}).IsZero() {
		t.Fatal("expected zero value to be zero")
	}
}
