package sensitivity

import "testing"

func TestOrdering(t *testing.T) {
	if !(Public < Internal && Internal < Confidential && Confidential < Restricted) {
		t.Fatalf("sensitivity levels are not totally ordered as expected")
	}
}

func TestDefaultIsInternal(t *testing.T) {
	if Default != Internal {
		t.Fatalf("expected default sensitivity to be internal, got %v", Default)
	}
}

func TestAgentCanReadBoundary(t *testing.T) {
	cases := []struct {
		content, max Level
		want         bool
	}{
		{Public, Internal, true},
		{Internal, Internal, true},
		{Confidential, Internal, false},
		{Restricted, Internal, false},
		{Confidential, Confidential, true},
		{Restricted, Restricted, true},
	}
	for _, c := range cases {
		if got := AgentCanRead(c.content, c.max); got != c.want {
			t.Errorf("AgentCanRead(%v, %v) = %v, want %v", c.content, c.max, got, c.want)
		}
	}
}

func TestContentHashDeterministicAndDistinct(t *testing.T) {
	h1 := ContentHash("hello world")
	h2 := ContentHash("hello world")
	if h1 != h2 {
		t.Fatalf("content hash is not deterministic")
	}
	if h3 := ContentHash("different content"); h3 == h1 {
		t.Fatalf("distinct content produced the same hash")
	}
}

func TestContentHashIsSHA256Hex(t *testing.T) {
	h := ContentHash("test")
	if len(h) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h))
	}
	for _, c := range h {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			t.Fatalf("non-hex character %q in content hash", c)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"public", "internal", "confidential", "restricted"} {
		lvl, ok := Parse(s)
		if !ok {
			t.Fatalf("Parse(%q) failed", s)
		}
		if lvl.String() != s {
			t.Errorf("round trip mismatch for %q: got %q", s, lvl.String())
		}
	}
	if _, ok := Parse("unknown"); ok {
		t.Fatalf("Parse should reject unknown levels")
	}
}
