package analysis

import (
	"strings"
	"testing"
)

func TestExtractObjectWholeJSON(t *testing.T) {
	raw := `  {"reply":"hi","emotion":"joy","intensity":1}  `
	got := ExtractObject(raw)
	if got["reply"] != "hi" {
		t.Fatalf("expected reply from whole-string parse, got %v", got["reply"])
	}
	if got["emotion"] != "joy" {
		t.Fatalf("expected emotion joy, got %v", got["emotion"])
	}
}

func TestExtractObjectFencedBlock(t *testing.T) {
	raw := "Here you go:\n```json\n{\"reply\":\"ok\",\"intensity\":2}\n```\nthanks"
	got := ExtractObject(raw)
	if got["reply"] != "ok" {
		t.Fatalf("expected reply from fenced block, got %v", got["reply"])
	}
}

func TestExtractObjectFencedBlockCaseInsensitive(t *testing.T) {
	raw := "```JSON\n{\"reply\":\"upper\"}\n```"
	got := ExtractObject(raw)
	if got["reply"] != "upper" {
		t.Fatalf("expected case-insensitive fence match, got %v", got["reply"])
	}
}

func TestExtractObjectBraceSpan(t *testing.T) {
	raw := `The model says: {"reply":"span","emotion":null} hope that helps`
	got := ExtractObject(raw)
	if got["reply"] != "span" {
		t.Fatalf("expected reply from brace span, got %v", got["reply"])
	}
}

func TestExtractObjectGreedySpanCoversSiblingObjects(t *testing.T) {
	// Two sibling objects: the greedy first-{ to last-} span covers both and
	// fails to parse, so the whole text degrades to a reply. Documented
	// current behavior, not an accident.
	raw := `{"reply":"first"} and also {"reply":"second"}`
	got := ExtractObject(raw)
	if got["reply"] != raw {
		t.Fatalf("expected fallback to raw text for sibling objects, got %v", got["reply"])
	}
	if got["emotion"] != nil {
		t.Fatalf("expected nil emotion in fallback, got %v", got["emotion"])
	}
}

func TestExtractObjectNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"no json here at all",
		"{truncated",
		`{"unclosed": "value"`,
		"]" + strings.Repeat("}", 50),
		"prose with deeply {{{{nested}}}} unrelated braces",
		"```json\nnot actually json\n```",
		"\x00\xff binary-ish garbage",
	}
	for _, raw := range inputs {
		got := ExtractObject(raw)
		if got == nil {
			t.Fatalf("expected non-nil mapping for %q", raw)
		}
		if _, ok := got["reply"]; !ok {
			t.Fatalf("expected reply key for %q, got %v", raw, got)
		}
	}
}

func TestExtractObjectFallbackKeepsTrimmedText(t *testing.T) {
	got := ExtractObject("  just a plain sentence  ")
	if got["reply"] != "just a plain sentence" {
		t.Fatalf("expected trimmed raw text as reply, got %v", got["reply"])
	}
	for _, key := range []string{"emotion", "intensity", "theme_scores", "primary_theme"} {
		if got[key] != nil {
			t.Fatalf("expected %s to be nil in fallback, got %v", key, got[key])
		}
	}
}
