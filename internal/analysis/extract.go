package analysis

import (
	"encoding/json"
	"strings"
)

// ExtractObject pulls a single JSON object out of raw model output. It never
// fails: when no parseable object can be found, the whole text becomes the
// reply and every analysis field is null.
//
// Attempts, first success wins:
//  1. the entire trimmed text as JSON
//  2. the interior of a ```json fenced block
//  3. the greedy span from the first '{' to the last '}'
//
// The greedy span deliberately does not balance braces: when the model emits
// two sibling objects, the span covers both and fails to parse, falling
// through to the reply-only fallback. Kept as-is so the selection behavior
// matches what callers have learned to expect from example-then-answer
// outputs.
func ExtractObject(raw string) map[string]any {
	text := strings.TrimSpace(raw)

	if obj := decodeObject(text); obj != nil {
		return obj
	}

	if inner, ok := fencedJSONBlock(text); ok {
		if obj := decodeObject(inner); obj != nil {
			return obj
		}
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			if obj := decodeObject(text[start : end+1]); obj != nil {
				return obj
			}
		}
	}

	return map[string]any{
		"reply":         text,
		"emotion":       nil,
		"intensity":     nil,
		"theme_scores":  nil,
		"primary_theme": nil,
	}
}

func decodeObject(candidate string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil || obj == nil {
		return nil
	}
	return obj
}

func fencedJSONBlock(text string) (string, bool) {
	lowered := strings.ToLower(text)
	start := strings.Index(lowered, "```json")
	if start < 0 {
		return "", false
	}
	inner := text[start+len("```json"):]
	end := strings.Index(inner, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(inner[:end]), true
}
