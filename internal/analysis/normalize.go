package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize validates and coerces an extracted mapping into a Result. Total:
// any input yields a fully-typed record, out-of-domain values become nil
// rather than errors.
func Normalize(extracted map[string]any) Result {
	result := Result{Reply: coerceReply(extracted["reply"])}

	if label, ok := coerceEmotion(extracted["emotion"]); ok {
		result.Emotion = &label
	}
	if level, ok := coerceIntensity(extracted["intensity"]); ok {
		result.Intensity = &level
	}
	result.ThemeScores = coerceThemeScores(extracted["theme_scores"])
	result.PrimaryTheme = resolvePrimaryTheme(extracted["primary_theme"], result.ThemeScores)

	return result
}

func coerceReply(raw any) string {
	if text, ok := raw.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func coerceEmotion(raw any) (string, bool) {
	text, ok := raw.(string)
	if !ok {
		return "", false
	}
	label := strings.ToLower(strings.TrimSpace(text))
	if !IsValidEmotion(label) {
		return "", false
	}
	return label, true
}

func coerceIntensity(raw any) (int, bool) {
	var level int
	switch v := raw.(type) {
	case int:
		level = v
	case int64:
		level = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		level = int(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		level = int(parsed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		level = parsed
	default:
		return 0, false
	}
	if level < 1 || level > 3 {
		return 0, false
	}
	return level, true
}

// coerceThemeScores builds the 4-key simplex. A non-mapping input yields nil
// (wholly absent). A mapping with no positive mass collapses to the catch-all
// {other: 1}; otherwise values renormalize to sum 1, with the floating
// residual pushed into "other" and clamped at zero.
func coerceThemeScores(raw any) map[string]float64 {
	mapping, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	scores := make(map[string]float64, len(ThemeKeys))
	total := 0.0
	for _, key := range ThemeKeys {
		value := coerceScore(mapping[key])
		scores[key] = value
		total += value
	}

	if total <= 0 {
		for _, key := range ThemeKeys {
			scores[key] = 0
		}
		scores[ThemeOther] = 1
		return scores
	}

	sum := 0.0
	for _, key := range ThemeKeys {
		scores[key] /= total
		sum += scores[key]
	}
	if delta := 1 - sum; delta != 0 {
		scores[ThemeOther] = math.Max(0, scores[ThemeOther]+delta)
	}
	return scores
}

func coerceScore(raw any) float64 {
	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		value = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		value = parsed
	default:
		return 0
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0
	}
	return value
}

func resolvePrimaryTheme(raw any, scores map[string]float64) *string {
	if text, ok := raw.(string); ok {
		candidate := strings.ToLower(strings.TrimSpace(text))
		if IsThemeKey(candidate) {
			return &candidate
		}
	}

	// Derivable only when this call produced a distribution.
	if scores == nil {
		return nil
	}
	best := ThemeKeys[0]
	bestScore := scores[best]
	for _, key := range ThemeKeys[1:] {
		if scores[key] > bestScore {
			best = key
			bestScore = scores[key]
		}
	}
	return &best
}
