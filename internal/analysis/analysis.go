// Package analysis turns free-form LLM output into a validated journal
// analysis record: an empathetic reply, a closed-set emotion label with
// intensity, and a distribution over four life themes. Every function here is
// pure and total; the model's output is treated as unreliable input that must
// degrade gracefully rather than fail the request.
package analysis

// The six emotion labels the model may assign. Anything else is dropped.
const (
	EmotionJoy     = "joy"
	EmotionCalm    = "calm"
	EmotionTired   = "tired"
	EmotionAnxiety = "anxiety"
	EmotionSadness = "sadness"
	EmotionAnger   = "anger"
)

// Theme keys, in fixed order. The order matters: argmax ties resolve to the
// earliest key, and the rounding residual is absorbed by "other".
const (
	ThemeWork    = "work"
	ThemeHobbies = "hobbies"
	ThemeSocial  = "social"
	ThemeOther   = "other"
)

var ThemeKeys = [4]string{ThemeWork, ThemeHobbies, ThemeSocial, ThemeOther}

var validEmotions = map[string]struct{}{
	EmotionJoy:     {},
	EmotionCalm:    {},
	EmotionTired:   {},
	EmotionAnxiety: {},
	EmotionSadness: {},
	EmotionAnger:   {},
}

func IsValidEmotion(label string) bool {
	_, ok := validEmotions[label]
	return ok
}

func IsThemeKey(key string) bool {
	for _, known := range ThemeKeys {
		if key == known {
			return true
		}
	}
	return false
}

// PersonaProfile is the slice of a companion the prompt builder needs.
type PersonaProfile struct {
	DisplayName     string
	PersonaPrompt   string // optional free-text instructions; empty means use the stock persona
	ReplyLengthHint string // short | medium | long
}

// Result is the normalized analysis record. Pointer fields are nil when the
// model declined or produced an out-of-domain value; a nil field must never
// overwrite previously stored data.
type Result struct {
	Reply        string
	Emotion      *string
	Intensity    *int
	ThemeScores  map[string]float64 // exactly ThemeKeys when present, values sum to 1
	PrimaryTheme *string
}
