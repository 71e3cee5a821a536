package analysis

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// wireRecord is the JSON object the model is instructed to emit. Its reflected
// schema is embedded verbatim in the prompt so the instruction and the parser
// can never drift apart.
type wireRecord struct {
	Reply        string             `json:"reply" jsonschema:"description=Empathetic reply addressed directly to the user"`
	Emotion      *string            `json:"emotion" jsonschema:"description=One of the six allowed emotion labels or null"`
	Intensity    *int               `json:"intensity" jsonschema:"description=Integer 1 (low) to 3 (high) or null"`
	ThemeScores  map[string]float64 `json:"theme_scores" jsonschema:"description=Weights for exactly the keys work / hobbies / social / other summing to 1"`
	PrimaryTheme *string            `json:"primary_theme" jsonschema:"description=The theme key with the highest weight or null"`
}

var outputSchemaJSON = buildOutputSchema()

func buildOutputSchema() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&wireRecord{})
	schema.Version = ""

	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(encoded)
}
