package analyst

import "github.com/santhosh-tekuri/jsonschema/v5"

const analysisSchemaJSON = `{
  "type": "object",
  "required": ["classification", "draftedResponse"],
  "properties": {
    "classification": {
      "type": "object",
      "required": ["sentiment", "themes", "credibilityImpact", "urgency"],
      "properties": {
        "sentiment": {"enum": ["positive", "neutral", "negative"]},
        "themes": {"type": "array", "items": {"type": "string"}},
        "credibilityImpact": {"type": "number"},
        "urgency": {"enum": ["low", "medium", "high"]}
      }
    },
    "draftedResponse": {"type": "string", "minLength": 1},
    "reasoning": {"type": "string"}
  }
}`

var analysisSchema = jsonschema.MustCompileString("analysis.schema.json", analysisSchemaJSON)
