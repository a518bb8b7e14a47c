package curriculum

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["stages"],
  "properties": {
    "stages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "grades"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "grades": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "periods"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "periods": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["name", "topics"],
                    "properties": {
                      "name": {"type": "string", "minLength": 1},
                      "topics": {"type": "array", "items": {"$ref": "#/definitions/topic"}}
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "topic": {
      "type": "object",
      "required": ["id", "name", "skills"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "skills": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
        "prerequisites": {"type": ["array", "null"], "items": {"type": "string"}},
        "difficulty": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		panic(fmt.Sprintf("curriculum: invalid document schema: %v", err))
	}
	compiledSchema = s
}

// validateDocument checks a decoded YAML document against the curriculum schema.
func validateDocument(raw any) error {
	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("document does not match schema: %s", strings.Join(msgs, "; "))
}
