package document

import "github.com/xeipuuv/gojsonschema"

const newShapeSchemaJSON = `{
  "type": "object",
  "required": ["classification", "formatted_objectives", "difficulty_evaluation"],
  "properties": {
    "classification": {
      "type": "object",
      "required": ["classification"],
      "properties": {"classification": {"type": "string", "minLength": 1}}
    },
    "formatted_objectives": {
      "type": "object",
      "required": ["formatted_objectives"],
      "properties": {"formatted_objectives": {"type": "string", "minLength": 1}}
    },
    "difficulty_evaluation": {
      "type": "object",
      "required": ["difficulty_evaluation"],
      "properties": {"difficulty_evaluation": {"type": "string", "minLength": 1}}
    },
    "domaine": {"type": "string"},
    "contexte": {"type": "string"}
  }
}`

const legacySchemaJSON = `{
  "type": "object",
  "required": ["domaine", "classification_bloom", "objectifs_smart", "evaluation_difficulte"],
  "properties": {
    "domaine": {"type": "string", "minLength": 1},
    "classification_bloom": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "objectifs_smart": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "objectif": {"type": "string"},
          "specifique": {"type": "string"},
          "mesurable": {"type": "string"},
          "atteignable": {"type": "string"},
          "pertinent": {"type": "string"},
          "temporel": {"type": "string"},
          "niveau_bloom": {"type": "string"}
        }
      }
    },
    "evaluation_difficulte": {
      "type": "object",
      "properties": {
        "facile": {"type": "array", "items": {"type": "string"}},
        "moyen": {"type": "array", "items": {"type": "string"}},
        "difficile": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	newShapeSchema = mustSchema(newShapeSchemaJSON)
	legacySchema   = mustSchema(legacySchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("document: invalid embedded schema: " + err.Error())
	}
	return s
}
