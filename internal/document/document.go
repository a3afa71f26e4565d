// Package document loads an objectives document in either of its two
// supported JSON layouts.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/sequencer/internal/model"
)

// ErrMalformed reports an input that is not a JSON object.
var ErrMalformed = errors.New("malformed input document")

// Top-level keys of the new layout. Each holds an object with a
// same-named nested string field.
const (
	KeyClassification       = "classification"
	KeyFormattedObjectives  = "formatted_objectives"
	KeyDifficultyEvaluation = "difficulty_evaluation"
)

// Top-level keys of the legacy layout.
const (
	KeyDomain               = "domaine"
	KeyContext              = "contexte"
	KeyBloomClassification  = "classification_bloom"
	KeySmartObjectives      = "objectifs_smart"
	KeyDifficultyAssessment = "evaluation_difficulte"
)

// NewShapeKeys lists the required blocks of the new layout in validation order.
var NewShapeKeys = []string{KeyClassification, KeyFormattedObjectives, KeyDifficultyEvaluation}

// LegacyKeys lists the required fields of the legacy layout in validation order.
var LegacyKeys = []string{KeyDomain, KeyBloomClassification, KeySmartObjectives, KeyDifficultyAssessment}

// SmartObjective is one entry of the legacy objectifs_smart list.
type SmartObjective struct {
	Objective  string `json:"objectif"`
	Specific   string `json:"specifique"`
	Measurable string `json:"mesurable"`
	Achievable string `json:"atteignable"`
	Relevant   string `json:"pertinent"`
	TimeBound  string `json:"temporel"`
	Bloom      string `json:"niveau_bloom"`
}

// LegacyDifficulty is the legacy evaluation_difficulte object.
type LegacyDifficulty struct {
	Easy        []string `json:"facile"`
	Medium      []string `json:"moyen"`
	Hard        []string `json:"difficile"`
	Progression string   `json:"progression_temporelle,omitempty"`
	Prereqs     string   `json:"prerequis,omitempty"`
	Audience    string   `json:"public_cible,omitempty"`
}

// Document is a decoded input document. Raw keeps the untyped JSON so the
// validator can report on structure the typed fields cannot express.
type Document struct {
	Shape   model.Shape
	Domain  string
	Context string

	Classification       string
	FormattedObjectives  string
	DifficultyEvaluation string

	BloomClassification map[string][]string
	SmartObjectives     []SmartObjective
	Difficulty          LegacyDifficulty

	Raw map[string]any
}

// Parse decodes data and detects its layout. Missing or mistyped fields do
// not fail parsing; only input that is not a JSON object does.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	doc := &Document{
		Raw:     raw,
		Shape:   DetectShape(raw),
		Domain:  stringField(raw, KeyDomain),
		Context: stringField(raw, KeyContext),
	}

	switch doc.Shape {
	case model.ShapeNew:
		doc.Classification = Nested(raw, KeyClassification)
		doc.FormattedObjectives = Nested(raw, KeyFormattedObjectives)
		doc.DifficultyEvaluation = Nested(raw, KeyDifficultyEvaluation)
	case model.ShapeLegacy:
		// Each legacy block is decoded on its own so one mistyped field
		// does not hide the others.
		var typed struct {
			Bloom      json.RawMessage `json:"classification_bloom"`
			Smart      json.RawMessage `json:"objectifs_smart"`
			Difficulty json.RawMessage `json:"evaluation_difficulte"`
		}
		_ = json.Unmarshal(data, &typed)
		_ = json.Unmarshal(typed.Bloom, &doc.BloomClassification)
		_ = json.Unmarshal(typed.Smart, &doc.SmartObjectives)
		_ = json.Unmarshal(typed.Difficulty, &doc.Difficulty)
	}
	return doc, nil
}

// DetectShape picks the layout whose schema the document satisfies. When
// neither validates, the presence of any new-layout key decides; legacy is
// assumed otherwise.
func DetectShape(raw map[string]any) model.Shape {
	loader := gojsonschema.NewGoLoader(raw)
	if ok, _ := validates(newShapeSchema, loader); ok {
		return model.ShapeNew
	}
	if ok, _ := validates(legacySchema, loader); ok {
		return model.ShapeLegacy
	}
	for _, k := range NewShapeKeys {
		if _, ok := raw[k]; ok {
			return model.ShapeNew
		}
	}
	return model.ShapeLegacy
}

// SchemaErrors returns the JSON-schema violations of raw against the schema
// of the given layout.
func SchemaErrors(raw map[string]any, shape model.Shape) []string {
	schema := legacySchema
	if shape == model.ShapeNew {
		schema = newShapeSchema
	}
	ok, res := validates(schema, gojsonschema.NewGoLoader(raw))
	if ok || res == nil {
		return nil
	}
	var errs []string
	for _, e := range res.Errors() {
		errs = append(errs, e.String())
	}
	return errs
}

func validates(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) (bool, *gojsonschema.Result) {
	res, err := schema.Validate(doc)
	if err != nil {
		return false, nil
	}
	return res.Valid(), res
}

// Nested returns raw[key][key] as given when it is a string, "" otherwise.
// The text is not trimmed: entry patterns rely on its trailing newlines.
func Nested(raw map[string]any, key string) string {
	outer, ok := raw[key].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := outer[key].(string)
	return s
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
