package document_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/extract"
	"github.com/pavelanni/sequencer/internal/model"
)

const difficultyText = "1. **Objectif : Décrire A**\n" +
	"   - **Niveau de difficulté : 2**\n" +
	"   - **Justification :** simple\n" +
	"   - **Temps nécessaire :** Environ 2 heures\n\n" +
	"2. **Objectif : Analyser B**\n" +
	"   - **Niveau de difficulté : 3**\n" +
	"   - **Justification :** moyen\n" +
	"   - **Temps nécessaire :** Environ 3 heures\n\n" +
	"3. **Objectif : Créer C**\n" +
	"   - **Niveau de difficulté : 5**\n" +
	"   - **Justification :** complexe\n" +
	"   - **Temps nécessaire :** Environ 6 heures\n"

func nested(key, text string) map[string]any {
	return map[string]any{key: text}
}

func parse(t *testing.T, raw any) *document.Document {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	doc, err := document.Parse(data)
	require.NoError(t, err)
	return doc
}

func TestParseRejectsNonObject(t *testing.T) {
	for _, input := range []string{`[1]`, `"x"`, `null`, `42`, `{"a":`} {
		t.Run(input, func(t *testing.T) {
			_, err := document.Parse([]byte(input))
			assert.ErrorIs(t, err, document.ErrMalformed)
		})
	}
}

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want model.Shape
	}{
		{
			name: "valid new layout",
			raw: map[string]any{
				"classification":        nested("classification", "x"),
				"formatted_objectives":  nested("formatted_objectives", "x"),
				"difficulty_evaluation": nested("difficulty_evaluation", "x"),
			},
			want: model.ShapeNew,
		},
		{
			name: "single new key without schema match",
			raw:  map[string]any{"formatted_objectives": 3},
			want: model.ShapeNew,
		},
		{
			name: "valid legacy layout",
			raw: map[string]any{
				"domaine":               "Histoire",
				"classification_bloom":  map[string]any{},
				"objectifs_smart":       []any{},
				"evaluation_difficulte": map[string]any{},
			},
			want: model.ShapeLegacy,
		},
		{
			name: "no recognized key",
			raw:  map[string]any{"autre": "x"},
			want: model.ShapeLegacy,
		},
		{
			name: "empty object",
			raw:  map[string]any{},
			want: model.ShapeLegacy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, document.DetectShape(tt.raw))
		})
	}
}

func TestParseKeepsNestedTextAsGiven(t *testing.T) {
	doc := parse(t, map[string]any{
		"domaine":               "  Histoire  ",
		"classification":        nested("classification", "\nObjectif: x\n"),
		"formatted_objectives":  nested("formatted_objectives", "1. a\n"),
		"difficulty_evaluation": nested("difficulty_evaluation", difficultyText),
	})

	assert.Equal(t, model.ShapeNew, doc.Shape)
	assert.Equal(t, "Histoire", doc.Domain)
	assert.Equal(t, "\nObjectif: x\n", doc.Classification)
	assert.Equal(t, difficultyText, doc.DifficultyEvaluation)

	// The last entry ends with the final newline of the block.
	entries := extract.Difficulty(doc.DifficultyEvaluation)
	require.Len(t, entries, 3)
	assert.Equal(t, "Créer C", entries[2].Objective)
	assert.Equal(t, 5, entries[2].Tier)
	assert.Equal(t, "Environ 6 heures", entries[2].TimeEstimate)
}

func TestNestedMistyped(t *testing.T) {
	raw := map[string]any{
		"classification":       "flat string",
		"formatted_objectives": map[string]any{"formatted_objectives": 7},
	}
	assert.Empty(t, document.Nested(raw, "classification"))
	assert.Empty(t, document.Nested(raw, "formatted_objectives"))
	assert.Empty(t, document.Nested(raw, "difficulty_evaluation"))
}

func TestParseLegacyMistypedBlock(t *testing.T) {
	doc := parse(t, map[string]any{
		"domaine":              "Histoire",
		"contexte":             "Lycée",
		"classification_bloom": "pas un objet",
		"objectifs_smart": []any{
			map[string]any{"objectif": "Décrire la révolution", "niveau_bloom": "comprendre"},
		},
		"evaluation_difficulte": map[string]any{
			"facile":    []any{"Décrire la révolution"},
			"difficile": []any{"Évaluer ses conséquences"},
		},
	})

	assert.Equal(t, model.ShapeLegacy, doc.Shape)
	assert.Equal(t, "Lycée", doc.Context)
	assert.Nil(t, doc.BloomClassification)
	require.Len(t, doc.SmartObjectives, 1)
	assert.Equal(t, "comprendre", doc.SmartObjectives[0].Bloom)
	assert.Equal(t, []string{"Décrire la révolution"}, doc.Difficulty.Easy)
	assert.Equal(t, []string{"Évaluer ses conséquences"}, doc.Difficulty.Hard)
	assert.Empty(t, doc.Difficulty.Medium)
}

func TestSamples(t *testing.T) {
	t.Run("new", func(t *testing.T) {
		data, err := document.Sample(model.ShapeNew)
		require.NoError(t, err)
		doc, err := document.Parse(data)
		require.NoError(t, err)
		assert.Equal(t, model.ShapeNew, doc.Shape)
		assert.NotEmpty(t, doc.Classification)
		assert.NotEmpty(t, doc.FormattedObjectives)
		assert.NotEmpty(t, doc.DifficultyEvaluation)
		assert.Empty(t, document.SchemaErrors(doc.Raw, doc.Shape))
	})

	t.Run("legacy", func(t *testing.T) {
		data, err := document.Sample(model.ShapeLegacy)
		require.NoError(t, err)
		doc, err := document.Parse(data)
		require.NoError(t, err)
		assert.Equal(t, model.ShapeLegacy, doc.Shape)
		assert.Len(t, doc.BloomClassification, 6)
		assert.Len(t, doc.SmartObjectives, 3)
		assert.Len(t, doc.Difficulty.Easy, 3)
		assert.Empty(t, document.SchemaErrors(doc.Raw, doc.Shape))
	})
}

func TestSchemaErrors(t *testing.T) {
	raw := map[string]any{
		"classification":       nested("classification", ""),
		"formatted_objectives": nested("formatted_objectives", "x"),
	}
	errs := document.SchemaErrors(raw, model.ShapeNew)
	assert.Len(t, errs, 2)

	assert.NotEmpty(t, document.SchemaErrors(map[string]any{"domaine": 1}, model.ShapeLegacy))
}
