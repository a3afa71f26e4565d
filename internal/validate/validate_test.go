package validate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/sequencer/internal/document"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/model"
)

func frCtx(t *testing.T) context.Context {
	t.Helper()
	require.NoError(t, appI18n.Init("fr"))
	return appI18n.WithLang(context.Background(), "fr")
}

func classification(n int) string {
	blocks := make([]string, n)
	for i := range blocks {
		blocks[i] = "Objectif: L'apprenant sera capable de décrire le point " + string(rune('A'+i)) +
			".\nVerbe principal: décrire\nNiveau de Bloom: Comprendre\nJustification: ok"
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func formatted(weeks ...int) string {
	lines := make([]string, len(weeks))
	for i, w := range weeks {
		lines[i] = itoa(i+1) + ". À la fin de la semaine " + itoa(w) + ", l'apprenant sera capable de décrire."
	}
	return strings.Join(lines, "\n\n")
}

func difficulty(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		sb.WriteString(itoa(i) + ". **Objectif : Objectif " + itoa(i) + "**\n")
		sb.WriteString("   - **Niveau de difficulté : " + itoa(2+(i-1)%3) + "**\n")
		sb.WriteString("   - **Justification :** raison\n")
		sb.WriteString("   - **Temps nécessaire :** Environ 2-3 heures\n\n")
	}
	return sb.String()
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newDoc(t *testing.T, raw map[string]any) *document.Document {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	doc, err := document.Parse(data)
	require.NoError(t, err)
	return doc
}

func nested(key, value string) map[string]any {
	return map[string]any{key: value}
}

func TestDocumentConsistentBlocksAreValid(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(3)),
		"formatted_objectives":  nested("formatted_objectives", formatted(2, 4, 6)),
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(3)),
	})

	rep := Document(ctx, doc)

	assert.True(t, rep.Valid)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, Stats{
		Objectives:         3,
		BloomLevels:        1,
		DifficultyLevels:   3,
		TemporalIndicators: 3,
	}, rep.Stats)
}

func TestDocumentTemporalCountMismatch(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(3)),
		"formatted_objectives":  nested("formatted_objectives", formatted(2, 4)),
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(3)),
	})

	rep := Document(ctx, doc)

	assert.False(t, rep.Valid)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "objectifs SMART ne correspond pas")
}

func TestDocumentDifficultyCountMismatch(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(2)),
		"formatted_objectives":  nested("formatted_objectives", formatted(1, 2)),
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(3)),
	})

	rep := Document(ctx, doc)

	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "évaluations de difficulté")
}

func TestDocumentRequiredFieldsAccumulate(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        "not an object",
		"formatted_objectives":  map[string]any{"other": "x"},
		"difficulty_evaluation": nested("difficulty_evaluation", "   "),
	})

	rep := Document(ctx, doc)

	assert.False(t, rep.Valid)
	assert.Equal(t, []string{
		"Le champ classification doit être un objet",
		"Sous-champ manquant : formatted_objectives.formatted_objectives",
		"Contenu vide : difficulty_evaluation.difficulty_evaluation",
	}, rep.Errors)
}

func TestDocumentMissingBlocks(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{"domaine": "Histoire"})

	rep := Document(ctx, doc)

	assert.Len(t, rep.Errors, 3)
	assert.Equal(t, "Champ principal manquant : classification", rep.Errors[0])
}

func TestDocumentSkippedSegmentsWarn(t *testing.T) {
	ctx := frCtx(t)
	text := classification(2) + "\n---\nVerbe principal: oublier"
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", text),
		"formatted_objectives":  nested("formatted_objectives", formatted(1, 2)),
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(2)),
	})

	rep := Document(ctx, doc)

	assert.True(t, rep.Valid)
	assert.Equal(t, 1, rep.Stats.SkippedSegments)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "1 segment de classification ignoré")
}

func TestTemporalCoherence(t *testing.T) {
	ctx := frCtx(t)

	t.Run("coherent", func(t *testing.T) {
		assert.Empty(t, TemporalCoherence(ctx, formatted(2, 4, 6), difficulty(3)))
	})

	t.Run("numbering mismatch", func(t *testing.T) {
		w := TemporalCoherence(ctx, formatted(2, 4), difficulty(3))
		require.Len(t, w, 1)
		assert.Contains(t, w[0], "numérotation")
	})

	t.Run("weeks out of order", func(t *testing.T) {
		w := TemporalCoherence(ctx, formatted(6, 2, 4), difficulty(3))
		require.Len(t, w, 1)
		assert.Contains(t, w[0], "semaines")
	})
}

func TestCheckStrictAddsCoherenceWarnings(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(3)),
		"formatted_objectives":  nested("formatted_objectives", formatted(6, 2, 4)),
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(3)),
	})

	assert.Empty(t, Check(ctx, doc, false).Warnings)

	rep := Check(ctx, doc, true)
	assert.True(t, rep.Valid)
	assert.Len(t, rep.Warnings, 1)
}

func TestCheckStrictConsistentDocumentHasNoWarnings(t *testing.T) {
	ctx := frCtx(t)
	// The difficulty block ends right after its last "Temps nécessaire" line.
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(3)),
		"formatted_objectives":  nested("formatted_objectives", formatted(2, 4, 6)),
		"difficulty_evaluation": nested("difficulty_evaluation", strings.TrimRight(difficulty(3), "\n")+"\n"),
	})

	rep := Check(ctx, doc, true)

	assert.True(t, rep.Valid, "errors: %v", rep.Errors)
	assert.Empty(t, rep.Warnings)
	assert.Empty(t, rep.Schema)
}

func TestCheckReportsSchemaErrors(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"classification":        nested("classification", classification(3)),
		"formatted_objectives":  map[string]any{"formatted_objectives": 3},
		"difficulty_evaluation": nested("difficulty_evaluation", difficulty(3)),
	})

	rep := Check(ctx, doc, false)

	require.NotEmpty(t, rep.Schema)
	assert.Contains(t, strings.Join(rep.Schema, "\n"), "formatted_objectives")
}

func TestLegacySampleIsValid(t *testing.T) {
	ctx := frCtx(t)
	data, err := document.Sample(model.ShapeLegacy)
	require.NoError(t, err)
	doc, err := document.Parse(data)
	require.NoError(t, err)

	rep := Check(ctx, doc, true)

	assert.True(t, rep.Valid, "errors: %v", rep.Errors)
	assert.Equal(t, 3, rep.Stats.Objectives)
	assert.Equal(t, 6, rep.Stats.BloomLevels)
	assert.Equal(t, 3, rep.Stats.DifficultyLevels)
	assert.Empty(t, rep.Schema)
}

func TestLegacyErrors(t *testing.T) {
	ctx := frCtx(t)
	doc := newDoc(t, map[string]any{
		"domaine":              "",
		"classification_bloom": map[string]any{"inconnu": []string{"x"}},
		"objectifs_smart": []any{
			"pas un objet",
			map[string]any{"objectif": "o", "specifique": "s", "mesurable": "m", "atteignable": "a", "pertinent": "p"},
		},
	})

	rep := Legacy(ctx, doc)

	assert.Equal(t, []string{
		"Champ vide : domaine",
		"Champ manquant : evaluation_difficulte",
		"Aucun niveau de Bloom valide trouvé",
		"Objectif 1 : doit être un objet",
		"Objectif 2 : champ manquant ou vide - temporel",
	}, rep.Errors)
}

func TestActivityTypes(t *testing.T) {
	ctx := frCtx(t)
	screens := []model.Screen{
		{Activity: model.ActivityQuiz},
		{Activity: "Simulation interactive"},
		{Activity: ""},
	}

	w := ActivityTypes(ctx, screens, model.ActivityTypes)

	require.Len(t, w, 2)
	assert.Equal(t, "Écran 2: Type d'activité non autorisé 'Simulation interactive'. Types autorisés: text, quiz, accordion, video, image, flash-card", w[0])
	assert.Contains(t, w[1], "Écran 3")
}

func TestScreens(t *testing.T) {
	ctx := frCtx(t)
	full := model.Screen{Sequence: "Intro", Number: "01-Intro-01", Title: "t", Summary: "r", Activity: model.ActivityText}
	noTitle := full
	noTitle.Title = ""

	w := Screens(ctx, []model.Screen{full, noTitle})

	assert.Equal(t, []string{
		"Écran 2 : champ manquant ou vide - titre_ecran",
		"Numéro d'écran en double : 01-Intro-01",
	}, w)
}

func TestScreensUnknownBloomLevel(t *testing.T) {
	ctx := frCtx(t)
	known, unknown := model.BloomAnalysis, model.BloomLevel("3")
	screens := []model.Screen{
		{Sequence: "Intro", Number: "1", Title: "t", Summary: "r", Activity: model.ActivityText, Bloom: &known},
		{Sequence: "Intro", Number: "2", Title: "t", Summary: "r", Activity: model.ActivityText, Bloom: &unknown},
	}

	assert.Equal(t, []string{"Écran 2 : niveau de Bloom inconnu '3'"}, Screens(ctx, screens))
}
