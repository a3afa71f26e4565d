package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/model"
)

const classificationText = `Objectif: L'apprenant sera capable de décrire les événements clés.
Verbe principal: décrire
Niveau de Bloom: Comprendre
Justification: Compréhension des faits.

---

Verbe principal: lister
Niveau de Bloom: Se souvenir

---

Objectif: L'apprenant sera capable d'évaluer l'influence des puissances étrangères.
Verbe principal: évaluer
Niveau de Bloom: Évaluer
Justification: Jugement sur critères.`

const formattedText = `1. À la fin de la semaine 6, l'apprenant sera capable de comparer deux réformes.

2. À la fin de la semaine 4, l'apprenant sera capable de décrire cinq événements.
3. L'apprenant sera capable de créer une frise.`

const difficultyText = "1. **Objectif : Décrire les événements clés.**\n" +
	"   - **Niveau de difficulté : 2**\n" +
	"   - **Justification :** Mémorisation surtout.\n" +
	"   - **Temps nécessaire :** Environ 5-7 heures pour la révision.\n" +
	"   - **Conseils :** Faire une chronologie.\n\n" +
	"2. **Objectif : Analyser les impacts.**\n" +
	"   - **Niveau de difficulté : 3**\n" +
	"   - **Justification :** Analyse critique.\n" +
	"   - **Temps nécessaire :** Environ 10-15 heures pour l'analyse.\n" +
	"   - **Conseils :** Décomposer.\n"

func TestObjectivesSkipsSegmentsWithoutStatement(t *testing.T) {
	objs, skipped := Objectives(classificationText)

	require.Len(t, objs, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, 1, objs[0].ID)
	assert.Equal(t, "L'apprenant sera capable de décrire les événements clés.", objs[0].Statement)
	assert.Equal(t, "décrire", objs[0].Verb)
	assert.Equal(t, model.BloomComprehension, objs[0].Level)
	assert.Equal(t, "Comprendre", objs[0].RawLevel)
	assert.Equal(t, "Compréhension des faits.", objs[0].Justification)

	assert.Equal(t, 2, objs[1].ID)
	assert.Equal(t, model.BloomEvaluation, objs[1].Level)
}

func TestObjectivesEmptyInput(t *testing.T) {
	objs, skipped := Objectives("  \n---\n  ")
	assert.Empty(t, objs)
	assert.Zero(t, skipped)
}

func TestBloomProgression(t *testing.T) {
	got := BloomProgression(classificationText)
	assert.Equal(t, []string{"Comprendre", "Se souvenir", "Évaluer"}, got)
}

func TestNormalizeBloom(t *testing.T) {
	tests := []struct {
		raw  string
		want model.BloomLevel
	}{
		{"Comprendre", model.BloomComprehension},
		{"ANALYSER", model.BloomAnalysis},
		{"Analyse critique", model.BloomAnalysis},
		{"Évaluer", model.BloomEvaluation},
		{"evaluer", model.BloomEvaluation},
		{"Appliquer", model.BloomApplication},
		{"Créer", model.BloomCreation},
		{"creer", model.BloomCreation},
		{"Se souvenir", model.BloomRecall},
		{"  Souvenir ", model.BloomRecall},
		// Priority: "comprendre" wins over later rules.
		{"Comprendre et appliquer", model.BloomComprehension},
		{"Mémoriser", model.BloomLevel("mémoriser")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBloom(tt.raw))
		})
	}
}

func TestNormalizeBloomIsIdempotent(t *testing.T) {
	for _, l := range model.BloomLevels {
		assert.Equal(t, l, NormalizeBloom(string(l)), "canonical token %q", l)
		assert.Equal(t, NormalizeBloom(string(l)), NormalizeBloom(string(NormalizeBloom(string(l)))))
	}
}

func TestBloomDistributionSumsToObjectiveCount(t *testing.T) {
	objs, _ := Objectives(classificationText)
	dist := BloomDistribution(objs)

	sum := 0
	for _, n := range dist {
		sum += n
	}
	assert.Equal(t, len(objs), sum)
}

func TestTemporalSortsByWeekThenNumber(t *testing.T) {
	entries := Temporal(formattedText)
	require.Len(t, entries, 3)

	assert.Equal(t, 2, entries[0].Number)
	require.NotNil(t, entries[0].Week)
	assert.Equal(t, 4, *entries[0].Week)
	assert.Equal(t, "décrire", entries[0].Verb)

	assert.Equal(t, 1, entries[1].Number)
	assert.Equal(t, 6, *entries[1].Week)
	assert.Equal(t, "comparer", entries[1].Verb)

	assert.Equal(t, 3, entries[2].Number)
	assert.Nil(t, entries[2].Week)
	assert.Equal(t, "créer", entries[2].Verb)
	assert.Equal(t, "L'apprenant sera capable de créer une frise.", entries[2].Text)
}

func TestTemporalVerbNeedsCapableDe(t *testing.T) {
	entries := Temporal("1. Semaine 2 : l'apprenant sera capable d'analyser un texte.")
	require.Len(t, entries, 1)
	assert.Equal(t, 2, *entries[0].Week)
	assert.Empty(t, entries[0].Verb)
}

func TestDifficultyStrictEntries(t *testing.T) {
	entries := Difficulty(difficultyText)
	require.Len(t, entries, 2)

	assert.Equal(t, model.DifficultyEntry{
		Number:        1,
		Objective:     "Décrire les événements clés.",
		Tier:          2,
		Justification: "Mémorisation surtout.",
		TimeEstimate:  "Environ 5-7 heures pour la révision.",
	}, entries[0])
	assert.Equal(t, 3, entries[1].Tier)
}

func TestDifficultyDropsIncompleteEntries(t *testing.T) {
	text := "1. **Objectif : Sans niveau.**\n   - **Justification :** rien.\n"
	assert.Empty(t, Difficulty(text))
}

func TestDifficultyMapping(t *testing.T) {
	mapping, order := DifficultyMapping(difficultyText)
	require.Len(t, mapping, 2)
	assert.Equal(t, []string{"Décrire les événements clés.", "Analyser les impacts."}, order)

	info := mapping["Analyser les impacts."]
	assert.Equal(t, 3, info.Tier)
	assert.Equal(t, 2, info.Number)
	assert.Equal(t, "Environ 10-15 heures pour l'analyse.", info.TimeEstimate)
}

func TestTotalHours(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"ranges take upper bound", "Temps nécessaire : Environ 10-15 heures\nTemps nécessaire : Environ 5-7 heures", 22},
		{"single values", "3 heures puis 1 heure", 4},
		{"mixed", "2-4 heures et 6 heures", 10},
		{"none", "quelques minutes", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalHours(tt.text))
		})
	}
}

func TestMarkerCounters(t *testing.T) {
	assert.Equal(t, 3, NumberMarkers(formattedText))
	assert.Equal(t, 2, DifficultyMarkers(difficultyText))
	assert.Equal(t, 2, DifficultyLevels(difficultyText))
	assert.Equal(t, 2, TemporalIndicators(formattedText))
}

func TestAnalyzeSampleDocument(t *testing.T) {
	data, err := document.Sample(model.ShapeNew)
	require.NoError(t, err)
	doc, err := document.Parse(data)
	require.NoError(t, err)

	res := Analyze(doc)

	require.Len(t, res.Objectives, 3)
	assert.Zero(t, res.SkippedSegments)
	assert.Equal(t, map[model.BloomLevel]int{
		model.BloomComprehension: 1,
		model.BloomAnalysis:      1,
		model.BloomEvaluation:    1,
	}, res.BloomDistribution)
	assert.Len(t, res.TemporalProgression, 3)
	assert.Len(t, res.DifficultyMapping, 3)
	assert.Equal(t, 7+15+20, res.TotalHours)

	first := res.Objectives[0]
	require.NotNil(t, first.Week)
	assert.Equal(t, 4, *first.Week)
	assert.Equal(t, 2, first.Difficulty)
	assert.Equal(t, 7, first.Hours)
	assert.Equal(t, 4, res.Objectives[2].Difficulty)
}

func TestAnalyzeLegacySample(t *testing.T) {
	data, err := document.Sample(model.ShapeLegacy)
	require.NoError(t, err)
	doc, err := document.Parse(data)
	require.NoError(t, err)
	require.Equal(t, model.ShapeLegacy, doc.Shape)

	res := Analyze(doc)

	require.Len(t, res.Objectives, 3)
	assert.Equal(t, model.BloomRecall, res.Objectives[0].Level)
	assert.Equal(t, 1, res.BloomDistribution[model.BloomApplication])
	assert.Len(t, res.DifficultyMapping, 9)
	assert.Equal(t, 4, res.DifficultyMapping["Conception plan incident"].Tier)
	assert.Equal(t, 6, res.TotalHours)
}
