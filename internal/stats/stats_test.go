package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
)

func ptr[T any](v T) *T { return &v }

func screen(seq string, a model.ActivityType, b model.BloomLevel, d model.Difficulty, minutes int) model.Screen {
	return model.Screen{
		Sequence:   seq,
		Activity:   a,
		Bloom:      ptr(b),
		Difficulty: ptr(d),
		Duration:   ptr(model.Duration(minutes)),
	}
}

func TestRecommend(t *testing.T) {
	agg := New(policy.Default())

	tests := []struct {
		name       string
		bloom      model.BloomLevel
		difficulty model.Difficulty
		want       []model.ActivityType
	}{
		{"intersection", model.BloomComprehension, model.DifficultyEasy,
			[]model.ActivityType{model.ActivityText, model.ActivityVideo}},
		{"hard application", model.BloomApplication, model.DifficultyHard,
			[]model.ActivityType{model.ActivityQuiz, model.ActivityAccordion}},
		{"no intersection keeps bloom list", model.BloomApplication, model.DifficultyEasy,
			[]model.ActivityType{model.ActivityQuiz, model.ActivityAccordion}},
		{"unknown keys", "inconnu", "inconnu",
			[]model.ActivityType{model.ActivityText}},
		{"unknown difficulty", model.BloomRecall, "inconnu",
			[]model.ActivityType{model.ActivityText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, agg.Recommend(tt.bloom, tt.difficulty))
		})
	}
}

func TestRecommendDoesNotAliasPolicy(t *testing.T) {
	p := policy.Default()
	agg := New(p)

	got := agg.Recommend(model.BloomApplication, model.DifficultyEasy)
	got[0] = "changed"

	assert.Equal(t, model.ActivityQuiz, p.BloomRecommendations[model.BloomApplication][0])
}

func TestActivity(t *testing.T) {
	agg := New(policy.Default())
	screens := []model.Screen{
		screen("Intro", model.ActivityText, model.BloomComprehension, model.DifficultyEasy, 2),
		screen("Intro", model.ActivityVideo, model.BloomComprehension, model.DifficultyEasy, 4),
		screen("Pratique", model.ActivityQuiz, model.BloomApplication, model.DifficultyHard, 7),
		screen("Pratique", model.ActivityFlashCard, model.BloomAnalysis, model.DifficultyHard, 3),
		{Activity: "simulation"},
	}

	st := agg.Activity(screens)

	total := 0
	for _, n := range st.Distribution {
		total += n
	}
	assert.Equal(t, len(screens), total)
	assert.Equal(t, map[string]int{"text": 1, "video": 1, "quiz": 1, "flash-card": 1, "simulation": 1}, st.Distribution)
	assert.Equal(t, map[string]int{"text": 1, "video": 1}, st.ByBloom["comprendre"])
	assert.Equal(t, map[string]int{"simulation": 1}, st.ByBloom[Unknown])
	assert.Equal(t, map[string]int{"simulation": 1}, st.ByDifficulty[Unknown])
	assert.Equal(t, map[string]int{"simulation": 1}, st.BySequence[Unknown])
	assert.Equal(t, map[string]int{"quiz": 1, "flash-card": 1}, st.BySequence["Pratique"])
	assert.Equal(t, 7, st.DurationByType["quiz"])
	assert.Equal(t, 0, st.DurationByType["simulation"])
	assert.InDelta(t, 60.0, st.Compliance, 1e-9)
}

func TestActivityEmpty(t *testing.T) {
	st := New(policy.Default()).Activity(nil)

	assert.Empty(t, st.Distribution)
	assert.Zero(t, st.Compliance)
}

func TestActivityEmptyTypeIsUnknown(t *testing.T) {
	st := New(policy.Default()).Activity([]model.Screen{{Sequence: "A"}})

	assert.Equal(t, map[string]int{Unknown: 1}, st.Distribution)
	assert.Zero(t, st.Compliance)
}

func TestSummarize(t *testing.T) {
	agg := New(policy.Default())
	screens := []model.Screen{
		screen("Intro", model.ActivityText, model.BloomComprehension, model.DifficultyEasy, 2),
		screen("Intro", model.ActivityVideo, model.BloomRecall, model.DifficultyEasy, 4),
		screen("Pratique", model.ActivityQuiz, model.BloomApplication, model.DifficultyHard, 0),
		{Activity: model.ActivityText},
	}

	sum := agg.Summarize(screens)

	assert.Equal(t, 4, sum.TotalScreens)
	assert.Equal(t, 2, sum.TotalSequences)
	assert.Equal(t, map[string]int{"comprendre": 1, "se_souvenir": 1, "appliquer": 1}, sum.BloomDistribution)
	assert.Equal(t, map[string]int{"facile": 2, "difficile": 1}, sum.DifficultyDistribution)
	assert.Equal(t, map[string]int{"text": 2, "video": 1, "quiz": 1}, sum.ActivityDistribution)

	require.NotNil(t, sum.Durations)
	assert.Equal(t, model.DurationStats{Total: 6, Average: 3, Min: 2, Max: 4}, *sum.Durations)

	intro := sum.Sequences["Intro"]
	assert.Equal(t, 2, intro.Screens)
	assert.Equal(t, 6, intro.TotalDuration)
	assert.Equal(t, []string{"comprendre", "se_souvenir"}, intro.BloomLevels)
	assert.Equal(t, []string{"facile"}, intro.Difficulties)

	assert.Zero(t, sum.Sequences["Pratique"].TotalDuration)

	undefined := sum.Sequences["Non défini"]
	assert.Equal(t, 1, undefined.Screens)
	assert.Empty(t, undefined.BloomLevels)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := New(policy.Default()).Summarize(nil)

	assert.Zero(t, sum.TotalScreens)
	assert.Nil(t, sum.Durations)
	assert.Empty(t, sum.Sequences)
}

func TestSummarizeSkipsZeroDurations(t *testing.T) {
	var screens []model.Screen
	require.NoError(t, json.Unmarshal([]byte(`[
		{"sequence": "A", "duree_estimee": 0},
		{"sequence": "A", "duree_estimee": "environ dix"},
		{"sequence": "A", "duree_estimee": ""},
		{"sequence": "A", "duree_estimee": "3"}
	]`), &screens))

	sum := New(policy.Default()).Summarize(screens)

	require.NotNil(t, sum.Durations)
	assert.Equal(t, model.DurationStats{Total: 3, Average: 3, Min: 3, Max: 3}, *sum.Durations)
	assert.Equal(t, 3, sum.Sequences["A"].TotalDuration)
	assert.Equal(t, 4, sum.Sequences["A"].Screens)
}
