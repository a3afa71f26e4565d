// Package stats aggregates finished screen lists: activity distributions,
// per-dimension cross tabulations, durations and how closely the chosen
// activity types follow the recommendation tables.
package stats

import (
	"slices"

	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
)

// Unknown groups screens that lack the dimension being counted.
const Unknown = "unknown"

// undefinedSequence names the breakdown entry of screens without a sequence.
const undefinedSequence = "Non défini"

// Aggregator computes statistics against a recommendation policy.
type Aggregator struct {
	p policy.Policy
}

// New returns an Aggregator driven by p.
func New(p policy.Policy) *Aggregator {
	return &Aggregator{p: p}
}

// Recommend returns the activity types suited to both a cognitive level and
// a difficulty. When the two tables share no type, the level's list is
// returned alone. Unknown keys fall back to the policy's fallback list.
func (a *Aggregator) Recommend(bloom model.BloomLevel, difficulty model.Difficulty) []model.ActivityType {
	byBloom, ok := a.p.BloomRecommendations[bloom]
	if !ok {
		byBloom = a.p.FallbackRecommendation
	}
	byDifficulty, ok := a.p.DifficultyRecommendations[difficulty]
	if !ok {
		byDifficulty = a.p.FallbackRecommendation
	}

	var both []model.ActivityType
	for _, t := range byBloom {
		if slices.Contains(byDifficulty, t) {
			both = append(both, t)
		}
	}
	if len(both) == 0 {
		return slices.Clone(byBloom)
	}
	return both
}

// Activity computes the activity statistics of screens. Compliance is the
// percentage of screens whose authorized type is among the types
// recommended for their level and difficulty; it is 0 for an empty list.
func (a *Aggregator) Activity(screens []model.Screen) model.ActivityStatistics {
	st := model.ActivityStatistics{
		Distribution:   map[string]int{},
		ByBloom:        map[string]map[string]int{},
		ByDifficulty:   map[string]map[string]int{},
		BySequence:     map[string]map[string]int{},
		DurationByType: map[string]int{},
	}

	compliant := 0
	for _, s := range screens {
		activity := orUnknown(string(s.Activity))
		bloom := s.BloomOr(Unknown)
		difficulty := s.DifficultyOr(Unknown)
		sequence := orUnknown(s.Sequence)

		st.Distribution[activity]++
		inc(st.ByBloom, bloom, activity)
		inc(st.ByDifficulty, difficulty, activity)
		inc(st.BySequence, sequence, activity)
		st.DurationByType[activity] += s.Minutes()

		if a.p.IsAuthorized(s.Activity) &&
			slices.Contains(a.Recommend(model.BloomLevel(bloom), model.Difficulty(difficulty)), s.Activity) {
			compliant++
		}
	}

	if len(screens) > 0 {
		st.Compliance = float64(compliant) / float64(len(screens)) * 100
	}
	return st
}

// Summarize builds the detailed report of screens. A duration that is
// present but not a positive number counts as the policy's summary default.
func (a *Aggregator) Summarize(screens []model.Screen) model.Summary {
	sum := model.Summary{
		TotalScreens:           len(screens),
		BloomDistribution:      map[string]int{},
		DifficultyDistribution: map[string]int{},
		ActivityDistribution:   map[string]int{},
		Sequences:              map[string]model.SequenceBreakdown{},
	}

	sequences := make(map[string]struct{})
	blooms := make(map[string]map[string]struct{})
	difficulties := make(map[string]map[string]struct{})
	var durations []int

	for _, s := range screens {
		if s.Sequence != "" {
			sequences[s.Sequence] = struct{}{}
		}
		bloom := s.BloomOr("")
		if bloom != "" {
			sum.BloomDistribution[bloom]++
		}
		difficulty := s.DifficultyOr("")
		if difficulty != "" {
			sum.DifficultyDistribution[difficulty]++
		}
		if s.Activity != "" {
			sum.ActivityDistribution[string(s.Activity)]++
		}

		minutes, hasDuration := summaryMinutes(s)
		if hasDuration {
			durations = append(durations, minutes)
		}

		key := s.Sequence
		if key == "" {
			key = undefinedSequence
		}
		b := sum.Sequences[key]
		b.Screens++
		b.TotalDuration += minutes
		sum.Sequences[key] = b
		addTo(blooms, key, bloom)
		addTo(difficulties, key, difficulty)
	}
	sum.TotalSequences = len(sequences)

	for key, b := range sum.Sequences {
		b.BloomLevels = sortedKeys(blooms[key])
		b.Difficulties = sortedKeys(difficulties[key])
		sum.Sequences[key] = b
	}

	if len(durations) > 0 {
		total := 0
		for _, d := range durations {
			total += d
		}
		sum.Durations = &model.DurationStats{
			Total:   total,
			Average: float64(total) / float64(len(durations)),
			Min:     slices.Min(durations),
			Max:     slices.Max(durations),
		}
	}
	return sum
}

// summaryMinutes reports the screen duration when it is set and non-zero.
// Unparsable durations decode to zero and are skipped with it.
func summaryMinutes(s model.Screen) (int, bool) {
	m := s.Minutes()
	return m, m > 0
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func inc(m map[string]map[string]int, outer, inner string) {
	if m[outer] == nil {
		m[outer] = map[string]int{}
	}
	m[outer][inner]++
}

func addTo(m map[string]map[string]struct{}, key, v string) {
	if m[key] == nil {
		m[key] = map[string]struct{}{}
	}
	if v != "" {
		m[key][v] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
