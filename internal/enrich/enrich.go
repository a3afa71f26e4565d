// Package enrich fills in the metadata a generator left out of its screens:
// cognitive level, difficulty, duration and the objective a screen serves.
// Fields already present on a screen are never overwritten.
package enrich

import (
	"strings"

	"github.com/pavelanni/sequencer/internal/extract"
	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
)

// Enricher infers missing screen metadata from a policy and a document analysis.
type Enricher struct {
	p policy.Policy
}

// New returns an Enricher driven by p.
func New(p policy.Policy) *Enricher {
	return &Enricher{p: p}
}

// Screens enriches every screen of list and returns the enriched copies in
// the same order. The input slice is not modified.
func (e *Enricher) Screens(list []model.Screen, analysis model.AnalysisResult) []model.Screen {
	out := make([]model.Screen, len(list))
	for i, s := range list {
		out[i] = e.Screen(s, analysis)
	}
	return out
}

// Screen returns s with each absent optional field filled. Duration is
// computed after difficulty so it sees the inferred value.
func (e *Enricher) Screen(s model.Screen, analysis model.AnalysisResult) model.Screen {
	if s.Bloom == nil {
		b := e.Bloom(s.Activity)
		s.Bloom = &b
	}
	if s.Difficulty == nil {
		d := e.Difficulty(s.Summary, analysis)
		s.Difficulty = &d
	}
	if s.Duration == nil {
		d := model.Duration(e.Duration(s.Activity, model.Difficulty(s.DifficultyOr(string(e.p.DefaultDifficulty)))))
		s.Duration = &d
	}
	if s.Objective == nil {
		o := e.Objective(s.Title+" "+s.Summary, analysis.Objectives)
		s.Objective = &o
	}
	return s
}

// Bloom returns the level conventionally exercised by an activity type.
func (e *Enricher) Bloom(a model.ActivityType) model.BloomLevel {
	if b, ok := e.p.BloomByActivity[a]; ok {
		return b
	}
	return e.p.DefaultBloom
}

// Difficulty infers a tier from screen content. Objectives of the difficulty
// mapping are tried in document order: the first whose leading words occur
// in the content decides. Keyword rules come next, then the default.
//
// Matching the leading words as substrings is a weak signal: short words
// such as "de" or "la" match almost any French summary, so the first
// objective usually wins.
func (e *Enricher) Difficulty(content string, analysis model.AnalysisResult) model.Difficulty {
	lower := extract.Fold(content)

	for _, objective := range analysis.DifficultyOrder {
		info, ok := analysis.DifficultyMapping[objective]
		if !ok {
			continue
		}
		words := strings.Fields(extract.Fold(objective))
		if len(words) > e.p.ObjectiveWords {
			words = words[:e.p.ObjectiveWords]
		}
		if !containsAny(lower, words) {
			continue
		}
		if d, ok := model.DifficultyFromTier(info.Tier); ok {
			return d
		}
	}

	for _, rule := range e.p.DifficultyRules {
		if containsAny(lower, rule.Keywords) {
			return rule.Difficulty
		}
	}
	return e.p.DefaultDifficulty
}

// Duration returns the estimated minutes for an activity type at a
// difficulty, never below the policy minimum.
func (e *Enricher) Duration(a model.ActivityType, d model.Difficulty) int {
	base, ok := e.p.BaseDurations[a]
	if !ok {
		base = e.p.DefaultDuration
	}
	mult, ok := e.p.Multipliers[d]
	if !ok {
		mult = e.p.DefaultMultiplier
	}
	return max(e.p.MinDuration, int(float64(base)*mult))
}

// Objective returns the statement sharing the most distinct words with
// content. Ties keep the earliest objective; no shared word yields "".
// Statements longer than the policy limit are cut and suffixed with "...".
func (e *Enricher) Objective(content string, objectives []model.Objective) string {
	words := wordSet(content)

	best, bestScore := "", 0
	for _, o := range objectives {
		score := 0
		for w := range wordSet(o.Statement) {
			if _, ok := words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = o.Statement, score
		}
	}

	if r := []rune(best); len(r) > e.p.ObjectiveLinkMax {
		return string(r[:e.p.ObjectiveLinkMax]) + "..."
	}
	return best
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(extract.Fold(s)) {
		set[w] = struct{}{}
	}
	return set
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
