// Package policy holds the tables that drive metadata inference and
// recommendation compliance. Tables are plain data so callers and tests can
// substitute their own; Default returns a fresh copy on every call.
package policy

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/sequencer/internal/model"
)

// KeywordRule maps the presence of any keyword in a screen summary to a difficulty.
type KeywordRule struct {
	Difficulty model.Difficulty `yaml:"difficulty"`
	Keywords   []string         `yaml:"keywords"`
}

// Policy is the full set of inference and recommendation tables.
type Policy struct {
	BaseDurations     map[model.ActivityType]int              `yaml:"base_durations"`
	DefaultDuration   int                                     `yaml:"default_duration"`
	Multipliers       map[model.Difficulty]float64            `yaml:"difficulty_multipliers"`
	DefaultMultiplier float64                                 `yaml:"default_multiplier"`
	MinDuration       int                                     `yaml:"min_duration"`
	BloomByActivity   map[model.ActivityType]model.BloomLevel `yaml:"bloom_by_activity"`
	DefaultBloom      model.BloomLevel                        `yaml:"default_bloom"`
	DifficultyRules   []KeywordRule                           `yaml:"difficulty_keywords"`
	DefaultDifficulty model.Difficulty                        `yaml:"default_difficulty"`
	// ObjectiveWords is how many leading words of an objective are matched
	// against screen content when inferring difficulty.
	ObjectiveWords int `yaml:"objective_words"`
	// ObjectiveLinkMax is the length above which a linked objective is truncated.
	ObjectiveLinkMax int `yaml:"objective_link_max"`

	BloomRecommendations      map[model.BloomLevel][]model.ActivityType `yaml:"bloom_recommendations"`
	DifficultyRecommendations map[model.Difficulty][]model.ActivityType `yaml:"difficulty_recommendations"`
	FallbackRecommendation    []model.ActivityType                      `yaml:"fallback_recommendation"`
	Authorized                []model.ActivityType                      `yaml:"authorized"`
}

// Default returns the built-in tables.
func Default() Policy {
	return Policy{
		BaseDurations: map[model.ActivityType]int{
			model.ActivityText:      3,
			model.ActivityQuiz:      5,
			model.ActivityAccordion: 4,
			model.ActivityVideo:     6,
			model.ActivityImage:     2,
			model.ActivityFlashCard: 3,
		},
		DefaultDuration: 4,
		Multipliers: map[model.Difficulty]float64{
			model.DifficultyEasy:   0.8,
			model.DifficultyMedium: 1.0,
			model.DifficultyHard:   1.4,
		},
		DefaultMultiplier: 1.0,
		MinDuration:       2,
		BloomByActivity: map[model.ActivityType]model.BloomLevel{
			model.ActivityText:      model.BloomComprehension,
			model.ActivityQuiz:      model.BloomApplication,
			model.ActivityAccordion: model.BloomAnalysis,
			model.ActivityVideo:     model.BloomComprehension,
			model.ActivityImage:     model.BloomComprehension,
			model.ActivityFlashCard: model.BloomRecall,
		},
		DefaultBloom: model.BloomComprehension,
		DifficultyRules: []KeywordRule{
			{Difficulty: model.DifficultyEasy, Keywords: []string{"introduction", "découverte", "présentation"}},
			{Difficulty: model.DifficultyMedium, Keywords: []string{"analyse", "application", "exercice"}},
			{Difficulty: model.DifficultyHard, Keywords: []string{"évaluation", "création", "projet"}},
		},
		DefaultDifficulty: model.DifficultyMedium,
		ObjectiveWords:    3,
		ObjectiveLinkMax:  100,
		BloomRecommendations: map[model.BloomLevel][]model.ActivityType{
			model.BloomRecall:        {model.ActivityText, model.ActivityFlashCard, model.ActivityImage},
			model.BloomComprehension: {model.ActivityText, model.ActivityVideo, model.ActivityAccordion, model.ActivityQuiz},
			model.BloomApplication:   {model.ActivityQuiz, model.ActivityAccordion},
			model.BloomAnalysis:      {model.ActivityAccordion, model.ActivityQuiz, model.ActivityImage},
			model.BloomEvaluation:    {model.ActivityQuiz, model.ActivityAccordion},
			model.BloomCreation:      {model.ActivityAccordion, model.ActivityQuiz},
		},
		DifficultyRecommendations: map[model.Difficulty][]model.ActivityType{
			model.DifficultyEasy:   {model.ActivityText, model.ActivityFlashCard, model.ActivityImage, model.ActivityVideo},
			model.DifficultyMedium: {model.ActivityQuiz, model.ActivityAccordion, model.ActivityText, model.ActivityImage},
			model.DifficultyHard:   {model.ActivityAccordion, model.ActivityQuiz},
		},
		FallbackRecommendation: []model.ActivityType{model.ActivityText},
		Authorized:             append([]model.ActivityType(nil), model.ActivityTypes...),
	}
}

// Decode reads YAML overrides on top of the defaults. Tables present in the
// YAML replace the built-in ones entirely.
func Decode(r io.Reader) (Policy, error) {
	var over Policy
	if err := yaml.NewDecoder(r).Decode(&over); err != nil && err != io.EOF {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	p := Default()
	p.merge(over)
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load reads a YAML policy file. An empty path returns the defaults.
func Load(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("open policy %s: %w", path, err)
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return Policy{}, fmt.Errorf("load policy %s: %w", path, err)
	}
	slog.Info("loaded policy file", "path", path)
	return p, nil
}

// Validate rejects tables that would make inference meaningless.
func (p Policy) Validate() error {
	if p.MinDuration < 0 {
		return fmt.Errorf("min_duration must not be negative, got %d", p.MinDuration)
	}
	if p.DefaultMultiplier <= 0 {
		return fmt.Errorf("default_multiplier must be positive, got %v", p.DefaultMultiplier)
	}
	for d, m := range p.Multipliers {
		if m <= 0 {
			return fmt.Errorf("multiplier for %q must be positive, got %v", d, m)
		}
	}
	if len(p.Authorized) == 0 {
		return fmt.Errorf("authorized activity types must not be empty")
	}
	return nil
}

// IsAuthorized reports whether a is in the policy's authorized set.
func (p Policy) IsAuthorized(a model.ActivityType) bool {
	for _, t := range p.Authorized {
		if t == a {
			return true
		}
	}
	return false
}

func (p *Policy) merge(o Policy) {
	if o.BaseDurations != nil {
		p.BaseDurations = o.BaseDurations
	}
	if o.DefaultDuration != 0 {
		p.DefaultDuration = o.DefaultDuration
	}
	if o.Multipliers != nil {
		p.Multipliers = o.Multipliers
	}
	if o.DefaultMultiplier != 0 {
		p.DefaultMultiplier = o.DefaultMultiplier
	}
	if o.MinDuration != 0 {
		p.MinDuration = o.MinDuration
	}
	if o.BloomByActivity != nil {
		p.BloomByActivity = o.BloomByActivity
	}
	if o.DefaultBloom != "" {
		p.DefaultBloom = o.DefaultBloom
	}
	if o.DifficultyRules != nil {
		p.DifficultyRules = o.DifficultyRules
	}
	if o.DefaultDifficulty != "" {
		p.DefaultDifficulty = o.DefaultDifficulty
	}
	if o.ObjectiveWords != 0 {
		p.ObjectiveWords = o.ObjectiveWords
	}
	if o.ObjectiveLinkMax != 0 {
		p.ObjectiveLinkMax = o.ObjectiveLinkMax
	}
	if o.BloomRecommendations != nil {
		p.BloomRecommendations = o.BloomRecommendations
	}
	if o.DifficultyRecommendations != nil {
		p.DifficultyRecommendations = o.DifficultyRecommendations
	}
	if o.FallbackRecommendation != nil {
		p.FallbackRecommendation = o.FallbackRecommendation
	}
	if o.Authorized != nil {
		p.Authorized = o.Authorized
	}
}
