package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// BloomLevel is a cognitive level of Bloom's taxonomy.
type BloomLevel string

const (
	BloomRecall        BloomLevel = "se_souvenir"
	BloomComprehension BloomLevel = "comprendre"
	BloomApplication   BloomLevel = "appliquer"
	BloomAnalysis      BloomLevel = "analyser"
	BloomEvaluation    BloomLevel = "evaluer"
	BloomCreation      BloomLevel = "creer"
)

// BloomLevels lists the canonical levels from the shallowest to the deepest.
var BloomLevels = []BloomLevel{
	BloomRecall,
	BloomComprehension,
	BloomApplication,
	BloomAnalysis,
	BloomEvaluation,
	BloomCreation,
}

// IsCanonical reports whether b is one of the six canonical tokens.
func (b BloomLevel) IsCanonical() bool {
	for _, l := range BloomLevels {
		if b == l {
			return true
		}
	}
	return false
}

// Difficulty is the three-valued difficulty tier of a screen.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "facile"
	DifficultyMedium Difficulty = "moyen"
	DifficultyHard   Difficulty = "difficile"
)

// DifficultyFromTier maps the numeric 2–4 scale of the source documents to a tier.
// Any other value reports false.
func DifficultyFromTier(tier int) (Difficulty, bool) {
	switch tier {
	case 2:
		return DifficultyEasy, true
	case 3:
		return DifficultyMedium, true
	case 4:
		return DifficultyHard, true
	}
	return "", false
}

// ActivityType is the modality of a screen.
type ActivityType string

const (
	ActivityText      ActivityType = "text"
	ActivityQuiz      ActivityType = "quiz"
	ActivityAccordion ActivityType = "accordion"
	ActivityVideo     ActivityType = "video"
	ActivityImage     ActivityType = "image"
	ActivityFlashCard ActivityType = "flash-card"
)

// ActivityTypes is the authorized set, in display order.
var ActivityTypes = []ActivityType{
	ActivityText,
	ActivityQuiz,
	ActivityAccordion,
	ActivityVideo,
	ActivityImage,
	ActivityFlashCard,
}

// IsAuthorized reports whether a belongs to the fixed set of activity types.
func (a ActivityType) IsAuthorized() bool {
	for _, t := range ActivityTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Duration is a screen duration in minutes. It decodes from a JSON number or a
// numeric string; anything else decodes to 0.
type Duration int

// UnmarshalJSON implements json.Unmarshaler without ever failing.
func (d *Duration) UnmarshalJSON(data []byte) error {
	*d = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) && x > 0 {
			*d = Duration(int(x))
		}
	case string:
		*d = ParseDuration(x)
	}
	return nil
}

// ParseDuration reads a whole number of minutes from s. Anything else,
// including negative numbers, yields 0.
func ParseDuration(s string) Duration {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return Duration(n)
}

// Minutes returns the duration as a non-negative int.
func (d Duration) Minutes() int {
	if d < 0 {
		return 0
	}
	return int(d)
}

// Screen is one unit of generated content.
// Pointer fields are optional: nil means the generator omitted the field.
type Screen struct {
	Sequence   string       `json:"sequence"`
	Number     string       `json:"num_ecran"`
	Title      string       `json:"titre_ecran"`
	Subtitle   string       `json:"sous_titre"`
	Summary    string       `json:"resume_contenu"`
	Activity   ActivityType `json:"type_activite"`
	Bloom      *BloomLevel  `json:"niveau_bloom,omitempty"`
	Difficulty *Difficulty  `json:"difficulte,omitempty"`
	Duration   *Duration    `json:"duree_estimee,omitempty"`
	Objective  *string      `json:"objectif_lie,omitempty"`
	Comment    string       `json:"commentaire"`
}

// UnmarshalJSON decodes a screen field by field so one mistyped field does
// not lose the screen. Numbers become their decimal text; other non-string
// values leave text fields empty and optional fields absent. Only input that
// is not a JSON object fails.
func (s *Screen) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("screen must be a JSON object")
	}
	*s = Screen{
		Sequence: jsonText(fields["sequence"]),
		Number:   jsonText(fields["num_ecran"]),
		Title:    jsonText(fields["titre_ecran"]),
		Subtitle: jsonText(fields["sous_titre"]),
		Summary:  jsonText(fields["resume_contenu"]),
		Activity: ActivityType(jsonText(fields["type_activite"])),
		Comment:  jsonText(fields["commentaire"]),
	}
	if v, ok := optionalText(fields["niveau_bloom"]); ok {
		b := BloomLevel(v)
		s.Bloom = &b
	}
	if v, ok := optionalText(fields["difficulte"]); ok {
		d := Difficulty(v)
		s.Difficulty = &d
	}
	if v, ok := optionalText(fields["objectif_lie"]); ok {
		s.Objective = &v
	}
	if raw, ok := fields["duree_estimee"]; ok && string(raw) != "null" {
		var d Duration
		_ = d.UnmarshalJSON(raw)
		s.Duration = &d
	}
	return nil
}

func jsonText(raw json.RawMessage) string {
	v, _ := optionalText(raw)
	return v
}

// optionalText reads a string or a number. Anything else, null included,
// reports false.
func optionalText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

// BloomOr returns the screen's cognitive level or def when it is absent.
func (s Screen) BloomOr(def string) string {
	if s.Bloom == nil {
		return def
	}
	return string(*s.Bloom)
}

// DifficultyOr returns the screen's difficulty or def when it is absent.
func (s Screen) DifficultyOr(def string) string {
	if s.Difficulty == nil {
		return def
	}
	return string(*s.Difficulty)
}

// Minutes returns the screen duration, 0 when absent.
func (s Screen) Minutes() int {
	if s.Duration == nil {
		return 0
	}
	return s.Duration.Minutes()
}

// ObjectiveOr returns the linked objective or def when it is absent.
func (s Screen) ObjectiveOr(def string) string {
	if s.Objective == nil {
		return def
	}
	return *s.Objective
}

// Objective is one pedagogical goal parsed from a classification block.
type Objective struct {
	ID            int        `json:"id"`
	Statement     string     `json:"objectif"`
	Verb          string     `json:"verbe,omitempty"`
	Level         BloomLevel `json:"bloom,omitempty"`
	RawLevel      string     `json:"bloom_brut,omitempty"`
	Justification string     `json:"justification,omitempty"`
	Week          *int       `json:"semaine,omitempty"`
	Difficulty    int        `json:"niveau_difficulte,omitempty"`
	TimeEstimate  string     `json:"temps_estime,omitempty"`
	Hours         int        `json:"heures,omitempty"`
}

// TemporalEntry is one numbered objective of the SMART block.
type TemporalEntry struct {
	Number int    `json:"numero"`
	Week   *int   `json:"semaine,omitempty"`
	Verb   string `json:"verbe,omitempty"`
	Text   string `json:"objectif_complet"`
}

// DifficultyEntry is one fully structured entry of the difficulty block.
type DifficultyEntry struct {
	Number        int    `json:"numero"`
	Objective     string `json:"objectif"`
	Tier          int    `json:"niveau_difficulte"`
	Justification string `json:"justification"`
	TimeEstimate  string `json:"temps_estime"`
}

// DifficultyInfo is the difficulty known for one objective text.
type DifficultyInfo struct {
	Tier         int    `json:"niveau"`
	TimeEstimate string `json:"temps"`
	Number       int    `json:"numero"`
}

// AnalysisResult is the read-only summary of one input document.
type AnalysisResult struct {
	Domain              string                    `json:"domaine,omitempty"`
	Context             string                    `json:"contexte,omitempty"`
	Objectives          []Objective               `json:"objectives"`
	BloomDistribution   map[BloomLevel]int        `json:"bloom_distribution"`
	DifficultyMapping   map[string]DifficultyInfo `json:"difficulty_mapping"`
	DifficultyOrder     []string                  `json:"-"`
	TemporalProgression []TemporalEntry           `json:"temporal_progression"`
	BloomProgression    []string                  `json:"bloom_progression,omitempty"`
	TotalHours          int                       `json:"estimated_total_hours"`
	SkippedSegments     int                       `json:"skipped_segments"`
}

// ActivityStatistics aggregates a finished screen list.
type ActivityStatistics struct {
	Distribution   map[string]int            `json:"distribution"`
	ByBloom        map[string]map[string]int `json:"by_bloom"`
	ByDifficulty   map[string]map[string]int `json:"by_difficulty"`
	BySequence     map[string]map[string]int `json:"by_sequence"`
	DurationByType map[string]int            `json:"total_duration_by_type"`
	Compliance     float64                   `json:"recommendations_compliance"`
}

// DurationStats summarizes screen durations in minutes.
type DurationStats struct {
	Total   int     `json:"total_minutes"`
	Average float64 `json:"average_per_screen"`
	Min     int     `json:"min_duration"`
	Max     int     `json:"max_duration"`
}

// SequenceBreakdown summarizes the screens of one sequence.
type SequenceBreakdown struct {
	Screens       int      `json:"screen_count"`
	TotalDuration int      `json:"total_duration"`
	BloomLevels   []string `json:"bloom_levels"`
	Difficulties  []string `json:"difficulties"`
}

// Summary is the detailed report over a screen list.
type Summary struct {
	TotalScreens           int                          `json:"total_screens"`
	TotalSequences         int                          `json:"total_sequences"`
	BloomDistribution      map[string]int               `json:"bloom_distribution"`
	DifficultyDistribution map[string]int               `json:"difficulty_distribution"`
	ActivityDistribution   map[string]int               `json:"activity_distribution"`
	Durations              *DurationStats               `json:"duration_stats,omitempty"`
	Sequences              map[string]SequenceBreakdown `json:"sequence_breakdown"`
}

// Shape identifies which input document layout was supplied.
type Shape string

const (
	ShapeLegacy Shape = "legacy"
	ShapeNew    Shape = "new"
	// ShapeImport marks runs loaded from a CSV export rather than generated.
	ShapeImport Shape = "import"
)

// Run is one persisted generation result.
type Run struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Shape     Shape           `json:"shape"`
	Model     string          `json:"model"`
	Domain    string          `json:"domain,omitempty"`
	Screens   []Screen        `json:"screens"`
	Analysis  *AnalysisResult `json:"analysis,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// APIToken is a named credential for the HTTP API. The token itself is not
// stored: LookupKey is its SHA-256 for finding the row, Hash its bcrypt hash
// for verifying it.
type APIToken struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	LookupKey  string     `json:"-"`
	Hash       string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// RunFilter restricts a run listing. Zero values mean no filtering.
type RunFilter struct {
	Shape  Shape
	Domain string
	Limit  int
}

// Config holds runtime parameters set via CLI flags.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Strict      bool   // treat temporal-coherence warnings as part of the report
	BasePath    string // URL prefix for sub-path deployments
	Lang        string // fallback language of messages
}
