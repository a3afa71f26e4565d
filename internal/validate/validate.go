// Package validate cross-checks the independently parsed blocks of an
// objectives document and the screens produced from it. Every check
// accumulates human-readable, localized messages; nothing here stops at the
// first failure.
package validate

import (
	"context"
	"sort"
	"strings"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/extract"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/model"
)

// Stats describes what the validator found in a document.
type Stats struct {
	Objectives         int `json:"objectives_count"`
	BloomLevels        int `json:"bloom_levels"`
	DifficultyLevels   int `json:"difficulty_levels"`
	TemporalIndicators int `json:"temporal_indicators"`
	SkippedSegments    int `json:"skipped_segments"`
}

// Report is the outcome of validating one document. Valid is true iff Errors
// is empty; Warnings never affect validity.
type Report struct {
	Valid    bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
	Stats    Stats    `json:"stats"`
	// Schema lists JSON-schema violations of the detected layout. They
	// explain structural errors in detail and never affect Valid.
	Schema []string `json:"schema_errors,omitempty"`
}

func (r *Report) errorf(ctx context.Context, id string, data map[string]any) {
	r.Errors = append(r.Errors, appI18n.Td(ctx, id, data))
}

func (r *Report) finish() Report {
	r.Valid = len(r.Errors) == 0
	if r.Errors == nil {
		r.Errors = []string{}
	}
	return *r
}

// Check validates doc according to its layout. When strict is set, numbering
// and week-progression warnings are added for new-layout documents.
func Check(ctx context.Context, doc *document.Document, strict bool) Report {
	var rep Report
	if doc.Shape == model.ShapeLegacy {
		rep = Legacy(ctx, doc)
	} else {
		rep = Document(ctx, doc)
		if strict {
			rep.Warnings = append(rep.Warnings, TemporalCoherence(ctx, doc.FormattedObjectives, doc.DifficultyEvaluation)...)
		}
	}
	rep.Schema = document.SchemaErrors(doc.Raw, doc.Shape)
	return rep
}

// Document validates a new-layout document: required blocks, then the
// objective counts of the three blocks against each other.
func Document(ctx context.Context, doc *document.Document) Report {
	var rep Report

	for _, key := range document.NewShapeKeys {
		data := map[string]any{"Field": key}
		v, ok := doc.Raw[key]
		if !ok {
			rep.errorf(ctx, "MissingBlock", data)
			continue
		}
		block, ok := v.(map[string]any)
		if !ok {
			rep.errorf(ctx, "BlockNotObject", data)
			continue
		}
		nested, ok := block[key]
		if !ok {
			rep.errorf(ctx, "MissingNested", data)
			continue
		}
		if isEmpty(nested) {
			rep.errorf(ctx, "EmptyNested", data)
		}
	}

	if doc.Classification != "" {
		objectives, skipped := extract.Objectives(doc.Classification)
		rep.Stats.Objectives = len(objectives)
		rep.Stats.BloomLevels = len(extract.BloomDistribution(objectives))
		rep.Stats.SkippedSegments = skipped
		if skipped > 0 {
			rep.Warnings = append(rep.Warnings, appI18n.Tp(ctx, "SkippedSegments", skipped))
		}
	}

	if doc.FormattedObjectives != "" {
		numbered := extract.NumberMarkers(doc.FormattedObjectives)
		if rep.Stats.Objectives > 0 && numbered != rep.Stats.Objectives {
			rep.errorf(ctx, "SmartCountMismatch", map[string]any{
				"Expected": rep.Stats.Objectives,
				"Found":    numbered,
			})
		}
		rep.Stats.TemporalIndicators = extract.TemporalIndicators(doc.FormattedObjectives)
	}

	if doc.DifficultyEvaluation != "" {
		rep.Stats.DifficultyLevels = extract.DifficultyLevels(doc.DifficultyEvaluation)
		entries := extract.DifficultyMarkers(doc.DifficultyEvaluation)
		if rep.Stats.Objectives > 0 && entries != rep.Stats.Objectives {
			rep.errorf(ctx, "DifficultyCountMismatch", map[string]any{
				"Expected": rep.Stats.Objectives,
				"Found":    entries,
			})
		}
	}

	return rep.finish()
}

// TemporalCoherence returns non-fatal warnings: the objective numbers of the
// SMART block differ from those of the difficulty matrix, or weeks do not
// ascend when objectives are read in numeric order.
func TemporalCoherence(ctx context.Context, formatted, difficulty string) []string {
	var warnings []string

	temporal := extract.Temporal(formatted)
	matrix := extract.Difficulty(difficulty)

	objNumbers := make(map[int]struct{}, len(temporal))
	for _, e := range temporal {
		objNumbers[e.Number] = struct{}{}
	}
	diffNumbers := make(map[int]struct{}, len(matrix))
	for _, e := range matrix {
		diffNumbers[e.Number] = struct{}{}
	}
	if !sameSet(objNumbers, diffNumbers) {
		warnings = append(warnings, appI18n.T(ctx, "NumberingMismatch"))
	}

	byNumber := append([]model.TemporalEntry(nil), temporal...)
	sort.SliceStable(byNumber, func(i, j int) bool { return byNumber[i].Number < byNumber[j].Number })
	var weeks []int
	for _, e := range byNumber {
		if e.Week != nil {
			weeks = append(weeks, *e.Week)
		}
	}
	if !sort.IntsAreSorted(weeks) {
		warnings = append(warnings, appI18n.T(ctx, "WeekProgression"))
	}

	return warnings
}

func sameSet(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
