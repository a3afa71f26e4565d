package validate

import (
	"context"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/extract"
	"github.com/pavelanni/sequencer/internal/model"
)

var smartRequired = []string{"objectif", "specifique", "mesurable", "atteignable", "pertinent", "temporel"}

// Legacy validates a legacy-layout document.
func Legacy(ctx context.Context, doc *document.Document) Report {
	var rep Report
	raw := doc.Raw

	for _, key := range document.LegacyKeys {
		data := map[string]any{"Field": key}
		v, ok := raw[key]
		switch {
		case !ok:
			rep.errorf(ctx, "MissingField", data)
		case isEmpty(v):
			rep.errorf(ctx, "EmptyField", data)
		}
	}

	if v, ok := raw[document.KeyBloomClassification]; ok {
		levels, isObj := v.(map[string]any)
		if !isObj {
			rep.errorf(ctx, "BloomNotObject", nil)
		} else {
			found := 0
			for _, l := range model.BloomLevels {
				if lv, ok := levels[string(l)]; ok && !isEmpty(lv) {
					found++
				}
			}
			if found == 0 {
				rep.errorf(ctx, "NoBloomLevel", nil)
			}
			rep.Stats.BloomLevels = found
		}
	}

	if v, ok := raw[document.KeySmartObjectives]; ok {
		list, isList := v.([]any)
		switch {
		case !isList:
			rep.errorf(ctx, "SmartNotList", nil)
		case len(list) == 0:
			rep.errorf(ctx, "NoSmartObjective", nil)
		default:
			for i, item := range list {
				obj, isObj := item.(map[string]any)
				if !isObj {
					rep.errorf(ctx, "SmartNotObject", map[string]any{"Index": i + 1})
					continue
				}
				for _, f := range smartRequired {
					if fv, ok := obj[f]; !ok || isEmpty(fv) {
						rep.errorf(ctx, "SmartFieldMissing", map[string]any{"Index": i + 1, "Field": f})
					}
				}
			}
		}
	}

	analysis := extract.AnalyzeLegacy(doc)
	rep.Stats.Objectives = len(analysis.Objectives)
	rep.Stats.SkippedSegments = analysis.SkippedSegments
	tiers := make(map[int]struct{})
	for _, info := range analysis.DifficultyMapping {
		tiers[info.Tier] = struct{}{}
	}
	rep.Stats.DifficultyLevels = len(tiers)
	rep.Stats.TemporalIndicators = extract.TemporalIndicators(doc.Difficulty.Progression)

	return rep.finish()
}
