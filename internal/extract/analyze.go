package extract

import (
	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/model"
)

// Analyze runs every extractor over a document and joins the results by
// objective number. Legacy documents are routed to AnalyzeLegacy.
func Analyze(doc *document.Document) model.AnalysisResult {
	if doc.Shape == model.ShapeLegacy {
		return AnalyzeLegacy(doc)
	}

	res := model.AnalysisResult{
		Domain:            doc.Domain,
		Context:           doc.Context,
		BloomDistribution: map[model.BloomLevel]int{},
		DifficultyMapping: map[string]model.DifficultyInfo{},
	}

	if doc.Classification != "" {
		res.Objectives, res.SkippedSegments = Objectives(doc.Classification)
		res.BloomDistribution = BloomDistribution(res.Objectives)
		res.BloomProgression = BloomProgression(doc.Classification)
	}
	if doc.FormattedObjectives != "" {
		res.TemporalProgression = Temporal(doc.FormattedObjectives)
	}
	if doc.DifficultyEvaluation != "" {
		res.DifficultyMapping, res.DifficultyOrder = DifficultyMapping(doc.DifficultyEvaluation)
		res.TotalHours = TotalHours(doc.DifficultyEvaluation)
	}

	weeks := make(map[int]*int, len(res.TemporalProgression))
	for _, e := range res.TemporalProgression {
		weeks[e.Number] = e.Week
	}
	byNumber := make(map[int]model.DifficultyInfo, len(res.DifficultyMapping))
	for _, info := range res.DifficultyMapping {
		byNumber[info.Number] = info
	}
	for i := range res.Objectives {
		o := &res.Objectives[i]
		o.Week = weeks[o.ID]
		if info, ok := byNumber[o.ID]; ok {
			o.Difficulty = info.Tier
			o.TimeEstimate = info.TimeEstimate
			o.Hours = TotalHours(info.TimeEstimate)
		}
	}
	return res
}

// AnalyzeLegacy derives an analysis from the legacy layout: objectives come
// from objectifs_smart and difficulty tiers from the facile/moyen/difficile lists.
func AnalyzeLegacy(doc *document.Document) model.AnalysisResult {
	res := model.AnalysisResult{
		Domain:            doc.Domain,
		Context:           doc.Context,
		DifficultyMapping: map[string]model.DifficultyInfo{},
	}

	for _, so := range doc.SmartObjectives {
		if so.Objective == "" {
			res.SkippedSegments++
			continue
		}
		res.Objectives = append(res.Objectives, model.Objective{
			ID:            len(res.Objectives) + 1,
			Statement:     so.Objective,
			Level:         NormalizeBloom(so.Bloom),
			RawLevel:      so.Bloom,
			Justification: so.Relevant,
			TimeEstimate:  so.TimeBound,
		})
	}
	res.BloomDistribution = BloomDistribution(res.Objectives)

	tiers := []struct {
		tier  int
		items []string
	}{
		{2, doc.Difficulty.Easy},
		{3, doc.Difficulty.Medium},
		{4, doc.Difficulty.Hard},
	}
	n := 0
	for _, t := range tiers {
		for _, item := range t.items {
			n++
			if _, seen := res.DifficultyMapping[item]; !seen {
				res.DifficultyOrder = append(res.DifficultyOrder, item)
			}
			res.DifficultyMapping[item] = model.DifficultyInfo{Tier: t.tier, Number: n}
		}
	}
	res.TotalHours = TotalHours(doc.Difficulty.Progression)
	return res
}
