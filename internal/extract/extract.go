// Package extract pulls structured records out of the loosely delimited
// free-text blocks of an objectives document. Extraction never fails:
// text that does not match a pattern is left out of the result, and callers
// detect undercounts with the validate package.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pavelanni/sequencer/internal/model"
)

const (
	objectiveDelimiter = "---"

	labelObjective     = "Objectif:"
	labelVerb          = "Verbe principal:"
	labelBloom         = "Niveau de Bloom:"
	labelJustification = "Justification:"

	// missingWeek sorts entries without a week after every real week.
	missingWeek = 999
)

var (
	numberedStartRe    = regexp.MustCompile(`(\d+)\.\s*`)
	numberedBoundaryRe = regexp.MustCompile(`\n\n|\n\d+\.`)
	weekRe             = regexp.MustCompile(`semaine (\d+)`)
	verbRe             = regexp.MustCompile(`capable de ([\p{L}\p{N}_]+)`)

	difficultyEntryRe = regexp.MustCompile(`(?s)(\d+)\.\s*\*\*Objectif\s*:\s*(.*?)\*\*\s*\n\s*-\s*\*\*Niveau de difficulté\s*:\s*(\d+)\*\*\s*\n\s*-\s*\*\*Justification\s*:\*\*\s*(.*?)\n\s*-\s*\*\*Temps nécessaire\s*:\*\*\s*(.*?)\n`)
	difficultyHeadRe  = regexp.MustCompile(`(?s)(\d+)\.\s*\*\*Objectif\s*:\s*(.*?)\*\*.*?Niveau de difficulté\s*:\s*(\d+).*?Temps nécessaire\s*:\s*`)
	difficultyTailRe  = regexp.MustCompile(`\n\s*-|\n\n`)

	hoursRe = regexp.MustCompile(`(\d+)-?(\d+)?\s*heures?`)

	numberMarkerRe     = regexp.MustCompile(`\d+\.`)
	difficultyMarkerRe = regexp.MustCompile(`\d+\.\s*\*\*Objectif`)
	difficultyLevelRe  = regexp.MustCompile(`Niveau de difficulté\s*:\s*(\d+)`)
	temporalIndicRe    = regexp.MustCompile(`(?i)semaine \d+|fin de.*?semaine`)
)

// Fold lowercases s with French casing rules.
func Fold(s string) string {
	return cases.Lower(language.French).String(s)
}

// Objectives parses a classification block: segments separated by "---",
// each scanned for labeled lines. A segment without an "Objectif:" line is
// dropped; the number of dropped non-empty segments is returned alongside.
func Objectives(text string) ([]model.Objective, int) {
	var objectives []model.Objective
	skipped := 0
	for _, block := range strings.Split(text, objectiveDelimiter) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var obj model.Objective
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, labelObjective):
				obj.Statement = strings.TrimSpace(strings.TrimPrefix(line, labelObjective))
			case strings.HasPrefix(line, labelVerb):
				obj.Verb = strings.TrimSpace(strings.TrimPrefix(line, labelVerb))
			case strings.HasPrefix(line, labelBloom):
				obj.RawLevel = strings.TrimSpace(strings.TrimPrefix(line, labelBloom))
			case strings.HasPrefix(line, labelJustification):
				obj.Justification = strings.TrimSpace(strings.TrimPrefix(line, labelJustification))
			}
		}
		if obj.Statement == "" {
			skipped++
			continue
		}
		obj.ID = len(objectives) + 1
		obj.Level = NormalizeBloom(obj.RawLevel)
		objectives = append(objectives, obj)
	}
	return objectives, skipped
}

// BloomProgression returns the raw Bloom label of every segment in document order.
func BloomProgression(text string) []string {
	var levels []string
	for _, block := range strings.Split(text, objectiveDelimiter) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		for _, line := range strings.Split(block, "\n") {
			if _, after, ok := strings.Cut(line, labelBloom); ok {
				levels = append(levels, strings.TrimSpace(after))
				break
			}
		}
	}
	return levels
}

// NormalizeBloom maps a raw Bloom label to a canonical level by substring
// tests in a fixed priority order. Unmatched labels are returned lowercased.
func NormalizeBloom(raw string) model.BloomLevel {
	l := Fold(strings.TrimSpace(raw))
	switch {
	case strings.Contains(l, "comprendre"):
		return model.BloomComprehension
	case strings.Contains(l, "analyser"), strings.Contains(l, "analyse"):
		return model.BloomAnalysis
	case strings.Contains(l, "évaluer"), strings.Contains(l, "evaluer"):
		return model.BloomEvaluation
	case strings.Contains(l, "appliquer"):
		return model.BloomApplication
	case strings.Contains(l, "créer"), strings.Contains(l, "creer"):
		return model.BloomCreation
	case strings.Contains(l, "se souvenir"), strings.Contains(l, "souvenir"):
		return model.BloomRecall
	}
	return model.BloomLevel(l)
}

// BloomDistribution counts objectives per normalized level.
func BloomDistribution(objectives []model.Objective) map[model.BloomLevel]int {
	dist := make(map[model.BloomLevel]int)
	for _, o := range objectives {
		dist[o.Level]++
	}
	return dist
}

type numberedSegment struct {
	number int
	text   string
}

// numberedSegments splits text into "N." segments. A segment runs to the
// first blank line, the next line starting with a numeral, or the end.
func numberedSegments(text string) []numberedSegment {
	var segs []numberedSegment
	pos := 0
	for pos < len(text) {
		loc := numberedStartRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		n, err := strconv.Atoi(text[pos+loc[2] : pos+loc[3]])
		start := pos + loc[1]
		end := len(text)
		if b := numberedBoundaryRe.FindStringIndex(text[start:]); b != nil {
			end = start + b[0]
		}
		if err == nil {
			segs = append(segs, numberedSegment{number: n, text: text[start:end]})
		}
		pos = end
	}
	return segs
}

// Temporal parses the numbered SMART block into entries sorted by week
// (entries without a week last) then by number.
func Temporal(text string) []model.TemporalEntry {
	var entries []model.TemporalEntry
	for _, seg := range numberedSegments(text) {
		lower := Fold(seg.text)
		e := model.TemporalEntry{Number: seg.number, Text: strings.TrimSpace(seg.text)}
		if m := weekRe.FindStringSubmatch(lower); m != nil {
			if w, err := strconv.Atoi(m[1]); err == nil {
				e.Week = &w
			}
		}
		if m := verbRe.FindStringSubmatch(lower); m != nil {
			e.Verb = m[1]
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		wi, wj := weekKey(entries[i]), weekKey(entries[j])
		if wi != wj {
			return wi < wj
		}
		return entries[i].Number < entries[j].Number
	})
	return entries
}

func weekKey(e model.TemporalEntry) int {
	if e.Week == nil {
		return missingWeek
	}
	return *e.Week
}

// Difficulty parses entries that carry all of: numeral, bold objective, bold
// integer level, justification and time estimate. Partial entries are skipped.
func Difficulty(text string) []model.DifficultyEntry {
	var entries []model.DifficultyEntry
	for _, m := range difficultyEntryRe.FindAllStringSubmatch(text, -1) {
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		tier, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		entries = append(entries, model.DifficultyEntry{
			Number:        num,
			Objective:     strings.TrimSpace(m[2]),
			Tier:          tier,
			Justification: strings.TrimSpace(m[4]),
			TimeEstimate:  strings.TrimSpace(m[5]),
		})
	}
	return entries
}

// DifficultyMapping is the lenient reading of the difficulty block used for
// analysis: objective text to tier and time estimate. The returned slice
// holds the objective texts in first-seen order.
func DifficultyMapping(text string) (map[string]model.DifficultyInfo, []string) {
	mapping := make(map[string]model.DifficultyInfo)
	var order []string
	pos := 0
	for pos < len(text) {
		loc := difficultyHeadRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		sub := func(i int) string { return text[pos+loc[2*i] : pos+loc[2*i+1]] }
		start := pos + loc[1]
		end := len(text)
		if b := difficultyTailRe.FindStringIndex(text[start:]); b != nil {
			end = start + b[0]
		}
		num, _ := strconv.Atoi(sub(1))
		tier, err := strconv.Atoi(sub(3))
		if err == nil {
			objective := strings.TrimSpace(sub(2))
			if _, seen := mapping[objective]; !seen {
				order = append(order, objective)
			}
			mapping[objective] = model.DifficultyInfo{
				Tier:         tier,
				TimeEstimate: strings.Trim(text[start:end], "* \t\r\n"),
				Number:       num,
			}
		}
		pos = end
	}
	return mapping, order
}

// TotalHours sums every "<n>[-<m>] heure(s)" in text, taking the upper
// bound of ranges.
func TotalHours(text string) int {
	total := 0
	for _, m := range hoursRe.FindAllStringSubmatch(text, -1) {
		v := m[1]
		if m[2] != "" {
			v = m[2]
		}
		if n, err := strconv.Atoi(v); err == nil {
			total += n
		}
	}
	return total
}

// NumberMarkers counts "<digits>." occurrences.
func NumberMarkers(text string) int {
	return len(numberMarkerRe.FindAllStringIndex(text, -1))
}

// DifficultyMarkers counts numbered "**Objectif" entries.
func DifficultyMarkers(text string) int {
	return len(difficultyMarkerRe.FindAllStringIndex(text, -1))
}

// DifficultyLevels counts distinct "Niveau de difficulté : N" values.
func DifficultyLevels(text string) int {
	levels := make(map[int]struct{})
	for _, m := range difficultyLevelRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			levels[n] = struct{}{}
		}
	}
	return len(levels)
}

// TemporalIndicators counts week references such as "semaine 4" or
// "fin de la semaine".
func TemporalIndicators(text string) int {
	return len(temporalIndicRe.FindAllStringIndex(text, -1))
}
