package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pavelanni/sequencer/internal/model"
)

// Column names of the CSV layouts.
var (
	LegacyColumns = []string{
		"sequence", "num_ecran", "titre_ecran", "sous_titre",
		"resume_contenu", "type_activite", "commentaire",
	}
	FullColumns = []string{
		"sequence", "num_ecran", "titre_ecran", "sous_titre",
		"resume_contenu", "type_activite", "niveau_bloom", "difficulte",
		"duree_estimee", "objectif_lie", "commentaire",
	}
	FlatColumns = []string{
		"module", "lesson", "activity_type", "title", "description",
		"bloom_level", "difficulty", "estimated_time", "prerequisites",
	}
)

// ErrMissingColumn is returned when an imported CSV lacks a required column.
var ErrMissingColumn = errors.New("missing CSV column")

func fullRow(s model.Screen) map[string]string {
	return map[string]string{
		"sequence":       s.Sequence,
		"num_ecran":      s.Number,
		"titre_ecran":    s.Title,
		"sous_titre":     s.Subtitle,
		"resume_contenu": s.Summary,
		"type_activite":  string(s.Activity),
		"niveau_bloom":   s.BloomOr(""),
		"difficulte":     s.DifficultyOr(""),
		"duree_estimee":  durationCell(s),
		"objectif_lie":   s.ObjectiveOr(""),
		"commentaire":    s.Comment,
	}
}

func flatRow(s model.Screen) map[string]string {
	return map[string]string{
		"module":         s.Sequence,
		"lesson":         s.Number,
		"activity_type":  string(s.Activity),
		"title":          s.Title,
		"description":    s.Summary,
		"bloom_level":    s.BloomOr(""),
		"difficulty":     s.DifficultyOr(""),
		"estimated_time": durationCell(s),
		"prerequisites":  s.ObjectiveOr(""),
	}
}

// CSV writes the seven legacy columns.
func CSV(w io.Writer, screens []model.Screen) error {
	return writeCSV(w, LegacyColumns, screens, fullRow)
}

// CSVFull writes the eleven columns including inferred metadata.
func CSVFull(w io.Writer, screens []model.Screen) error {
	return writeCSV(w, FullColumns, screens, fullRow)
}

// CSVFlat writes the flattened layout expected by course authoring tools.
func CSVFlat(w io.Writer, screens []model.Screen) error {
	return writeCSV(w, FlatColumns, screens, flatRow)
}

func writeCSV(w io.Writer, columns []string, screens []model.Screen, row func(model.Screen) map[string]string) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	record := make([]string, len(columns))
	for _, s := range screens {
		values := row(s)
		for i, c := range columns {
			record[i] = values[c]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV row %s: %w", s.Number, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes screens from a CSV with at least the legacy columns, in
// any order. Metadata columns of the full layout are read when present;
// empty metadata cells stay absent.
func ReadCSV(r io.Reader) ([]model.Screen, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []model.Screen{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range LegacyColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	screens := []model.Screen{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		s := model.Screen{
			Sequence: cell("sequence"),
			Number:   cell("num_ecran"),
			Title:    cell("titre_ecran"),
			Subtitle: cell("sous_titre"),
			Summary:  cell("resume_contenu"),
			Activity: model.ActivityType(cell("type_activite")),
			Comment:  cell("commentaire"),
		}
		if v := cell("niveau_bloom"); v != "" {
			b := model.BloomLevel(v)
			s.Bloom = &b
		}
		if v := cell("difficulte"); v != "" {
			d := model.Difficulty(v)
			s.Difficulty = &d
		}
		if v := cell("duree_estimee"); v != "" {
			d := model.ParseDuration(v)
			s.Duration = &d
		}
		if v := cell("objectif_lie"); v != "" {
			s.Objective = &v
		}
		screens = append(screens, s)
	}
	return screens, nil
}
