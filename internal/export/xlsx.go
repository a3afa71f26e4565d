package export

import (
	"fmt"
	"io"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/sequencer/internal/model"
)

// Sheet names of exported workbooks.
const (
	ScreensSheet    = "Séquenceur"
	StatisticsSheet = "Statistiques"
)

// XLSX writes a workbook with one sheet of screens in the full column layout
// and one sheet of statistics.
func XLSX(w io.Writer, screens []model.Screen, sum model.Summary, act model.ActivityStatistics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ScreensSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	rows := make([][]any, 0, len(screens)+1)
	rows = append(rows, toAny(FullColumns))
	for _, s := range screens {
		values := fullRow(s)
		row := make([]any, len(FullColumns))
		for i, c := range FullColumns {
			row[i] = values[c]
		}
		if s.Duration != nil {
			row[slices.Index(FullColumns, "duree_estimee")] = s.Minutes()
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, ScreensSheet, rows); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(FullColumns), 1)
	if err := f.SetCellStyle(ScreensSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(ScreensSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet(StatisticsSheet); err != nil {
		return fmt.Errorf("create statistics sheet: %w", err)
	}
	if err := writeRows(f, StatisticsSheet, statisticsRows(sum, act)); err != nil {
		return err
	}
	if err := f.SetCellStyle(StatisticsSheet, "A1", "B1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func statisticsRows(sum model.Summary, act model.ActivityStatistics) [][]any {
	rows := [][]any{
		{"indicateur", "valeur"},
		{"total_screens", sum.TotalScreens},
		{"total_sequences", sum.TotalSequences},
		{"recommendations_compliance", act.Compliance},
	}
	if d := sum.Durations; d != nil {
		rows = append(rows,
			[]any{"total_minutes", d.Total},
			[]any{"average_per_screen", d.Average},
			[]any{"min_duration", d.Min},
			[]any{"max_duration", d.Max},
		)
	}
	for _, section := range []struct {
		prefix string
		counts map[string]int
	}{
		{"activity", act.Distribution},
		{"bloom", sum.BloomDistribution},
		{"difficulty", sum.DifficultyDistribution},
		{"duration_by_type", act.DurationByType},
	} {
		for _, k := range sortedKeys(section.counts) {
			rows = append(rows, []any{section.prefix + "." + k, section.counts[k]})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
