// Package export writes screen lists as JSON, CSV or XLSX and reads the
// legacy CSV layout back.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/stats"
)

// Format is an export file format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatCSVFull Format = "csv-full"
	FormatCSVFlat Format = "csv-flat"
	FormatXLSX    Format = "xlsx"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatCSV, FormatCSVFull, FormatCSVFlat, FormatXLSX}

// ErrUnknownFormat is returned for a format name outside Formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a case-insensitive name to a Format.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Extension returns the file extension, dot included.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	}
	return ".csv"
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes screens to w in format f. agg supplies the statistics sheet
// of XLSX workbooks and is unused otherwise.
func Write(w io.Writer, f Format, screens []model.Screen, agg *stats.Aggregator) error {
	switch f {
	case FormatJSON:
		return JSON(w, screens)
	case FormatCSV:
		return CSV(w, screens)
	case FormatCSVFull:
		return CSVFull(w, screens)
	case FormatCSVFlat:
		return CSVFlat(w, screens)
	case FormatXLSX:
		return XLSX(w, screens, agg.Summarize(screens), agg.Activity(screens))
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// JSON writes screens as an indented JSON array.
func JSON(w io.Writer, screens []model.Screen) error {
	if screens == nil {
		screens = []model.Screen{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(screens); err != nil {
		return fmt.Errorf("encode screens: %w", err)
	}
	return nil
}

func durationCell(s model.Screen) string {
	if s.Duration == nil {
		return ""
	}
	return strconv.Itoa(s.Minutes())
}
