package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
	"github.com/pavelanni/sequencer/internal/stats"
)

func ptr[T any](v T) *T { return &v }

func sampleScreens() []model.Screen {
	return []model.Screen{
		{
			Sequence:   "Introduction",
			Number:     "01-Intro-01",
			Title:      "Bienvenue",
			Subtitle:   "Objectifs, contexte",
			Summary:    "Présentation \"générale\" du module",
			Activity:   model.ActivityText,
			Bloom:      ptr(model.BloomComprehension),
			Difficulty: ptr(model.DifficultyEasy),
			Duration:   ptr(model.Duration(2)),
			Objective:  ptr("Décrire les événements clés"),
			Comment:    "ligne 1\nligne 2",
		},
		{
			Sequence: "Pratique",
			Number:   "02-Seq-01",
			Title:    "Quiz",
			Summary:  "Exercice <guidé>",
			Activity: model.ActivityQuiz,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(" " + strings.ToUpper(string(f)) + " ")
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("pdf")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, ".json", FormatJSON.Extension())
	assert.Equal(t, ".csv", FormatCSVFlat.Extension())
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
}

func TestCSVLegacyRoundTrip(t *testing.T) {
	screens := sampleScreens()
	var buf bytes.Buffer

	require.NoError(t, CSV(&buf, screens))

	lines := strings.SplitN(buf.String(), "\r\n", 2)
	assert.Equal(t, strings.Join(LegacyColumns, ","), lines[0])

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(screens))
	for i, s := range screens {
		assert.Equal(t, s.Sequence, got[i].Sequence)
		assert.Equal(t, s.Number, got[i].Number)
		assert.Equal(t, s.Title, got[i].Title)
		assert.Equal(t, s.Subtitle, got[i].Subtitle)
		assert.Equal(t, s.Summary, got[i].Summary)
		assert.Equal(t, s.Activity, got[i].Activity)
		assert.Equal(t, s.Comment, got[i].Comment)
		assert.Nil(t, got[i].Bloom)
		assert.Nil(t, got[i].Duration)
	}
}

func TestCSVFullRoundTrip(t *testing.T) {
	screens := sampleScreens()
	var buf bytes.Buffer

	require.NoError(t, CSVFull(&buf, screens))
	got, err := ReadCSV(&buf)

	require.NoError(t, err)
	assert.Equal(t, screens, got)
}

func TestCSVFlat(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, CSVFlat(&buf, sampleScreens()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "module,lesson,activity_type,title,description,bloom_level,difficulty,estimated_time,prerequisites", lines[0])
	assert.Equal(t, `Introduction,01-Intro-01,text,Bienvenue,"Présentation ""générale"" du module",comprendre,facile,2,Décrire les événements clés`, lines[1])
	assert.Equal(t, "Pratique,02-Seq-01,quiz,Quiz,Exercice <guidé>,,,,", lines[2])
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("sequence,num_ecran\nA,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadCSVEmpty(t *testing.T) {
	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadCSVReorderedWithBOM(t *testing.T) {
	in := "\ufefftype_activite,sequence,num_ecran,titre_ecran,sous_titre,resume_contenu,commentaire,duree_estimee\n" +
		"video,S,01,T,,R,,abc\n"

	got, err := ReadCSV(strings.NewReader(in))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ActivityVideo, got[0].Activity)
	assert.Equal(t, "S", got[0].Sequence)
	require.NotNil(t, got[0].Duration)
	assert.Equal(t, 0, got[0].Minutes())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, JSON(&buf, sampleScreens()))

	assert.Contains(t, buf.String(), "Exercice <guidé>")
	var got []model.Screen
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleScreens(), got)

	buf.Reset()
	require.NoError(t, JSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestXLSX(t *testing.T) {
	screens := sampleScreens()
	agg := stats.New(policy.Default())
	var buf bytes.Buffer

	require.NoError(t, Write(&buf, FormatXLSX, screens, agg))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ScreensSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, FullColumns, rows[0])
	assert.Equal(t, "01-Intro-01", rows[1][1])
	assert.Equal(t, "2", rows[1][8])

	statRows, err := f.GetRows(StatisticsSheet)
	require.NoError(t, err)
	found := map[string]string{}
	for _, r := range statRows {
		if len(r) == 2 {
			found[r[0]] = r[1]
		}
	}
	assert.Equal(t, "2", found["total_screens"])
	assert.Equal(t, "1", found["activity.quiz"])
	assert.Equal(t, "1", found["bloom.comprendre"])
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
