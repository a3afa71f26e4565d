package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/model"
)

// FS holds the built-in prompt templates.
//
//go:embed templates/*.tmpl
var FS embed.FS

// excerptLimit bounds the raw document text quoted in a sequencer prompt.
const excerptLimit = 500

// notDefined stands in for screen fields absent from a script request.
const notDefined = "Non défini"

// ErrUnsupportedActivity is returned for script requests on an activity type
// without a script template.
var ErrUnsupportedActivity = errors.New("unsupported activity type")

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

var templateNames = []string{
	"system_new", "user_new",
	"system_legacy", "user_legacy",
	"script_user",
	"script_text", "script_quiz", "script_accordion",
	"script_video", "script_image", "script_flash-card",
}

// SequencerData holds template data for new-layout sequencer prompts.
type SequencerData struct {
	ActivityTypes         string
	Domain                string
	ObjectiveCount        int
	Objectives            string
	BloomDistribution     string
	BloomProgression      string
	TemporalProgression   string
	DifficultyMapping     string
	TotalHours            int
	ClassificationExcerpt string
	ObjectivesExcerpt     string
}

// LegacyData holds template data for legacy-layout sequencer prompts.
type LegacyData struct {
	ActivityTypes string
	Domain        string
	Bloom         string
	Smart         string
	Difficulty    string
}

// ScriptData holds template data for script prompts.
type ScriptData struct {
	Sequence   string
	Number     string
	Title      string
	Subtitle   string
	Summary    string
	Activity   string
	Bloom      string
	Difficulty string
	Duration   string
	Objective  string
	Comment    string
}

// Load parses prompt templates from fsys. It uses sync.Once so templates
// are parsed only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		parsed := make(map[string]*template.Template, len(templateNames))
		for _, name := range templateNames {
			file := "templates/" + name + ".tmpl"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			parsed[name] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

// BuildSequencer returns the system and user prompts asking for the screen
// list of doc. The layout of doc selects the template pair.
func BuildSequencer(doc *document.Document, analysis model.AnalysisResult, allowed []model.ActivityType) (string, string, error) {
	types := joinTypes(allowed)

	if doc.Shape == model.ShapeLegacy {
		data := LegacyData{
			ActivityTypes: types,
			Domain:        orDefault(doc.Domain, "Non spécifié"),
			Bloom:         indentJSON(doc.Raw[document.KeyBloomClassification]),
			Smart:         indentJSON(doc.Raw[document.KeySmartObjectives]),
			Difficulty:    indentJSON(doc.Raw[document.KeyDifficultyAssessment]),
		}
		return pair("system_legacy", "user_legacy", data)
	}

	data := SequencerData{
		ActivityTypes:         types,
		Domain:                doc.Domain,
		ObjectiveCount:        len(analysis.Objectives),
		Objectives:            indentJSON(analysis.Objectives),
		BloomDistribution:     indentJSON(analysis.BloomDistribution),
		BloomProgression:      strings.Join(analysis.BloomProgression, " → "),
		TemporalProgression:   indentJSON(analysis.TemporalProgression),
		DifficultyMapping:     indentJSON(analysis.DifficultyMapping),
		TotalHours:            analysis.TotalHours,
		ClassificationExcerpt: excerpt(doc.Classification, excerptLimit),
		ObjectivesExcerpt:     excerpt(doc.FormattedObjectives, excerptLimit),
	}
	return pair("system_new", "user_new", data)
}

// BuildScript returns the system and user prompts asking for the detailed
// script of one screen. The system prompt depends on the activity type.
func BuildScript(s model.Screen) (string, string, error) {
	name := "script_" + string(s.Activity)
	if !s.Activity.IsAuthorized() {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedActivity, s.Activity)
	}

	duration := notDefined
	if s.Duration != nil {
		duration = strconv.Itoa(s.Minutes())
	}
	data := ScriptData{
		Sequence:   orDefault(s.Sequence, notDefined),
		Number:     orDefault(s.Number, notDefined),
		Title:      orDefault(s.Title, notDefined),
		Subtitle:   orDefault(s.Subtitle, notDefined),
		Summary:    orDefault(s.Summary, notDefined),
		Activity:   string(s.Activity),
		Bloom:      s.BloomOr(notDefined),
		Difficulty: s.DifficultyOr(notDefined),
		Duration:   duration,
		Objective:  orDefault(s.ObjectiveOr(""), notDefined),
		Comment:    orDefault(s.Comment, notDefined),
	}
	return pair(name, "script_user", data)
}

func pair(system, user string, data any) (string, string, error) {
	sys, err := execute(system, data)
	if err != nil {
		return "", "", err
	}
	usr, err := execute(user, data)
	if err != nil {
		return "", "", err
	}
	return sys, usr, nil
}

func execute(name string, data any) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func joinTypes(types []model.ActivityType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// indentJSON renders v the way it is quoted to the model: indented, with
// accented characters and markup left as is.
func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}

func excerpt(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
