// Package sequencer runs the generation pipeline: analyze and validate an
// objectives document, ask the provider for a screen list, then unwrap,
// enrich and check what comes back.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/sequencer/internal/document"
	"github.com/pavelanni/sequencer/internal/enrich"
	"github.com/pavelanni/sequencer/internal/extract"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/llm"
	"github.com/pavelanni/sequencer/internal/llm/prompts"
	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/policy"
	"github.com/pavelanni/sequencer/internal/validate"
)

// ErrInvalidDocument is returned when the document fails validation. The
// accompanying Result carries the report.
var ErrInvalidDocument = errors.New("document failed validation")

// Result is the outcome of one generation cycle.
type Result struct {
	Shape    model.Shape          `json:"shape"`
	Analysis model.AnalysisResult `json:"analysis"`
	Report   validate.Report      `json:"validation"`
	Screens  []model.Screen       `json:"screens"`
	Warnings []string             `json:"warnings,omitempty"`
	// Error is the localized generation failure, if any. Screens is empty
	// whenever it is set.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the provider call or its reply failed.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Sequencer wires the pipeline stages together.
type Sequencer struct {
	comp     llm.Completer
	policy   policy.Policy
	enricher *enrich.Enricher
	strict   bool
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithStrict adds numbering and week-progression warnings to validation.
func WithStrict(strict bool) Option {
	return func(s *Sequencer) { s.strict = strict }
}

// New creates a Sequencer that generates through comp.
func New(comp llm.Completer, p policy.Policy, opts ...Option) (*Sequencer, error) {
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	s := &Sequencer{
		comp:     comp,
		policy:   p,
		enricher: enrich.New(p),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Analyze extracts and validates doc without calling the provider.
func (s *Sequencer) Analyze(ctx context.Context, doc *document.Document) (model.AnalysisResult, validate.Report) {
	return extract.Analyze(doc), validate.Check(ctx, doc, s.strict)
}

// Generate runs the full pipeline over doc. A document that fails
// validation yields ErrInvalidDocument. Provider and reply failures are not
// errors: they are logged and reported in Result.Error with no screens.
func (s *Sequencer) Generate(ctx context.Context, doc *document.Document) (*Result, error) {
	analysis, report := s.Analyze(ctx, doc)
	res := &Result{
		Shape:    doc.Shape,
		Analysis: analysis,
		Report:   report,
		Screens:  []model.Screen{},
		Warnings: append([]string(nil), report.Warnings...),
	}
	if !report.Valid {
		return res, fmt.Errorf("%w: %d error(s)", ErrInvalidDocument, len(report.Errors))
	}

	system, user, err := prompts.BuildSequencer(doc, analysis, s.policy.Authorized)
	if err != nil {
		return res, fmt.Errorf("build sequencer prompt: %w", err)
	}

	raw, err := s.comp.Complete(ctx, system, user)
	if err != nil {
		slog.Error("sequencer generation failed", "shape", doc.Shape, "error", err)
		res.Error = appI18n.Td(ctx, "GenerationFailed", map[string]any{"Error": err.Error()})
		return res, nil
	}

	screens, skipped, err := llm.DecodeScreens(raw)
	if err != nil {
		var uerr *llm.UnwrapError
		excerpt := ""
		if errors.As(err, &uerr) {
			excerpt = uerr.Excerpt
		}
		slog.Error("unparsable sequencer response", "error", err, "content", excerpt)
		res.Error = appI18n.Td(ctx, "GenerationFailed", map[string]any{"Error": err.Error()})
		return res, nil
	}
	if skipped > 0 {
		slog.Warn("skipped non-object screens in response", "count", skipped)
	}

	res.Screens = s.enricher.Screens(screens, analysis)
	res.Warnings = append(res.Warnings, validate.Screens(ctx, res.Screens)...)
	res.Warnings = append(res.Warnings, validate.ActivityTypes(ctx, res.Screens, s.policy.Authorized)...)

	slog.Info("sequencer generated", "shape", doc.Shape, "screens", len(res.Screens), "warnings", len(res.Warnings))
	return res, nil
}
