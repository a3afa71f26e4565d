package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/sequencer/internal/document"
	appI18n "github.com/pavelanni/sequencer/internal/i18n"
	"github.com/pavelanni/sequencer/internal/llm"
	"github.com/pavelanni/sequencer/internal/model"
	"github.com/pavelanni/sequencer/internal/sequencer"
	"github.com/pavelanni/sequencer/internal/stats"
	"github.com/pavelanni/sequencer/internal/store"
	"github.com/pavelanni/sequencer/internal/validate"
)

// maxDocumentSize bounds request bodies carrying an objectives document.
const maxDocumentSize = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	seq    *sequencer.Sequencer
	comp   llm.Completer
	agg    *stats.Aggregator
	config model.Config
}

// New creates a new Handler. comp is used for script generation.
func New(s *store.Store, seq *sequencer.Sequencer, comp llm.Completer, agg *stats.Aggregator, cfg model.Config) (*Handler, error) {
	if s == nil || seq == nil || comp == nil || agg == nil {
		return nil, errors.New("handler: store, sequencer, completer and aggregator are required")
	}
	if cfg.Lang == "" {
		cfg.Lang = appI18n.DefaultLang
	}
	return &Handler{store: s, seq: seq, comp: comp, agg: agg, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(appI18n.Middleware(h.config.Lang))
		r.Use(h.requireToken)

		r.Get("/sample", h.handleSample)
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/validate", h.handleValidate)
		r.Post("/generate", h.handleGenerate)

		r.Get("/runs", h.handleListRuns)
		r.Get("/runs/latest", h.handleLatestRun)
		r.Get("/runs/{runID}", h.handleGetRun)
		r.Put("/runs/{runID}/current", h.handleSetCurrent)
		r.Get("/runs/{runID}/stats", h.handleRunStats)
		r.Get("/runs/{runID}/export", h.handleExport)
		r.Get("/runs/{runID}/screens/{num}/script", h.handleGetScript)
		r.Post("/runs/{runID}/screens/{num}/script", h.handleScript)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// readDocument parses the request body as an objectives document. It writes
// the error response itself and returns nil on failure.
func readDocument(w http.ResponseWriter, r *http.Request) *document.Document {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil
	}
	doc, err := document.Parse(data)
	if err != nil {
		slog.Warn("rejected document", "error", err)
		writeError(w, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidJSON")+": "+err.Error())
		return nil
	}
	return doc
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.RunCount(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSample(w http.ResponseWriter, r *http.Request) {
	shape := model.ShapeNew
	if r.URL.Query().Get("legacy") == "true" {
		shape = model.ShapeLegacy
	}
	data, err := document.Sample(shape)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(data)
}

type analyzeResponse struct {
	Shape    model.Shape          `json:"shape"`
	Analysis model.AnalysisResult `json:"analysis"`
	Report   validate.Report      `json:"validation"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	doc := readDocument(w, r)
	if doc == nil {
		return
	}
	analysis, report := h.seq.Analyze(r.Context(), doc)
	writeJSON(w, http.StatusOK, analyzeResponse{Shape: doc.Shape, Analysis: analysis, Report: report})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	doc := readDocument(w, r)
	if doc == nil {
		return
	}
	strict := r.URL.Query().Get("strict") == "true" || h.config.Strict
	report := validate.Check(r.Context(), doc, strict)
	status := http.StatusOK
	if !report.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

type generateResponse struct {
	RunID   int64  `json:"run_id,omitempty"`
	Message string `json:"message,omitempty"`
	*sequencer.Result
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	doc := readDocument(w, r)
	if doc == nil {
		return
	}

	res, err := h.seq.Generate(r.Context(), doc)
	if errors.Is(err, sequencer.ErrInvalidDocument) {
		writeJSON(w, http.StatusUnprocessableEntity, generateResponse{Result: res})
		return
	}
	if err != nil {
		slog.Error("generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if res.Failed() {
		writeJSON(w, http.StatusBadGateway, generateResponse{Result: res})
		return
	}

	analysis := res.Analysis
	run := &model.Run{
		Shape:    res.Shape,
		Model:    h.config.Model,
		Domain:   runDomain(doc, analysis),
		Screens:  res.Screens,
		Analysis: &analysis,
		Warnings: res.Warnings,
	}
	if err := h.store.SaveRun(run); err != nil {
		slog.Error("failed to save run", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("save run: %v", err))
		return
	}
	slog.Info("run saved", "run_id", run.ID, "screens", len(run.Screens))
	writeJSON(w, http.StatusCreated, generateResponse{
		RunID:   run.ID,
		Message: appI18n.Tp(r.Context(), "ScreensGenerated", len(res.Screens)),
		Result:  res,
	})
}

func runDomain(doc *document.Document, analysis model.AnalysisResult) string {
	if analysis.Domain != "" {
		return analysis.Domain
	}
	return doc.Domain
}
