package handler

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/sequencer/internal/export"
	"github.com/pavelanni/sequencer/internal/llm"
	"github.com/pavelanni/sequencer/internal/llm/prompts"
	"github.com/pavelanni/sequencer/internal/model"
)

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RunFilter{
		Shape:  model.Shape(q.Get("shape")),
		Domain: q.Get("domain"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	runs, err := h.store.ListRuns(filter)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun()
	if !h.checkRun(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// loadRun fetches the run named by the runID URL parameter. It writes the
// error response itself and reports whether the run was found.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (model.Run, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID")
		return model.Run{}, false
	}
	run, err := h.store.GetRun(id)
	return run, h.checkRun(w, err)
}

func (h *Handler) checkRun(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "run not found")
	default:
		slog.Error("failed to load run", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return false
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleSetCurrent makes an earlier run the one /runs/latest returns.
func (h *Handler) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if err := h.store.SetCurrentRun(run.ID); err != nil {
		slog.Error("failed to set current run", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("current run changed", "run_id", run.ID)
	writeJSON(w, http.StatusOK, run)
}

type statsResponse struct {
	RunID    int64                    `json:"run_id"`
	Summary  model.Summary            `json:"summary"`
	Activity model.ActivityStatistics `json:"activity"`
}

func (h *Handler) handleRunStats(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		RunID:    run.ID,
		Summary:  h.agg.Summarize(run.Screens),
		Activity: h.agg.Activity(run.Screens),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, run.Screens, h.agg); err != nil {
		slog.Error("export failed", "run_id", run.ID, "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"sequenceur_%d%s\"", run.ID, format.Extension()))
	w.Write(buf.Bytes())
}

type scriptResponse struct {
	RunID  int64  `json:"run_id"`
	Screen string `json:"screen"`
	Script string `json:"script"`
}

func findScreen(screens []model.Screen, number string) (model.Screen, bool) {
	for _, s := range screens {
		if s.Number == number {
			return s, true
		}
	}
	return model.Screen{}, false
}

func (h *Handler) handleScript(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	screen, ok := findScreen(run.Screens, chi.URLParam(r, "num"))
	if !ok {
		writeError(w, http.StatusNotFound, "screen not found")
		return
	}

	script, err := llm.Script(r.Context(), h.comp, screen)
	if errors.Is(err, prompts.ErrUnsupportedActivity) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		slog.Error("script generation failed", "run_id", run.ID, "screen", screen.Number, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := h.store.SaveScript(run.ID, screen.Number, script); err != nil {
		slog.Error("failed to save script", "run_id", run.ID, "screen", screen.Number, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scriptResponse{RunID: run.ID, Screen: screen.Number, Script: script})
}

func (h *Handler) handleGetScript(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "num")
	script, err := h.store.GetScript(run.ID, number)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "script not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scriptResponse{RunID: run.ID, Screen: number, Script: script})
}
