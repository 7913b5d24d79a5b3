// Package handler serves exam reports and student maintenance as JSON.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/gradeport/internal/i18n"
	"github.com/pavelanni/gradeport/internal/model"
	"github.com/pavelanni/gradeport/internal/portal"
	"github.com/pavelanni/gradeport/internal/scoring"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc     *portal.Service
	catalog *i18n.Catalog
}

// New creates a new Handler.
func New(svc *portal.Service, catalog *i18n.Catalog) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.catalog.Middleware)

	r.Get("/exams", h.handleListExams)
	r.Get("/exams/{examID}/results", h.handleExamResults)
	r.Get("/exams/{examID}/results.csv", h.handleResultsCSV)
	r.Get("/exams/{examID}/results.xlsx", h.handleResultsXLSX)
	r.Get("/exams/{examID}/results/{studentID}", h.handleStudentResult)
	r.Get("/students/duplicates", h.handleDuplicates)
	r.Post("/students/{targetID}/merge/{sourceID}", h.handleMerge)
	r.Post("/maintenance/cleanup", h.handleCleanup)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.svc.ListExams(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.ExamResults(r.Context(), chi.URLParam(r, "examID"), feedback(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleStudentResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.StudentResult(r.Context(), chi.URLParam(r, "examID"), chi.URLParam(r, "studentID"), feedback(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "results-"+examID+".csv"))
	h.export(w, r, func(wr io.Writer) error {
		return h.svc.ExportResults(r.Context(), examID, wr)
	})
}

func (h *Handler) handleResultsXLSX(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "results-"+examID+".xlsx"))
	h.export(w, r, func(wr io.Writer) error {
		return h.svc.ExportResultsXLSX(r.Context(), examID, wr)
	})
}

// export buffers the body so a failing export can still answer with an
// error status.
func (h *Handler) export(w http.ResponseWriter, r *http.Request, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		w.Header().Del("Content-Disposition")
		writeError(w, err)
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("write export", "path", r.URL.Path, "error", err)
	}
}

func (h *Handler) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.DuplicateGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = [][]model.Student{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Merge(r.Context(), chi.URLParam(r, "targetID"), chi.URLParam(r, "sourceID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Cleanup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// feedback returns the request's translator, or nil for the service default.
func feedback(r *http.Request) scoring.Feedback {
	if t := i18n.FromContext(r.Context()); t != nil {
		return t
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument):
		status = http.StatusBadRequest
	default:
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
