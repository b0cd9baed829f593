package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stenmark/docbridge/internal/apperr"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Sync handles POST /api/sync: trigger a run, optionally overriding mode,
// conflict strategy, or dry-run from the JSON body.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var ov RunOverrides
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&ov); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
			return
		}
	}

	report, err := h.svc.Sync(r.Context(), ov)
	if err != nil {
		if errors.Is(err, apperr.ErrRunAborted) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":  "run aborted on conflict",
				"report": report,
			})
			return
		}
		if report == nil {
			slog.Error("sync failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		slog.Error("sync failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// History handles GET /api/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.History(limit)
	if err != nil {
		slog.Error("history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// RunOutcomes handles GET /api/history/{id}.
func (h *Handler) RunOutcomes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return
	}
	outcomes, err := h.svc.RunOutcomes(id)
	if err != nil {
		slog.Error("run outcomes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

// Mappings handles GET /api/mappings.
func (h *Handler) Mappings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"mappings": h.svc.Mappings()})
}
