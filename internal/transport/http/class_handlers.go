package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"polymer-learn-service/internal/domain"
)

func (h *Handler) classStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.ClassStats(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) studentReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.analytics.StudentReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) studentProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.learning.GetProgress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) removeStudent(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.curriculum.RemoveStudent(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) distribution(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, h.log, domain.NewValidationError("index", "must be a question index"))
		return
	}
	dist, err := h.analytics.QuestionResponseDistribution(r.Context(), vars["id"], index)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}
