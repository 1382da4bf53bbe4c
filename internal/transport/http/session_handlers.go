package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"polymer-learn-service/internal/domain"
)

type startRequest struct {
	LessonID string `json:"lessonId" validate:"required"`
}

type selectRequest struct {
	QuestionIndex *int `json:"questionIndex" validate:"required"`
	OptionIndex   *int `json:"optionIndex" validate:"required"`
}

type gotoRequest struct {
	QuestionIndex *int `json:"questionIndex" validate:"required"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	session, err := h.learning.StartLesson(r.Context(), req.LessonID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.learning.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (h *Handler) selectAnswer(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	session, err := h.learning.SelectAnswer(r.Context(), mux.Vars(r)["id"], *req.QuestionIndex, *req.OptionIndex)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (h *Handler) checkAnswer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := h.learning.CheckAnswer(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	session, err := h.learning.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, checkView{CheckResult: result, Session: newSessionView(session)})
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	session, done, err := h.learning.Advance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceView{Done: done, Session: newSessionView(session)})
}

func (h *Handler) goTo(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	session, err := h.learning.GoTo(r.Context(), mux.Vars(r)["id"], *req.QuestionIndex)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	session, err := h.learning.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	completion, err := h.learning.FinishSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}

func (h *Handler) discard(w http.ResponseWriter, r *http.Request) {
	if err := h.learning.Discard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exitSession(w http.ResponseWriter, r *http.Request) {
	if err := h.learning.Exit(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) myProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.learning.MyProgress(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) resetProgress(w http.ResponseWriter, r *http.Request) {
	if err := requireConfirm(r); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.learning.ResetProgress(r.Context()); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exportData(w http.ResponseWriter, r *http.Request) {
	export, err := h.curriculum.ExportData(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="polymer-learn-export.json"`)
	writeJSON(w, http.StatusOK, export)
}

// decodeValid decodes the body and checks its validate tags.
func decodeValid(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	return domain.Struct(v)
}
