package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/auth"
	"polymer-learn-service/internal/domain"
)

const maxUploadBytes = 5 << 20

type uploadView struct {
	BlobRef string `json:"blobRef"`
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.curriculum.ListModules(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}

func (h *Handler) createModule(w http.ResponseWriter, r *http.Request) {
	var in app.ModuleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	module, err := h.curriculum.CreateModule(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, module)
}

func (h *Handler) updateModule(w http.ResponseWriter, r *http.Request) {
	var in app.ModuleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	module, err := h.curriculum.UpdateModule(r.Context(), mux.Vars(r)["key"], in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, module)
}

func (h *Handler) deleteModule(w http.ResponseWriter, r *http.Request) {
	if err := h.curriculum.DeleteModule(r.Context(), mux.Vars(r)["key"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listLessons serves full lessons to instructors and summaries to students.
func (h *Handler) listLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.curriculum.ListLessons(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if isInstructor(r) {
		writeJSON(w, http.StatusOK, lessons)
		return
	}
	summaries := make([]lessonSummary, 0, len(lessons))
	for _, l := range lessons {
		summaries = append(summaries, newLessonSummary(l))
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.curriculum.GetLesson(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if isInstructor(r) {
		writeJSON(w, http.StatusOK, lesson)
		return
	}
	writeJSON(w, http.StatusOK, newLessonSummary(lesson))
}

func (h *Handler) createLesson(w http.ResponseWriter, r *http.Request) {
	var in app.LessonInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	lesson, err := h.curriculum.CreateLesson(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *Handler) updateLesson(w http.ResponseWriter, r *http.Request) {
	var in app.LessonInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	lesson, err := h.curriculum.UpdateLesson(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	if err := h.curriculum.DeleteLesson(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadImage accepts a multipart "file" field or a raw image body.
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		data        []byte
		contentType string
		err         error
	)
	if file, header, ferr := r.FormFile("file"); ferr == nil {
		defer file.Close()
		data, err = io.ReadAll(file)
		contentType = header.Header.Get("Content-Type")
	} else {
		data, err = io.ReadAll(r.Body)
		contentType = r.Header.Get("Content-Type")
	}
	if err != nil {
		writeError(w, h.log, domain.NewValidationError("file", "could not be read"))
		return
	}

	ref, err := h.curriculum.UploadImage(r.Context(), data, contentType)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadView{BlobRef: ref})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.log, domain.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	rows, err := h.analytics.TopLearners(r.Context(), limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func isInstructor(r *http.Request) bool {
	user, ok := auth.FromContext(r.Context())
	return ok && user.IsInstructor()
}
