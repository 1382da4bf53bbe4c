package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"polymer-learn-service/internal/domain"
)

func (h *Handler) listGlossary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Glossary())
}

func (h *Handler) glossaryTerm(w http.ResponseWriter, r *http.Request) {
	entry, err := domain.LookupGlossary(mux.Vars(r)["term"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
