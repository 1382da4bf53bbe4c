package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/auth"
	"polymer-learn-service/internal/metrics"
)

// BlobOpener serves stored images directly; only the in-memory blob store
// needs it, S3 stores hand out presigned URLs instead.
type BlobOpener interface {
	Open(ctx context.Context, ref string) ([]byte, string, error)
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Learning    *app.LearningService
	Curriculum  *app.CurriculumService
	Analytics   *app.ClassAnalytics
	Auth        *auth.Authenticator
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Blobs       BlobOpener
	CORSOrigins []string
	Log         *zap.Logger
}

// Handler serves the REST API and WebSocket quiz play.
type Handler struct {
	learning   *app.LearningService
	curriculum *app.CurriculumService
	analytics  *app.ClassAnalytics
	auth       *auth.Authenticator
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	blobs      BlobOpener
	origins    []string
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		learning:   d.Learning,
		curriculum: d.Curriculum,
		analytics:  d.Analytics,
		auth:       d.Auth,
		metrics:    d.Metrics,
		gatherer:   d.Gatherer,
		blobs:      d.Blobs,
		origins:    d.CORSOrigins,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.upgrader.CheckOrigin = h.allowedOrigin
	return h
}

// allowedOrigin applies the CORS origin list to WebSocket upgrades. Without a
// configured list every origin is accepted, as with the REST routes.
func (h *Handler) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Routes builds the router wrapped in CORS.
func (h *Handler) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(h.observe)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if h.gatherer != nil {
		router.Handle("/metrics", metrics.Handler(h.gatherer)).Methods(http.MethodGet)
	}
	if h.blobs != nil {
		router.HandleFunc("/blobs/{ref:.+}", h.serveBlob).Methods(http.MethodGet)
	}

	router.Handle("/ws", h.authenticate(http.HandlerFunc(h.ServeWS)))

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.authenticate)

	api.HandleFunc("/sessions", h.startSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", h.exitSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/select", h.selectAnswer).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/check", h.checkAnswer).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/advance", h.advance).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/goto", h.goTo).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/retry", h.retry).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/finish", h.finish).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/discard", h.discard).Methods(http.MethodPost)

	api.HandleFunc("/progress/me", h.myProgress).Methods(http.MethodGet)
	api.HandleFunc("/progress/me", h.resetProgress).Methods(http.MethodDelete)
	api.HandleFunc("/progress/me/export", h.exportData).Methods(http.MethodGet)
	api.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/glossary", h.listGlossary).Methods(http.MethodGet)
	api.HandleFunc("/glossary/{term}", h.glossaryTerm).Methods(http.MethodGet)

	api.HandleFunc("/modules", h.listModules).Methods(http.MethodGet)
	api.HandleFunc("/modules", h.instructor(h.createModule)).Methods(http.MethodPost)
	api.HandleFunc("/modules/{key}", h.instructor(h.updateModule)).Methods(http.MethodPut)
	api.HandleFunc("/modules/{key}", h.instructor(h.deleteModule)).Methods(http.MethodDelete)

	api.HandleFunc("/lessons", h.listLessons).Methods(http.MethodGet)
	api.HandleFunc("/lessons/{id}", h.getLesson).Methods(http.MethodGet)
	api.HandleFunc("/lessons", h.instructor(h.createLesson)).Methods(http.MethodPost)
	api.HandleFunc("/lessons/{id}", h.instructor(h.updateLesson)).Methods(http.MethodPut)
	api.HandleFunc("/lessons/{id}", h.instructor(h.deleteLesson)).Methods(http.MethodDelete)
	api.HandleFunc("/uploads", h.instructor(h.uploadImage)).Methods(http.MethodPost)

	api.HandleFunc("/class/stats", h.instructor(h.classStats)).Methods(http.MethodGet)
	api.HandleFunc("/class/students/{id}/report", h.instructor(h.studentReport)).Methods(http.MethodGet)
	api.HandleFunc("/class/students/{id}/progress", h.instructor(h.studentProgress)).Methods(http.MethodGet)
	api.HandleFunc("/class/students/{id}", h.instructor(h.removeStudent)).Methods(http.MethodDelete)
	api.HandleFunc("/class/lessons/{id}/questions/{index:[0-9]+}/distribution", h.instructor(h.distribution)).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(router)
}

func (h *Handler) serveBlob(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.blobs.Open(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
