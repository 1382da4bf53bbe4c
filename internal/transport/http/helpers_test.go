package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/auth"
	"polymer-learn-service/internal/infra/memory"
	"polymer-learn-service/internal/metrics"
)

const introLesson = "default-introduction-to-polymers"

type testStack struct {
	server   *httptest.Server
	auth     *auth.Authenticator
	store    *memory.Store
	sessions *memory.SessionStore
}

func newTestStack(t *testing.T, origins ...string) *testStack {
	t.Helper()
	store := memory.NewStore()
	sessions := memory.NewSessionStore(time.Hour)
	blobs := memory.NewBlobStore("/blobs")
	cache := memory.NewLessonCache(store, time.Minute)
	identity := auth.ContextIdentity{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	progress := app.NewProgressAggregator(store, app.WithMetrics(m))
	learning := app.NewLearningService(sessions, cache, store, progress, identity, app.WithMetrics(m))
	curriculum := app.NewCurriculumService(store, blobs, cache, identity)
	analytics := app.NewClassAnalytics(store, app.AnalyticsConfig{})
	if _, err := curriculum.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	authn := auth.NewAuthenticator("test-secret", time.Hour)
	h := NewHandler(Deps{
		Learning:    learning,
		Curriculum:  curriculum,
		Analytics:   analytics,
		Auth:        authn,
		Metrics:     m,
		Gatherer:    reg,
		Blobs:       blobs,
		CORSOrigins: origins,
	})
	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)
	return &testStack{server: server, auth: authn, store: store, sessions: sessions}
}

func (s *testStack) token(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	token, err := s.auth.Issue(auth.User{ID: id, Name: id, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// do sends a JSON request and decodes a JSON response into out when set.
func (s *testStack) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testStack) raw(t *testing.T, method, path, token string) (int, string) {
	t.Helper()
	req, _ := http.NewRequest(method, s.server.URL+path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}
