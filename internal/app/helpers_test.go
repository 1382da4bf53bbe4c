package app_test

import (
	"context"
	"time"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
	"polymer-learn-service/internal/infra/memory"
)

type ctxKey struct{}

// testIdentity reads the caller id from the context.
type testIdentity struct{}

func (testIdentity) CurrentUserID(ctx context.Context) (string, error) {
	id, _ := ctx.Value(ctxKey{}).(string)
	if id == "" {
		return "", domain.ErrUnauthenticated
	}
	return id, nil
}

func (testIdentity) CurrentUserName(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return "Name of " + id
}

func as(userID string) context.Context {
	return context.WithValue(context.Background(), ctxKey{}, userID)
}

type testStack struct {
	store      *memory.Store
	sessions   *memory.SessionStore
	learning   *app.LearningService
	curriculum *app.CurriculumService
	analytics  *app.ClassAnalytics
	blobs      *memory.BlobStore
}

func fixedClock() func() time.Time {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestStack(store *memory.Store, progressStore app.ProgressStore) *testStack {
	if store == nil {
		store = memory.NewStore()
	}
	if progressStore == nil {
		progressStore = store
	}
	clock := app.WithClock(fixedClock())
	sessions := memory.NewSessionStore(time.Hour)
	cache := memory.NewLessonCache(store, time.Minute)
	blobs := memory.NewBlobStore("/blobs")
	progress := app.NewProgressAggregator(progressStore, clock)
	return &testStack{
		store:      store,
		sessions:   sessions,
		learning:   app.NewLearningService(sessions, cache, store, progress, testIdentity{}, clock),
		curriculum: app.NewCurriculumService(store, blobs, cache, testIdentity{}, clock),
		analytics:  app.NewClassAnalytics(store, app.AnalyticsConfig{}),
		blobs:      blobs,
	}
}

func seededStack() *testStack {
	s := newTestStack(nil, nil)
	if _, err := s.curriculum.SeedDefaults(context.Background()); err != nil {
		panic(err)
	}
	return s
}

func threeQuestionLesson(id string, xp int) domain.Lesson {
	q := func(text string, correct int) domain.Question {
		return domain.Question{Text: text, Options: []string{"a", "b", "c"}, CorrectIndex: correct}
	}
	return domain.Lesson{
		ID:        id,
		Title:     "Lesson " + id,
		XPReward:  xp,
		Questions: []domain.Question{q("one", 0), q("two", 1), q("three", 2)},
	}
}

func intPtr(v int) *int { return &v }
