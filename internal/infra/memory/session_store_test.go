package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	session := app.StartSession("s-1", "student-1", "attempt-1", sampleLesson("lesson-1"))
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StudentID != "student-1" || got.Phase != app.PhaseInProgress {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed, got %v", err)
	}
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	if err := store.Save(ctx, app.StartSession("s-1", "student-1", "attempt-1", sampleLesson("lesson-1"))); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session dropped, %d left", store.Len())
	}
}
