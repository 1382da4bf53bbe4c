package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"polymer-learn-service/internal/domain"
)

func TestLessonCacheCaches(t *testing.T) {
	loader := &countingLoader{lessons: map[string]domain.Lesson{"lesson-1": sampleLesson("lesson-1")}}
	cache := NewLessonCache(loader, time.Minute)

	if _, err := cache.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := cache.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestLessonCacheExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{lessons: map[string]domain.Lesson{"lesson-1": sampleLesson("lesson-1")}}
	cache := NewLessonCache(loader, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	if _, err := cache.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.count())
	}

	if err := cache.Invalidate(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetLesson(context.Background(), "lesson-1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if loader.count() != 3 {
		t.Fatalf("expected reload after invalidate, got %d calls", loader.count())
	}
}

func TestLessonCacheDoesNotCacheMisses(t *testing.T) {
	loader := &countingLoader{lessons: map[string]domain.Lesson{}}
	cache := NewLessonCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cache.GetLesson(context.Background(), "missing")
		if !errors.Is(err, domain.ErrLessonNotFound) {
			t.Fatalf("expected lesson not found, got %v", err)
		}
	}
	if loader.count() != 2 {
		t.Fatalf("expected every miss to reach the loader, got %d", loader.count())
	}
}

type countingLoader struct {
	lessons map[string]domain.Lesson

	mu    sync.Mutex
	calls int
}

func (l *countingLoader) GetLesson(_ context.Context, id string) (domain.Lesson, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if lesson, ok := l.lessons[id]; ok {
		return lesson, nil
	}
	return domain.Lesson{}, domain.ErrLessonNotFound
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleLesson(id string) domain.Lesson {
	return domain.Lesson{
		ID:       id,
		Title:    "Polymer basics",
		XPReward: 50,
		Questions: []domain.Question{
			{Text: "What is a monomer?", Options: []string{"A repeat unit", "A catalyst"}, CorrectIndex: 0},
		},
	}
}
