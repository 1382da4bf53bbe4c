package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
	"polymer-learn-service/internal/infra/memory"
)

func TestEarnedXP(t *testing.T) {
	cases := []struct {
		score, count, reward, want int
	}{
		{2, 3, 90, 60},
		{3, 3, 50, 50},
		{0, 3, 50, 0},
		{1, 3, 50, 17},
		{2, 3, 50, 33},
	}
	for _, c := range cases {
		got, err := app.EarnedXP(c.score, c.count, c.reward)
		if err != nil {
			t.Fatalf("EarnedXP(%d,%d,%d): %v", c.score, c.count, c.reward, err)
		}
		if got != c.want {
			t.Fatalf("EarnedXP(%d,%d,%d) = %d, want %d", c.score, c.count, c.reward, got, c.want)
		}
	}
	if _, err := app.EarnedXP(0, 0, 50); !errors.Is(err, domain.ErrInvalidLessonState) {
		t.Fatalf("expected invalid lesson state for zero questions, got %v", err)
	}
}

func TestApplyCompletion(t *testing.T) {
	start := domain.Progress{StudentID: "u1", XP: 40, Streak: 2, CompletedLessonIDs: []string{}}
	got := app.ApplyCompletion(start, "L1", 50, "2025-01-01T00:00:00.000Z")
	if got.XP != 90 || got.Streak != 3 || len(got.CompletedLessonIDs) != 1 || got.CompletedLessonIDs[0] != "L1" {
		t.Fatalf("unexpected progress %+v", got)
	}

	again := app.ApplyCompletion(got, "L1", 50, "2025-01-02T00:00:00.000Z")
	if again.Streak != 4 || again.XP != 140 || len(again.CompletedLessonIDs) != 1 {
		t.Fatalf("repeat completion: %+v", again)
	}
	if len(start.CompletedLessonIDs) != 0 {
		t.Fatalf("input record mutated")
	}
}

func TestProgressRecordCreatesAndAccumulates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agg := app.NewProgressAggregator(store, app.WithClock(fixedClock()))
	outcome := app.Outcome{Lesson: threeQuestionLesson("L1", 90), FinalScore: 2, QuestionCount: 3}

	c, err := agg.Record(ctx, "u1", "Ada", outcome)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if c.EarnedXP != 60 || c.NewXP != 60 || c.NewStreak != 1 {
		t.Fatalf("unexpected completion %+v", c)
	}
	if c.Progress.UserName != "Ada" {
		t.Fatalf("user name not stored: %+v", c.Progress)
	}

	c, err = agg.Record(ctx, "u1", "", outcome)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if c.NewXP != 120 || c.NewStreak != 2 || len(c.Progress.CompletedLessonIDs) != 1 || c.Progress.UserName != "Ada" {
		t.Fatalf("unexpected second completion %+v", c.Progress)
	}
}

func TestProgressRecordConcurrentCompletions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agg := app.NewProgressAggregator(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "L" + string(rune('A'+i%5))
			outcome := app.Outcome{Lesson: threeQuestionLesson(id, 30), FinalScore: 3, QuestionCount: 3}
			if _, err := agg.Record(ctx, "u1", "", outcome); err != nil {
				t.Errorf("record: %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, err := agg.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.XP != 600 || p.Streak != 20 || len(p.CompletedLessonIDs) != 5 {
		t.Fatalf("lost updates: %+v", p)
	}
}

type failingProgress struct {
	app.ProgressStore
}

func (failingProgress) UpsertProgress(context.Context, string, app.ProgressMutator) (domain.Progress, error) {
	return domain.Progress{}, errors.New("store offline")
}

func TestProgressRecordReturnsStoreError(t *testing.T) {
	agg := app.NewProgressAggregator(failingProgress{ProgressStore: memory.NewStore()})
	outcome := app.Outcome{Lesson: threeQuestionLesson("L1", 30), FinalScore: 1, QuestionCount: 3}
	if _, err := agg.Record(context.Background(), "u1", "", outcome); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestProgressReset(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agg := app.NewProgressAggregator(store)

	if err := agg.Reset(ctx, "nobody"); err != nil {
		t.Fatalf("reset without record: %v", err)
	}
	if _, err := agg.Get(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reset created a record: %v", err)
	}

	outcome := app.Outcome{Lesson: threeQuestionLesson("L1", 30), FinalScore: 3, QuestionCount: 3}
	if _, err := agg.Record(ctx, "u1", "Ada", outcome); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := agg.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	p, err := agg.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.XP != 0 || p.Streak != 0 || len(p.CompletedLessonIDs) != 0 || p.UserName != "Ada" {
		t.Fatalf("unexpected reset record %+v", p)
	}
}
