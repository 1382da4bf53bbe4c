package app_test

import (
	"context"
	"testing"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
	"polymer-learn-service/internal/infra/memory"
)

func TestComputeClassStats(t *testing.T) {
	progress := []domain.Progress{
		{StudentID: "a", XP: 100, CompletedLessonIDs: []string{"1", "2", "3", "4"}},
		{StudentID: "b", XP: 50, CompletedLessonIDs: []string{"1"}},
		{StudentID: "c", XP: 0},
	}
	stats := app.ComputeClassStats(progress, 5, app.AnalyticsConfig{})
	if stats.AvgXP != 50 || stats.StrugglingCount != 2 || stats.TotalStudents != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	lb := stats.Leaderboard
	if len(lb) != 3 || lb[0].StudentID != "a" || lb[0].Rank != 1 || lb[2].StudentID != "c" {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}
	if lb[0].ProgressPercent != 80 || lb[0].Status != app.StatusOnTrack {
		t.Fatalf("unexpected top row %+v", lb[0])
	}
	if lb[1].ProgressPercent != 20 || lb[1].Status != app.StatusActive {
		t.Fatalf("unexpected middle row %+v", lb[1])
	}
	if lb[2].Status != app.StatusAtRisk {
		t.Fatalf("unexpected last row %+v", lb[2])
	}

	empty := app.ComputeClassStats(nil, 0, app.AnalyticsConfig{})
	if empty.AvgXP != 0 || len(empty.Leaderboard) != 0 {
		t.Fatalf("unexpected empty stats %+v", empty)
	}

	limited := app.ComputeClassStats(progress, 0, app.AnalyticsConfig{LeaderboardLimit: 1, StrugglingThreshold: 10})
	if len(limited.Leaderboard) != 1 || limited.StrugglingCount != 1 || limited.Leaderboard[0].ProgressPercent != 0 {
		t.Fatalf("unexpected limited stats %+v", limited)
	}
}

func attemptFixture(id, student, lesson, updatedAt string, answers ...domain.AttemptAnswer) domain.Attempt {
	if answers == nil {
		answers = []domain.AttemptAnswer{}
	}
	return domain.Attempt{
		ID:        id,
		StudentID: student,
		LessonID:  lesson,
		StartedAt: updatedAt,
		UpdatedAt: updatedAt,
		Answers:   answers,
	}
}

func picked(q, option int, correct bool) domain.AttemptAnswer {
	return domain.AttemptAnswer{QuestionIndex: q, SelectedOption: intPtr(option), IsCorrect: correct}
}

func analyticsFixture(t *testing.T, attempts ...domain.Attempt) (*app.ClassAnalytics, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	if err := store.InsertLesson(ctx, threeQuestionLesson("L1", 30)); err != nil {
		t.Fatalf("insert lesson: %v", err)
	}
	for _, a := range attempts {
		if err := store.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
	}
	return app.NewClassAnalytics(store, app.AnalyticsConfig{}), store
}

func TestStudentReportUsesLatestAttempt(t *testing.T) {
	analytics, _ := analyticsFixture(t,
		attemptFixture("old", "u1", "L1", "2024-01-01T00:00:00Z", picked(0, 1, false)),
		attemptFixture("new", "u1", "L1", "2024-01-02T00:00:00Z", picked(0, 0, true)),
		attemptFixture("gone", "u1", "deleted-lesson", "2024-01-03T00:00:00Z"),
	)

	rows, err := analytics.StudentReport(context.Background(), "u1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row.AttemptID != "new" || row.QuestionCount != 3 || len(row.Answers) != 1 {
		t.Fatalf("unexpected row %+v", row)
	}
	if a := row.Answers[0]; a.Question != "one" || a.SelectedText != "a" || a.CorrectText != "a" || !a.IsCorrect {
		t.Fatalf("unexpected answer %+v", a)
	}
}

func TestStudentReportDegradesForEditedLessons(t *testing.T) {
	analytics, _ := analyticsFixture(t,
		attemptFixture("a1", "u1", "L1", "2024-01-01T00:00:00Z",
			picked(7, 0, true),
			picked(1, 9, false),
			domain.AttemptAnswer{QuestionIndex: 2},
		),
	)
	rows, err := analytics.StudentReport(context.Background(), "u1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	answers := rows[0].Answers
	if len(answers) != 3 || answers[0].QuestionIndex != 1 {
		t.Fatalf("answers not ordered: %+v", answers)
	}
	if answers[0].SelectedText != "option unavailable" || answers[0].CorrectText != "b" {
		t.Fatalf("unexpected stale option row %+v", answers[0])
	}
	if answers[1].SelectedText != "no answer" {
		t.Fatalf("unexpected unanswered row %+v", answers[1])
	}
	if answers[2].Question != "question unavailable" {
		t.Fatalf("unexpected missing question row %+v", answers[2])
	}
}

func TestQuestionResponseDistribution(t *testing.T) {
	analytics, _ := analyticsFixture(t,
		attemptFixture("u1-old", "u1", "L1", "2024-01-01T00:00:00Z", picked(0, 0, true)),
		attemptFixture("u1-new", "u1", "L1", "2024-01-02T00:00:00Z", picked(0, 1, false)),
		attemptFixture("u2", "u2", "L1", "2024-01-01T00:00:00Z", picked(0, 1, false)),
		attemptFixture("u3", "u3", "L1", "2024-01-01T00:00:00Z"),
		attemptFixture("u4", "u4", "L1", "2024-01-01T00:00:00Z", picked(0, 5, false)),
	)

	dist, err := analytics.QuestionResponseDistribution(context.Background(), "L1", 0)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if dist.Respondents != 4 || dist.NoAnswer != 1 || dist.Question != "one" {
		t.Fatalf("unexpected distribution %+v", dist)
	}
	want := []int{0, 2, 0}
	for i, c := range want {
		if dist.Options[i].Count != c {
			t.Fatalf("option %d: got %d, want %d", i, dist.Options[i].Count, c)
		}
	}
	if !dist.Options[0].IsCorrect || len(dist.Options) != 4 {
		t.Fatalf("unexpected options %+v", dist.Options)
	}
	if stale := dist.Options[3]; stale.Index != 5 || stale.Available || stale.Count != 1 {
		t.Fatalf("unexpected stale option %+v", stale)
	}

	missing, err := analytics.QuestionResponseDistribution(context.Background(), "deleted", 0)
	if err != nil {
		t.Fatalf("distribution of deleted lesson: %v", err)
	}
	if missing.Question != "question unavailable" || missing.Respondents != 0 {
		t.Fatalf("unexpected distribution %+v", missing)
	}
}

func TestClassStatsFromStore(t *testing.T) {
	s := seededStack()
	ctx := as("u1")
	session, _ := s.learning.StartLesson(ctx, introLesson)
	playLesson(t, ctx, s.learning, session.ID, 1, 0, 2)
	if _, err := s.learning.FinishSession(ctx, session.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	stats, err := s.analytics.ClassStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalStudents != 1 || stats.AvgXP != 50 || stats.TotalLessons != len(domain.DefaultLessons()) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	top, err := s.analytics.TopLearners(context.Background(), 5)
	if err != nil || len(top) != 1 || top[0].UserName != "Name of u1" {
		t.Fatalf("unexpected leaderboard %+v %v", top, err)
	}
}
