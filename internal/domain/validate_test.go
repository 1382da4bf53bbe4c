package domain

import (
	"errors"
	"testing"
)

func TestLessonValidationRejectsMalformedRecords(t *testing.T) {
	lesson := Lesson{
		ID:       "l1",
		Title:    "",
		XPReward: 0,
		Questions: []Question{
			{Text: "q", Options: []string{"a", "b"}, CorrectIndex: 2},
		},
	}
	err := lesson.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	for _, field := range []string{"title", "xpReward", "questions[0].correctIndex"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, verr.Fields)
		}
	}
}

func TestQuestionNeedsTwoOptions(t *testing.T) {
	err := Question{Text: "q", Options: []string{"only"}, CorrectIndex: 0}.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	for _, m := range DefaultModules() {
		if err := m.Validate(); err != nil {
			t.Fatalf("default module %s: %v", m.Key, err)
		}
	}
	for _, l := range DefaultLessons() {
		if err := l.Validate(); err != nil {
			t.Fatalf("default lesson %s: %v", l.ID, err)
		}
	}
}

func TestProgressCompletedSetHasUniqueMembership(t *testing.T) {
	p := Progress{StudentID: "s1"}
	p = p.WithCompleted("L1").WithCompleted("L1").WithCompleted("L2")
	if len(p.CompletedLessonIDs) != 2 {
		t.Fatalf("expected 2 completed lessons, got %v", p.CompletedLessonIDs)
	}
	p.CompletedLessonIDs = append(p.CompletedLessonIDs, "L1")
	if err := p.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected duplicate ids to be rejected, got %v", err)
	}
}

func TestAttemptWithAnswerReplacesSameQuestion(t *testing.T) {
	one, two := 1, 2
	a := Attempt{ID: "a1"}
	a = a.WithAnswer(AttemptAnswer{QuestionIndex: 0, SelectedOption: &one}, "2024-01-01T00:00:00.000Z")
	a = a.WithAnswer(AttemptAnswer{QuestionIndex: 0, SelectedOption: &two, IsCorrect: true}, "2024-01-01T00:00:01.000Z")
	if len(a.Answers) != 1 {
		t.Fatalf("expected single answer, got %+v", a.Answers)
	}
	ans, ok := a.Answer(0)
	if !ok || *ans.SelectedOption != 2 || !ans.IsCorrect {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if a.UpdatedAt != "2024-01-01T00:00:01.000Z" {
		t.Fatalf("expected updatedAt bumped, got %s", a.UpdatedAt)
	}
}
